// Package metrics provides Prometheus metrics for the CRM service.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal tracks handled requests by route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of handled HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crm",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// QuotationTotalsRecomputed counts update_totals runs.
	QuotationTotalsRecomputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "quotation",
			Name:      "totals_recomputed_total",
			Help:      "Total number of quotation totals recomputations",
		},
	)

	// RequirementImagesChanged counts gallery images added or removed.
	RequirementImagesChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "requirement",
			Name:      "images_total",
			Help:      "Total number of requirement images added or removed",
		},
		[]string{"op"},
	)

	// PaymentTermsWritten counts payment-term rows created.
	PaymentTermsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "agreement",
			Name:      "payment_terms_written_total",
			Help:      "Total number of payment term rows written",
		},
	)

	// CalendarInvites tracks demo invitations by outcome.
	CalendarInvites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "calendar",
			Name:      "invites_total",
			Help:      "Total number of calendar invitations by status",
		},
		[]string{"status"},
	)
)

// Middleware records request count and latency per matched route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is final.
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
