package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/diewo77/go-crm/httpx"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey string

const requestIDCtxKey = ctxKey("requestID")

// RequestID reuses the caller's X-Request-ID or generates one, echoes it on
// the response and stores it in the request context.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(context.WithValue(req.Context(), requestIDCtxKey, id)))
			return next(c)
		}
	}
}

// RequestIDFromContext returns the id set by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}

// TraceID returns the active span's trace id, or "" without tracing.
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger writes one structured line per request.
func Logger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			req := c.Request()
			res := c.Response()
			fields := []zap.Field{
				zap.String("request_id", RequestIDFromContext(req.Context())),
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("route", c.Path()),
				zap.Int("status", res.Status),
				zap.String("remote_ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("response_size", res.Size),
			}
			if traceID := TraceID(req.Context()); traceID != "" {
				fields = append(fields, zap.String("trace_id", traceID))
			}
			switch {
			case res.Status >= http.StatusInternalServerError:
				log.Error("request", fields...)
			case res.Status >= http.StatusBadRequest:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}
			return nil
		}
	}
}

// ErrorHandler renders every error as httpx.ErrorResponse. Errors that are
// not HTTP errors are logged and reported as 500 without details.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ctx := c.Request().Context()
		code := http.StatusInternalServerError
		message := http.StatusText(code)
		var meta map[string]any

		var herr *httperror.HTTPError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(code)
			}
		} else if errors.As(err, &herr) {
			code = herr.Code
			message = herr.Message
			meta = herr.Meta
		}
		if code >= http.StatusInternalServerError {
			log.Error("request failed", zap.Error(err), zap.String("request_id", RequestIDFromContext(ctx)))
		}

		body := httpx.ErrorResponse{
			Message:   message,
			RequestID: RequestIDFromContext(ctx),
			TraceID:   TraceID(ctx),
			Meta:      meta,
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}
