// Package server assembles the echo application: middleware, health and
// metrics endpoints, and the /api/v1 routes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/blobstore"
	"github.com/diewo77/go-crm/internal/calendar"
	"github.com/diewo77/go-crm/internal/config"
	"github.com/diewo77/go-crm/internal/db"
	"github.com/diewo77/go-crm/internal/handlers"
	"github.com/diewo77/go-crm/internal/metrics"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ServiceName identifies the process in traces.
const ServiceName = "go-crm"

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Blobs   blobstore.Store
	Inviter calendar.Inviter
	Log     *zap.Logger
}

// Server is the configured echo instance plus the pieces tests and the CLI
// need to reach.
type Server struct {
	Echo *echo.Echo
	Auth *auth.Authenticator
	Gate *policy.AuthGate
	cfg  *config.Config
	log  *zap.Logger
}

// New wires services and handlers onto a fresh echo instance.
func New(d Deps) *Server {
	cfg := d.Config
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	ag := policy.NewAuthGate(d.DB, cfg.App.ProfileCacheSize, cfg.App.ProfileCacheTTL)
	users := services.NewUserService(d.DB, ag)
	authn := auth.New(cfg.App.Secret(), cfg.App.JWTTTL, users.Exists)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(log)

	e.Use(RequestID())
	e.Use(middleware.Recover())
	if cfg.App.TracingEnabled {
		e.Use(otelecho.Middleware(ServiceName))
	}
	e.Use(Logger(log))
	if cfg.App.MetricsEnabled {
		e.Use(metrics.Middleware())
	}
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.App.MaxUploadMB)))
	e.Use(authn.Middleware())

	health := func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx, d.DB); err != nil {
			log.Warn("health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	e.GET("/health", health)
	e.GET("/healthz", health)
	if cfg.App.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	inviter := d.Inviter
	if inviter == nil {
		inviter = calendar.Noop{}
	}
	public := e.Group(handlers.APIPrefix)
	api := e.Group(handlers.APIPrefix, authn.RequireAuth())

	handlers.NewAuthHandler(authn, users).RegisterRoutes(public, api)
	handlers.NewUserHandler(users).RegisterRoutes(api, ag)
	handlers.NewProfileHandler(services.NewProfileService(d.DB, ag)).RegisterRoutes(api, ag)
	handlers.NewFeatureHandler(services.NewFeatureService(d.DB)).RegisterRoutes(api, ag)
	handlers.NewProductHandler(services.NewProductService(d.DB)).RegisterRoutes(api, ag)
	handlers.NewClientHandler(services.NewClientService(d.DB, d.Blobs, log)).RegisterRoutes(api, ag)
	handlers.NewClientRequestHandler(services.NewClientRequestService(d.DB, inviter, log,
		services.WithDemoDuration(time.Duration(cfg.Calendar.EventMinutes)*time.Minute))).RegisterRoutes(api, ag)
	handlers.NewRelationshipHandler(services.NewRelationshipService(d.DB)).RegisterRoutes(api, ag)
	handlers.NewRequirementHandler(services.NewRequirementService(d.DB, d.Blobs, log)).RegisterRoutes(api, ag)
	handlers.NewQuotationHandler(services.NewQuotationService(d.DB, log)).RegisterRoutes(api, ag)
	handlers.NewAgreementHandler(services.NewAgreementService(d.DB, d.Blobs, log)).RegisterRoutes(api, ag)

	return &Server{Echo: e, Auth: authn, Gate: ag, cfg: cfg, log: log}
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to ten seconds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.Echo,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeout) * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
