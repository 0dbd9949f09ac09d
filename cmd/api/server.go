package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/internal/app"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/middleware"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/routes/association"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/routes/health"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/routes/importbatch"
	importroutes "github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/routes/importer"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/routes/municipality"
)

// httpServer is started last so every route has its dependencies.
type httpServer struct {
	app     *app.App
	checker *health.Checker
	echo    *echo.Echo
	errs    chan error
}

func newHTTPServer(a *app.App) *httpServer {
	return &httpServer{
		app:     a,
		checker: health.NewChecker(a.Config.Version),
		errs:    make(chan error, 1),
	}
}

func (s *httpServer) GetName() string { return "http" }

func (s *httpServer) DependsOn() []string { return []string{app.DependencyDatabase} }

func (s *httpServer) Start(context.Context) error {
	cfg := s.app.Config
	e := s.newEcho()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		s.app.Logger.Infof("HTTP server listening on :%d", cfg.Port)
		if err := e.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
	}()

	s.echo = e
	s.checker.SetReady(true)
	return nil
}

func (s *httpServer) Stop(ctx context.Context) error {
	s.checker.SetReady(false)
	if s.echo == nil {
		return nil
	}
	return s.echo.Shutdown(ctx)
}

func (s *httpServer) newEcho() *echo.Echo {
	a := s.app
	cfg := a.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.Logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestID,
			middleware.HeaderUserID,
			middleware.HeaderUserName,
		},
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.Logger, "/metrics", "/api/v1/health"))

	s.checker.AddCheck(app.DependencyDatabase, a.DB)
	if a.Redis != nil {
		s.checker.AddCheck(app.DependencyRedis, health.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	s.checker.Register(api.Group("/health"))

	// Multipart bodies carry several fixture files.
	importGroup := api.Group("/import", echomiddleware.BodyLimit(fmt.Sprintf("%dB", cfg.ImportMaxFileBytes*8)))
	importroutes.NewHandler(a.ImportService(), a.Locker(), cfg.ImportMaxFileBytes, a.Logger).Register(importGroup)

	municipality.NewHandler(a.DB, a.Municipalities, a.Associations).Register(api.Group("/municipalities"))
	association.NewHandler(a.DB, a.Associations).Register(api.Group("/associations"))
	importbatch.NewHandler(a.DB, a.Batches).Register(api.Group("/import-batches"))

	return e
}
