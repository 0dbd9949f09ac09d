package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/config"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/internal/app"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, logger, app.Options{Migrate: true, WithEvents: true})
	server := newHTTPServer(a)
	a.AddDependency(server)

	if err := a.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err = <-server.errs:
		logger.WithError(err).Error("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if stopErr := a.Stop(shutdownCtx); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}
