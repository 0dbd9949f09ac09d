// Package app wires configuration, infrastructure and the import pipeline together for the
// API server and the CLI.
package app

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/config"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/internal/repositories/association"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/internal/repositories/importbatch"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/internal/repositories/municipality"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/internal/repositories/scraperun"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/events"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/importer"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/locks"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/startup"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
)

// App holds the process-wide dependencies. Infrastructure fields are populated by Start.
type App struct {
	Config *config.Config
	Logger ectologger.Logger

	DB     *database.DatabaseInstance
	Redis  *redis.Client
	Events *events.Producer

	Municipalities *municipality.Repository
	Associations   *association.Repository
	Batches        *importbatch.Repository
	ScrapeRuns     *scraperun.Repository

	tracerProvider *sdktrace.TracerProvider
	startup        *startup.Startup
}

type Options struct {
	// Migrate applies pending migrations once the database is reachable.
	Migrate bool
	// WithRedis connects Redis even when import locking is disabled.
	WithRedis bool
	// WithEvents enables the Kafka producer when brokers are configured.
	WithEvents bool
}

func New(cfg *config.Config, logger ectologger.Logger, opts Options) *App {
	a := &App{
		Config:         cfg,
		Logger:         logger,
		Municipalities: municipality.NewRepository(logger),
		Associations:   association.NewRepository(logger),
		Batches:        importbatch.NewRepository(logger),
		ScrapeRuns:     scraperun.NewRepository(logger),
		startup:        startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}

	a.startup.AddDependency(&tracingDependency{app: a})
	a.startup.AddDependency(&databaseDependency{app: a, migrate: opts.Migrate})
	if opts.WithRedis || cfg.ImportLockEnabled {
		a.startup.AddDependency(&redisDependency{app: a})
	}
	if opts.WithEvents && len(events.ParseBrokers(cfg.KafkaBrokers)) > 0 {
		a.startup.AddDependency(&eventsDependency{app: a})
	}
	return a
}

// AddDependency registers an extra component, such as the HTTP server, with the startup runner.
func (a *App) AddDependency(dep startup.Dependency) {
	a.startup.AddDependency(dep)
}

func (a *App) Start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.startup.Stop(ctx)
}

// ImportService builds the pipeline on the started database.
func (a *App) ImportService() *importer.Service {
	txOptions := a.Config.ImportTxOptions()
	deps := importer.Dependencies{
		DB:             a.DB,
		Municipalities: a.Municipalities,
		Associations:   a.Associations,
		Batches:        a.Batches,
		ScrapeRuns:     a.ScrapeRuns,
		Logger:         a.Logger,
		TxOptions:      &txOptions,
	}
	if a.Events != nil {
		deps.Events = a.Events
	}
	return importer.NewService(deps)
}

// Locker returns the Redis import lock when enabled and a no-op lock otherwise.
func (a *App) Locker() locks.Locker {
	if !a.Config.ImportLockEnabled || a.Redis == nil {
		return locks.NopLocker{}
	}
	return locks.NewRedisLocker(a.Redis, a.Config.AppName+":lock:", a.Config.ImportLockTTL, a.Logger)
}

func (a *App) setupTracing(tp *sdktrace.TracerProvider) {
	a.tracerProvider = tp
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	tracing.SetTracer(tp.Tracer(a.Config.AppName))
}
