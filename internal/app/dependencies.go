package app

import (
	"context"
	"time"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/database"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/events"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/locks"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing/exporters"
)

const (
	DependencyTracing  = "tracing"
	DependencyDatabase = "database"
	DependencyRedis    = "redis"
	DependencyEvents   = "events"
)

type tracingDependency struct {
	app *App
}

func (d *tracingDependency) GetName() string     { return DependencyTracing }
func (d *tracingDependency) DependsOn() []string { return nil }

func (d *tracingDependency) Start(ctx context.Context) error {
	cfg := d.app.Config
	tp, err := exporters.NewTracerProvider(ctx, exporters.OTLPConfig{
		Endpoint: cfg.OtelEndpoint,
		Protocol: cfg.OtelProtocol,
		Insecure: cfg.OtelInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return err
	}
	d.app.setupTracing(tp)
	return nil
}

func (d *tracingDependency) Stop(ctx context.Context) error {
	if d.app.tracerProvider == nil {
		return nil
	}
	return d.app.tracerProvider.Shutdown(ctx)
}

type databaseDependency struct {
	app     *App
	migrate bool
}

func (d *databaseDependency) GetName() string     { return DependencyDatabase }
func (d *databaseDependency) DependsOn() []string { return []string{DependencyTracing} }

func (d *databaseDependency) Start(ctx context.Context) error {
	cfg := d.app.Config
	db, err := database.Open(ctx, cfg.Database(), d.app.Logger)
	if err != nil {
		return err
	}

	if d.migrate {
		if err := database.NewMigrationService(d.app.Logger, cfg.Migration()).MigratePostgres(db, cfg.DatabaseName); err != nil {
			_ = db.Close()
			return err
		}
	}

	d.app.DB = db
	return nil
}

func (d *databaseDependency) Stop(context.Context) error {
	if d.app.DB == nil {
		return nil
	}
	return d.app.DB.Close()
}

type redisDependency struct {
	app *App
}

func (d *redisDependency) GetName() string     { return DependencyRedis }
func (d *redisDependency) DependsOn() []string { return nil }

func (d *redisDependency) Start(ctx context.Context) error {
	cfg := d.app.Config
	rdb, err := locks.NewClient(ctx, locks.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, d.app.Logger)
	if err != nil {
		return err
	}
	d.app.Redis = rdb
	return nil
}

func (d *redisDependency) Stop(context.Context) error {
	if d.app.Redis == nil {
		return nil
	}
	return d.app.Redis.Close()
}

type eventsDependency struct {
	app *App
}

func (d *eventsDependency) GetName() string     { return DependencyEvents }
func (d *eventsDependency) DependsOn() []string { return nil }

func (d *eventsDependency) Start(context.Context) error {
	cfg := d.app.Config
	d.app.Events = events.NewProducer(events.Config{
		Brokers: events.ParseBrokers(cfg.KafkaBrokers),
		Topic:   cfg.KafkaImportTopic,
	}, d.app.Logger)
	d.app.Logger.Infof("Publishing import events to Kafka topic %s", cfg.KafkaImportTopic)
	return nil
}

func (d *eventsDependency) Stop(context.Context) error {
	if d.app.Events == nil {
		return nil
	}
	return d.app.Events.Close()
}
