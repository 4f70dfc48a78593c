// Package bootstrap assembles the record store, telemetry and invoicing
// service from configuration. The HTTP server and the command line tool
// share it so both run against the same wiring.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eyc/invoicing/internal/application/invoicing"
	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/infrastructure/batch"
	"github.com/eyc/invoicing/internal/infrastructure/config"
	"github.com/eyc/invoicing/internal/infrastructure/export"
	"github.com/eyc/invoicing/internal/infrastructure/logger"
	"github.com/eyc/invoicing/internal/infrastructure/memstore"
	"github.com/eyc/invoicing/internal/infrastructure/notionstore"
	"github.com/eyc/invoicing/internal/infrastructure/persistence"
	"github.com/eyc/invoicing/internal/infrastructure/storage"
	"github.com/eyc/invoicing/internal/infrastructure/telemetry"
)

// Telemetry owns the OpenTelemetry providers of a process.
type Telemetry struct {
	Tracer *telemetry.TracerProvider
	Meter  *telemetry.MeterProvider
	Logs   *telemetry.LoggerProvider
}

// SetupTelemetry starts the trace, metric and log pipelines. The returned
// logger also ships records to the collector when log export is enabled.
func SetupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Telemetry, *zap.Logger, error) {
	t := &Telemetry{}
	collector := telemetry.Collector{
		Endpoint:       cfg.Telemetry.CollectorEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.App.Version,
	}
	var err error

	t.Tracer, err = telemetry.NewTracerProvider(ctx, telemetry.TracesConfig{
		Collector:     collector,
		Enabled:       cfg.Telemetry.Enabled,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: %w", err)
	}

	t.Meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Collector:      collector,
		Enabled:        cfg.Telemetry.MetricsEnabled,
		ExportInterval: cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, nil, fmt.Errorf("metrics: %w", err)
	}

	t.Logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Collector: collector,
		Enabled:   cfg.Telemetry.LogsEnabled,
		MinLevel:  logger.ParseLevel(cfg.Telemetry.LogsLevel),
	}, log)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, nil, fmt.Errorf("logs: %w", err)
	}

	return t, t.Logs.Bridge(log), nil
}

// Shutdown flushes every provider that was started.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.Logs != nil {
		errs = append(errs, t.Logs.Shutdown(ctx))
	}
	if t.Meter != nil {
		errs = append(errs, t.Meter.Shutdown(ctx))
	}
	if t.Tracer != nil {
		errs = append(errs, t.Tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Store is an opened record store. Ping is nil for stores that have no
// cheap liveness probe.
type Store struct {
	membership.Store
	Driver string
	Ping   func(ctx context.Context) error
}

// OpenStore opens the record store selected by store.driver.
func OpenStore(cfg *config.Config, log *zap.Logger) (*Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
			logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL))

		var (
			db       *persistence.Database
			err      error
			dbSystem = "sqlite"
		)
		if cfg.Store.Driver == config.DriverPostgres {
			db, err = persistence.OpenPostgres(&cfg.Database, gormLog)
			dbSystem = "postgresql"
		} else {
			db, err = persistence.OpenSQLite(&cfg.SQLite, gormLog)
		}
		if err != nil {
			return nil, err
		}

		if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
			Enabled:    cfg.Telemetry.DBTraceEnabled,
			LogFullSQL: cfg.Telemetry.DBLogFullSQL,
			DBSystem:   dbSystem,
		}, log); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Store{
			Store:  persistence.NewGormStore(db),
			Driver: cfg.Store.Driver,
			Ping:   func(context.Context) error { return db.Ping() },
		}, nil

	case config.DriverNotion:
		s, err := notionstore.Open(cfg.Notion, cfg.Store.RequestsPerSecond, log)
		if err != nil {
			return nil, err
		}
		return &Store{Store: s, Driver: cfg.Store.Driver}, nil

	case config.DriverMemory:
		log.Warn("Using the in-memory record store; nothing survives a restart")
		return &Store{Store: memstore.New(), Driver: cfg.Store.Driver}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// NewService builds the invoicing service over store. meter may be nil.
func NewService(ctx context.Context, cfg *config.Config, store membership.Store, meter *telemetry.MeterProvider, log *zap.Logger) (*invoicing.Service, error) {
	opts := []invoicing.Option{
		invoicing.WithWriter(export.NewCSVWriter(cfg.Export.EscapeFields, log)),
		invoicing.WithWriter(export.NewXLSXWriter(cfg.Export.SheetName)),
	}
	if cfg.Invoice.DefaultFirstNumber > 0 {
		opts = append(opts, invoicing.WithDefaultFirstInvoiceNumber(cfg.Invoice.DefaultFirstNumber))
	}

	execCfg := batch.Config{
		BatchSize:         cfg.Store.BatchSize,
		RequestsPerSecond: cfg.Store.RequestsPerSecond,
	}
	if meter != nil {
		metrics, err := telemetry.NewInvoicingMetrics(meter.Meter("invoicing"))
		if err != nil {
			return nil, fmt.Errorf("invoicing metrics: %w", err)
		}
		opts = append(opts, invoicing.WithMetrics(metrics))
		execCfg.Observer = metrics
	}

	if cfg.Export.ArchiveEnabled {
		archive, err := storage.NewS3Archive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("export archive: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("export archive: %w", err)
		}
		opts = append(opts, invoicing.WithArchiver(archive))
	}

	return invoicing.NewService(store, batch.NewExecutor(execCfg, log), log, opts...), nil
}
