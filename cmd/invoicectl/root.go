package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eyc/invoicing/internal/application/invoicing"
	"github.com/eyc/invoicing/internal/bootstrap"
	"github.com/eyc/invoicing/internal/infrastructure/config"
	"github.com/eyc/invoicing/internal/infrastructure/logger"
)

type options struct {
	configPath string
	logLevel   string
}

// app is the per-invocation wiring. close releases the store and flushes
// telemetry.
type app struct {
	service *invoicing.Service
	log     *zap.Logger
	close   func()
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Annual membership invoicing for the yacht club",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.toml")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newNextNumberCommand(opts),
		newGenerateCommand(opts),
		newExportCommand(opts),
		newDeleteAllCommand(opts),
		newExportMembersCommand(opts),
		newSeedCommand(opts),
	)
	return root
}

// open loads configuration and builds the service. Every run gets a run ID
// that is attached to its log lines.
func (o *options) open(ctx context.Context, operation string) (context.Context, *app, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return ctx, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	baseLog, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "15:04:05",
	})
	if err != nil {
		return ctx, nil, fmt.Errorf("initialize logger: %w", err)
	}

	tel, log, err := bootstrap.SetupTelemetry(ctx, cfg, baseLog)
	if err != nil {
		return ctx, nil, err
	}
	ctx, log = logger.WithRunID(ctx, log.With(zap.String("operation", operation)), uuid.NewString())

	store, err := bootstrap.OpenStore(cfg, log)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return ctx, nil, err
	}
	svc, err := bootstrap.NewService(ctx, cfg, store, tel.Meter, log)
	if err != nil {
		_ = store.Close()
		_ = tel.Shutdown(ctx)
		return ctx, nil, err
	}

	return ctx, &app{
		service: svc,
		log:     log,
		close: func() {
			if err := store.Close(); err != nil {
				log.Warn("Error closing record store", zap.Error(err))
			}
			_ = tel.Shutdown(context.Background())
			_ = logger.Sync(baseLog)
		},
	}, nil
}

func writeOutput(path string, body []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(body)
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
