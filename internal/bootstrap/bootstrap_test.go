package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eyc/invoicing/internal/infrastructure/config"
	"github.com/eyc/invoicing/internal/infrastructure/export"
)

func testConfig(driver string) *config.Config {
	return &config.Config{
		Log:    config.LogConfig{Level: "warn"},
		Store:  config.StoreConfig{Driver: driver},
		SQLite: config.SQLiteConfig{Path: ":memory:", AutoMigrate: true},
		Export: config.ExportConfig{SheetName: "Invoices"},
	}
}

func TestOpenStore(t *testing.T) {
	log := zaptest.NewLogger(t)

	t.Run("sqlite has a ping", func(t *testing.T) {
		s, err := OpenStore(testConfig(config.DriverSQLite), log)
		require.NoError(t, err)
		defer s.Close()

		require.NotNil(t, s.Ping)
		assert.NoError(t, s.Ping(context.Background()))
		assert.Equal(t, config.DriverSQLite, s.Driver)
	})

	t.Run("memory has none", func(t *testing.T) {
		s, err := OpenStore(testConfig(config.DriverMemory), log)
		require.NoError(t, err)
		assert.Nil(t, s.Ping)
	})

	t.Run("notion without token", func(t *testing.T) {
		_, err := OpenStore(testConfig(config.DriverNotion), log)
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := OpenStore(testConfig("airtable"), log)
		assert.ErrorContains(t, err, "airtable")
	})
}

func TestNewService_RegistersWriters(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	cfg := testConfig(config.DriverMemory)

	tel, bridged, err := SetupTelemetry(ctx, cfg, log)
	require.NoError(t, err)
	defer tel.Shutdown(ctx)

	s, err := OpenStore(cfg, bridged)
	require.NoError(t, err)
	svc, err := NewService(ctx, cfg, s, tel.Meter, bridged)
	require.NoError(t, err)

	for _, format := range []export.Format{export.FormatCSV, export.FormatXLSX} {
		result, err := svc.Export(ctx, format)
		require.NoError(t, err, format)
		assert.Zero(t, result.Rows)
		assert.NotEmpty(t, result.Body)
	}
}
