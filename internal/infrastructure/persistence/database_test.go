package persistence

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/eyc/invoicing/internal/infrastructure/config"
	"github.com/eyc/invoicing/internal/infrastructure/persistence/models"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB, Driver: config.DriverPostgres}, mock, mockDB
}

func newSQLiteDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := OpenSQLite(&config.SQLiteConfig{Path: ":memory:", AutoMigrate: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDatabase_Ping(t *testing.T) {
	t.Run("successful ping", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectPing()

		require.NoError(t, db.Ping())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOpenSQLite(t *testing.T) {
	t.Run("auto migrates the invoicing tables", func(t *testing.T) {
		db := newSQLiteDatabase(t)

		assert.Equal(t, config.DriverSQLite, db.Driver)
		for _, table := range []string{"member_types", "members", "invoices", "invoice_items"} {
			assert.True(t, db.DB.Migrator().HasTable(table), table)
		}
		assert.True(t, db.DB.Migrator().HasIndex(&models.InvoiceModel{}, "idx_invoices_open_membership"))
		assert.NoError(t, db.Ping())
	})

	t.Run("without auto migrate the schema is empty", func(t *testing.T) {
		db, err := OpenSQLite(&config.SQLiteConfig{Path: ":memory:"}, nil)
		require.NoError(t, err)
		defer db.Close()

		assert.False(t, db.DB.Migrator().HasTable("invoices"))
	})
}
