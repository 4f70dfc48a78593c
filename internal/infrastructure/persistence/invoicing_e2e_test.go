package persistence_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eyc/invoicing/internal/application/invoicing"
	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared/valueobject"
	"github.com/eyc/invoicing/internal/infrastructure/batch"
	"github.com/eyc/invoicing/internal/infrastructure/config"
	"github.com/eyc/invoicing/internal/infrastructure/export"
	"github.com/eyc/invoicing/internal/infrastructure/persistence"
)

func money(v float64) *valueobject.Money {
	m := valueobject.USDFromFloat(v)
	return &m
}

// TestInvoicingRun_SQLite drives a full generate and export cycle through the
// relational store.
func TestInvoicingRun_SQLite(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	db, err := persistence.OpenSQLite(&config.SQLiteConfig{Path: ":memory:", AutoMigrate: true}, nil)
	require.NoError(t, err)
	store := persistence.NewGormStore(db)
	defer store.Close()

	regular := func() *membership.MemberType { return &membership.MemberType{Name: "Regular"} }
	alice := &membership.Member{Name: "Alice", MemberType: regular(), AnnualDues: money(100), BuildingAssessment: money(50)}
	bob := &membership.Member{Name: "Bob", MemberType: regular(), AnnualDues: money(0), BuildingAssessment: money(0)}
	carol := &membership.Member{Name: "Carol", MemberType: regular(), AnnualDues: money(100)}
	require.NoError(t, store.Members().CreateRecords(ctx, []*membership.Member{alice, bob, carol}))

	existing := membership.NewOpenInvoice(carol.ID, 1999,
		mustDate(t, "2024-12-01"), mustDate(t, "2025-01-31"))
	require.NoError(t, store.Invoices().CreateRecords(ctx, []*membership.Invoice{existing}))
	require.NoError(t, store.LineItems().CreateRecords(ctx, []*membership.LineItem{
		membership.NewDuesItem(existing.ID, "Regular", *money(100), mustDate(t, "2025-01-01")),
	}))

	exec := batch.NewExecutor(batch.Config{BatchSize: batch.DefaultBatchSize}, logger)
	svc := invoicing.NewService(store, exec, logger)

	next, err := svc.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), next)

	summary, err := svc.Generate(ctx, invoicing.GenerateRequest{
		FirstInvoiceNumber: "2000",
		InvoiceDate:        "2024-12-01",
		DueDate:            "2025-01-31",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.InvoicesCreated)
	assert.Equal(t, 2, summary.LineItemsCreated)
	assert.Equal(t, "Created 1 invoices and 2 invoice line items.", summary.Message)

	// A second run finds nothing to do.
	again, err := svc.Generate(ctx, invoicing.GenerateRequest{
		FirstInvoiceNumber: "2001",
		InvoiceDate:        "2024-12-01",
		DueDate:            "2025-01-31",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, again.InvoicesCreated)
	assert.Equal(t, 0, again.LineItemsCreated)

	result, err := svc.Export(ctx, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "invoices.csv", result.FileName)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, 2, result.InvoicesClosed)

	lines := strings.Split(string(result.Body), "\r\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Invoice #,Member Name,Unit price,Product Name,Description,Quantity,Invoice Date,Due Date,Service Date,Amount", lines[0])
	assert.Equal(t, "1999,Carol,100,Regular,Regular Dues,1,2024-12-01,2025-01-31,2025-01-01,100", lines[1])
	assert.Equal(t, "2000,Alice,100,Regular,Regular Dues,1,2024-12-01,2025-01-31,2025-01-01,100", lines[2])
	assert.Equal(t, "2000,Alice,50,Building Assessment,Building Assessment,1,2024-12-01,2025-01-31,2025-01-01,50", lines[3])
	assert.Equal(t, "", lines[4])

	open, err := store.Invoices().ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	deleted, err := svc.DeleteAllInvoices(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted.LineItemsDeleted)
	assert.Equal(t, 2, deleted.InvoicesDeleted)

	members, err := store.Members().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := membership.ParseDate(s)
	require.NoError(t, err)
	return d
}
