package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/infrastructure/batch"
	"github.com/eyc/invoicing/internal/infrastructure/export"
	"github.com/eyc/invoicing/internal/infrastructure/memstore"
)

var validRequest = GenerateRequest{
	FirstInvoiceNumber: "2000",
	InvoiceDate:        "2024-12-01",
	DueDate:            "2025-01-31",
}

func newTestService(t *testing.T, store membership.Store, opts ...Option) *Service {
	t.Helper()
	logger := zaptest.NewLogger(t)
	exec := batch.NewExecutor(batch.Config{BatchSize: batch.DefaultBatchSize}, logger)
	return NewService(store, exec, logger, opts...)
}

func seedMembers(t *testing.T, store *memstore.Store, members ...*membership.Member) {
	t.Helper()
	ctx := context.Background()
	for _, chunk := range batch.Chunks(members, batch.DefaultBatchSize) {
		require.NoError(t, store.Members().CreateRecords(ctx, chunk))
	}
}

func seedInvoice(t *testing.T, store *memstore.Store, member membership.MemberID, number int64, products ...string) *membership.Invoice {
	t.Helper()
	ctx := context.Background()
	inv := membership.NewOpenInvoice(member, number, testInvoiceDate, testDueDate)
	require.NoError(t, store.Invoices().CreateRecords(ctx, []*membership.Invoice{inv}))
	for _, p := range products {
		item := membership.NewDuesItem(inv.ID, p, *usd(100), testServiceDate)
		require.NoError(t, store.LineItems().CreateRecords(ctx, []*membership.LineItem{item}))
	}
	return inv
}

func TestService_Generate_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	a := &membership.Member{Name: "Alice", MemberType: regular(), AnnualDues: usd(100), BuildingAssessment: usd(50)}
	b := &membership.Member{Name: "Bob", MemberType: regular(), AnnualDues: usd(0), BuildingAssessment: usd(0)}
	c := &membership.Member{Name: "Carol", MemberType: regular(), AnnualDues: usd(100)}
	seedMembers(t, store, a, b, c)
	cInvoice := seedInvoice(t, store, c.ID, 1999, "Regular")

	svc := newTestService(t, store)
	summary, err := svc.Generate(ctx, validRequest)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.InvoicesCreated)
	assert.Equal(t, 2, summary.LineItemsCreated)
	assert.Equal(t, int64(2000), summary.FirstInvoiceNumber)
	assert.Equal(t, "Created 1 invoices and 2 invoice line items.", summary.Message)

	open, err := store.Invoices().ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)

	var aInvoice *membership.Invoice
	for _, inv := range open {
		if inv.Membership == a.ID {
			aInvoice = inv
		}
	}
	require.NotNil(t, aInvoice)
	assert.Equal(t, int64(2000), aInvoice.Number)

	names, err := store.LineItems().ProductNames(ctx, aInvoice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Regular", "Building Assessment"}, names)

	names, err = store.LineItems().ProductNames(ctx, cInvoice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Regular"}, names)
}

func TestService_Generate_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedMembers(t, store,
		&membership.Member{Name: "Alice", MemberType: regular(), AnnualDues: usd(100), BuildingAssessment: usd(50)},
		&membership.Member{Name: "Dave", MemberType: regular(), AnnualDues: usd(100)},
	)
	svc := newTestService(t, store)

	first, err := svc.Generate(ctx, validRequest)
	require.NoError(t, err)
	assert.Equal(t, 2, first.InvoicesCreated)
	assert.Equal(t, 3, first.LineItemsCreated)

	second, err := svc.Generate(ctx, GenerateRequest{FirstInvoiceNumber: "2002", InvoiceDate: "2024-12-01", DueDate: "2025-01-31"})
	require.NoError(t, err)
	assert.Equal(t, 0, second.InvoicesCreated)
	assert.Equal(t, 0, second.LineItemsCreated)
	assert.Equal(t, "Created 0 invoices and 0 invoice line items.", second.Message)

	all, err := store.Invoices().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestService_Generate_ReconcilesExistingOpenInvoice(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	m := &membership.Member{Name: "Erin", MemberType: regular(), AnnualDues: usd(100), BuildingAssessment: usd(50)}
	seedMembers(t, store, m)
	inv := seedInvoice(t, store, m.ID, 1500, "Regular")

	summary, err := newTestService(t, store).Generate(ctx, validRequest)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.InvoicesCreated)
	assert.Equal(t, 1, summary.LineItemsCreated)

	names, err := store.LineItems().ProductNames(ctx, inv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Regular", "Building Assessment"}, names)
}

func TestService_Generate_InvalidInputWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedMembers(t, store, &membership.Member{Name: "Alice", MemberType: regular(), AnnualDues: usd(100)})
	before := store.TotalMutationCalls()

	for _, raw := range []string{"NaN", "Infinity", "", "two thousand"} {
		_, err := newTestService(t, store).Generate(ctx, GenerateRequest{
			FirstInvoiceNumber: raw, InvoiceDate: "2024-12-01", DueDate: "2025-01-31",
		})
		require.Error(t, err)
		assert.Equal(t, MsgInvalidFirstInvoiceNumber, err.Error())
	}

	assert.Equal(t, before, store.TotalMutationCalls())
	all, err := store.Invoices().ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestService_Generate_Batching(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	members := make([]*membership.Member, 120)
	for i := range members {
		members[i] = &membership.Member{Name: fmt.Sprintf("Member %03d", i), MemberType: regular(), AnnualDues: usd(100)}
	}
	seedMembers(t, store, members...)

	summary, err := newTestService(t, store).Generate(ctx, validRequest)
	require.NoError(t, err)
	assert.Equal(t, 120, summary.InvoicesCreated)
	assert.Equal(t, 120, summary.LineItemsCreated)
	assert.Equal(t, int64(2119), summary.LastInvoiceNumber)

	assert.Equal(t, 3, store.MutationCalls(memstore.InvoicesTable, "create"))
	assert.Equal(t, 3, store.MutationCalls(memstore.LineItemsTable, "create"))
}

// failingItems rejects line item creates after the first successful call.
type failingItems struct {
	membership.LineItemRepository
	calls int
}

func (f *failingItems) CreateRecords(ctx context.Context, records []*membership.LineItem) error {
	f.calls++
	if f.calls > 1 {
		return errors.New("429 too many requests")
	}
	return f.LineItemRepository.CreateRecords(ctx, records)
}

type storeWithItems struct {
	*memstore.Store
	items membership.LineItemRepository
}

func (s storeWithItems) LineItems() membership.LineItemRepository { return s.items }

func TestService_Generate_PartialFailure(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	members := make([]*membership.Member, 60)
	for i := range members {
		members[i] = &membership.Member{Name: fmt.Sprintf("M%d", i), MemberType: regular(), AnnualDues: usd(10)}
	}
	seedMembers(t, mem, members...)

	store := storeWithItems{Store: mem, items: &failingItems{LineItemRepository: mem.LineItems()}}
	_, err := newTestService(t, store).Generate(ctx, validRequest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after creating 60 invoices")

	ce, ok := batch.AsChunkError(err)
	require.True(t, ok)
	assert.Equal(t, 50, ce.Committed)
	assert.Equal(t, 10, ce.NotSubmitted)

	// a rerun only fills in what is missing
	summary, err := newTestService(t, mem).Generate(ctx, validRequest)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.InvoicesCreated)
	assert.Equal(t, 10, summary.LineItemsCreated)
}

func TestService_NextInvoiceNumber(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(t, store)

	n, err := svc.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), n)

	seedInvoice(t, store, "m1", 2041)
	n, err = svc.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2042), n)

	n, err = newTestService(t, memstore.New(), WithDefaultFirstInvoiceNumber(5000)).NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), n)
}

// MockArchiver is a mock implementation of Archiver
type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func TestService_Export(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*memstore.Store, *membership.Invoice) {
		store := memstore.New()
		a := &membership.Member{Name: "Alice", MemberType: regular(), AnnualDues: usd(100), BuildingAssessment: usd(50)}
		seedMembers(t, store, a)
		_, err := newTestService(t, store).Generate(ctx, validRequest)
		require.NoError(t, err)

		// an open invoice with no items
		idle := seedInvoice(t, store, "m-idle", 1998)
		return store, idle
	}

	t.Run("renders CSV and closes exported invoices", func(t *testing.T) {
		store, idle := setup(t)

		result, err := newTestService(t, store).Export(ctx, export.FormatCSV)
		require.NoError(t, err)
		assert.Equal(t, "invoices.csv", result.FileName)
		assert.Equal(t, 2, result.Rows)
		assert.Equal(t, 1, result.InvoicesClosed)

		want := "Invoice #,Member Name,Unit price,Product Name,Description,Quantity,Invoice Date,Due Date,Service Date,Amount\r\n" +
			"2000,Alice,100,Regular,Regular Dues,1,2024-12-01,2025-01-31,2025-01-01,100\r\n" +
			"2000,Alice,50,Building Assessment,Building Assessment,1,2024-12-01,2025-01-31,2025-01-01,50\r\n"
		assert.Equal(t, want, string(result.Body))

		open, err := store.Invoices().ListOpen(ctx)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, idle.ID, open[0].ID)

		again, err := newTestService(t, store).Export(ctx, export.FormatCSV)
		require.NoError(t, err)
		assert.Equal(t, 0, again.Rows)
		assert.Equal(t, 0, again.InvoicesClosed)
		assert.Equal(t, strings.Join(ExportHeader, ",")+"\r\n", string(again.Body))
	})

	t.Run("xlsx needs a registered writer", func(t *testing.T) {
		store, _ := setup(t)

		_, err := newTestService(t, store).Export(ctx, export.FormatXLSX)
		require.Error(t, err)

		result, err := newTestService(t, store, WithWriter(export.NewXLSXWriter(""))).Export(ctx, export.FormatXLSX)
		require.NoError(t, err)
		assert.Equal(t, "invoices.xlsx", result.FileName)
		assert.NotEmpty(t, result.Body)
	})

	t.Run("archives before closing", func(t *testing.T) {
		store, _ := setup(t)
		archiver := new(MockArchiver)
		archiver.On("Upload", mock.Anything, "exports/20250201T120000Z/invoices.csv", mock.Anything, "text/csv; charset=utf-8").
			Return(nil).Once()

		clock := func() time.Time { return time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC) }
		result, err := newTestService(t, store, WithArchiver(archiver), WithClock(clock)).Export(ctx, export.FormatCSV)
		require.NoError(t, err)
		assert.Equal(t, "exports/20250201T120000Z/invoices.csv", result.ArchiveKey)
		archiver.AssertExpectations(t)
	})

	t.Run("archive failure leaves invoices open", func(t *testing.T) {
		store, _ := setup(t)
		archiver := new(MockArchiver)
		archiver.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("bucket unreachable"))

		_, err := newTestService(t, store, WithArchiver(archiver)).Export(ctx, export.FormatCSV)
		require.Error(t, err)

		open, err := store.Invoices().ListOpen(ctx)
		require.NoError(t, err)
		assert.Len(t, open, 2)
	})
}

func TestService_DeleteAllInvoices(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedMembers(t, store,
		&membership.Member{Name: "Alice", MemberType: regular(), AnnualDues: usd(100), BuildingAssessment: usd(50)},
	)
	svc := newTestService(t, store)
	_, err := svc.Generate(ctx, validRequest)
	require.NoError(t, err)

	t.Run("requires confirmation", func(t *testing.T) {
		_, err := svc.DeleteAllInvoices(ctx, false)
		assert.ErrorIs(t, err, ErrDeleteNotConfirmed)
		all, err := store.Invoices().ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("deletes items then invoices", func(t *testing.T) {
		result, err := svc.DeleteAllInvoices(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 2, result.LineItemsDeleted)
		assert.Equal(t, 1, result.InvoicesDeleted)

		items, err := store.LineItems().ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
		invoices, err := store.Invoices().ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, invoices)

		members, err := store.Members().ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.False(t, members[0].HasOpenInvoice())
	})
}

func TestService_ExportMembershipLog(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedMembers(t, store,
		&membership.Member{Name: "Alice", MemberType: regular(), AnnualDues: usd(100), BuildingAssessment: usd(50)},
		&membership.Member{Name: "Bob"},
	)
	svc := newTestService(t, store)
	_, err := svc.Generate(ctx, validRequest)
	require.NoError(t, err)
	before := store.TotalMutationCalls()

	result, err := svc.ExportMembershipLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, "membership.csv", result.FileName)
	assert.Equal(t,
		"Member Name,Member Type,Annual dues,Building assessment,Open invoice #\r\n"+
			"Alice,Regular,100,50,2000\r\n"+
			"Bob,,,,\r\n",
		string(result.Body))
	assert.Equal(t, before, store.TotalMutationCalls())
}
