package membership

import (
	"context"
	"errors"
)

// Table names of the record store.
const (
	MembersTable   = "Membership"
	InvoicesTable  = "Invoices"
	LineItemsTable = "Invoice items"
)

// Record is anything stored as a row of a record-store table.
type Record interface {
	RecordID() string
}

// Table is the narrow record-store surface the batch executor drives.
// Every mutating call is subject to the store's per-call record limit; use
// the batch package instead of calling these directly with large slices.
type Table[T Record] interface {
	// Name is the table name used in logs and errors.
	Name() string
	ListAll(ctx context.Context) ([]T, error)
	// CreateRecords inserts records and assigns their IDs in place.
	CreateRecords(ctx context.Context, records []T) error
	UpdateRecords(ctx context.Context, records []T) error
	DeleteRecords(ctx context.Context, records []T) error
}

// PartialWrite is implemented by errors from stores that apply a write call
// record by record: Applied is how many leading records of the call were
// written before it failed.
type PartialWrite interface {
	error
	Applied() int
}

// PartialWriteError is the PartialWrite returned by record-at-a-time stores.
type PartialWriteError struct {
	N   int
	Err error
}

func (e *PartialWriteError) Error() string { return e.Err.Error() }
func (e *PartialWriteError) Unwrap() error { return e.Err }
func (e *PartialWriteError) Applied() int  { return e.N }

// AppliedBefore returns how many records of a failed write call were
// applied. Errors that do not report it count as nothing applied.
func AppliedBefore(err error) int {
	var pw PartialWrite
	if errors.As(err, &pw) {
		return pw.Applied()
	}
	return 0
}

// MemberRepository is the Membership table.
type MemberRepository interface {
	Table[*Member]
}

// InvoiceRepository is the Invoices table.
type InvoiceRepository interface {
	Table[*Invoice]
	// ListOpen reads the "Open invoices" view.
	ListOpen(ctx context.Context) ([]*Invoice, error)
}

// LineItemRepository is the Invoice items table.
type LineItemRepository interface {
	Table[*LineItem]
	// ProductNames is the scoped read of a single invoice's items, product
	// name field only.
	ProductNames(ctx context.Context, invoice InvoiceID) ([]string, error)
	// ListOpenItems reads the "Open items" view.
	ListOpenItems(ctx context.Context) ([]*OpenLineItem, error)
}

// Store bundles the three tables of one record store.
type Store interface {
	Members() MemberRepository
	Invoices() InvoiceRepository
	LineItems() LineItemRepository
	Close() error
}
