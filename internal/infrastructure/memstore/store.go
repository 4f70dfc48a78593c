// Package memstore is an in-process record store. It mirrors the hosted
// store's behaviour closely enough to drive local runs and tests: IDs are
// assigned on create, the member's "Draft invoice" link is the reverse side of
// the invoice's open link, and every mutating call is counted.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared"
)

// Table names, matching the hosted base.
const (
	MembersTable   = membership.MembersTable
	InvoicesTable  = membership.InvoicesTable
	LineItemsTable = membership.LineItemsTable
)

// Store is a thread-safe in-memory record store
type Store struct {
	mu sync.RWMutex

	members  []*membership.Member
	invoices []*membership.Invoice
	items    []*membership.LineItem

	// MaxRecordsPerCall rejects oversized calls like the hosted store does.
	MaxRecordsPerCall int

	calls map[string]int
}

// New creates an empty store with the hosted store's 50-record call limit
func New() *Store {
	return &Store{
		MaxRecordsPerCall: 50,
		calls:             make(map[string]int),
	}
}

// Members implements membership.Store
func (s *Store) Members() membership.MemberRepository { return &memberTable{s} }

// Invoices implements membership.Store
func (s *Store) Invoices() membership.InvoiceRepository { return &invoiceTable{s} }

// LineItems implements membership.Store
func (s *Store) LineItems() membership.LineItemRepository { return &lineItemTable{s} }

// Close implements membership.Store
func (s *Store) Close() error { return nil }

// MutationCalls returns how many mutating calls hit table with op
// ("create", "update" or "delete").
func (s *Store) MutationCalls(table, op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[table+"/"+op]
}

// TotalMutationCalls returns the number of mutating calls on all tables.
func (s *Store) TotalMutationCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *Store) begin(table, op string, n int) error {
	s.calls[table+"/"+op]++
	if s.MaxRecordsPerCall > 0 && n > s.MaxRecordsPerCall {
		return fmt.Errorf("%s %s: %d records exceeds limit of %d per call: %w",
			op, table, n, s.MaxRecordsPerCall, shared.ErrInvalidInput)
	}
	return nil
}

// openInvoiceFor returns the open invoice linked to member, if any.
// Caller holds the lock.
func (s *Store) openInvoiceFor(id membership.MemberID) *membership.InvoiceID {
	for _, inv := range s.invoices {
		if inv.OpenMembership != nil && *inv.OpenMembership == id {
			invID := inv.ID
			return &invID
		}
	}
	return nil
}

func (s *Store) invoiceByID(id membership.InvoiceID) *membership.Invoice {
	for _, inv := range s.invoices {
		if inv.ID == id {
			return inv
		}
	}
	return nil
}

func (s *Store) memberByID(id membership.MemberID) *membership.Member {
	for _, m := range s.members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func newID() string {
	return "rec" + uuid.NewString()[:13]
}

// --- Membership ---

type memberTable struct{ s *Store }

func (t *memberTable) Name() string { return MembersTable }

func (t *memberTable) ListAll(context.Context) ([]*membership.Member, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	out := make([]*membership.Member, 0, len(t.s.members))
	for _, m := range t.s.members {
		c := copyMember(m)
		c.OpenInvoice = t.s.openInvoiceFor(m.ID)
		out = append(out, c)
	}
	return out, nil
}

func (t *memberTable) CreateRecords(_ context.Context, records []*membership.Member) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.begin(MembersTable, "create", len(records)); err != nil {
		return err
	}
	for _, r := range records {
		r.ID = membership.MemberID(newID())
		c := copyMember(r)
		c.OpenInvoice = nil
		t.s.members = append(t.s.members, c)
	}
	return nil
}

func (t *memberTable) UpdateRecords(_ context.Context, records []*membership.Member) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.begin(MembersTable, "update", len(records)); err != nil {
		return err
	}
	for _, r := range records {
		if t.s.memberByID(r.ID) == nil {
			return fmt.Errorf("member %s: %w", r.ID, shared.ErrNotFound)
		}
	}
	for i, m := range t.s.members {
		for _, r := range records {
			if m.ID == r.ID {
				t.s.members[i] = copyMember(r)
			}
		}
	}
	return nil
}

func (t *memberTable) DeleteRecords(_ context.Context, records []*membership.Member) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.begin(MembersTable, "delete", len(records)); err != nil {
		return err
	}
	t.s.members = removeByID(t.s.members, records)
	return nil
}

// --- Invoices ---

type invoiceTable struct{ s *Store }

func (t *invoiceTable) Name() string { return InvoicesTable }

func (t *invoiceTable) ListAll(context.Context) ([]*membership.Invoice, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	out := make([]*membership.Invoice, 0, len(t.s.invoices))
	for _, inv := range t.s.invoices {
		out = append(out, copyInvoice(inv))
	}
	return out, nil
}

func (t *invoiceTable) ListOpen(context.Context) ([]*membership.Invoice, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var out []*membership.Invoice
	for _, inv := range t.s.invoices {
		if inv.IsOpen() {
			out = append(out, copyInvoice(inv))
		}
	}
	return out, nil
}

func (t *invoiceTable) CreateRecords(_ context.Context, records []*membership.Invoice) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.begin(InvoicesTable, "create", len(records)); err != nil {
		return err
	}
	for _, r := range records {
		r.ID = membership.InvoiceID(newID())
		t.s.invoices = append(t.s.invoices, copyInvoice(r))
	}
	return nil
}

func (t *invoiceTable) UpdateRecords(_ context.Context, records []*membership.Invoice) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.begin(InvoicesTable, "update", len(records)); err != nil {
		return err
	}
	for _, r := range records {
		if t.s.invoiceByID(r.ID) == nil {
			return fmt.Errorf("invoice %s: %w", r.ID, shared.ErrNotFound)
		}
	}
	for i, inv := range t.s.invoices {
		for _, r := range records {
			if inv.ID == r.ID {
				t.s.invoices[i] = copyInvoice(r)
			}
		}
	}
	return nil
}

func (t *invoiceTable) DeleteRecords(_ context.Context, records []*membership.Invoice) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.begin(InvoicesTable, "delete", len(records)); err != nil {
		return err
	}
	t.s.invoices = removeByID(t.s.invoices, records)
	return nil
}

// --- Invoice items ---

type lineItemTable struct{ s *Store }

func (t *lineItemTable) Name() string { return LineItemsTable }

func (t *lineItemTable) ListAll(context.Context) ([]*membership.LineItem, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	out := make([]*membership.LineItem, 0, len(t.s.items))
	for _, it := range t.s.items {
		c := *it
		out = append(out, &c)
	}
	return out, nil
}

func (t *lineItemTable) ProductNames(_ context.Context, invoice membership.InvoiceID) ([]string, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var names []string
	for _, it := range t.s.items {
		if it.Invoice == invoice {
			names = append(names, it.ProductName)
		}
	}
	return names, nil
}

// ListOpenItems returns items on open invoices ordered by invoice number,
// then by creation order.
func (t *lineItemTable) ListOpenItems(context.Context) ([]*membership.OpenLineItem, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var out []*membership.OpenLineItem
	for _, it := range t.s.items {
		inv := t.s.invoiceByID(it.Invoice)
		if inv == nil || !inv.IsOpen() {
			continue
		}
		row := &membership.OpenLineItem{
			LineItem:      *it,
			InvoiceNumber: inv.Number,
			InvoiceDate:   inv.InvoiceDate,
			DueDate:       inv.DueDate,
		}
		if m := t.s.memberByID(inv.Membership); m != nil {
			row.MemberName = m.Name
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].InvoiceNumber < out[j].InvoiceNumber
	})
	return out, nil
}

func (t *lineItemTable) CreateRecords(_ context.Context, records []*membership.LineItem) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.begin(LineItemsTable, "create", len(records)); err != nil {
		return err
	}
	for _, r := range records {
		r.ID = membership.LineItemID(newID())
		c := *r
		t.s.items = append(t.s.items, &c)
	}
	return nil
}

func (t *lineItemTable) UpdateRecords(_ context.Context, records []*membership.LineItem) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.begin(LineItemsTable, "update", len(records)); err != nil {
		return err
	}
	for i, it := range t.s.items {
		for _, r := range records {
			if it.ID == r.ID {
				c := *r
				t.s.items[i] = &c
			}
		}
	}
	return nil
}

func (t *lineItemTable) DeleteRecords(_ context.Context, records []*membership.LineItem) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.begin(LineItemsTable, "delete", len(records)); err != nil {
		return err
	}
	t.s.items = removeByID(t.s.items, records)
	return nil
}

func removeByID[T membership.Record](rows, remove []T) []T {
	drop := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		drop[r.RecordID()] = struct{}{}
	}
	kept := rows[:0]
	for _, r := range rows {
		if _, ok := drop[r.RecordID()]; !ok {
			kept = append(kept, r)
		}
	}
	return kept
}

func copyMember(m *membership.Member) *membership.Member {
	c := *m
	if m.MemberType != nil {
		mt := *m.MemberType
		c.MemberType = &mt
	}
	return &c
}

func copyInvoice(inv *membership.Invoice) *membership.Invoice {
	c := *inv
	if inv.OpenMembership != nil {
		open := *inv.OpenMembership
		c.OpenMembership = &open
	}
	return &c
}

var _ membership.Store = (*Store)(nil)
