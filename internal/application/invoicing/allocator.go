package invoicing

import "github.com/eyc/invoicing/internal/domain/membership"

// DefaultFirstInvoiceNumber seeds numbering when no invoice exists yet.
const DefaultFirstInvoiceNumber int64 = 2000

// NumberAllocator proposes the first invoice number of the next run.
type NumberAllocator struct {
	defaultFirst int64
}

// NewNumberAllocator creates an allocator. A non-positive default falls back
// to DefaultFirstInvoiceNumber.
func NewNumberAllocator(defaultFirst int64) *NumberAllocator {
	if defaultFirst <= 0 {
		defaultFirst = DefaultFirstInvoiceNumber
	}
	return &NumberAllocator{defaultFirst: defaultFirst}
}

// Next returns the highest existing invoice number plus one. Invoices without
// a number (zero or negative) are ignored; with none numbered the configured
// default is returned. Gaps are never filled.
func (a *NumberAllocator) Next(existing []*membership.Invoice) int64 {
	var highest int64
	found := false
	for _, inv := range existing {
		if inv == nil || inv.Number <= 0 {
			continue
		}
		if !found || inv.Number > highest {
			highest = inv.Number
			found = true
		}
	}
	if !found {
		return a.defaultFirst
	}
	return highest + 1
}
