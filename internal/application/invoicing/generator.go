package invoicing

import (
	"time"

	"github.com/eyc/invoicing/internal/domain/membership"
)

// BuildInvoices returns one open invoice per eligible member, numbered
// contiguously from firstNumber in roster order. A member is eligible when it
// has no open invoice and owes dues or an assessment. Running it again over a
// roster reloaded after the create yields nothing.
func BuildInvoices(members []*membership.Member, firstNumber int64, invoiceDate, dueDate time.Time) []*membership.Invoice {
	var invoices []*membership.Invoice
	next := firstNumber
	for _, m := range members {
		if m.HasOpenInvoice() || !m.IsBillable() {
			continue
		}
		invoices = append(invoices, membership.NewOpenInvoice(m.ID, next, invoiceDate, dueDate))
		next++
	}
	return invoices
}
