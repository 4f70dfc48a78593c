package invoicing

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/eyc/invoicing/internal/domain/membership"
)

// ProductNameLookup is the scoped read of one invoice's existing items.
type ProductNameLookup interface {
	ProductNames(ctx context.Context, invoice membership.InvoiceID) ([]string, error)
}

// Reconciler appends missing dues and assessment items to open invoices.
type Reconciler struct {
	logger *zap.Logger
}

// NewReconciler creates a Reconciler
func NewReconciler(logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{logger: logger}
}

// Reconcile works on a roster and open-invoice set reloaded after invoice
// creation committed. For every member with an open invoice and a member
// type it reads the invoice's product names and returns the dues item and the
// assessment item that are missing. A charge is added when its field is
// present, even at zero. Product names are the dedup key, so running it again
// after the items were written returns nothing.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	members []*membership.Member,
	openInvoices []*membership.Invoice,
	lookup ProductNameLookup,
	serviceDate time.Time,
) ([]*membership.LineItem, error) {
	open := make(map[membership.InvoiceID]*membership.Invoice, len(openInvoices))
	for _, inv := range openInvoices {
		open[inv.ID] = inv
	}

	var items []*membership.LineItem
	for _, m := range members {
		if !m.HasOpenInvoice() || m.MemberType == nil {
			continue
		}
		invoiceID := *m.OpenInvoice
		if _, ok := open[invoiceID]; !ok {
			r.logger.Warn("Open invoice link not found among open invoices, skipping member",
				zap.String("member_id", string(m.ID)),
				zap.String("invoice_id", string(invoiceID)),
			)
			continue
		}

		existing, err := lookup.ProductNames(ctx, invoiceID)
		if err != nil {
			return nil, fmt.Errorf("read items of invoice %s: %w", invoiceID, err)
		}

		typeName := m.MemberType.Name
		if m.AnnualDues != nil && !slices.Contains(existing, typeName) {
			items = append(items, membership.NewDuesItem(invoiceID, typeName, *m.AnnualDues, serviceDate))
		}
		if m.BuildingAssessment != nil && !slices.Contains(existing, membership.BuildingAssessmentProduct) {
			items = append(items, membership.NewAssessmentItem(invoiceID, *m.BuildingAssessment, serviceDate))
		}
	}
	return items, nil
}
