package invoicing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared"
	"github.com/eyc/invoicing/internal/infrastructure/batch"
	"github.com/eyc/invoicing/internal/infrastructure/telemetry"
)

// ErrDeleteNotConfirmed is returned when DeleteAllInvoices is called without
// the caller confirming.
var ErrDeleteNotConfirmed = shared.NewDomainError(shared.CodeInvalidInput, "Deleting all invoices requires confirmation")

// DeleteResult reports how many records a bulk delete removed.
type DeleteResult struct {
	LineItemsDeleted int `json:"line_items_deleted"`
	InvoicesDeleted  int `json:"invoices_deleted"`
}

// DeleteAll removes every record of table in batches and returns the count.
func DeleteAll[T membership.Record](ctx context.Context, exec *batch.Executor, table membership.Table[T]) (int, error) {
	records, err := table.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", table.Name(), err)
	}
	if err := batch.DeleteMany(ctx, exec, table, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// DeleteAllInvoices empties the Invoice items table and then the Invoices
// table. It is destructive and irreversible, so callers must pass
// confirmed=true after asking the user.
func (s *Service) DeleteAllInvoices(ctx context.Context, confirmed bool) (*DeleteResult, error) {
	if !confirmed {
		return nil, ErrDeleteNotConfirmed
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "delete_all")
	defer span.End()

	result := &DeleteResult{}
	items, err := DeleteAll(ctx, s.exec, s.store.LineItems())
	if err != nil {
		s.metrics.RunFailed(ctx, "delete_all")
		telemetry.RecordError(span, err)
		return nil, err
	}
	result.LineItemsDeleted = items
	s.metrics.RecordsDeleted(ctx, items, s.store.LineItems().Name())

	invoices, err := DeleteAll(ctx, s.exec, s.store.Invoices())
	if err != nil {
		s.metrics.RunFailed(ctx, "delete_all")
		telemetry.RecordError(span, err)
		return result, fmt.Errorf("delete invoices after deleting %d line items: %w", items, err)
	}
	result.InvoicesDeleted = invoices
	s.metrics.RecordsDeleted(ctx, invoices, s.store.Invoices().Name())

	s.logger.Warn("All invoices deleted",
		zap.Int("line_items_deleted", result.LineItemsDeleted),
		zap.Int("invoices_deleted", result.InvoicesDeleted),
	)
	return result, nil
}
