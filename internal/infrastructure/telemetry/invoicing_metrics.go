package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// InvoicingMetrics counts what each run wrote to the record store.
// A nil *InvoicingMetrics is valid and records nothing.
type InvoicingMetrics struct {
	invoicesCreated  *Counter
	lineItemsCreated *Counter
	rowsExported     *Counter
	invoicesClosed   *Counter
	recordsDeleted   *Counter
	runFailures      *Counter
	chunkDuration    *Histogram
	chunkFailures    *Counter
}

const metricChunkDuration = "invoicing.store.chunk.duration"

// NewInvoicingMetrics registers the invoicing counters on meter.
func NewInvoicingMetrics(meter metric.Meter) (*InvoicingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &InvoicingMetrics{}
	counters := []struct {
		dst         **Counter
		name        string
		description string
		unit        string
	}{
		{&m.invoicesCreated, "invoicing.invoices.created", "Invoices created by generation runs", "{invoice}"},
		{&m.lineItemsCreated, "invoicing.line_items.created", "Line items appended by reconciliation", "{item}"},
		{&m.rowsExported, "invoicing.export.rows", "Line items written to exports", "{row}"},
		{&m.invoicesClosed, "invoicing.invoices.closed", "Invoices closed after export", "{invoice}"},
		{&m.recordsDeleted, "invoicing.records.deleted", "Records removed by bulk delete", "{record}"},
		{&m.runFailures, "invoicing.run.failures", "Runs aborted by an error", "{run}"},
		{&m.chunkFailures, "invoicing.store.chunk.failures", "Chunks the record store rejected", "{chunk}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	h, err := NewHistogram(meter, metricChunkDuration, "Time the record store took to answer one chunk", "s")
	if err != nil {
		return nil, err
	}
	m.chunkDuration = h
	return m, nil
}

// InvoicesCreated records created invoices
func (m *InvoicingMetrics) InvoicesCreated(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.invoicesCreated.Add(ctx, int64(n))
}

// LineItemsCreated records created line items
func (m *InvoicingMetrics) LineItemsCreated(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.lineItemsCreated.Add(ctx, int64(n))
}

// RowsExported records exported rows by format
func (m *InvoicingMetrics) RowsExported(ctx context.Context, n int, format string) {
	if m == nil {
		return
	}
	m.rowsExported.Add(ctx, int64(n), attribute.String("format", format))
}

// InvoicesClosed records invoices closed after export
func (m *InvoicingMetrics) InvoicesClosed(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.invoicesClosed.Add(ctx, int64(n))
}

// RecordsDeleted records bulk-deleted records by table
func (m *InvoicingMetrics) RecordsDeleted(ctx context.Context, n int, table string) {
	if m == nil {
		return
	}
	m.recordsDeleted.Add(ctx, int64(n), attribute.String("table", table))
}

// RunFailed records an aborted run by operation
func (m *InvoicingMetrics) RunFailed(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.runFailures.Add(ctx, 1, attribute.String("operation", operation))
}

// ChunkSubmitted records one store call of the batch executor.
func (m *InvoicingMetrics) ChunkSubmitted(ctx context.Context, table, operation string, records int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("table", table),
		attribute.String("operation", operation),
	}
	m.chunkDuration.Record(ctx, elapsed.Seconds(), attrs...)
	if err != nil {
		m.chunkFailures.Add(ctx, 1, attrs...)
	}
}
