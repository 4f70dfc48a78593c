package invoicing

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared"
	"github.com/eyc/invoicing/internal/infrastructure/batch"
	"github.com/eyc/invoicing/internal/infrastructure/export"
	"github.com/eyc/invoicing/internal/infrastructure/telemetry"
)

// ExportBaseName is the export file name without extension.
const ExportBaseName = "invoices"

// ExportHeader is the column order of the invoice export.
var ExportHeader = []string{
	"Invoice #", "Member Name", "Unit price", "Product Name", "Description",
	"Quantity", "Invoice Date", "Due Date", "Service Date", "Amount",
}

var exportNumeric = []bool{true, false, true, false, false, true, false, false, false, true}

// BuildExportTable lays out open line items as export rows. Numbers are raw
// (no currency symbol or padding), dates are YYYY-MM-DD.
func BuildExportTable(items []*membership.OpenLineItem) *export.Table {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			strconv.FormatInt(it.InvoiceNumber, 10),
			it.MemberName,
			it.UnitPrice.String(),
			it.ProductName,
			it.Description,
			strconv.Itoa(it.Quantity),
			membership.FormatDate(it.InvoiceDate),
			membership.FormatDate(it.DueDate),
			membership.FormatDate(it.ServiceDate),
			it.Amount().String(),
		})
	}
	return &export.Table{Header: ExportHeader, Rows: rows, Numeric: exportNumeric}
}

// ExportResult is a rendered export file.
type ExportResult struct {
	FileName       string
	ContentType    string
	Body           []byte
	Rows           int
	InvoicesClosed int
	ArchiveKey     string
}

// Export renders the "Open items" view and then closes every open invoice
// that contributed a row, so the next export does not repeat it. Open
// invoices without items stay open.
//
// When closing fails the rendered file is still returned together with the
// error; invoices in chunks before the failure are closed.
func (s *Service) Export(ctx context.Context, format export.Format) (*ExportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "export",
		attribute.String("format", string(format)))
	defer span.End()

	writer, ok := s.writers[format]
	if !ok {
		err := shared.InvalidInput("Export format %q is not enabled", format)
		telemetry.RecordError(span, err)
		return nil, err
	}

	items, err := s.store.LineItems().ListOpenItems(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list open items: %w", err)
	}

	var buf bytes.Buffer
	if err := writer.Write(&buf, BuildExportTable(items)); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("render export: %w", err)
	}
	result := &ExportResult{
		FileName:    writer.FileName(ExportBaseName),
		ContentType: writer.ContentType(),
		Body:        buf.Bytes(),
		Rows:        len(items),
	}
	s.metrics.RowsExported(ctx, len(items), string(format))

	if s.archiver != nil {
		key := fmt.Sprintf("exports/%s/%s", s.now().UTC().Format("20060102T150405Z"), result.FileName)
		if err := s.archiver.Upload(ctx, key, result.Body, result.ContentType); err != nil {
			s.metrics.RunFailed(ctx, "export")
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("archive export before closing invoices: %w", err)
		}
		result.ArchiveKey = key
	}

	closed, err := s.closeExported(ctx, items)
	result.InvoicesClosed = closed
	if err != nil {
		s.metrics.RunFailed(ctx, "export")
		telemetry.RecordError(span, err)
		s.logger.Error("Export rendered but closing invoices failed",
			zap.Int("rows", result.Rows), zap.Error(err))
		return result, err
	}
	s.metrics.InvoicesClosed(ctx, closed)

	s.logger.Info("Invoices exported",
		zap.String("format", string(format)),
		zap.Int("rows", result.Rows),
		zap.Int("invoices_closed", closed),
		zap.String("archive_key", result.ArchiveKey),
	)
	return result, nil
}

func (s *Service) closeExported(ctx context.Context, items []*membership.OpenLineItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	exported := make(map[membership.InvoiceID]struct{}, len(items))
	for _, it := range items {
		exported[it.Invoice] = struct{}{}
	}

	open, err := s.store.Invoices().ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open invoices: %w", err)
	}

	var toClose []*membership.Invoice
	for _, inv := range open {
		if _, ok := exported[inv.ID]; ok {
			inv.Close()
			toClose = append(toClose, inv)
		}
	}

	if err := batch.UpdateMany(ctx, s.exec, s.store.Invoices(), toClose); err != nil {
		closed := 0
		if ce, ok := batch.AsChunkError(err); ok {
			closed = ce.Committed
		}
		return closed, fmt.Errorf("close exported invoices: %w", err)
	}
	return len(toClose), nil
}
