// Package invoicing runs the annual membership invoicing workflow: invoice
// generation, line item reconciliation, export and bulk deletion.
package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/infrastructure/batch"
	"github.com/eyc/invoicing/internal/infrastructure/export"
	"github.com/eyc/invoicing/internal/infrastructure/telemetry"
)

// Archiver keeps a copy of every export file.
type Archiver interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Service runs invoicing operations against one record store. Runs are not
// coordinated with each other: two concurrent generation runs may both
// create invoices for the same member.
type Service struct {
	store      membership.Store
	exec       *batch.Executor
	allocator  *NumberAllocator
	reconciler *Reconciler
	writers    map[export.Format]export.Writer
	archiver   Archiver
	metrics    *telemetry.InvoicingMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithDefaultFirstInvoiceNumber overrides the number used when no invoice exists.
func WithDefaultFirstInvoiceNumber(n int64) Option {
	return func(s *Service) {
		s.allocator = NewNumberAllocator(n)
	}
}

// WithWriter registers an export writer for its format.
func WithWriter(w export.Writer) Option {
	return func(s *Service) {
		s.writers[w.Format()] = w
	}
}

// WithArchiver enables archiving of export files.
func WithArchiver(a Archiver) Option {
	return func(s *Service) {
		s.archiver = a
	}
}

// WithMetrics records run counters.
func WithMetrics(m *telemetry.InvoicingMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now, for archive keys.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service. Without WithWriter options only unescaped
// CSV export is available.
func NewService(store membership.Store, exec *batch.Executor, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:      store,
		exec:       exec,
		allocator:  NewNumberAllocator(DefaultFirstInvoiceNumber),
		reconciler: NewReconciler(logger.Named("reconciler")),
		writers:    make(map[export.Format]export.Writer),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, ok := s.writers[export.FormatCSV]; !ok {
		s.writers[export.FormatCSV] = export.NewCSVWriter(false, logger)
	}
	return s
}

// Summary reports what a generation run created.
type Summary struct {
	InvoicesCreated    int    `json:"invoices_created"`
	LineItemsCreated   int    `json:"line_items_created"`
	FirstInvoiceNumber int64  `json:"first_invoice_number,omitempty"`
	LastInvoiceNumber  int64  `json:"last_invoice_number,omitempty"`
	Message            string `json:"message"`
}

func newSummary(invoices []*membership.Invoice, items int) *Summary {
	s := &Summary{
		InvoicesCreated:  len(invoices),
		LineItemsCreated: items,
		Message:          fmt.Sprintf("Created %d invoices and %d invoice line items.", len(invoices), items),
	}
	if len(invoices) > 0 {
		s.FirstInvoiceNumber = invoices[0].Number
		s.LastInvoiceNumber = invoices[len(invoices)-1].Number
	}
	return s
}

// NextInvoiceNumber proposes the first invoice number for the next run.
func (s *Service) NextInvoiceNumber(ctx context.Context) (int64, error) {
	invoices, err := s.store.Invoices().ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list invoices: %w", err)
	}
	return s.allocator.Next(invoices), nil
}

// Generate validates req, creates invoices for eligible members, then
// reloads the roster and open invoices and appends missing line items.
// Invalid input fails before any store access. A store failure aborts the
// rest of the run and leaves already committed chunks in place.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Summary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "generate")
	defer span.End()

	params, err := req.Validate()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	log := s.logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.Int64("first_invoice_number", params.FirstInvoiceNumber),
		zap.String("due_date", membership.FormatDate(params.DueDate)),
	)
	span.SetAttributes(attribute.Int64("first_invoice_number", params.FirstInvoiceNumber))

	summary, err := s.generate(ctx, params, log)
	if err != nil {
		s.metrics.RunFailed(ctx, "generate")
		telemetry.RecordError(span, err)
		log.Error("Invoice generation failed", zap.Error(err))
		return nil, err
	}

	log.Info(summary.Message,
		zap.Int("invoices_created", summary.InvoicesCreated),
		zap.Int("line_items_created", summary.LineItemsCreated),
	)
	return summary, nil
}

func (s *Service) generate(ctx context.Context, params RunParams, log *zap.Logger) (*Summary, error) {
	members, err := s.store.Members().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	invoices := BuildInvoices(members, params.FirstInvoiceNumber, params.InvoiceDate, params.DueDate)
	if err := batch.CreateMany(ctx, s.exec, s.store.Invoices(), invoices); err != nil {
		return nil, fmt.Errorf("create invoices: %w", err)
	}
	s.metrics.InvoicesCreated(ctx, len(invoices))
	log.Info("Invoices created", zap.Int("count", len(invoices)))

	// The create must be visible before reconciling, so read everything again.
	members, err = s.store.Members().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload members after creating %d invoices: %w", len(invoices), err)
	}
	open, err := s.store.Invoices().ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload open invoices after creating %d invoices: %w", len(invoices), err)
	}

	items, err := s.reconciler.Reconcile(ctx, members, open, s.store.LineItems(), params.ServiceDate)
	if err != nil {
		return nil, fmt.Errorf("reconcile line items after creating %d invoices: %w", len(invoices), err)
	}
	if err := batch.CreateMany(ctx, s.exec, s.store.LineItems(), items); err != nil {
		return nil, fmt.Errorf("create line items after creating %d invoices: %w", len(invoices), err)
	}
	s.metrics.LineItemsCreated(ctx, len(items))

	return newSummary(invoices, len(items)), nil
}
