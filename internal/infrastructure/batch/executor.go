// Package batch submits record-store mutations in fixed-size chunks.
//
// The hosted record store accepts at most 50 records per call and throttles
// callers, so every create, update or delete goes through an Executor: the
// input is split into ordered chunks, and chunks are submitted one at a time,
// each waiting for the previous one to be acknowledged.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eyc/invoicing/internal/domain/membership"
)

// DefaultBatchSize is the per-call record limit of the record store.
const DefaultBatchSize = 50

// DefaultRequestsPerSecond keeps a run under the store's rate limit.
const DefaultRequestsPerSecond = 5

// Operation names a kind of mutation.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Config holds executor settings
type Config struct {
	// BatchSize is the maximum number of records per store call.
	BatchSize int
	// RequestsPerSecond paces store calls. Zero or negative disables pacing.
	RequestsPerSecond float64
	// Observer, when set, sees every submitted chunk.
	Observer ChunkObserver
}

// ChunkObserver is told about every chunk the store answered, including
// rejected ones. Chunks that never reached the store are not reported.
type ChunkObserver interface {
	ChunkSubmitted(ctx context.Context, table, operation string, records int, elapsed time.Duration, err error)
}

// DefaultConfig returns the settings for the hosted record store
func DefaultConfig() Config {
	return Config{
		BatchSize:         DefaultBatchSize,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}
}

// Executor submits chunks strictly sequentially. It is safe to share between
// runs but a single run should not call it from several goroutines.
type Executor struct {
	batchSize int
	limiter   *rate.Limiter
	observer  ChunkObserver
	logger    *zap.Logger
}

// NewExecutor creates an executor. Invalid sizes fall back to DefaultBatchSize.
func NewExecutor(cfg Config, logger *zap.Logger) *Executor {
	size := cfg.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		batchSize: size,
		limiter:   rate.NewLimiter(limit, 1),
		observer:  cfg.Observer,
		logger:    logger.Named("batch"),
	}
}

// BatchSize returns the effective chunk size
func (e *Executor) BatchSize() int {
	return e.batchSize
}

// ChunkError reports a chunk the store rejected. Committed counts the
// records confirmed written: every chunk before ChunkIndex plus, for stores
// that write record by record, the leading records of the failing chunk.
// NotSubmitted is the rest. Nothing is rolled back.
type ChunkError struct {
	Table        string
	Operation    Operation
	ChunkIndex   int
	ChunkCount   int
	Committed    int
	NotSubmitted int
	Err          error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%s %s: chunk %d of %d failed (%d records committed, %d not applied): %v",
		e.Operation, e.Table, e.ChunkIndex+1, e.ChunkCount, e.Committed, e.NotSubmitted, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// AsChunkError extracts a *ChunkError from an error chain.
func AsChunkError(err error) (*ChunkError, bool) {
	var ce *ChunkError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Chunks splits records into consecutive slices of at most size elements.
// The order of records is preserved. Chunks share the backing array.
func Chunks[T any](records []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if len(records) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end:end])
	}
	return out
}

// CreateMany creates records in chunks. IDs are assigned in place by the table.
func CreateMany[T membership.Record](ctx context.Context, e *Executor, table membership.Table[T], records []T) error {
	return run(ctx, e, table.Name(), OpCreate, records, table.CreateRecords)
}

// UpdateMany updates records in chunks.
func UpdateMany[T membership.Record](ctx context.Context, e *Executor, table membership.Table[T], records []T) error {
	return run(ctx, e, table.Name(), OpUpdate, records, table.UpdateRecords)
}

// DeleteMany deletes records in chunks.
func DeleteMany[T membership.Record](ctx context.Context, e *Executor, table membership.Table[T], records []T) error {
	return run(ctx, e, table.Name(), OpDelete, records, table.DeleteRecords)
}

func run[T any](
	ctx context.Context,
	e *Executor,
	table string,
	op Operation,
	records []T,
	submit func(context.Context, []T) error,
) error {
	chunks := Chunks(records, e.batchSize)
	if len(chunks) == 0 {
		return nil
	}

	committed := 0
	for i, chunk := range chunks {
		if err := e.limiter.Wait(ctx); err != nil {
			return e.fail(table, op, i, len(chunks), committed, len(records), err)
		}
		started := time.Now()
		err := submit(ctx, chunk)
		if e.observer != nil {
			e.observer.ChunkSubmitted(ctx, table, string(op), len(chunk), time.Since(started), err)
		}
		if err != nil {
			committed += min(membership.AppliedBefore(err), len(chunk))
			return e.fail(table, op, i, len(chunks), committed, len(records), err)
		}
		committed += len(chunk)
		e.logger.Debug("Chunk committed",
			zap.String("table", table),
			zap.String("operation", string(op)),
			zap.Int("chunk", i+1),
			zap.Int("chunks", len(chunks)),
			zap.Int("records", len(chunk)),
		)
	}

	e.logger.Info("Batch completed",
		zap.String("table", table),
		zap.String("operation", string(op)),
		zap.Int("records", committed),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

func (e *Executor) fail(table string, op Operation, index, count, committed, total int, err error) error {
	ce := &ChunkError{
		Table:        table,
		Operation:    op,
		ChunkIndex:   index,
		ChunkCount:   count,
		Committed:    committed,
		NotSubmitted: total - committed,
		Err:          err,
	}
	e.logger.Error("Batch aborted",
		zap.String("table", table),
		zap.String("operation", string(op)),
		zap.Int("chunk", index+1),
		zap.Int("chunks", count),
		zap.Int("committed", committed),
		zap.Int("not_applied", ce.NotSubmitted),
		zap.Error(err),
	)
	return ce
}
