package persistence

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/eyc/invoicing/internal/domain/membership"
)

// GormStore implements membership.Store on a relational database.
type GormStore struct {
	database *Database
	members  *GormMemberRepository
	invoices *GormInvoiceRepository
	items    *GormLineItemRepository
}

// NewGormStore creates a store over database. Closing the store closes the
// database.
func NewGormStore(database *Database) *GormStore {
	s := &GormStore{
		database: database,
		members:  NewGormMemberRepository(database.DB),
		invoices: NewGormInvoiceRepository(database.DB),
		items:    NewGormLineItemRepository(database.DB),
	}
	clock := &creationClock{}
	s.members.clock = clock
	s.invoices.clock = clock
	s.items.clock = clock
	return s
}

// Members implements membership.Store
func (s *GormStore) Members() membership.MemberRepository { return s.members }

// Invoices implements membership.Store
func (s *GormStore) Invoices() membership.InvoiceRepository { return s.invoices }

// LineItems implements membership.Store
func (s *GormStore) LineItems() membership.LineItemRepository { return s.items }

// Close implements membership.Store
func (s *GormStore) Close() error { return s.database.Close() }

var _ membership.Store = (*GormStore)(nil)

// creationClock hands out strictly increasing creation timestamps. Rows
// created in one statement would otherwise share a timestamp and lose the
// roster order that "ORDER BY created_at" relies on.
type creationClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *creationClock) next(n int) []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Time, n)
	t := time.Now().UTC().Truncate(time.Microsecond)
	for i := range out {
		if !t.After(c.last) {
			t = c.last.Add(time.Microsecond)
		}
		out[i] = t
		c.last = t
	}
	return out
}

func recordIDs[T membership.Record](records []T) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.RecordID())
	}
	return ids
}

// deleteByIDs hard-deletes rows of model whose id is in ids.
func deleteByIDs(tx *gorm.DB, model any, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("id IN ?", ids).Delete(model).Error
}
