package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared"
	"github.com/eyc/invoicing/internal/infrastructure/persistence/models"
)

// GormInvoiceRepository implements membership.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db    *gorm.DB
	clock *creationClock
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db, clock: &creationClock{}}
}

// Name implements membership.Table
func (r *GormInvoiceRepository) Name() string { return membership.InvoicesTable }

// ListAll returns every invoice ordered by number.
func (r *GormInvoiceRepository) ListAll(ctx context.Context) ([]*membership.Invoice, error) {
	return r.find(r.db.WithContext(ctx))
}

// ListOpen returns the "Open invoices" view.
func (r *GormInvoiceRepository) ListOpen(ctx context.Context) ([]*membership.Invoice, error) {
	return r.find(r.db.WithContext(ctx).Where("open_membership_id IS NOT NULL"))
}

func (r *GormInvoiceRepository) find(q *gorm.DB) ([]*membership.Invoice, error) {
	var rows []models.InvoiceModel
	if err := q.Order("number ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	out := make([]*membership.Invoice, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// CreateRecords inserts invoices in one statement and assigns their IDs.
func (r *GormInvoiceRepository) CreateRecords(ctx context.Context, records []*membership.Invoice) error {
	if len(records) == 0 {
		return nil
	}
	stamps := r.clock.next(len(records))
	rows := make([]models.InvoiceModel, len(records))
	for i, rec := range records {
		rows[i].FromDomain(rec)
		rows[i].ID = uuid.New()
		rows[i].CreatedAt = stamps[i]
		rows[i].UpdatedAt = stamps[i]
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("create invoices: %w", err)
	}
	for i, rec := range records {
		rec.ID = membership.InvoiceID(rows[i].ID.String())
	}
	return nil
}

// UpdateRecords rewrites existing invoices, including clearing the open link.
func (r *GormInvoiceRepository) UpdateRecords(ctx context.Context, records []*membership.Invoice) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			var row models.InvoiceModel
			row.FromDomain(rec)
			res := tx.Model(&models.InvoiceModel{}).
				Where("id = ?", row.ID).
				Updates(map[string]any{
					"number":             row.Number,
					"invoice_date":       row.InvoiceDate,
					"due_date":           row.DueDate,
					"membership_id":      row.MembershipID,
					"open_membership_id": nullableUUID(row.OpenMembershipID),
				})
			if res.Error != nil {
				return fmt.Errorf("update invoice %s: %w", rec.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("invoice %s: %w", rec.ID, shared.ErrNotFound)
			}
		}
		return nil
	})
}

// DeleteRecords deletes invoices by ID. Their line items go with them.
func (r *GormInvoiceRepository) DeleteRecords(ctx context.Context, records []*membership.Invoice) error {
	ids := recordIDs(records)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ids) > 0 {
			if err := tx.Where("invoice_id IN ?", ids).Delete(&models.LineItemModel{}).Error; err != nil {
				return fmt.Errorf("delete invoice items: %w", err)
			}
		}
		if err := deleteByIDs(tx, &models.InvoiceModel{}, ids); err != nil {
			return fmt.Errorf("delete invoices: %w", err)
		}
		return nil
	})
}
