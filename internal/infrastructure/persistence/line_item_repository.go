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

// GormLineItemRepository implements membership.LineItemRepository using GORM
type GormLineItemRepository struct {
	db    *gorm.DB
	clock *creationClock
}

// NewGormLineItemRepository creates a new GormLineItemRepository
func NewGormLineItemRepository(db *gorm.DB) *GormLineItemRepository {
	return &GormLineItemRepository{db: db, clock: &creationClock{}}
}

// Name implements membership.Table
func (r *GormLineItemRepository) Name() string { return membership.LineItemsTable }

// ListAll returns every line item in creation order.
func (r *GormLineItemRepository) ListAll(ctx context.Context) ([]*membership.LineItem, error) {
	var rows []models.LineItemModel
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	out := make([]*membership.LineItem, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// ProductNames reads only the product_name column of one invoice's items.
func (r *GormLineItemRepository) ProductNames(ctx context.Context, invoice membership.InvoiceID) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).
		Model(&models.LineItemModel{}).
		Where("invoice_id = ?", models.ParseID(string(invoice))).
		Pluck("product_name", &names).Error; err != nil {
		return nil, fmt.Errorf("list product names of invoice %s: %w", invoice, err)
	}
	return names, nil
}

// ListOpenItems reads the "Open items" view: items on open invoices joined
// with the invoice header and member name, ordered by invoice number then
// item creation.
func (r *GormLineItemRepository) ListOpenItems(ctx context.Context) ([]*membership.OpenLineItem, error) {
	var rows []models.OpenItemRow
	if err := r.db.WithContext(ctx).
		Table("invoice_items").
		Select(`invoice_items.id, invoice_items.created_at, invoice_items.invoice_id,
			invoice_items.product_name, invoice_items.description, invoice_items.unit_price,
			invoice_items.service_date, invoice_items.quantity,
			invoices.number AS invoice_number, invoices.invoice_date AS invoice_date,
			invoices.due_date AS due_date, members.name AS member_name`).
		Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id").
		Joins("LEFT JOIN members ON members.id = invoices.membership_id").
		Where("invoices.open_membership_id IS NOT NULL").
		Order("invoices.number ASC, invoice_items.created_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list open items: %w", err)
	}
	out := make([]*membership.OpenLineItem, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// CreateRecords inserts line items in one statement and assigns their IDs.
func (r *GormLineItemRepository) CreateRecords(ctx context.Context, records []*membership.LineItem) error {
	if len(records) == 0 {
		return nil
	}
	stamps := r.clock.next(len(records))
	rows := make([]models.LineItemModel, len(records))
	for i, rec := range records {
		rows[i].FromDomain(rec)
		rows[i].ID = uuid.New()
		rows[i].CreatedAt = stamps[i]
		rows[i].UpdatedAt = stamps[i]
	}
	if err := r.db.WithContext(ctx).Omit("Invoice").Create(&rows).Error; err != nil {
		return fmt.Errorf("create invoice items: %w", err)
	}
	for i, rec := range records {
		rec.ID = membership.LineItemID(rows[i].ID.String())
	}
	return nil
}

// UpdateRecords rewrites existing line items.
func (r *GormLineItemRepository) UpdateRecords(ctx context.Context, records []*membership.LineItem) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			var row models.LineItemModel
			row.FromDomain(rec)
			res := tx.Model(&models.LineItemModel{}).
				Where("id = ?", row.ID).
				Updates(map[string]any{
					"invoice_id":   row.InvoiceID,
					"product_name": row.ProductName,
					"description":  row.Description,
					"unit_price":   row.UnitPrice,
					"service_date": row.ServiceDate,
					"quantity":     row.Quantity,
				})
			if res.Error != nil {
				return fmt.Errorf("update invoice item %s: %w", rec.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("invoice item %s: %w", rec.ID, shared.ErrNotFound)
			}
		}
		return nil
	})
}

// DeleteRecords deletes line items by ID.
func (r *GormLineItemRepository) DeleteRecords(ctx context.Context, records []*membership.LineItem) error {
	if err := deleteByIDs(r.db.WithContext(ctx), &models.LineItemModel{}, recordIDs(records)); err != nil {
		return fmt.Errorf("delete invoice items: %w", err)
	}
	return nil
}
