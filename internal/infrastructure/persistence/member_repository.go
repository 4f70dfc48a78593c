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

// GormMemberRepository implements membership.MemberRepository using GORM
type GormMemberRepository struct {
	db    *gorm.DB
	clock *creationClock
}

// NewGormMemberRepository creates a new GormMemberRepository
func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db, clock: &creationClock{}}
}

// Name implements membership.Table
func (r *GormMemberRepository) Name() string { return membership.MembersTable }

// ListAll returns the roster in creation order with each member's open
// invoice resolved from the invoices table.
func (r *GormMemberRepository) ListAll(ctx context.Context) ([]*membership.Member, error) {
	var rows []models.MemberModel
	if err := r.db.WithContext(ctx).
		Preload("MemberType").
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	open, err := r.openInvoices(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*membership.Member, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain(open[rows[i].ID]))
	}
	return out, nil
}

// openInvoices maps member ID to that member's open invoice ID.
func (r *GormMemberRepository) openInvoices(ctx context.Context) (map[uuid.UUID]*membership.InvoiceID, error) {
	var links []struct {
		ID               uuid.UUID
		OpenMembershipID uuid.UUID
	}
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("id, open_membership_id").
		Where("open_membership_id IS NOT NULL").
		Scan(&links).Error; err != nil {
		return nil, fmt.Errorf("list open invoice links: %w", err)
	}
	out := make(map[uuid.UUID]*membership.InvoiceID, len(links))
	for _, l := range links {
		id := membership.InvoiceID(l.ID.String())
		out[l.OpenMembershipID] = &id
	}
	return out, nil
}

// CreateRecords inserts members, creating member types by name as needed.
// The open invoice link is ignored: it is owned by the invoice.
func (r *GormMemberRepository) CreateRecords(ctx context.Context, records []*membership.Member) error {
	if len(records) == 0 {
		return nil
	}
	stamps := r.clock.next(len(records))

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		types := make(map[string]*uuid.UUID)
		rows := make([]models.MemberModel, len(records))
		for i, rec := range records {
			rows[i].FromDomain(rec)
			rows[i].ID = uuid.New()
			rows[i].CreatedAt = stamps[i]
			rows[i].UpdatedAt = stamps[i]

			typeID, err := resolveMemberType(tx, types, rec.MemberType)
			if err != nil {
				return err
			}
			rows[i].MemberTypeID = typeID
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("create members: %w", err)
		}
		for i, rec := range records {
			rec.ID = membership.MemberID(rows[i].ID.String())
			if rec.MemberType != nil {
				rec.MemberType.ID = rows[i].MemberTypeID.String()
			}
		}
		return nil
	})
}

// UpdateRecords rewrites name, type and charges of existing members.
func (r *GormMemberRepository) UpdateRecords(ctx context.Context, records []*membership.Member) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		types := make(map[string]*uuid.UUID)
		for _, rec := range records {
			var row models.MemberModel
			row.FromDomain(rec)
			typeID, err := resolveMemberType(tx, types, rec.MemberType)
			if err != nil {
				return err
			}

			res := tx.Model(&models.MemberModel{}).
				Where("id = ?", row.ID).
				Updates(map[string]any{
					"name":                row.Name,
					"member_type_id":      nullableUUID(typeID),
					"annual_dues":         row.AnnualDues,
					"building_assessment": row.BuildingAssessment,
				})
			if res.Error != nil {
				return fmt.Errorf("update member %s: %w", rec.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("member %s: %w", rec.ID, shared.ErrNotFound)
			}
		}
		return nil
	})
}

// DeleteRecords deletes members by ID.
func (r *GormMemberRepository) DeleteRecords(ctx context.Context, records []*membership.Member) error {
	if err := deleteByIDs(r.db.WithContext(ctx), &models.MemberModel{}, recordIDs(records)); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}
	return nil
}

// resolveMemberType finds or creates the member type named by mt. Results
// are cached in seen for the duration of one call.
func resolveMemberType(tx *gorm.DB, seen map[string]*uuid.UUID, mt *membership.MemberType) (*uuid.UUID, error) {
	if mt == nil || mt.Name == "" {
		return nil, nil
	}
	if id, ok := seen[mt.Name]; ok {
		return id, nil
	}
	row := models.MemberTypeModel{Name: mt.Name}
	if err := tx.Where(models.MemberTypeModel{Name: mt.Name}).FirstOrCreate(&row).Error; err != nil {
		return nil, fmt.Errorf("resolve member type %q: %w", mt.Name, err)
	}
	id := row.ID
	seen[mt.Name] = &id
	return &id, nil
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
