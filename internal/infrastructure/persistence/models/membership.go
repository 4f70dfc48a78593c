package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared/valueobject"
)

// MemberTypeModel is a membership category.
type MemberTypeModel struct {
	BaseModel
	Name string `gorm:"type:varchar(100);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (MemberTypeModel) TableName() string {
	return "member_types"
}

// ToDomain converts the persistence model to a domain MemberType.
func (m *MemberTypeModel) ToDomain() *membership.MemberType {
	return &membership.MemberType{ID: m.ID.String(), Name: m.Name}
}

// MemberModel is a row of the Membership table.
type MemberModel struct {
	BaseModel
	Name               string              `gorm:"type:varchar(200);not null"`
	MemberTypeID       *uuid.UUID          `gorm:"type:uuid;index"`
	MemberType         *MemberTypeModel    `gorm:"foreignKey:MemberTypeID"`
	AnnualDues         decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	BuildingAssessment decimal.NullDecimal `gorm:"type:decimal(12,2)"`
}

// TableName returns the table name for GORM
func (MemberModel) TableName() string {
	return "members"
}

// ToDomain converts the persistence model to a domain Member. openInvoice is
// the member's open invoice, if any, resolved by the caller.
func (m *MemberModel) ToDomain(openInvoice *membership.InvoiceID) *membership.Member {
	out := &membership.Member{
		ID:                 membership.MemberID(m.ID.String()),
		Name:               m.Name,
		OpenInvoice:        openInvoice,
		AnnualDues:         moneyPtr(m.AnnualDues),
		BuildingAssessment: moneyPtr(m.BuildingAssessment),
	}
	if m.MemberType != nil {
		out.MemberType = m.MemberType.ToDomain()
	}
	return out
}

// FromDomain populates the model from a domain Member. The member type is
// resolved separately because it lives in its own table.
func (m *MemberModel) FromDomain(member *membership.Member) {
	m.ID = ParseID(string(member.ID))
	m.Name = member.Name
	m.AnnualDues = nullDecimal(member.AnnualDues)
	m.BuildingAssessment = nullDecimal(member.BuildingAssessment)
}

// InvoiceModel is a row of the Invoices table.
type InvoiceModel struct {
	BaseModel
	Number           int64      `gorm:"not null;index"`
	InvoiceDate      time.Time  `gorm:"type:date;not null"`
	DueDate          time.Time  `gorm:"type:date;not null"`
	MembershipID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	OpenMembershipID *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_invoices_open_membership,where:open_membership_id IS NOT NULL"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *membership.Invoice {
	out := &membership.Invoice{
		ID:          membership.InvoiceID(m.ID.String()),
		Number:      m.Number,
		InvoiceDate: utcDate(m.InvoiceDate),
		DueDate:     utcDate(m.DueDate),
		Membership:  membership.MemberID(m.MembershipID.String()),
	}
	if m.OpenMembershipID != nil {
		open := membership.MemberID(m.OpenMembershipID.String())
		out.OpenMembership = &open
	}
	return out
}

// FromDomain populates the model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *membership.Invoice) {
	m.ID = ParseID(string(inv.ID))
	m.Number = inv.Number
	m.InvoiceDate = utcDate(inv.InvoiceDate)
	m.DueDate = utcDate(inv.DueDate)
	m.MembershipID = ParseID(string(inv.Membership))
	m.OpenMembershipID = nil
	if inv.IsOpen() {
		open := ParseID(string(*inv.OpenMembership))
		m.OpenMembershipID = &open
	}
}

// LineItemModel is a row of the Invoice items table.
type LineItemModel struct {
	BaseModel
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Invoice     *InvoiceModel   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	Description string          `gorm:"type:varchar(500)"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ServiceDate time.Time       `gorm:"type:date"`
	Quantity    int             `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (LineItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain LineItem.
func (m *LineItemModel) ToDomain() *membership.LineItem {
	return &membership.LineItem{
		ID:          membership.LineItemID(m.ID.String()),
		Invoice:     membership.InvoiceID(m.InvoiceID.String()),
		ProductName: m.ProductName,
		Description: m.Description,
		UnitPrice:   valueobject.USDFromDecimal(m.UnitPrice),
		ServiceDate: utcDate(m.ServiceDate),
		Quantity:    m.Quantity,
	}
}

// FromDomain populates the model from a domain LineItem.
func (m *LineItemModel) FromDomain(item *membership.LineItem) {
	m.ID = ParseID(string(item.ID))
	m.InvoiceID = ParseID(string(item.Invoice))
	m.ProductName = item.ProductName
	m.Description = item.Description
	m.UnitPrice = item.UnitPrice.Amount()
	m.ServiceDate = utcDate(item.ServiceDate)
	m.Quantity = item.Quantity
}

// OpenItemRow is the scan target of the "Open items" join.
type OpenItemRow struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	InvoiceID     uuid.UUID
	ProductName   string
	Description   string
	UnitPrice     decimal.Decimal
	ServiceDate   time.Time
	Quantity      int
	InvoiceNumber int64
	InvoiceDate   time.Time
	DueDate       time.Time
	MemberName    string
}

// ToDomain converts the joined row to a domain OpenLineItem.
func (r *OpenItemRow) ToDomain() *membership.OpenLineItem {
	return &membership.OpenLineItem{
		LineItem: membership.LineItem{
			ID:          membership.LineItemID(r.ID.String()),
			Invoice:     membership.InvoiceID(r.InvoiceID.String()),
			ProductName: r.ProductName,
			Description: r.Description,
			UnitPrice:   valueobject.USDFromDecimal(r.UnitPrice),
			ServiceDate: utcDate(r.ServiceDate),
			Quantity:    r.Quantity,
		},
		InvoiceNumber: r.InvoiceNumber,
		MemberName:    r.MemberName,
		InvoiceDate:   utcDate(r.InvoiceDate),
		DueDate:       utcDate(r.DueDate),
	}
}

func moneyPtr(v decimal.NullDecimal) *valueobject.Money {
	if !v.Valid {
		return nil
	}
	m := valueobject.USDFromDecimal(v.Decimal)
	return &m
}

func nullDecimal(m *valueobject.Money) decimal.NullDecimal {
	if m == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(m.Amount())
}

// utcDate drops the time-of-day and zone so dates compare equal whatever the
// driver returned.
func utcDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
