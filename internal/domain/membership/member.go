package membership

import (
	"github.com/eyc/invoicing/internal/domain/shared/valueobject"
)

// MemberID identifies a row of the Membership table.
type MemberID string

// MemberType is the linked membership category. Its name doubles as the
// product name of the dues line item.
type MemberType struct {
	ID   string
	Name string
}

// Member is one membership record. The invoicing core only reads members.
type Member struct {
	ID   MemberID
	Name string

	// OpenInvoice links to the member's current draft invoice, if any.
	OpenInvoice *InvoiceID

	// AnnualDues and BuildingAssessment are nil when the field is empty.
	AnnualDues         *valueobject.Money
	BuildingAssessment *valueobject.Money

	MemberType *MemberType
}

// RecordID implements Record
func (m *Member) RecordID() string {
	return string(m.ID)
}

// HasOpenInvoice reports whether the member already has a draft invoice.
func (m *Member) HasOpenInvoice() bool {
	return m.OpenInvoice != nil && *m.OpenInvoice != ""
}

// IsBillable reports whether at least one of the two charges is present and
// non-zero. Members with nothing to charge never get an invoice.
func (m *Member) IsBillable() bool {
	return nonZero(m.AnnualDues) || nonZero(m.BuildingAssessment)
}

// MemberTypeName returns the member type name or "" when unset.
func (m *Member) MemberTypeName() string {
	if m.MemberType == nil {
		return ""
	}
	return m.MemberType.Name
}

func nonZero(v *valueobject.Money) bool {
	return v != nil && !v.IsZero()
}
