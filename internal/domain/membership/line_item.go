package membership

import (
	"time"

	"github.com/eyc/invoicing/internal/domain/shared/valueobject"
)

// Product names and descriptions used for generated line items.
const (
	BuildingAssessmentProduct = "Building Assessment"
	duesDescriptionSuffix     = " Dues"
)

// LineItemID identifies a row of the Invoice items table.
type LineItemID string

// LineItem is a single charge on an invoice. ProductName is unique per
// invoice among generated items.
type LineItem struct {
	ID          LineItemID
	Invoice     InvoiceID
	ProductName string
	Description string
	UnitPrice   valueobject.Money
	ServiceDate time.Time
	Quantity    int
}

// RecordID implements Record
func (l *LineItem) RecordID() string {
	return string(l.ID)
}

// Amount is unit price times quantity.
func (l *LineItem) Amount() valueobject.Money {
	return l.UnitPrice.MultiplyByInt(int64(l.Quantity))
}

// NewDuesItem builds the annual dues line for a member type.
func NewDuesItem(invoice InvoiceID, memberType string, dues valueobject.Money, serviceDate time.Time) *LineItem {
	return &LineItem{
		Invoice:     invoice,
		ProductName: memberType,
		Description: memberType + duesDescriptionSuffix,
		UnitPrice:   dues,
		ServiceDate: serviceDate,
		Quantity:    1,
	}
}

// NewAssessmentItem builds the building assessment line.
func NewAssessmentItem(invoice InvoiceID, assessment valueobject.Money, serviceDate time.Time) *LineItem {
	return &LineItem{
		Invoice:     invoice,
		ProductName: BuildingAssessmentProduct,
		Description: BuildingAssessmentProduct,
		UnitPrice:   assessment,
		ServiceDate: serviceDate,
		Quantity:    1,
	}
}

// OpenLineItem is a row of the "Open items" view: a line item on an open
// invoice joined with the invoice header and the member name.
type OpenLineItem struct {
	LineItem
	InvoiceNumber int64
	MemberName    string
	InvoiceDate   time.Time
	DueDate       time.Time
}
