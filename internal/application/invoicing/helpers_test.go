package invoicing

import (
	"time"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared/valueobject"
)

var (
	testInvoiceDate = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	testDueDate     = time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	testServiceDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

func usd(v float64) *valueobject.Money {
	m := valueobject.USDFromFloat(v)
	return &m
}

func invoiceRef(id string) *membership.InvoiceID {
	ref := membership.InvoiceID(id)
	return &ref
}

func regular() *membership.MemberType {
	return &membership.MemberType{ID: "type-regular", Name: "Regular"}
}
