package membership

import "time"

// InvoiceID identifies a row of the Invoices table.
type InvoiceID string

// Invoice is an invoice header. While OpenMembership is set the invoice is
// open (a draft) and it shows up in the "Open invoices" view; exporting
// clears the link.
type Invoice struct {
	ID             InvoiceID
	Number         int64
	InvoiceDate    time.Time
	DueDate        time.Time
	Membership     MemberID
	OpenMembership *MemberID
}

// NewOpenInvoice builds a draft invoice for member. The ID is assigned by the
// store on create.
func NewOpenInvoice(member MemberID, number int64, invoiceDate, dueDate time.Time) *Invoice {
	open := member
	return &Invoice{
		Number:         number,
		InvoiceDate:    invoiceDate,
		DueDate:        dueDate,
		Membership:     member,
		OpenMembership: &open,
	}
}

// RecordID implements Record
func (i *Invoice) RecordID() string {
	return string(i.ID)
}

// IsOpen reports whether the invoice is still a draft.
func (i *Invoice) IsOpen() bool {
	return i.OpenMembership != nil && *i.OpenMembership != ""
}

// Close clears the open link. Closed invoices are never reopened here.
func (i *Invoice) Close() {
	i.OpenMembership = nil
}
