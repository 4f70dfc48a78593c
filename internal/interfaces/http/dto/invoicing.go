package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/eyc/invoicing/internal/application/invoicing"
)

// NumberText holds a number typed by the user. It decodes from a JSON
// number or a JSON string and keeps the raw text, so the service decides
// what counts as a number.
type NumberText string

// UnmarshalJSON implements json.Unmarshaler
func (n *NumberText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumberText(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected a number or a string: %w", err)
	}
	*n = NumberText(num.String())
	return nil
}

// GenerateInvoicesRequest starts a generation run. The first invoice number
// is not checked here: the service rejects an empty one with the message the
// operator is shown for any non-number.
type GenerateInvoicesRequest struct {
	FirstInvoiceNumber NumberText `json:"first_invoice_number"`
	InvoiceDate        string     `json:"invoice_date" binding:"required,datetime=2006-01-02"`
	DueDate            string     `json:"due_date" binding:"required,datetime=2006-01-02"`
}

// ToServiceRequest converts to the application request
func (r GenerateInvoicesRequest) ToServiceRequest() invoicing.GenerateRequest {
	return invoicing.GenerateRequest{
		FirstInvoiceNumber: string(r.FirstInvoiceNumber),
		InvoiceDate:        r.InvoiceDate,
		DueDate:            r.DueDate,
	}
}

// NextInvoiceNumberResponse is the suggested first number of the next run
type NextInvoiceNumberResponse struct {
	NextInvoiceNumber int64 `json:"next_invoice_number"`
}

// ExportQuery selects the export file format
type ExportQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=csv xlsx"`
}

// DeleteAllQuery carries the explicit confirmation of a bulk delete
type DeleteAllQuery struct {
	Confirm bool `form:"confirm"`
}

// DeleteAllResponse reports what a bulk delete removed
type DeleteAllResponse struct {
	InvoicesDeleted  int `json:"invoices_deleted"`
	LineItemsDeleted int `json:"line_items_deleted"`
}

// NewDeleteAllResponse converts the service result
func NewDeleteAllResponse(r *invoicing.DeleteResult) DeleteAllResponse {
	return DeleteAllResponse{
		InvoicesDeleted:  r.InvoicesDeleted,
		LineItemsDeleted: r.LineItemsDeleted,
	}
}
