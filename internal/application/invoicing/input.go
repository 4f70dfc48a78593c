package invoicing

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared"
)

// MsgInvalidFirstInvoiceNumber is shown when the first invoice number is not a number.
const MsgInvalidFirstInvoiceNumber = "Please enter a number for the first invoice number."

// ErrInvalidFirstInvoiceNumber rejects a run before any record is written.
var ErrInvalidFirstInvoiceNumber = shared.NewDomainError(shared.CodeInvalidInput, MsgInvalidFirstInvoiceNumber)

// GenerateRequest is the raw user input of a generation run.
type GenerateRequest struct {
	FirstInvoiceNumber string
	InvoiceDate        string
	DueDate            string
}

// RunParams are the validated inputs of a generation run.
type RunParams struct {
	FirstInvoiceNumber int64
	InvoiceDate        time.Time
	DueDate            time.Time
	// ServiceDate is January 1 of the due date's year.
	ServiceDate time.Time
}

// ParseFirstInvoiceNumber accepts any finite integral number. Empty input,
// NaN, infinities and fractions are rejected with ErrInvalidFirstInvoiceNumber.
func ParseFirstInvoiceNumber(raw string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidFirstInvoiceNumber
	}
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, ErrInvalidFirstInvoiceNumber
	}
	return int64(f), nil
}

// Validate parses the request. It performs no I/O.
func (r GenerateRequest) Validate() (RunParams, error) {
	first, err := ParseFirstInvoiceNumber(r.FirstInvoiceNumber)
	if err != nil {
		return RunParams{}, err
	}
	invoiceDate, err := membership.ParseDate(r.InvoiceDate)
	if err != nil {
		return RunParams{}, shared.InvalidInput("Invoice date: %v", err)
	}
	dueDate, err := membership.ParseDate(r.DueDate)
	if err != nil {
		return RunParams{}, shared.InvalidInput("Due date: %v", err)
	}
	return RunParams{
		FirstInvoiceNumber: first,
		InvoiceDate:        invoiceDate,
		DueDate:            dueDate,
		ServiceDate:        membership.ServiceDateFor(dueDate),
	}, nil
}
