package invoicing

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared/valueobject"
	"github.com/eyc/invoicing/internal/infrastructure/export"
)

// MembershipLogHeader is the column order of the membership log.
var MembershipLogHeader = []string{
	"Member Name", "Member Type", "Annual dues", "Building assessment", "Open invoice #",
}

// ExportMembershipLog writes every current membership as CSV for mail merge.
// Unlike the invoice export it changes nothing in the store.
func (s *Service) ExportMembershipLog(ctx context.Context) (*ExportResult, error) {
	members, err := s.store.Members().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	invoices, err := s.store.Invoices().ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open invoices: %w", err)
	}
	numbers := make(map[membership.InvoiceID]int64, len(invoices))
	for _, inv := range invoices {
		numbers[inv.ID] = inv.Number
	}

	rows := make([][]string, 0, len(members))
	for _, m := range members {
		openNumber := ""
		if m.HasOpenInvoice() {
			if n, ok := numbers[*m.OpenInvoice]; ok {
				openNumber = strconv.FormatInt(n, 10)
			}
		}
		rows = append(rows, []string{
			m.Name,
			m.MemberTypeName(),
			optionalMoney(m.AnnualDues),
			optionalMoney(m.BuildingAssessment),
			openNumber,
		})
	}

	writer := s.writers[export.FormatCSV]
	var buf bytes.Buffer
	table := &export.Table{
		Header:  MembershipLogHeader,
		Rows:    rows,
		Numeric: []bool{false, false, true, true, true},
	}
	if err := writer.Write(&buf, table); err != nil {
		return nil, fmt.Errorf("render membership log: %w", err)
	}
	return &ExportResult{
		FileName:    writer.FileName("membership"),
		ContentType: writer.ContentType(),
		Body:        buf.Bytes(),
		Rows:        len(rows),
	}, nil
}

func optionalMoney(m *valueobject.Money) string {
	if m == nil {
		return ""
	}
	return m.String()
}
