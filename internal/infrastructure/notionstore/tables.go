package notionstore

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared/valueobject"
)

// --- Membership ---

type memberTable struct{ s *Store }

func (t *memberTable) Name() string { return membership.MembersTable }

func (t *memberTable) ListAll(ctx context.Context) ([]*membership.Member, error) {
	pages, err := t.s.queryAll(ctx, t.s.cfg.MembersDatabaseID, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.Name(), err)
	}
	members := make([]*membership.Member, 0, len(pages))
	for _, p := range pages {
		members = append(members, memberFromPage(p))
	}
	return members, nil
}

func (t *memberTable) CreateRecords(ctx context.Context, records []*membership.Member) error {
	props := make([]notionapi.Properties, len(records))
	for i, m := range records {
		props[i] = memberProperties(m)
	}
	return t.s.createPages(ctx, t.Name(), t.s.cfg.MembersDatabaseID, props, func(i int, id string) {
		records[i].ID = membership.MemberID(id)
	})
}

func (t *memberTable) UpdateRecords(ctx context.Context, records []*membership.Member) error {
	props := make([]notionapi.Properties, len(records))
	for i, m := range records {
		props[i] = memberProperties(m)
	}
	return t.s.updatePages(ctx, t.Name(), recordIDs(records), props)
}

func (t *memberTable) DeleteRecords(ctx context.Context, records []*membership.Member) error {
	return t.s.archivePages(ctx, t.Name(), recordIDs(records))
}

// memberProperties leaves out "Draft invoice"; Notion keeps it in sync
// with the invoice side of the relation.
func memberProperties(m *membership.Member) notionapi.Properties {
	props := notionapi.Properties{
		propMemberName:         titleProp(m.Name),
		propAnnualDues:         moneyProp(m.AnnualDues),
		propBuildingAssessment: moneyProp(m.BuildingAssessment),
	}
	if name := m.MemberTypeName(); name != "" {
		props[propMemberType] = selectProp(name)
	}
	return props
}

func memberFromPage(p notionapi.Page) *membership.Member {
	m := &membership.Member{
		ID:                 membership.MemberID(p.ID),
		Name:               readTitle(p.Properties, propMemberName),
		AnnualDues:         readMoney(p.Properties, propAnnualDues),
		BuildingAssessment: readMoney(p.Properties, propBuildingAssessment),
	}
	if name := readSelect(p.Properties, propMemberType); name != "" {
		m.MemberType = &membership.MemberType{ID: name, Name: name}
	}
	if id := readRelation(p.Properties, propDraftInvoice); id != "" {
		ref := membership.InvoiceID(id)
		m.OpenInvoice = &ref
	}
	return m
}

// --- Invoices ---

type invoiceTable struct{ s *Store }

func (t *invoiceTable) Name() string { return membership.InvoicesTable }

func (t *invoiceTable) ListAll(ctx context.Context) ([]*membership.Invoice, error) {
	return t.list(ctx, nil)
}

// ListOpen reads the invoices whose draft link is set.
func (t *invoiceTable) ListOpen(ctx context.Context) ([]*membership.Invoice, error) {
	return t.list(ctx, relationFilter(propOpenMembership, ""))
}

func (t *invoiceTable) list(ctx context.Context, filter notionapi.Filter) ([]*membership.Invoice, error) {
	pages, err := t.s.queryAll(ctx, t.s.cfg.InvoicesDatabaseID, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.Name(), err)
	}
	invoices := make([]*membership.Invoice, 0, len(pages))
	for _, p := range pages {
		invoices = append(invoices, invoiceFromPage(p))
	}
	return invoices, nil
}

func (t *invoiceTable) CreateRecords(ctx context.Context, records []*membership.Invoice) error {
	props := make([]notionapi.Properties, len(records))
	for i, inv := range records {
		props[i] = invoiceProperties(inv)
	}
	return t.s.createPages(ctx, t.Name(), t.s.cfg.InvoicesDatabaseID, props, func(i int, id string) {
		records[i].ID = membership.InvoiceID(id)
	})
}

func (t *invoiceTable) UpdateRecords(ctx context.Context, records []*membership.Invoice) error {
	props := make([]notionapi.Properties, len(records))
	for i, inv := range records {
		props[i] = invoiceProperties(inv)
	}
	return t.s.updatePages(ctx, t.Name(), recordIDs(records), props)
}

func (t *invoiceTable) DeleteRecords(ctx context.Context, records []*membership.Invoice) error {
	return t.s.archivePages(ctx, t.Name(), recordIDs(records))
}

func invoiceProperties(inv *membership.Invoice) notionapi.Properties {
	open := ""
	if inv.OpenMembership != nil {
		open = string(*inv.OpenMembership)
	}
	props := notionapi.Properties{
		propInvoiceNumber:  titleProp(fmt.Sprintf("%d", inv.Number)),
		propMembership:     relationProp(string(inv.Membership)),
		propOpenMembership: relationProp(open),
	}
	if !inv.InvoiceDate.IsZero() {
		props[propInvoiceDate] = dateProp(inv.InvoiceDate)
	}
	if !inv.DueDate.IsZero() {
		props[propDueDate] = dateProp(inv.DueDate)
	}
	return props
}

func invoiceFromPage(p notionapi.Page) *membership.Invoice {
	inv := &membership.Invoice{
		ID:          membership.InvoiceID(p.ID),
		Number:      parseInvoiceNumber(readTitle(p.Properties, propInvoiceNumber)),
		InvoiceDate: readDate(p.Properties, propInvoiceDate),
		DueDate:     readDate(p.Properties, propDueDate),
		Membership:  membership.MemberID(readRelation(p.Properties, propMembership)),
	}
	if id := readRelation(p.Properties, propOpenMembership); id != "" {
		ref := membership.MemberID(id)
		inv.OpenMembership = &ref
	}
	return inv
}

// --- Invoice items ---

type lineItemTable struct{ s *Store }

func (t *lineItemTable) Name() string { return membership.LineItemsTable }

func (t *lineItemTable) ListAll(ctx context.Context) ([]*membership.LineItem, error) {
	pages, err := t.s.queryAll(ctx, t.s.cfg.ItemsDatabaseID, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.Name(), err)
	}
	items := make([]*membership.LineItem, 0, len(pages))
	for _, p := range pages {
		items = append(items, lineItemFromPage(p))
	}
	return items, nil
}

// ProductNames queries only the items linked to invoice and keeps nothing
// but their product names.
func (t *lineItemTable) ProductNames(ctx context.Context, invoice membership.InvoiceID) ([]string, error) {
	if invoice == "" {
		return nil, nil
	}
	pages, err := t.s.queryAll(ctx, t.s.cfg.ItemsDatabaseID, relationFilter(propInvoice, string(invoice)))
	if err != nil {
		return nil, fmt.Errorf("read product names of invoice %s: %w", invoice, err)
	}
	names := make([]string, 0, len(pages))
	for _, p := range pages {
		names = append(names, readTitle(p.Properties, propProductName))
	}
	return names, nil
}

// ListOpenItems joins items with open invoices and member names in memory;
// Notion cannot filter on a related page's properties. Items keep the order
// Notion returns them in.
func (t *lineItemTable) ListOpenItems(ctx context.Context) ([]*membership.OpenLineItem, error) {
	open, err := t.s.Invoices().ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}
	byID := make(map[membership.InvoiceID]*membership.Invoice, len(open))
	for _, inv := range open {
		byID[inv.ID] = inv
	}

	members, err := t.s.Members().ListAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[membership.MemberID]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	items, err := t.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*membership.OpenLineItem
	for _, it := range items {
		inv, ok := byID[it.Invoice]
		if !ok {
			continue
		}
		rows = append(rows, &membership.OpenLineItem{
			LineItem:      *it,
			InvoiceNumber: inv.Number,
			MemberName:    names[inv.Membership],
			InvoiceDate:   inv.InvoiceDate,
			DueDate:       inv.DueDate,
		})
	}
	return rows, nil
}

func (t *lineItemTable) CreateRecords(ctx context.Context, records []*membership.LineItem) error {
	props := make([]notionapi.Properties, len(records))
	for i, it := range records {
		props[i] = lineItemProperties(it)
	}
	return t.s.createPages(ctx, t.Name(), t.s.cfg.ItemsDatabaseID, props, func(i int, id string) {
		records[i].ID = membership.LineItemID(id)
	})
}

func (t *lineItemTable) UpdateRecords(ctx context.Context, records []*membership.LineItem) error {
	props := make([]notionapi.Properties, len(records))
	for i, it := range records {
		props[i] = lineItemProperties(it)
	}
	return t.s.updatePages(ctx, t.Name(), recordIDs(records), props)
}

func (t *lineItemTable) DeleteRecords(ctx context.Context, records []*membership.LineItem) error {
	return t.s.archivePages(ctx, t.Name(), recordIDs(records))
}

func lineItemProperties(it *membership.LineItem) notionapi.Properties {
	props := notionapi.Properties{
		propProductName: titleProp(it.ProductName),
		propInvoice:     relationProp(string(it.Invoice)),
		propDescription: textProp(it.Description),
		propUnitPrice:   numberProp(it.UnitPrice.Float64()),
		propQuantity:    numberProp(float64(it.Quantity)),
	}
	if !it.ServiceDate.IsZero() {
		props[propServiceDate] = dateProp(it.ServiceDate)
	}
	return props
}

func lineItemFromPage(p notionapi.Page) *membership.LineItem {
	price := readMoney(p.Properties, propUnitPrice)
	if price == nil {
		zero := valueobject.Zero()
		price = &zero
	}
	return &membership.LineItem{
		ID:          membership.LineItemID(p.ID),
		Invoice:     membership.InvoiceID(readRelation(p.Properties, propInvoice)),
		ProductName: readTitle(p.Properties, propProductName),
		Description: readText(p.Properties, propDescription),
		UnitPrice:   *price,
		ServiceDate: readDate(p.Properties, propServiceDate),
		Quantity:    int(readNumber(p.Properties, propQuantity)),
	}
}
