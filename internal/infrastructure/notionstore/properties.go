package notionstore

import (
	"strconv"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/eyc/invoicing/internal/domain/shared/valueobject"
)

// Property names. They match the column names of the record store tables.
const (
	propMemberName         = "Name"
	propMemberType         = "Member type"
	propAnnualDues         = "Annual dues"
	propBuildingAssessment = "Building assessment"
	propDraftInvoice       = "Draft invoice"

	propInvoiceNumber  = "Invoice #"
	propInvoiceDate    = "Invoice Date"
	propDueDate        = "Due Date"
	propMembership     = "Membership"
	propOpenMembership = "Membership of draft invoice"

	propProductName = "Product Name"
	propInvoice     = "Invoice"
	propDescription = "Description"
	propUnitPrice   = "Unit price"
	propServiceDate = "Service Date"
	propQuantity    = "Quantity"
)

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

func titleProp(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Title: richText(s)}
}

func textProp(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{RichText: richText(s)}
}

func numberProp(v float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: v}
}

// moneyProp writes an absent charge as 0; Notion numbers cannot be
// cleared through the API.
func moneyProp(m *valueobject.Money) notionapi.NumberProperty {
	if m == nil {
		return numberProp(0)
	}
	return numberProp(m.Float64())
}

func dateProp(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

func selectProp(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Select: notionapi.Option{Name: name}}
}

// relationProp links to ids; no ids clears the relation.
func relationProp(ids ...string) notionapi.RelationProperty {
	rel := make([]notionapi.Relation, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			rel = append(rel, notionapi.Relation{ID: notionapi.PageID(id)})
		}
	}
	return notionapi.RelationProperty{Relation: rel}
}

// Readers accept both the pointer types the SDK decodes into and the value
// types used when writing.

func plainText(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		switch {
		case r.PlainText != "":
			b.WriteString(r.PlainText)
		case r.Text != nil:
			b.WriteString(r.Text.Content)
		}
	}
	return b.String()
}

func readTitle(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.TitleProperty:
		return plainText(p.Title)
	case notionapi.TitleProperty:
		return plainText(p.Title)
	}
	return ""
}

func readText(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case notionapi.RichTextProperty:
		return plainText(p.RichText)
	}
	return ""
}

func readNumber(props notionapi.Properties, name string) float64 {
	switch p := props[name].(type) {
	case *notionapi.NumberProperty:
		return p.Number
	case notionapi.NumberProperty:
		return p.Number
	}
	return 0
}

// readMoney treats 0 as an empty field.
func readMoney(props notionapi.Properties, name string) *valueobject.Money {
	v := readNumber(props, name)
	if v == 0 {
		return nil
	}
	m := valueobject.USDFromDecimal(decimal.NewFromFloat(v))
	return &m
}

func readSelect(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.SelectProperty:
		return p.Select.Name
	case notionapi.SelectProperty:
		return p.Select.Name
	}
	return ""
}

func readDate(props notionapi.Properties, name string) time.Time {
	var obj *notionapi.DateObject
	switch p := props[name].(type) {
	case *notionapi.DateProperty:
		obj = p.Date
	case notionapi.DateProperty:
		obj = p.Date
	}
	if obj == nil || obj.Start == nil {
		return time.Time{}
	}
	t := time.Time(*obj.Start)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// readRelation returns the first linked page ID or "".
func readRelation(props notionapi.Properties, name string) string {
	var rel []notionapi.Relation
	switch p := props[name].(type) {
	case *notionapi.RelationProperty:
		rel = p.Relation
	case notionapi.RelationProperty:
		rel = p.Relation
	}
	if len(rel) == 0 {
		return ""
	}
	return string(rel[0].ID)
}

// parseInvoiceNumber reads the invoice title. Titles that are not a whole
// number count as unnumbered.
func parseInvoiceNumber(title string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(title), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
