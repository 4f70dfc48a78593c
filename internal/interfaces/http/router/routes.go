package router

import (
	"github.com/eyc/invoicing/internal/interfaces/http/handler"
)

// Handlers are the endpoint handlers of the invoicing API.
type Handlers struct {
	Invoice *handler.InvoiceHandler
	Member  *handler.MemberHandler
	System  *handler.SystemHandler
}

// InvoicingRoutes builds the domain groups of the API.
func InvoicingRoutes(h Handlers) []*DomainGroup {
	invoices := NewDomainGroup("invoicing", "/invoices").
		GET("/next-number", h.Invoice.NextNumber).
		POST("/generate", h.Invoice.Generate).
		POST("/export", h.Invoice.Export).
		DELETE("", h.Invoice.DeleteAll)

	members := NewDomainGroup("membership", "/members").
		GET("/export", h.Member.ExportLog).
		POST("/seed", h.Member.Seed)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo).
		GET("/ping", h.System.Ping)

	return []*DomainGroup{invoices, members, system}
}
