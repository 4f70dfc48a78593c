package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eyc/invoicing/internal/application/invoicing"
	"github.com/eyc/invoicing/internal/infrastructure/export"
	"github.com/eyc/invoicing/internal/infrastructure/logger"
	"github.com/eyc/invoicing/internal/interfaces/http/dto"
	"github.com/eyc/invoicing/internal/interfaces/http/middleware"
)

// Response headers of the invoice export
const (
	HeaderExportRows     = "X-Export-Rows"
	HeaderInvoicesClosed = "X-Invoices-Closed"
	HeaderArchiveKey     = "X-Archive-Key"
	// HeaderExportWarning is set when the file was produced but closing
	// the exported invoices failed part way.
	HeaderExportWarning = "X-Export-Warning"
)

// InvoiceHandler serves the invoicing run endpoints
type InvoiceHandler struct {
	BaseHandler
	service *invoicing.Service
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(service *invoicing.Service) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

// NextNumber suggests the first invoice number of the next run
//
// GET /invoices/next-number
func (h *InvoiceHandler) NextNumber(c *gin.Context) {
	next, err := h.service.NextInvoiceNumber(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NextInvoiceNumberResponse{NextInvoiceNumber: next})
}

// Generate creates draft invoices and their line items for every billable
// member without an open invoice
//
// POST /invoices/generate
func (h *InvoiceHandler) Generate(c *gin.Context) {
	var req dto.GenerateInvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	summary, err := h.service.Generate(c.Request.Context(), req.ToServiceRequest())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, summary)
}

// Export downloads the open line items and closes the exported invoices
//
// POST /invoices/export?format=csv|xlsx
func (h *InvoiceHandler) Export(c *gin.Context) {
	var q dto.ExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	format, err := export.ParseFormat(q.Format)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Export(c.Request.Context(), format)
	if err != nil && result == nil {
		h.HandleError(c, err)
		return
	}
	if err != nil {
		// The rows are already rendered; hand them over and say which
		// invoices may still be open.
		logger.GetGinLogger(c).Warn("Export delivered with close failure", zap.Error(err))
		c.Header(HeaderExportWarning, err.Error())
	}

	c.Header(HeaderExportRows, strconv.Itoa(result.Rows))
	c.Header(HeaderInvoicesClosed, strconv.Itoa(result.InvoicesClosed))
	if result.ArchiveKey != "" {
		c.Header(HeaderArchiveKey, result.ArchiveKey)
	}
	h.File(c, result.FileName, result.ContentType, result.Body)
}

// DeleteAll removes every invoice and line item. Requires ?confirm=true.
//
// DELETE /invoices?confirm=true
func (h *InvoiceHandler) DeleteAll(c *gin.Context) {
	var q dto.DeleteAllQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.service.DeleteAllInvoices(c.Request.Context(), q.Confirm)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewDeleteAllResponse(result))
}
