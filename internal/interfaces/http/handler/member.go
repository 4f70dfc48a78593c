package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/eyc/invoicing/internal/application/invoicing"
	"github.com/eyc/invoicing/internal/infrastructure/roster"
)

// MemberHandler serves the membership endpoints
type MemberHandler struct {
	BaseHandler
	service *invoicing.Service
}

// NewMemberHandler creates a new MemberHandler
func NewMemberHandler(service *invoicing.Service) *MemberHandler {
	return &MemberHandler{service: service}
}

// ExportLog downloads the membership log as CSV
//
// GET /members/export
func (h *MemberHandler) ExportLog(c *gin.Context) {
	result, err := h.service.ExportMembershipLog(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.File(c, result.FileName, result.ContentType, result.Body)
}

// Seed adds the members of an uploaded roster file (multipart field
// "file", .yaml or .csv). Names already in the store are skipped.
//
// POST /members/seed
func (h *MemberHandler) Seed(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "A roster file is required in the \"file\" field")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.BadRequest(c, "Cannot read the uploaded roster")
		return
	}
	defer f.Close()

	members, err := roster.Load(fh.Filename, f)
	if err != nil {
		var rowsErr *roster.ValidationError
		if errors.As(err, &rowsErr) {
			h.HandleError(c, err)
			return
		}
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SeedMembers(c.Request.Context(), members)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
