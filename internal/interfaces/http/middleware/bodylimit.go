package middleware

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eyc/invoicing/internal/interfaces/http/dto"
)

// BodyLimits caps request bodies. Roster uploads are multipart and get their
// own, larger cap; every other body is small JSON.
type BodyLimits struct {
	Default   int64
	Multipart int64
}

func (l BodyLimits) forRequest(r *http.Request) int64 {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" && l.Multipart > 0 {
		return l.Multipart
	}
	return l.Default
}

// BodyLimit rejects declared oversize bodies with 413 and cuts off
// undeclared ones at the limit.
func BodyLimit(limits BodyLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := limits.forRequest(c.Request)
		if limit <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeTooLarge, "Request body exceeds maximum allowed size", GetRequestID(c)))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
