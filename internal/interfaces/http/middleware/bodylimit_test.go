package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limits := BodyLimits{Default: 16, Multipart: 64}

	readAll := func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusBadRequest, "truncated")
			return
		}
		c.String(http.StatusOK, "ok")
	}

	tests := []struct {
		name        string
		contentType string
		size        int
		streaming   bool
		want        int
	}{
		{name: "json within limit", contentType: "application/json", size: 16, want: http.StatusOK},
		{name: "json over limit", contentType: "application/json", size: 17, want: http.StatusRequestEntityTooLarge},
		{name: "upload uses its own limit", contentType: "multipart/form-data; boundary=x", size: 64, want: http.StatusOK},
		{name: "upload over its limit", contentType: "multipart/form-data; boundary=x", size: 65, want: http.StatusRequestEntityTooLarge},
		{name: "undeclared length is cut off", contentType: "application/json", size: 40, streaming: true, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(BodyLimit(limits))
			r.POST("/api/v1/invoices/generate", readAll)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/generate", strings.NewReader(strings.Repeat("x", tt.size)))
			req.Header.Set("Content-Type", tt.contentType)
			if tt.streaming {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusRequestEntityTooLarge {
				assert.Contains(t, w.Body.String(), "ERR_REQUEST_TOO_LARGE")
			}
		})
	}
}

func TestBodyLimit_NoBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodyLimit(BodyLimits{Default: 1}))
	r.GET("/api/v1/invoices/next-number", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/next-number", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
