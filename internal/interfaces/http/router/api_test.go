package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eyc/invoicing/internal/application/invoicing"
	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared/valueobject"
	"github.com/eyc/invoicing/internal/infrastructure/batch"
	"github.com/eyc/invoicing/internal/infrastructure/cache"
	"github.com/eyc/invoicing/internal/infrastructure/memstore"
	"github.com/eyc/invoicing/internal/interfaces/http/dto"
	"github.com/eyc/invoicing/internal/interfaces/http/handler"
	"github.com/eyc/invoicing/internal/interfaces/http/middleware"
	"github.com/eyc/invoicing/internal/interfaces/http/router"
)

type apiFixture struct {
	engine *gin.Engine
	store  *memstore.Store
}

func usd(v float64) *valueobject.Money {
	m := valueobject.USDFromFloat(v)
	return &m
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	store := memstore.New()
	regular := &membership.MemberType{ID: "type-regular", Name: "Regular"}
	require.NoError(t, store.Members().CreateRecords(context.Background(), []*membership.Member{
		{Name: "Alice", MemberType: regular, AnnualDues: usd(100), BuildingAssessment: usd(50)},
		{Name: "Bob", MemberType: regular},
	}))

	svc := invoicing.NewService(store, batch.NewExecutor(batch.Config{}, logger), logger)
	idem := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = idem.Close() })

	engine := gin.New()
	r := router.New(engine, router.WithWriteGuard(middleware.Idempotency(idem, time.Minute, logger)))
	r.Use(middleware.RequestID())
	r.Mount(router.InvoicingRoutes(router.Handlers{
		Invoice: handler.NewInvoiceHandler(svc),
		Member:  handler.NewMemberHandler(svc),
		System:  handler.NewSystemHandler("invoicing", "test", "memory", nil),
	})...).Setup()

	return &apiFixture{engine: engine, store: store}
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) generate(t *testing.T, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return f.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) dto.Response {
	t.Helper()
	resp := dto.Response{Data: data}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

const generateBody = `{"first_invoice_number": 2000, "invoice_date": "2024-12-01", "due_date": "2025-01-31"}`

func TestAPI_NextNumber(t *testing.T) {
	f := newAPI(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices/next-number", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var data dto.NextInvoiceNumberResponse
	resp := decode(t, w, &data)
	assert.True(t, resp.Success)
	assert.Equal(t, invoicing.DefaultFirstInvoiceNumber, data.NextInvoiceNumber)
}

func TestAPI_Generate(t *testing.T) {
	f := newAPI(t)

	w := f.generate(t, generateBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var summary invoicing.Summary
	decode(t, w, &summary)
	assert.Equal(t, 1, summary.InvoicesCreated)
	assert.Equal(t, 2, summary.LineItemsCreated)
	assert.Equal(t, "Created 1 invoices and 2 invoice line items.", summary.Message)

	// A second run finds Alice's open invoice and creates nothing.
	w = f.generate(t, generateBody)
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &summary)
	assert.Equal(t, 0, summary.InvoicesCreated)
}

func TestAPI_Generate_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    string
		message string
	}{
		{
			name: "missing dates",
			body: `{"first_invoice_number": "2000"}`,
			code: dto.ErrCodeValidation,
		},
		{
			name: "malformed date",
			body: `{"first_invoice_number": "2000", "invoice_date": "12/01/2024", "due_date": "2025-01-31"}`,
			code: dto.ErrCodeValidation,
		},
		{
			name:    "number is not a number",
			body:    `{"first_invoice_number": "abc", "invoice_date": "2024-12-01", "due_date": "2025-01-31"}`,
			code:    dto.ErrCodeInvalidInput,
			message: invoicing.MsgInvalidFirstInvoiceNumber,
		},
		{
			name:    "number left empty",
			body:    `{"first_invoice_number": "", "invoice_date": "2024-12-01", "due_date": "2025-01-31"}`,
			code:    dto.ErrCodeInvalidInput,
			message: invoicing.MsgInvalidFirstInvoiceNumber,
		},
		{
			name:    "number null",
			body:    `{"first_invoice_number": null, "invoice_date": "2024-12-01", "due_date": "2025-01-31"}`,
			code:    dto.ErrCodeInvalidInput,
			message: invoicing.MsgInvalidFirstInvoiceNumber,
		},
		{
			name:    "number missing",
			body:    `{"invoice_date": "2024-12-01", "due_date": "2025-01-31"}`,
			code:    dto.ErrCodeInvalidInput,
			message: invoicing.MsgInvalidFirstInvoiceNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPI(t)
			w := f.generate(t, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			resp := decode(t, w, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error.Message)
			}

			invoices, err := f.store.Invoices().ListAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, invoices)
		})
	}
}

func TestAPI_Generate_IdempotencyKey(t *testing.T) {
	f := newAPI(t)

	w := f.generate(t, generateBody, middleware.HeaderIdempotencyKey, "run-1")
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.generate(t, generateBody, middleware.HeaderIdempotencyKey, "run-1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeDuplicate, decode(t, w, nil).Error.Code)
}

func TestAPI_Export(t *testing.T) {
	f := newAPI(t)
	require.Equal(t, http.StatusCreated, f.generate(t, generateBody).Code)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/export?format=csv", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "2", w.Header().Get(handler.HeaderExportRows))
	assert.Equal(t, "1", w.Header().Get(handler.HeaderInvoicesClosed))
	assert.Empty(t, w.Header().Get(handler.HeaderExportWarning))

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, strings.Join(invoicing.ExportHeader, ",")+"\r\n"))
	assert.Contains(t, body, "2000,Alice,100,")
	assert.Contains(t, body, "2000,Alice,50,")

	open, err := f.store.Invoices().ListOpen(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)

	// Nothing is left to export.
	w = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get(handler.HeaderExportRows))
}

func TestAPI_Export_UnknownFormat(t *testing.T) {
	f := newAPI(t)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_DeleteAll(t *testing.T) {
	f := newAPI(t)
	require.Equal(t, http.StatusCreated, f.generate(t, generateBody).Code)

	w := f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/invoices", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/invoices?confirm=true", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data dto.DeleteAllResponse
	decode(t, w, &data)
	assert.Equal(t, 1, data.InvoicesDeleted)
	assert.Equal(t, 2, data.LineItemsDeleted)

	items, err := f.store.LineItems().ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAPI_MembershipLog(t *testing.T) {
	f := newAPI(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/members/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), strings.Join(invoicing.MembershipLogHeader, ","))
	assert.Contains(t, w.Body.String(), "Alice,Regular,100,50,")
}

func seedRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/members/seed", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAPI_Seed(t *testing.T) {
	f := newAPI(t)

	roster := "members:\n" +
		"  - name: Alice\n    type: Regular\n    annual_dues: \"100\"\n" +
		"  - name: Dora\n    type: Junior\n    annual_dues: \"120\"\n"
	w := f.do(seedRequest(t, "roster.yaml", roster))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result invoicing.SeedResult
	decode(t, w, &result)
	assert.Equal(t, invoicing.SeedResult{Created: 1, Skipped: 1}, result)

	w = f.do(seedRequest(t, "roster.txt", roster))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/members/seed", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_System(t *testing.T) {
	f := newAPI(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/system/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}
