package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeDuplicate, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeStoreUnavailable, http.StatusBadGateway},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeInvalidInput, NormalizeErrorCode("INVALID_INPUT"))
	assert.Equal(t, ErrCodeStoreUnavailable, NormalizeErrorCode("STORE_UNAVAILABLE"))
	assert.Equal(t, ErrCodeConflict, NormalizeErrorCode(ErrCodeConflict))
	assert.Equal(t, "SOMETHING_ELSE", NormalizeErrorCode("SOMETHING_ELSE"))
}

func TestErrorResponses(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "due_date", Message: "This field is required"},
	})

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"error": {
			"code": "ERR_VALIDATION",
			"message": "Request validation failed",
			"request_id": "req-1",
			"details": [{"field": "due_date", "message": "This field is required"}]
		}
	}`, string(body))

	body, err = json.Marshal(NewSuccessResponse(NextInvoiceNumberResponse{NextInvoiceNumber: 2000}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true, "data": {"next_invoice_number": 2000}}`, string(body))
}

func TestNumberText_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    NumberText
		wantErr bool
	}{
		{"number", `{"first_invoice_number": 2000}`, "2000", false},
		{"float", `{"first_invoice_number": 2000.0}`, "2000.0", false},
		{"string", `{"first_invoice_number": "2000"}`, "2000", false},
		{"text is kept for the service to reject", `{"first_invoice_number": "abc"}`, "abc", false},
		{"null", `{"first_invoice_number": null}`, "", false},
		{"bool", `{"first_invoice_number": true}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req GenerateInvoicesRequest
			err := json.Unmarshal([]byte(tt.input), &req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.FirstInvoiceNumber)
		})
	}
}

func TestGenerateInvoicesRequest_ToServiceRequest(t *testing.T) {
	req := GenerateInvoicesRequest{FirstInvoiceNumber: "2000", InvoiceDate: "2024-12-01", DueDate: "2025-01-31"}
	got := req.ToServiceRequest()
	assert.Equal(t, "2000", got.FirstInvoiceNumber)
	assert.Equal(t, "2024-12-01", got.InvoiceDate)
	assert.Equal(t, "2025-01-31", got.DueDate)
}
