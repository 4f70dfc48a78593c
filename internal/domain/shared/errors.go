package shared

import "fmt"

// Error codes carried by DomainError. The HTTP layer maps each to a status.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInvalidState     = "INVALID_STATE"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// DomainError is an error meant for the operator: Message is shown as is.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError with the same code, so errors.Is(err,
// ErrInvalidInput) holds for every invalid-input error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError returns a DomainError.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// InvalidInput returns an INVALID_INPUT error with a formatted message.
func InvalidInput(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidInput, fmt.Sprintf(format, args...))
}

var (
	ErrNotFound      = NewDomainError(CodeNotFound, "Record not found")
	ErrAlreadyExists = NewDomainError(CodeAlreadyExists, "Record already exists")
	ErrInvalidInput  = NewDomainError(CodeInvalidInput, "Invalid input")
	ErrInvalidState  = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrUnavailable   = NewDomainError(CodeStoreUnavailable, "Record store did not accept the request")
)
