package roster

import (
	"errors"
	"fmt"
	"strings"
)

// Row error codes
const (
	ErrCodeRequiredField   = "ERR_ROSTER_REQUIRED_FIELD"
	ErrCodeInvalidAmount   = "ERR_ROSTER_INVALID_AMOUNT"
	ErrCodeDuplicateInFile = "ERR_ROSTER_DUPLICATE_IN_FILE"
)

var (
	// ErrEmptyFile is returned when the roster file is empty
	ErrEmptyFile = errors.New("roster file is empty")

	// ErrInvalidEncoding is returned when a CSV roster is not UTF-8
	ErrInvalidEncoding = errors.New("roster file is not valid UTF-8")

	// ErrMissingHeader is returned when a CSV roster has no header row
	ErrMissingHeader = errors.New("roster CSV missing header row")

	// ErrNoMembers is returned when the roster lists nobody
	ErrNoMembers = errors.New("roster contains no members")

	// ErrUnsupportedFormat is returned for files that are neither YAML nor CSV
	ErrUnsupportedFormat = errors.New("unsupported roster format")
)

// RowError is a problem with one roster entry. Row is the 1-based entry
// number for YAML and the line number for CSV.
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ValidationError collects every row error of a roster, capped at maxErrors.
type ValidationError struct {
	Rows       []RowError
	TotalCount int
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		msgs = append(msgs, r.Error())
	}
	more := ""
	if e.TotalCount > len(e.Rows) {
		more = fmt.Sprintf(" (and %d more)", e.TotalCount-len(e.Rows))
	}
	return fmt.Sprintf("invalid roster: %s%s", strings.Join(msgs, "; "), more)
}

const maxErrors = 20

type errorCollection struct {
	rows  []RowError
	total int
}

func (ec *errorCollection) add(err RowError) {
	ec.total++
	if len(ec.rows) < maxErrors {
		ec.rows = append(ec.rows, err)
	}
}

func (ec *errorCollection) err() error {
	if ec.total == 0 {
		return nil
	}
	return &ValidationError{Rows: ec.rows, TotalCount: ec.total}
}
