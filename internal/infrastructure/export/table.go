// Package export renders tabular exports to CSV and XLSX.
package export

import (
	"fmt"
	"io"
	"strings"
)

// Format names an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps user input to a Format. Empty input means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Table is a header plus rows of display strings. Numeric marks columns
// that hold raw numbers; writers that have typed cells use it.
type Table struct {
	Header  []string
	Rows    [][]string
	Numeric []bool
}

// IsNumeric reports whether column col holds numbers.
func (t *Table) IsNumeric(col int) bool {
	return col < len(t.Numeric) && t.Numeric[col]
}

// Writer renders a Table to a file format.
type Writer interface {
	Format() Format
	ContentType() string
	// FileName returns base with the format's extension.
	FileName(base string) string
	Write(w io.Writer, t *Table) error
}
