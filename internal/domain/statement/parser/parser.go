// Package parser decodes uploaded bank statements into raw tabular data.
// CSV and XLSX exports become a Table of named columns; PDF statements have
// no headers and are reconstructed into positioned lines instead.
package parser

import (
	"errors"
	"strings"
)

// Kind identifies the declared format of an uploaded statement.
type Kind string

const (
	KindCSV  Kind = "csv"
	KindXLSX Kind = "xlsx"
	KindPDF  Kind = "pdf"
)

// ErrMalformedInput indicates the file could not be decoded at all.
// It is fatal for the whole batch.
var ErrMalformedInput = errors.New("malformed statement input")

// ErrUnsupportedKind indicates an unknown statement kind was requested.
var ErrUnsupportedKind = errors.New("unsupported statement kind")

// ValidKind reports whether k names a supported statement format.
func ValidKind(k Kind) bool {
	switch k {
	case KindCSV, KindXLSX, KindPDF:
		return true
	}
	return false
}

// RawRow is one transaction source line: an ordered mapping of column name
// to raw string value. Rows are created per line and consumed immediately.
type RawRow struct {
	// Number is the 1-based line number in the source file, for diagnostics.
	Number int
	// Values maps column name to the raw cell value.
	Values map[string]string
	// Fields holds the raw cell values in column order.
	Fields []string
}

// Get returns the trimmed value for a column, or "" when absent.
func (r RawRow) Get(column string) string {
	return strings.TrimSpace(r.Values[column])
}

// IsEmpty reports whether every cell in the row is blank.
func (r RawRow) IsEmpty() bool {
	for _, v := range r.Fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Table is the decoded form of a CSV or XLSX statement.
type Table struct {
	Headers   []string
	Rows      []RawRow
	Delimiter rune
}

// SampleRows returns up to n data rows for mapping previews.
func (t *Table) SampleRows(n int) [][]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	samples := make([][]string, 0, n)
	for _, row := range t.Rows[:n] {
		samples = append(samples, row.Fields)
	}
	return samples
}
