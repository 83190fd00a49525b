package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX decodes an Excel statement export into a Table. Only the most
// transaction-like sheet is read; banks tend to put summary pages first.
func ParseXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	defer f.Close()

	sheetName := findTransactionSheet(f)
	if sheetName == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedInput)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %s: %v", ErrMalformedInput, sheetName, err)
	}

	headerIdx := -1
	for i, row := range rows {
		if rowHasContent(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: sheet %s has no header row", ErrMalformedInput, sheetName)
	}

	headers := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		headers[i] = strings.TrimSpace(h)
	}

	table := &Table{Headers: headers}
	for i := headerIdx + 1; i < len(rows); i++ {
		table.Rows = append(table.Rows, buildRow(headers, rows[i], i+1))
	}
	return table, nil
}

// findTransactionSheet prefers sheets with transaction-related names and
// falls back to the first sheet.
func findTransactionSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}

	preferred := []string{"transactions", "statement", "payments", "data", "sheet1"}
	for _, want := range preferred {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, want) {
				return sheet
			}
		}
	}
	return sheets[0]
}

func rowHasContent(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return true
		}
	}
	return false
}
