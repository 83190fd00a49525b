package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ParseCSV decodes a CSV statement into a Table. The delimiter is detected
// from the header line; the byte stream is normalized (BOM stripped, latin-1
// folded to UTF-8) before parsing. An unreadable stream fails with
// ErrMalformedInput and aborts the whole batch.
func ParseCSV(data []byte) (*Table, error) {
	data = normalizeBytes(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedInput)
	}

	headerLine := firstNonEmptyLine(data)
	delimiter := detectDelimiter(headerLine)
	if delimiter == 0 {
		return nil, fmt.Errorf("%w: could not detect a field delimiter", ErrMalformedInput)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	table := &Table{Headers: headers, Delimiter: delimiter}
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedInput, lineNum, err)
		}
		table.Rows = append(table.Rows, buildRow(headers, record, lineNum))
	}

	return table, nil
}

// buildRow maps a record onto the header names. Cells beyond the header
// width keep a positional key so nothing is silently lost.
func buildRow(headers, record []string, lineNum int) RawRow {
	values := make(map[string]string, len(record))
	for i, cell := range record {
		if i < len(headers) && headers[i] != "" {
			values[headers[i]] = cell
		} else {
			values[fmt.Sprintf("column_%d", i)] = cell
		}
	}
	return RawRow{Number: lineNum, Values: values, Fields: record}
}

func firstNonEmptyLine(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

// detectDelimiter picks the candidate occurring most often in the header line.
func detectDelimiter(line string) rune {
	best := rune(0)
	bestCount := 0
	for _, d := range []rune{';', '\t', ',', '|'} {
		if count := strings.Count(line, string(d)); count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best
}

func normalizeBytes(data []byte) []byte {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return data
	}
	return decodeLatin1(data)
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func decodeLatin1(data []byte) []byte {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}
