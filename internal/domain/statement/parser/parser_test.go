package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV_DelimiterDetection(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		delimiter rune
	}{
		{
			name:      "semicolon",
			input:     "Date;Reference;Amount\n01/02/2026;ABC123;500.00\n",
			delimiter: ';',
		},
		{
			name:      "comma",
			input:     "Date,Reference,Amount\n01/02/2026,ABC123,500.00\n",
			delimiter: ',',
		},
		{
			name:      "tab",
			input:     "Date\tReference\tAmount\n01/02/2026\tABC123\t500.00\n",
			delimiter: '\t',
		},
		{
			name:      "pipe",
			input:     "Date|Reference|Amount\n01/02/2026|ABC123|500.00\n",
			delimiter: '|',
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseCSV([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.delimiter, table.Delimiter)
			assert.Equal(t, []string{"Date", "Reference", "Amount"}, table.Headers)
			require.Len(t, table.Rows, 1)
			assert.Equal(t, "ABC123", table.Rows[0].Get("Reference"))
		})
	}
}

func TestParseCSV_StripsBOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Date,Amount\n01/02/2026,100\n")...)
	table, err := ParseCSV(input)
	require.NoError(t, err)
	assert.Equal(t, "Date", table.Headers[0])
}

func TestParseCSV_Latin1Fallback(t *testing.T) {
	// 0xE9 is é in latin-1 but invalid UTF-8 on its own.
	input := []byte("Date,Payee\n01/02/2026,Ren\xe9 Smith\n")
	table, err := ParseCSV(input)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "René Smith", table.Rows[0].Get("Payee"))
}

func TestParseCSV_RaggedRows(t *testing.T) {
	input := "Date,Reference,Amount\n01/02/2026,ABC123,500.00,extra\n02/02/2026,DEF456\n"
	table, err := ParseCSV([]byte(input))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "extra", table.Rows[0].Values["column_3"])
	assert.Empty(t, table.Rows[1].Get("Amount"))
}

func TestParseCSV_QuotedFields(t *testing.T) {
	input := "Reference,Description\nABC123,\"Fees, Term 1\"\n"
	table, err := ParseCSV([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, "Fees, Term 1", table.Rows[0].Get("Description"))
}

func TestParseCSV_EmptyFile(t *testing.T) {
	_, err := ParseCSV([]byte("  \n  \n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestParseCSV_RowNumbersAreOneBased(t *testing.T) {
	input := "Reference\nA1\nA2\n"
	table, err := ParseCSV([]byte(input))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, table.Rows[0].Number)
	assert.Equal(t, 3, table.Rows[1].Number)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Date", "Reference", "Amount"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"01/02/2026", "HAR045", "2500.00"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"02/02/2026", "MOK112", "1800.50"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := ParseXLSX(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Reference", "Amount"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "HAR045", table.Rows[0].Get("Reference"))
	assert.Equal(t, "1800.50", table.Rows[1].Get("Amount"))
}

func TestParseXLSX_PrefersTransactionsSheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), "Summary"))
	_, err := f.NewSheet("Transactions")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Summary", "A1", &[]any{"Totals"}))
	require.NoError(t, f.SetSheetRow("Transactions", "A1", &[]any{"Reference", "Amount"}))
	require.NoError(t, f.SetSheetRow("Transactions", "A2", &[]any{"STU900", "300"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := ParseXLSX(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"Reference", "Amount"}, table.Headers)
	require.Len(t, table.Rows, 1)
}

func TestParseXLSX_Malformed(t *testing.T) {
	_, err := ParseXLSX([]byte("not a zip archive"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestParsePDF_Malformed(t *testing.T) {
	_, err := ParsePDF([]byte("%PDF-garbage"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestValidKind(t *testing.T) {
	assert.True(t, ValidKind(KindCSV))
	assert.True(t, ValidKind(KindXLSX))
	assert.True(t, ValidKind(KindPDF))
	assert.False(t, ValidKind(Kind("docx")))
}

func TestRawRow_IsEmpty(t *testing.T) {
	assert.True(t, RawRow{Fields: []string{"", "  ", "\t"}}.IsEmpty())
	assert.False(t, RawRow{Fields: []string{"", "x"}}.IsEmpty())
}

func TestTable_SampleRows(t *testing.T) {
	table := &Table{Rows: []RawRow{
		{Fields: []string{"a"}},
		{Fields: []string{"b"}},
	}}
	assert.Len(t, table.SampleRows(5), 2)
	assert.Len(t, table.SampleRows(1), 1)
}
