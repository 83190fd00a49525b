package assembler

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvandyk/schoolpay/internal/domain/statement/parser"
)

var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func line(texts ...string) parser.Line {
	tokens := make([]parser.Token, len(texts))
	x := 10.0
	for i, s := range texts {
		tokens[i] = parser.Token{Text: s, X: x}
		x += 100
	}
	return parser.Line{Page: 1, Y: 700, Text: joinTexts(texts), Tokens: tokens}
}

func joinTexts(texts []string) string {
	out := ""
	for i, s := range texts {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

func TestAssemble_ThreeNumericsTakesSecondToLast(t *testing.T) {
	// date, narrative, debit, credit, running balance
	lines := []parser.Line{
		line("15/01/2026", "EFT", "DEPOSIT", "HAR149", "100.00", "2500.00", "14200.00"),
	}

	txns := Assemble(lines, testNow)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("2500")), txns[0].Amount.String())
	assert.Equal(t, "HAR149", txns[0].Reference)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), txns[0].Date)
}

func TestAssemble_TwoNumericsWithReferenceTakesFirst(t *testing.T) {
	lines := []parser.Line{
		line("15/01/2026", "PAYMENT", "MOK112", "1800.50", "16000.50"),
	}

	txns := Assemble(lines, testNow)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("1800.5")))
	assert.Equal(t, "MOK112", txns[0].Reference)
}

func TestAssemble_AmountTokenShapes(t *testing.T) {
	// Amount columns arrive both thousands-grouped and as plain runs with
	// a cents part; a bare digit run without cents is a reference.
	tests := []struct {
		token    string
		isAmount bool
	}{
		{"2500.00", true},
		{"14200.00", true},
		{"1800.50", true},
		{"2,500.00", true},
		{"R2 500.00", true},
		{"800.00", true},
		{"(450.00)", true},
		{"1234567", false},
		{"HAR149", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.isAmount, amountRe.MatchString(tt.token))
		})
	}

	// An unseparated five-digit credit must survive end to end.
	lines := []parser.Line{
		line("15/01/2026", "PAYMENT", "MOK112", "18000.50", "160000.50"),
	}
	txns := Assemble(lines, testNow)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("18000.5")), txns[0].Amount.String())
}

func TestAssemble_RejectsAmbiguousLines(t *testing.T) {
	tests := []struct {
		name string
		line parser.Line
	}{
		{
			name: "two numerics without structured reference",
			line: line("15/01/2026", "DEPOSIT", "JOHN", "1800.50", "16000.50"),
		},
		{
			name: "single numeric is a balance carry forward",
			line: line("15/01/2026", "DEPOSIT", "HAR149", "14200.00"),
		},
		{
			name: "no reference and no inbound vocabulary",
			line: line("15/01/2026", "SOMETHING", "100.00", "200.00", "300.00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Assemble([]parser.Line{tt.line}, testNow))
		})
	}
}

func TestAssemble_OutboundVocabularyAlwaysRejects(t *testing.T) {
	// Reference code present, but the narrative is an outbound movement.
	lines := []parser.Line{
		line("15/01/2026", "DEBIT", "ORDER", "HAR149", "100.00", "2500.00", "14200.00"),
	}
	assert.Empty(t, Assemble(lines, testNow))
}

func TestAssemble_TextualDate(t *testing.T) {
	lines := []parser.Line{
		line("2", "Jan", "2026", "TUITION", "RECEIVED", "HAR045", "50.00", "900.00", "9000.00"),
	}

	txns := Assemble(lines, testNow)
	require.Len(t, txns, 1)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), txns[0].Date)
	assert.False(t, txns[0].DateDefaulted)
}

func TestAssemble_InboundVocabularyWithoutReference(t *testing.T) {
	// No structured code, but the narrative names an inbound payment and
	// three numerics make the credit position unambiguous.
	lines := []parser.Line{
		line("15/01/2026", "CASH", "DEPOSIT", "1234567", "100.00", "950.00", "8000.00"),
	}

	txns := Assemble(lines, testNow)
	require.Len(t, txns, 1)
	assert.Equal(t, "1234567", txns[0].Reference)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("950")))
}
