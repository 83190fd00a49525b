// Package normalizer converts raw statement rows into canonical
// transactions: positive decimal amounts, calendar dates, and a payer
// reference. It also filters out the noise rows every bank export
// carries, repeated headers, balance summaries, and blank lines.
package normalizer

import (
	"strings"
	"time"

	"github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"

	"github.com/lvandyk/schoolpay/internal/domain/statement/extractor"
	"github.com/lvandyk/schoolpay/internal/domain/statement/parser"
	"github.com/lvandyk/schoolpay/internal/domain/statement/profile"
	"github.com/lvandyk/schoolpay/pkg/money"
)

// Transaction is the normalized unit of work flowing into reconciliation.
// Amount is always a positive magnitude; direction is established by which
// column it came from.
type Transaction struct {
	Reference      string          `json:"reference"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description"`
	ExtractionRule string          `json:"extractionRule,omitempty"`

	// RowNumber and RawFields keep provenance for diagnostics.
	RowNumber int      `json:"rowNumber"`
	RawFields []string `json:"rawFields,omitempty"`

	// DateDefaulted is set when the source date was unparsable and the
	// processing time was substituted.
	DateDefaulted bool `json:"dateDefaulted,omitempty"`
}

// dateFormats are tried in order after native ISO parsing fails.
// Day-first forms match the deployment locale.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"2-1-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02.01.2006",
}

// headerVocabulary identifies repeated header rows mid-file. A row with
// three or more cells from this set is a header, not a transaction.
var headerVocabulary = map[string]bool{
	"date": true, "transaction date": true, "txn date": true, "posting date": true,
	"reference": true, "ref": true, "reference number": true,
	"amount": true, "value": true,
	"description": true, "narrative": true, "details": true, "particulars": true,
	"debit": true, "credit": true, "money in": true, "money out": true,
	"balance": true, "running balance": true,
}

// summaryVocabulary marks balance carry-forward and summary rows.
var summaryVocabulary = []string{
	"balance", "total", "summary", "opening", "closing",
}

var summaryMatcher = ahocorasick.NewStringMatcher(summaryVocabulary)

// Normalizer turns raw rows into transactions using a confirmed mapping.
type Normalizer struct {
	mapping profile.ColumnMapping
}

// New creates a Normalizer for a validated mapping.
func New(mapping profile.ColumnMapping) *Normalizer {
	return &Normalizer{mapping: mapping}
}

// Normalize converts one raw row. The second return is false when the row
// holds no usable inbound payment: zero or missing amount, or a debit-only
// row in split-column mode. Such rows are excluded, not errors.
func (n *Normalizer) Normalize(row parser.RawRow, now time.Time) (Transaction, bool) {
	amount := n.amountFor(row)
	if !amount.IsPositive() {
		return Transaction{}, false
	}

	description := row.Get(n.mapping.Description)
	ext := extractor.Extract(row.Get(n.mapping.Reference), description)
	date, defaulted := ParseDate(row.Get(n.mapping.Date), now)

	return Transaction{
		Reference:      ext.Reference,
		Amount:         amount,
		Date:           date,
		Description:    description,
		ExtractionRule: ext.Rule,
		RowNumber:      row.Number,
		RawFields:      row.Fields,
		DateDefaulted:  defaulted,
	}, true
}

// amountFor reads the transaction magnitude. In split-column mode only the
// credit column counts; debits are outbound and never reconciled.
func (n *Normalizer) amountFor(row parser.RawRow) decimal.Decimal {
	if n.mapping.SplitMode() {
		return money.Parse(row.Get(n.mapping.Credit))
	}
	return money.Parse(row.Get(n.mapping.Amount))
}

// ParseDate parses a statement date, day-first. An unparsable date falls
// back to now so one bad cell never blocks a whole statement; the caller
// gets a flag instead.
func ParseDate(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return t, false
		}
	}
	return now, true
}

// ShouldSkipRow reports whether a row is statement noise: blank, a header
// row repeated mid-file, or a balance/summary line.
func ShouldSkipRow(row parser.RawRow) bool {
	if row.IsEmpty() {
		return true
	}

	headerHits := 0
	for _, field := range row.Fields {
		if headerVocabulary[normalizeCell(field)] {
			headerHits++
		}
	}
	if headerHits >= 3 {
		return true
	}

	joined := strings.ToLower(strings.Join(row.Fields, " "))
	return len(summaryMatcher.Match([]byte(joined))) > 0
}

func normalizeCell(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
