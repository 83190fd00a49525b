// Package assembler turns reconstructed PDF statement lines into
// transactions. PDF statements carry no column headers, only a date, a
// free-text narrative, and right-aligned numeric columns, so assembly is
// positional: find the date, collect the numeric tokens in horizontal
// order, and pick the credit amount by a fixed decision table. Only
// inbound payments survive; the reconciler has no use for debit orders
// and bank charges.
package assembler

import (
	"regexp"
	"strings"
	"time"

	"github.com/cloudflare/ahocorasick"

	"github.com/lvandyk/schoolpay/internal/domain/statement/extractor"
	"github.com/lvandyk/schoolpay/internal/domain/statement/normalizer"
	"github.com/lvandyk/schoolpay/internal/domain/statement/parser"
	"github.com/lvandyk/schoolpay/pkg/money"
)

var (
	numericDateRe = regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}[/-]\d{2,4}$`)
	textualDateRe = regexp.MustCompile(`^(?i)\d{1,2} (?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]* \d{4}$`)

	// Currency-amount shape: optional symbol, optionally parenthesized,
	// either thousands-grouped digits or a plain run with a cents part.
	// A bare digit run without cents is a reference, not an amount.
	amountRe = regexp.MustCompile(`^\(?(?:R|\$|€|£)?\s?(?:\d{1,3}(?:[, ]\d{3})+(?:\.\d{2})?|\d+\.\d{2})\)?$`)

	structuredRefRe = regexp.MustCompile(`\b[A-Za-z]{2,4}\d{2,6}\b`)
)

// inboundVocabulary marks narratives describing incoming payments.
var inboundVocabulary = []string{
	"deposit", "payment", "transfer in", "eft in", "credit",
	"tuition", "received", "inward",
}

// outboundVocabulary always rejects a line, reference code or not.
var outboundVocabulary = []string{
	"debit order", "withdrawal", "atm", "transfer out",
	"card transaction", "bank charge",
}

var (
	inboundMatcher  = ahocorasick.NewStringMatcher(inboundVocabulary)
	outboundMatcher = ahocorasick.NewStringMatcher(outboundVocabulary)
)

// Assemble converts PDF lines into normalized transactions. Lines that
// cannot confidently be read as inbound payments are dropped; that is the
// expected fate of most lines on a bank statement.
func Assemble(lines []parser.Line, now time.Time) []normalizer.Transaction {
	var txns []normalizer.Transaction
	for _, line := range lines {
		if tx, ok := assembleLine(line, now); ok {
			txns = append(txns, tx)
		}
	}
	return txns
}

func assembleLine(line parser.Line, now time.Time) (normalizer.Transaction, bool) {
	lower := strings.ToLower(line.Text)
	if len(outboundMatcher.Match([]byte(lower))) > 0 {
		return normalizer.Transaction{}, false
	}

	hasRef := structuredRefRe.MatchString(line.Text)
	inbound := len(inboundMatcher.Match([]byte(lower))) > 0
	if !hasRef && !inbound {
		return normalizer.Transaction{}, false
	}

	dateStr := ""
	var amounts []string
	var narrative []string
	for i := 0; i < len(line.Tokens); i++ {
		token := line.Tokens[i]
		if dateStr == "" {
			if s, consumed := dateAt(line.Tokens, i); consumed > 0 {
				dateStr = s
				i += consumed - 1
				continue
			}
		}
		if amountRe.MatchString(token.Text) {
			amounts = append(amounts, token.Text)
			continue
		}
		narrative = append(narrative, token.Text)
	}

	credit, ok := pickCreditAmount(amounts, hasRef)
	if !ok {
		return normalizer.Transaction{}, false
	}

	amount := money.Parse(credit)
	if !amount.IsPositive() {
		return normalizer.Transaction{}, false
	}

	description := strings.Join(narrative, " ")
	ext := extractor.Extract("", description)
	date, defaulted := normalizer.ParseDate(dateStr, now)

	return normalizer.Transaction{
		Reference:      ext.Reference,
		Amount:         amount,
		Date:           date,
		Description:    description,
		ExtractionRule: ext.Rule,
		RowNumber:      line.Page,
		DateDefaulted:  defaulted,
	}, true
}

// pickCreditAmount applies the positional decision table to the numeric
// tokens of a line, already ordered left to right.
func pickCreditAmount(amounts []string, hasRef bool) (string, bool) {
	switch {
	case len(amounts) >= 3:
		// Running balance sits last; the credit is second from the right.
		return amounts[len(amounts)-2], true
	case len(amounts) == 2 && hasRef:
		return amounts[0], true
	default:
		// One numeric token is likely a balance carry-forward; two without
		// a reference code are too ambiguous to trust.
		return "", false
	}
}

// dateAt recognizes a date starting at token i and returns it with the
// number of tokens it spans. Textual forms may arrive whole ("2 Jan 2026")
// or split across three tokens by the glyph tokenizer.
func dateAt(tokens []parser.Token, i int) (string, int) {
	text := tokens[i].Text
	if numericDateRe.MatchString(text) || textualDateRe.MatchString(text) {
		return text, 1
	}
	if i+2 < len(tokens) {
		joined := text + " " + tokens[i+1].Text + " " + tokens[i+2].Text
		if textualDateRe.MatchString(joined) {
			return joined, 3
		}
	}
	return "", 0
}
