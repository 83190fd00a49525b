// Package money provides fixed-point monetary arithmetic for invoice
// reconciliation. All school fee amounts are ZAR with two decimal places;
// every operation is rounded back to cents so repeated partial payments
// cannot accumulate floating-point drift.
package money

import (
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ZAR is the only currency the reconciliation core handles.
const ZAR = "ZAR"

// currencySymbols are stripped before numeric parsing. "R" is handled
// separately because it is also a letter.
var currencySymbols = []string{"ZAR", "R$", "$", "€", "£"}

// Round normalizes an amount to cents. Call after every arithmetic step.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Add returns a+b rounded to cents.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Add(b))
}

// Sub returns a-b rounded to cents.
func Sub(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Sub(b))
}

// Parse converts a raw statement amount into a positive decimal magnitude.
// It strips currency symbols, spaces and thousands separators, and folds a
// parenthesized value to its positive magnitude (directionality is carried
// by the column the value came from, not by its sign). Unparsable input
// yields zero; callers discard zero-amount rows rather than erroring.
func Parse(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}

	negativeWrapped := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	if negativeWrapped {
		s = strings.Trim(s, "()")
	}

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)
	// Leading "R" currency marker, e.g. "R2 500.00".
	if len(s) > 1 && (s[0] == 'R' || s[0] == 'r') && !unicode.IsLetter(rune(s[1])) {
		s = s[1:]
	}

	s = normalizeSeparators(s)
	if s == "" || s == "-" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return Round(d.Abs())
}

// normalizeSeparators removes spaces and thousands separators, leaving a
// plain decimal string. A comma followed by exactly two digits at the end
// is treated as a decimal comma ("1 234,56"); any other comma is a
// thousands separator.
func normalizeSeparators(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if idx := strings.LastIndex(s, ","); idx != -1 {
		after := s[idx+1:]
		if len(after) <= 2 && allDigits(after) {
			// Decimal comma ("1 234,56" or European "1.234,56"): everything
			// before it is the integer part.
			intPart := strings.NewReplacer(",", "", ".", "").Replace(s[:idx])
			s = intPart + "." + after
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	return cleaned
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// Display formats an amount for operator-facing output, e.g. "R2,500.00".
func Display(d decimal.Decimal) string {
	cents := Round(d).Shift(2).IntPart()
	return money.New(cents, ZAR).Display()
}

// Cents returns the amount in integer cents.
func Cents(d decimal.Decimal) int64 {
	return Round(d).Shift(2).IntPart()
}

// FromCents builds a decimal amount from integer cents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
