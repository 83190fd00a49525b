// Package reconcile matches normalized payments against the open invoice
// ledger and applies the resulting balance transitions.
package reconcile

import (
	"context"
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/lvandyk/schoolpay/internal/domain/invoice"
)

// Strategy names, recorded on every match so operators can see how a
// payment found its invoice.
const (
	StrategyExact        = "exact_reference"
	StrategyZeroPadded   = "zero_padded_reference"
	StrategyZeroTrimmed  = "zero_trimmed_reference"
	StrategyContains     = "reference_contains"
	StrategyPayerName    = "payer_name"
	minContainsRefLength = 3
)

// Finder is the ledger lookup surface the cascade needs.
type Finder interface {
	FindOpenByReference(ctx context.Context, ref string) ([]invoice.Invoice, error)
	FindOpenByReferenceContains(ctx context.Context, ref string) ([]invoice.Invoice, error)
	FindOpenByPayerName(ctx context.Context, name string) ([]invoice.Invoice, error)
}

// Match is a successful cascade hit. MatchedByName flags the riskier
// name-based fallback so its output can be reviewed rather than trusted.
type Match struct {
	Invoice       invoice.Invoice
	Strategy      string
	MatchedByName bool
}

// Cascade tries matching strategies in order of decreasing precision.
type Cascade struct {
	ledger Finder
}

// NewCascade creates a cascade over the given ledger.
func NewCascade(ledger Finder) *Cascade {
	return &Cascade{ledger: ledger}
}

var structuredSplitRe = regexp.MustCompile(`^([A-Za-z]*)(\d+)$`)

// Match runs the cascade for one extracted reference. A nil result with a
// nil error means no strategy matched; the payment goes to manual review.
func (c *Cascade) Match(ctx context.Context, ref string) (*Match, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	// 1. Exact, case-insensitive.
	if m, err := c.byReference(ctx, ref, StrategyExact); m != nil || err != nil {
		return m, err
	}

	// 2. Zero-pad short digit runs: HAR20 is usually HAR020 in the ledger.
	if padded := zeroPad(ref); padded != ref {
		if m, err := c.byReference(ctx, padded, StrategyZeroPadded); m != nil || err != nil {
			return m, err
		}
	}

	// 3. Zero-trim: the payer typed HAR020 for a ledger entry HAR20.
	if trimmed := zeroTrim(ref); trimmed != ref {
		if m, err := c.byReference(ctx, trimmed, StrategyZeroTrimmed); m != nil || err != nil {
			return m, err
		}
	}

	// 4. Substring containment, only once exact forms are exhausted.
	if len(ref) >= minContainsRefLength {
		invoices, err := c.ledger.FindOpenByReferenceContains(ctx, ref)
		if err != nil {
			return nil, err
		}
		if len(invoices) > 0 {
			return &Match{Invoice: invoices[0], Strategy: StrategyContains}, nil
		}
	}

	// 5. Payer-name fallback, alphabetic references only.
	if isNameLike(ref) {
		return c.byPayerName(ctx, ref)
	}
	return nil, nil
}

func (c *Cascade) byReference(ctx context.Context, ref, strategy string) (*Match, error) {
	invoices, err := c.ledger.FindOpenByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	return &Match{Invoice: invoices[0], Strategy: strategy}, nil
}

// byPayerName matches against account holder names and ranks candidates by
// fuzzy distance to the extracted name, closest first.
func (c *Cascade) byPayerName(ctx context.Context, name string) (*Match, error) {
	invoices, err := c.ledger.FindOpenByPayerName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}

	// The ILIKE filter is the real gate; ranking only breaks ties between
	// candidates. When no candidate ranks, the oldest due date wins, the
	// same order every other strategy uses.
	best := -1
	bestDistance := 0
	for i, inv := range invoices {
		full := inv.AccountFirstName + " " + inv.AccountLastName
		rank := fuzzy.RankMatchNormalizedFold(name, full)
		if rank < 0 {
			continue
		}
		if best < 0 || rank < bestDistance {
			best = i
			bestDistance = rank
		}
	}
	if best < 0 {
		best = 0
	}
	return &Match{Invoice: invoices[best], Strategy: StrategyPayerName, MatchedByName: true}, nil
}

// zeroPad left-pads a short digit run to three digits: HAR20 to HAR020.
func zeroPad(ref string) string {
	m := structuredSplitRe.FindStringSubmatch(ref)
	if m == nil || m[1] == "" || len(m[2]) >= 3 {
		return ref
	}
	return m[1] + strings.Repeat("0", 3-len(m[2])) + m[2]
}

// zeroTrim strips leading zeros from the digit run: HAR020 to HAR20.
func zeroTrim(ref string) string {
	m := structuredSplitRe.FindStringSubmatch(ref)
	if m == nil {
		return ref
	}
	trimmed := strings.TrimLeft(m[2], "0")
	if trimmed == "" || trimmed == m[2] {
		return ref
	}
	return m[1] + trimmed
}

// isNameLike reports whether the reference looks like a person's name:
// letters and spaces only, longer than three characters.
func isNameLike(ref string) bool {
	if len(ref) <= 3 {
		return false
	}
	for _, r := range ref {
		if !isLetter(r) && r != ' ' {
			return false
		}
	}
	return true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
