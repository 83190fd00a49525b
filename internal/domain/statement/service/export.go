package service

import (
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/lvandyk/schoolpay/internal/domain/reconcile"
)

// reviewRow is one line of the operator review export.
type reviewRow struct {
	Category      string `csv:"category"`
	Reference     string `csv:"reference"`
	Amount        string `csv:"amount"`
	Date          string `csv:"date"`
	Description   string `csv:"description"`
	Strategy      string `csv:"match_strategy"`
	MatchedByName bool   `csv:"matched_by_name"`
	InvoiceRef    string `csv:"invoice_reference"`
	BalanceBefore string `csv:"balance_before"`
	BalanceAfter  string `csv:"balance_after"`
	Error         string `csv:"error"`
}

// ExportReview renders the outcomes needing operator attention as CSV:
// everything unmatched, duplicated or errored, plus name-based matches
// which are accepted on weaker evidence than reference matches.
func ExportReview(result *reconcile.BatchResult) ([]byte, error) {
	var rows []reviewRow

	appendOutcomes := func(outcomes []reconcile.Outcome) {
		for _, o := range outcomes {
			if o.Category != reconcile.CategoryUnmatched &&
				o.Category != reconcile.CategoryDuplicate &&
				o.Category != reconcile.CategoryError &&
				!o.MatchedByName {
				continue
			}
			row := reviewRow{
				Category:      string(o.Category),
				Reference:     o.Transaction.Reference,
				Amount:        o.Transaction.Amount.StringFixed(2),
				Date:          o.Transaction.Date.Format("2006-01-02"),
				Description:   o.Transaction.Description,
				Strategy:      o.Strategy,
				MatchedByName: o.MatchedByName,
				BalanceBefore: o.BalanceBefore.StringFixed(2),
				BalanceAfter:  o.BalanceAfter.StringFixed(2),
				Error:         o.Error,
			}
			if o.Invoice != nil {
				row.InvoiceRef = o.Invoice.ReferenceNumber
			}
			rows = append(rows, row)
		}
	}

	appendOutcomes(result.Matched)
	appendOutcomes(result.Partial)
	appendOutcomes(result.Overpaid)
	appendOutcomes(result.Unmatched)
	appendOutcomes(result.Duplicates)
	appendOutcomes(result.Errors)

	data, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to render review export: %w", err)
	}
	return data, nil
}
