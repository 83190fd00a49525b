package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvandyk/schoolpay/internal/domain/invoice"
	"github.com/lvandyk/schoolpay/internal/domain/statement/normalizer"
)

func testEngine(ledger *fakeLedger) *Engine {
	return NewEngine(ledger, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func txn(ref, amount string, date time.Time) normalizer.Transaction {
	return normalizer.Transaction{
		Reference:   ref,
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Description: "EFT " + ref,
	}
}

var paymentDate = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

func TestEngine_ExactPaymentMarksPaid(t *testing.T) {
	inv := openInvoice("HAR149", "John", "Harmse", "2500", dueDate)
	ledger := &fakeLedger{invoices: []*invoice.Invoice{inv}}

	result := testEngine(ledger).Process(context.Background(),
		[]normalizer.Transaction{txn("HAR149", "2500.00", paymentDate)})

	require.Len(t, result.Matched, 1)
	assert.Equal(t, 1, result.Total())

	assert.Equal(t, invoice.StatusPaid, inv.Status)
	assert.True(t, inv.AmountPaid.Equal(decimal.RequireFromString("2500")))
	assert.True(t, inv.OutstandingBalance.IsZero())
	assert.True(t, inv.OverpaidAmount.IsZero())

	outcome := result.Matched[0]
	assert.Equal(t, StrategyExact, outcome.Strategy)
	assert.True(t, outcome.BalanceBefore.Equal(decimal.RequireFromString("2500")))
	assert.True(t, outcome.BalanceAfter.IsZero())
}

func TestEngine_OverpaymentAccumulatesAgainstTotalDue(t *testing.T) {
	inv := openInvoice("HAR149", "John", "Harmse", "2500", dueDate)
	ledger := &fakeLedger{invoices: []*invoice.Invoice{inv}}

	result := testEngine(ledger).Process(context.Background(),
		[]normalizer.Transaction{txn("HAR149", "3000.00", paymentDate)})

	require.Len(t, result.Overpaid, 1)
	assert.Equal(t, invoice.StatusOverpaid, inv.Status)
	assert.True(t, inv.AmountPaid.Equal(decimal.RequireFromString("3000")))
	assert.True(t, inv.OutstandingBalance.IsZero())
	assert.True(t, inv.OverpaidAmount.Equal(decimal.RequireFromString("500")), inv.OverpaidAmount.String())
}

func TestEngine_PartialThenPaid(t *testing.T) {
	inv := openInvoice("HAR149", "John", "Harmse", "2500", dueDate)
	ledger := &fakeLedger{invoices: []*invoice.Invoice{inv}}
	engine := testEngine(ledger)

	first := engine.Process(context.Background(),
		[]normalizer.Transaction{txn("HAR149", "1000.00", paymentDate)})
	require.Len(t, first.Partial, 1)
	assert.Equal(t, invoice.StatusPartial, inv.Status)
	assert.True(t, inv.AmountPaid.Equal(decimal.RequireFromString("1000")))
	assert.True(t, inv.OutstandingBalance.Equal(decimal.RequireFromString("1500")))

	second := engine.Process(context.Background(),
		[]normalizer.Transaction{txn("HAR149", "1500.00", paymentDate.AddDate(0, 0, 3))})
	require.Len(t, second.Matched, 1)
	assert.Equal(t, invoice.StatusPaid, inv.Status)
	assert.True(t, inv.AmountPaid.Equal(decimal.RequireFromString("2500")))
	assert.True(t, inv.OutstandingBalance.IsZero())
}

func TestEngine_ZeroPaddedReferenceMatch(t *testing.T) {
	inv := openInvoice("HAR020", "John", "Harmse", "800", dueDate)
	ledger := &fakeLedger{invoices: []*invoice.Invoice{inv}}

	result := testEngine(ledger).Process(context.Background(),
		[]normalizer.Transaction{txn("HAR20", "800.00", paymentDate)})

	require.Len(t, result.Matched, 1)
	assert.Equal(t, StrategyZeroPadded, result.Matched[0].Strategy)
	assert.Equal(t, invoice.StatusPaid, inv.Status)
}

func TestEngine_ReprocessingIsIdempotent(t *testing.T) {
	inv := openInvoice("HAR149", "John", "Harmse", "2500", dueDate)
	ledger := &fakeLedger{invoices: []*invoice.Invoice{inv}}
	engine := testEngine(ledger)

	batch := []normalizer.Transaction{
		txn("HAR149", "1000.00", paymentDate),
		txn("UNKNOWN99", "300.00", paymentDate),
	}

	first := engine.Process(context.Background(), batch)
	require.Len(t, first.Partial, 1)
	require.Len(t, first.Unmatched, 1)

	paidAfterFirst := inv.AmountPaid
	recordsAfterFirst := len(ledger.records)

	second := engine.Process(context.Background(), batch)
	assert.Len(t, second.Duplicates, 2)
	assert.Equal(t, 0, len(second.Matched)+len(second.Partial)+len(second.Overpaid))

	// No ledger mutation on the second run.
	assert.True(t, inv.AmountPaid.Equal(paidAfterFirst))
	assert.Equal(t, recordsAfterFirst, len(ledger.records))
}

func TestEngine_UnmatchedIsRecordedForReview(t *testing.T) {
	ledger := &fakeLedger{}

	result := testEngine(ledger).Process(context.Background(),
		[]normalizer.Transaction{txn("ZZZ999", "100.00", paymentDate)})

	require.Len(t, result.Unmatched, 1)
	require.Len(t, ledger.records, 1)
	assert.Equal(t, "unmatched", ledger.records[0].Status)
	assert.Nil(t, ledger.records[0].InvoiceID)
}

func TestEngine_NameMatchIsFlagged(t *testing.T) {
	inv := openInvoice("STU900", "Thandi", "Mokoena", "1800", dueDate)
	ledger := &fakeLedger{invoices: []*invoice.Invoice{inv}}

	result := testEngine(ledger).Process(context.Background(),
		[]normalizer.Transaction{txn("Thandi Mokoena", "1800.00", paymentDate)})

	require.Len(t, result.Matched, 1)
	assert.True(t, result.Matched[0].MatchedByName)
	assert.Equal(t, StrategyPayerName, result.Matched[0].Strategy)
}

func TestEngine_PersistenceFailureGoesToErrorsAndBatchContinues(t *testing.T) {
	first := openInvoice("HAR149", "John", "Harmse", "2500", dueDate)
	second := openInvoice("MOK112", "Thandi", "Mokoena", "1800", dueDate)
	ledger := &fakeLedger{invoices: []*invoice.Invoice{first, second}, failApply: true}
	engine := testEngine(ledger)

	result := engine.Process(context.Background(), []normalizer.Transaction{
		txn("HAR149", "2500.00", paymentDate),
		txn("MOK112", "1800.00", paymentDate),
	})

	assert.Len(t, result.Errors, 2)
	assert.NotEmpty(t, result.Errors[0].Error)
	assert.Equal(t, invoice.StatusUnpaid, first.Status)
}

func TestEngine_BalanceInvariantHoldsUnderRandomPayments(t *testing.T) {
	gofakeit.Seed(11)

	inv := openInvoice("HAR149", gofakeit.FirstName(), gofakeit.LastName(), "5000", dueDate)
	ledger := &fakeLedger{invoices: []*invoice.Invoice{inv}}
	engine := testEngine(ledger)

	var txns []normalizer.Transaction
	for i := 0; i < 8; i++ {
		amount := decimal.NewFromFloat(gofakeit.Float64Range(1, 1500)).Round(2)
		txns = append(txns, normalizer.Transaction{
			Reference:   "HAR149",
			Amount:      amount,
			Date:        paymentDate.AddDate(0, 0, i),
			Description: gofakeit.Sentence(3),
		})
	}

	engine.Process(context.Background(), txns)

	if inv.Status == invoice.StatusOverpaid {
		assert.True(t, inv.OutstandingBalance.IsZero())
		assert.True(t, inv.OverpaidAmount.Equal(inv.AmountPaid.Sub(inv.AmountDue)))
	} else {
		sum := inv.AmountPaid.Add(inv.OutstandingBalance)
		assert.True(t, sum.Equal(inv.AmountDue),
			"amountPaid %s + outstanding %s != amountDue %s",
			inv.AmountPaid, inv.OutstandingBalance, inv.AmountDue)
	}
}
