package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lvandyk/schoolpay/internal/domain/invoice"
	"github.com/lvandyk/schoolpay/internal/domain/statement/normalizer"
	"github.com/lvandyk/schoolpay/pkg/money"
)

// Category is the bucket a processed transaction lands in. Every
// transaction that reaches the engine ends up in exactly one.
type Category string

const (
	CategoryMatched   Category = "matched"
	CategoryPartial   Category = "partial"
	CategoryOverpaid  Category = "overpaid"
	CategoryUnmatched Category = "unmatched"
	CategoryDuplicate Category = "duplicate"
	CategoryError     Category = "error"
)

// Ledger is the persistence surface the engine drives.
type Ledger interface {
	Finder
	TransactionExists(ctx context.Context, ref string, amount decimal.Decimal, paymentDate time.Time) (bool, error)
	ApplyPayment(ctx context.Context, inv *invoice.Invoice, rec *invoice.TransactionRecord) error
	RecordTransaction(ctx context.Context, rec *invoice.TransactionRecord) error
}

// Outcome explains one transaction's classification fully enough that an
// operator never has to re-derive it.
type Outcome struct {
	Transaction   normalizer.Transaction `json:"transaction"`
	Category      Category               `json:"category"`
	Invoice       *invoice.Invoice       `json:"invoice,omitempty"`
	Strategy      string                 `json:"strategy,omitempty"`
	MatchedByName bool                   `json:"matchedByName,omitempty"`
	BalanceBefore decimal.Decimal        `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal        `json:"balanceAfter"`
	Error         string                 `json:"error,omitempty"`
}

// BatchResult groups outcomes into the six reporting buckets.
type BatchResult struct {
	Matched    []Outcome `json:"matched"`
	Partial    []Outcome `json:"partial"`
	Overpaid   []Outcome `json:"overpaid"`
	Unmatched  []Outcome `json:"unmatched"`
	Duplicates []Outcome `json:"duplicates"`
	Errors     []Outcome `json:"errors"`
}

// Total returns the number of processed transactions across all buckets.
func (r *BatchResult) Total() int {
	return len(r.Matched) + len(r.Partial) + len(r.Overpaid) +
		len(r.Unmatched) + len(r.Duplicates) + len(r.Errors)
}

func (r *BatchResult) add(o Outcome) {
	switch o.Category {
	case CategoryMatched:
		r.Matched = append(r.Matched, o)
	case CategoryPartial:
		r.Partial = append(r.Partial, o)
	case CategoryOverpaid:
		r.Overpaid = append(r.Overpaid, o)
	case CategoryUnmatched:
		r.Unmatched = append(r.Unmatched, o)
	case CategoryDuplicate:
		r.Duplicates = append(r.Duplicates, o)
	case CategoryError:
		r.Errors = append(r.Errors, o)
	}
}

// Engine runs the reconciliation state machine over a batch of
// transactions. Processing is sequential so two payments against the same
// invoice observe each other's balance updates.
type Engine struct {
	ledger  Ledger
	cascade *Cascade
	logger  *slog.Logger
}

// NewEngine creates an engine over the given ledger.
func NewEngine(ledger Ledger, logger *slog.Logger) *Engine {
	return &Engine{
		ledger:  ledger,
		cascade: NewCascade(ledger),
		logger:  logger,
	}
}

// Process reconciles each transaction in order. A persistence failure on
// one transaction is reported in the errors bucket and the batch continues.
func (e *Engine) Process(ctx context.Context, txns []normalizer.Transaction) *BatchResult {
	result := &BatchResult{}
	for _, tx := range txns {
		outcome := e.processOne(ctx, tx)
		result.add(outcome)

		e.logger.Info("transaction reconciled",
			slog.String("reference", tx.Reference),
			slog.String("amount", tx.Amount.String()),
			slog.String("category", string(outcome.Category)),
			slog.String("strategy", outcome.Strategy),
		)
	}
	return result
}

func (e *Engine) processOne(ctx context.Context, tx normalizer.Transaction) Outcome {
	outcome := Outcome{Transaction: tx}

	// Idempotency: re-uploading the same statement must be a no-op.
	exists, err := e.ledger.TransactionExists(ctx, tx.Reference, tx.Amount, tx.Date)
	if err != nil {
		return errorOutcome(outcome, err)
	}
	if exists {
		outcome.Category = CategoryDuplicate
		return outcome
	}

	match, err := e.cascade.Match(ctx, tx.Reference)
	if err != nil {
		return errorOutcome(outcome, err)
	}
	if match == nil {
		return e.recordUnmatched(ctx, outcome, tx)
	}

	inv := match.Invoice
	outcome.Strategy = match.Strategy
	outcome.MatchedByName = match.MatchedByName
	outcome.BalanceBefore = inv.OutstandingBalance
	outcome.Category = applyPayment(&inv, tx.Amount)
	outcome.BalanceAfter = inv.OutstandingBalance

	rec := &invoice.TransactionRecord{
		ReferenceNumber: tx.Reference,
		Amount:          tx.Amount,
		PaymentDate:     tx.Date,
		Description:     tx.Description,
		InvoiceID:       &inv.ID,
		Status:          string(outcome.Category),
		MatchedBy:       match.Strategy,
	}
	if err := e.ledger.ApplyPayment(ctx, &inv, rec); err != nil {
		return errorOutcome(outcome, err)
	}

	outcome.Invoice = &inv
	return outcome
}

// applyPayment computes the invoice's next state from one payment and
// returns the transaction's category.
func applyPayment(inv *invoice.Invoice, amount decimal.Decimal) Category {
	outstanding := inv.OutstandingBalance
	inv.AmountPaid = money.Add(inv.AmountPaid, amount)

	switch amount.Cmp(outstanding) {
	case 0:
		inv.Status = invoice.StatusPaid
		inv.OutstandingBalance = decimal.Zero
		inv.OverpaidAmount = decimal.Zero
		return CategoryMatched
	case 1:
		// Overpayment accumulates against the total due, so repeated
		// overpayments stay consistent.
		inv.Status = invoice.StatusOverpaid
		inv.OutstandingBalance = decimal.Zero
		inv.OverpaidAmount = money.Sub(inv.AmountPaid, inv.AmountDue)
		return CategoryOverpaid
	default:
		inv.Status = invoice.StatusPartial
		inv.OutstandingBalance = money.Sub(outstanding, amount)
		inv.OverpaidAmount = decimal.Zero
		return CategoryPartial
	}
}

func (e *Engine) recordUnmatched(ctx context.Context, outcome Outcome, tx normalizer.Transaction) Outcome {
	rec := &invoice.TransactionRecord{
		ReferenceNumber: tx.Reference,
		Amount:          tx.Amount,
		PaymentDate:     tx.Date,
		Description:     tx.Description,
		Status:          string(CategoryUnmatched),
	}
	if err := e.ledger.RecordTransaction(ctx, rec); err != nil {
		return errorOutcome(outcome, err)
	}
	outcome.Category = CategoryUnmatched
	return outcome
}

func errorOutcome(outcome Outcome, err error) Outcome {
	outcome.Category = CategoryError
	outcome.Error = err.Error()
	return outcome
}
