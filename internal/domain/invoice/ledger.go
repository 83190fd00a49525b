package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Pool is the subset of pgxpool.Pool the ledger needs.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Ledger reads open invoices and applies payment mutations in PostgreSQL.
type Ledger struct {
	db Pool
}

// NewLedger creates a ledger over the given pool.
func NewLedger(db Pool) *Ledger {
	return &Ledger{db: db}
}

const invoiceColumns = `i.id, i.reference_number, i.account_id, a.first_name, a.last_name,
	i.amount_due, i.amount_paid, i.outstanding_balance, i.overpaid_amount,
	i.status, i.due_date, i.created_at, i.updated_at`

const openInvoiceBase = `
	SELECT ` + invoiceColumns + `
	FROM invoices i
	JOIN accounts a ON a.id = i.account_id
	WHERE i.status IN ('unpaid', 'partial')`

// FindOpenByReference returns open invoices whose reference number equals
// ref, case-insensitively, oldest due date first.
func (l *Ledger) FindOpenByReference(ctx context.Context, ref string) ([]Invoice, error) {
	query := openInvoiceBase + ` AND lower(i.reference_number) = lower($1)
		ORDER BY i.due_date ASC`
	return l.queryInvoices(ctx, query, ref)
}

// FindOpenByReferenceContains returns open invoices whose reference number
// contains ref as a substring, case-insensitively.
func (l *Ledger) FindOpenByReferenceContains(ctx context.Context, ref string) ([]Invoice, error) {
	query := openInvoiceBase + ` AND i.reference_number ILIKE '%' || $1 || '%'
		ORDER BY i.due_date ASC`
	return l.queryInvoices(ctx, query, ref)
}

// FindOpenByPayerName returns open invoices whose account holder's first,
// last or full name contains the given name fragment.
func (l *Ledger) FindOpenByPayerName(ctx context.Context, name string) ([]Invoice, error) {
	query := openInvoiceBase + ` AND (
			a.first_name ILIKE '%' || $1 || '%'
			OR a.last_name ILIKE '%' || $1 || '%'
			OR (a.first_name || ' ' || a.last_name) ILIKE '%' || $1 || '%'
		)
		ORDER BY i.due_date ASC`
	return l.queryInvoices(ctx, query, name)
}

// TransactionExists reports whether a payment with this duplicate key has
// already been recorded.
func (l *Ledger) TransactionExists(ctx context.Context, ref string, amount decimal.Decimal, paymentDate time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payment_transactions
			WHERE reference_number = $1 AND amount = $2 AND payment_date = $3
		)`

	var exists bool
	if err := l.db.QueryRow(ctx, query, ref, amount, paymentDate).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check for duplicate transaction: %w", err)
	}
	return exists, nil
}

// ApplyPayment atomically writes the invoice's new balances and inserts the
// payment record. Either both land or neither does.
func (l *Ledger) ApplyPayment(ctx context.Context, inv *Invoice, rec *TransactionRecord) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reconcile transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	updateQuery := `
		UPDATE invoices
		SET amount_paid = $2, outstanding_balance = $3, overpaid_amount = $4,
			status = $5, updated_at = now()
		WHERE id = $1`

	result, err := tx.Exec(ctx, updateQuery,
		inv.ID, inv.AmountPaid, inv.OutstandingBalance, inv.OverpaidAmount, inv.Status)
	if err != nil {
		return fmt.Errorf("failed to update invoice balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("invoice %s not found during balance update", inv.ID)
	}

	if err := insertTransaction(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RecordTransaction inserts a payment record with no ledger mutation, used
// for unmatched payments kept for manual review.
func (l *Ledger) RecordTransaction(ctx context.Context, rec *TransactionRecord) error {
	return insertTransaction(ctx, l.db, rec)
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTransaction(ctx context.Context, q execQuerier, rec *TransactionRecord) error {
	query := `
		INSERT INTO payment_transactions (
			reference_number, amount, payment_date, description, invoice_id, status, matched_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := q.QueryRow(ctx, query,
		rec.ReferenceNumber,
		rec.Amount,
		rec.PaymentDate,
		rec.Description,
		rec.InvoiceID,
		rec.Status,
		nullableString(rec.MatchedBy),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment transaction: %w", err)
	}
	return nil
}

// DailyDigest counts recorded transactions per status since the given
// time, for the scheduled operator digest.
func (l *Ledger) DailyDigest(ctx context.Context, since time.Time) (map[string]int, error) {
	query := `
		SELECT status, count(*)
		FROM payment_transactions
		WHERE created_at >= $1
		GROUP BY status`

	rows, err := l.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to build digest: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan digest row: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (l *Ledger) queryInvoices(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query open invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		err := rows.Scan(
			&inv.ID,
			&inv.ReferenceNumber,
			&inv.AccountID,
			&inv.AccountFirstName,
			&inv.AccountLastName,
			&inv.AmountDue,
			&inv.AmountPaid,
			&inv.OutstandingBalance,
			&inv.OverpaidAmount,
			&inv.Status,
			&inv.DueDate,
			&inv.CreatedAt,
			&inv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
