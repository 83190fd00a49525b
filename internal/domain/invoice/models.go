// Package invoice gives the reconciliation core its view of the open
// invoice ledger. Invoices are created elsewhere; this package only reads
// them and applies payment mutations.
package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is an invoice's payment state.
type Status string

const (
	StatusUnpaid   Status = "unpaid"
	StatusPartial  Status = "partial"
	StatusPaid     Status = "paid"
	StatusOverpaid Status = "overpaid"
)

// Invoice is a ledger entry a payment can be reconciled against.
// While status is unpaid, partial or paid: AmountPaid + OutstandingBalance
// equals AmountDue. When overpaid: OutstandingBalance is zero and
// OverpaidAmount holds the cumulative excess.
type Invoice struct {
	ID                 uuid.UUID       `json:"id"`
	ReferenceNumber    string          `json:"referenceNumber"`
	AccountID          uuid.UUID       `json:"accountId"`
	AccountFirstName   string          `json:"accountFirstName"`
	AccountLastName    string          `json:"accountLastName"`
	AmountDue          decimal.Decimal `json:"amountDue"`
	AmountPaid         decimal.Decimal `json:"amountPaid"`
	OutstandingBalance decimal.Decimal `json:"outstandingBalance"`
	OverpaidAmount     decimal.Decimal `json:"overpaidAmount"`
	Status             Status          `json:"status"`
	DueDate            time.Time       `json:"dueDate"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Outstanding is the unpaid remainder of the invoice.
func (i Invoice) Outstanding() decimal.Decimal {
	return i.OutstandingBalance
}

// TransactionRecord is the immutable audit entry written once per
// processed payment. The (ReferenceNumber, Amount, PaymentDate) triple is
// the duplicate-detection key.
type TransactionRecord struct {
	ID              uuid.UUID       `json:"id"`
	ReferenceNumber string          `json:"referenceNumber"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     time.Time       `json:"paymentDate"`
	Description     string          `json:"description"`
	InvoiceID       *uuid.UUID      `json:"invoiceId,omitempty"`
	Status          string          `json:"status"`
	MatchedBy       string          `json:"matchedBy,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}
