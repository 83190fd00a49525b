// Package profile defines column-role mappings for statement uploads and
// persists named mapping profiles so a confirmed layout can be reused
// across uploads of the same bank's export format.
package profile

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidMapping indicates a mapping that cannot drive ingestion.
var ErrInvalidMapping = errors.New("invalid column mapping")

// ErrProfileNotFound indicates no stored profile matched the given name.
var ErrProfileNotFound = errors.New("mapping profile not found")

// ErrNotOwner indicates a delete attempt by someone other than the creator.
var ErrNotOwner = errors.New("profile can only be deleted by its creator")

// ColumnMapping assigns statement columns to semantic roles. Amount mode
// and separate debit/credit mode are mutually exclusive.
type ColumnMapping struct {
	Reference   string `json:"reference"`
	Amount      string `json:"amount,omitempty"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Debit       string `json:"debit,omitempty"`
	Credit      string `json:"credit,omitempty"`
	Balance     string `json:"balance,omitempty"`
}

// Validate checks the mapping once at construction time.
func (m ColumnMapping) Validate() error {
	if m.Reference == "" {
		return fmt.Errorf("%w: reference column is required", ErrInvalidMapping)
	}
	if m.Date == "" {
		return fmt.Errorf("%w: date column is required", ErrInvalidMapping)
	}
	if m.Description == "" {
		return fmt.Errorf("%w: description column is required", ErrInvalidMapping)
	}

	hasAmount := m.Amount != ""
	hasSplit := m.Debit != "" && m.Credit != ""
	switch {
	case hasAmount && hasSplit:
		return fmt.Errorf("%w: amount and debit/credit columns are mutually exclusive", ErrInvalidMapping)
	case !hasAmount && !hasSplit:
		return fmt.Errorf("%w: either an amount column or both debit and credit columns are required", ErrInvalidMapping)
	}
	return nil
}

// SplitMode reports whether amounts come from separate debit/credit columns.
func (m ColumnMapping) SplitMode() bool {
	return m.Debit != "" && m.Credit != ""
}

// Profile is a persisted, named ColumnMapping with usage tracking.
type Profile struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	BankName   string        `json:"bankName,omitempty"`
	Mapping    ColumnMapping `json:"mapping"`
	IsDefault  bool          `json:"isDefault"`
	CreatedBy  *uuid.UUID    `json:"createdBy,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	LastUsedAt *time.Time    `json:"lastUsedAt,omitempty"`
	UseCount   int           `json:"useCount"`
}
