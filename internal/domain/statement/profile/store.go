package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists mapping profiles in PostgreSQL.
type Store struct {
	db Querier
}

// NewStore creates a new mapping profile store.
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

const profileColumns = `id, name, bank_name, reference_column, amount_column, date_column,
	description_column, debit_column, credit_column, balance_column,
	is_default, created_by, created_at, last_used_at, use_count`

// FindByName returns the profile with the given name, or ErrProfileNotFound.
func (s *Store) FindByName(ctx context.Context, name string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM mapping_profiles WHERE name = $1`

	p, err := scanProfile(s.db.QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mapping profile: %w", err)
	}
	return p, nil
}

// Save upserts a profile by name, overwriting role assignments and
// refreshing last_used_at.
func (s *Store) Save(ctx context.Context, p *Profile) error {
	if err := p.Mapping.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO mapping_profiles (
			name, bank_name, reference_column, amount_column, date_column,
			description_column, debit_column, credit_column, balance_column,
			is_default, created_by, last_used_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (name) DO UPDATE SET
			bank_name          = EXCLUDED.bank_name,
			reference_column   = EXCLUDED.reference_column,
			amount_column      = EXCLUDED.amount_column,
			date_column        = EXCLUDED.date_column,
			description_column = EXCLUDED.description_column,
			debit_column       = EXCLUDED.debit_column,
			credit_column      = EXCLUDED.credit_column,
			balance_column     = EXCLUDED.balance_column,
			is_default         = EXCLUDED.is_default,
			last_used_at       = now()
		RETURNING id, created_at, use_count`

	err := s.db.QueryRow(ctx, query,
		p.Name,
		nullable(p.BankName),
		p.Mapping.Reference,
		nullable(p.Mapping.Amount),
		p.Mapping.Date,
		p.Mapping.Description,
		nullable(p.Mapping.Debit),
		nullable(p.Mapping.Credit),
		nullable(p.Mapping.Balance),
		p.IsDefault,
		p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt, &p.UseCount)
	if err != nil {
		return fmt.Errorf("failed to save mapping profile: %w", err)
	}
	return nil
}

// RecordUse bumps the profile's usage counter and freshness timestamp.
func (s *Store) RecordUse(ctx context.Context, name string) error {
	query := `
		UPDATE mapping_profiles
		SET use_count = use_count + 1, last_used_at = now()
		WHERE name = $1`

	result, err := s.db.Exec(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to record profile use: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// List returns all profiles, most used and most recently used first.
func (s *Store) List(ctx context.Context) ([]Profile, error) {
	query := `SELECT ` + profileColumns + `
		FROM mapping_profiles
		ORDER BY use_count DESC, last_used_at DESC NULLS LAST`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// Delete removes a profile. Only its creator may delete it.
func (s *Store) Delete(ctx context.Context, name string, ownerID uuid.UUID) error {
	var createdBy *uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT created_by FROM mapping_profiles WHERE name = $1`, name).Scan(&createdBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load mapping profile: %w", err)
	}
	if createdBy == nil || *createdBy != ownerID {
		return ErrNotOwner
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM mapping_profiles WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete mapping profile: %w", err)
	}
	return nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var bankName, amount, debit, credit, balance *string
	err := row.Scan(
		&p.ID,
		&p.Name,
		&bankName,
		&p.Mapping.Reference,
		&amount,
		&p.Mapping.Date,
		&p.Mapping.Description,
		&debit,
		&credit,
		&balance,
		&p.IsDefault,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.LastUsedAt,
		&p.UseCount,
	)
	if err != nil {
		return nil, err
	}
	p.BankName = deref(bankName)
	p.Mapping.Amount = deref(amount)
	p.Mapping.Debit = deref(debit)
	p.Mapping.Credit = deref(credit)
	p.Mapping.Balance = deref(balance)
	return &p, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
