package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lvandyk/schoolpay/internal/domain/statement/parser"
	"github.com/lvandyk/schoolpay/pkg/storage"
)

// Querier is the subset of pgxpool.Pool the file log needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FileLog records every archived statement in the database so uploads can
// be audited and traced to their processing runs.
type FileLog struct {
	db Querier
}

// NewFileLog creates a file log over the given pool.
func NewFileLog(db Querier) *FileLog {
	return &FileLog{db: db}
}

// Record inserts one statement file entry.
func (f *FileLog) Record(ctx context.Context, stored *storage.StoredFile, kind parser.Kind, uploadedBy *uuid.UUID) error {
	query := `
		INSERT INTO statement_files (file_name, kind, size_bytes, checksum, storage_url, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := f.db.Exec(ctx, query,
		stored.FileName,
		string(kind),
		stored.Size,
		stored.Checksum,
		stored.Path,
		uploadedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert statement file: %w", err)
	}
	return nil
}
