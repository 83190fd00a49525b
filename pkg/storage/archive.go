// Package storage archives uploaded bank statements on local disk so a
// disputed reconciliation can always be traced back to the exact bytes
// that produced it.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StoredFile describes an archived statement.
type StoredFile struct {
	ID       uuid.UUID `json:"id"`
	FileName string    `json:"fileName"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Checksum string    `json:"checksum"`
	StoredAt time.Time `json:"storedAt"`
}

// Archive writes statements under a base directory, partitioned by upload
// date.
type Archive struct {
	basePath string
}

// NewArchive creates the archive directory if needed.
func NewArchive(basePath string) (*Archive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{basePath: basePath}, nil
}

// Store writes the statement bytes and returns metadata including a
// SHA-256 checksum for later integrity checks.
func (a *Archive) Store(fileName string, data []byte) (*StoredFile, error) {
	id := uuid.New()
	dir := filepath.Join(a.basePath, time.Now().UTC().Format("2006/01/02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive partition: %w", err)
	}

	stored := fmt.Sprintf("%s_%s", id.String()[:8], sanitizeFileName(fileName))
	path := filepath.Join(dir, stored)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to archive statement: %w", err)
	}

	sum := sha256.Sum256(data)
	return &StoredFile{
		ID:       id,
		FileName: fileName,
		Path:     path,
		Size:     int64(len(data)),
		Checksum: hex.EncodeToString(sum[:]),
		StoredAt: time.Now().UTC(),
	}, nil
}

// Read returns the archived bytes for a stored path.
func (a *Archive) Read(path string) ([]byte, error) {
	cleaned := filepath.Clean(path)
	if !strings.HasPrefix(cleaned, filepath.Clean(a.basePath)) {
		return nil, fmt.Errorf("path %q is outside the archive", path)
	}
	data, err := os.ReadFile(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived statement: %w", err)
	}
	return data, nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "statement"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "statement"
	}
	return b.String()
}
