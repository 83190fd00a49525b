// Package service orchestrates statement processing: parse, detect or load
// a column mapping, normalize rows, reconcile against the ledger, and
// report bucketed results.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lvandyk/schoolpay/internal/domain/reconcile"
	"github.com/lvandyk/schoolpay/internal/domain/statement/assembler"
	"github.com/lvandyk/schoolpay/internal/domain/statement/detector"
	"github.com/lvandyk/schoolpay/internal/domain/statement/normalizer"
	"github.com/lvandyk/schoolpay/internal/domain/statement/parser"
	"github.com/lvandyk/schoolpay/internal/domain/statement/profile"
	"github.com/lvandyk/schoolpay/pkg/metrics"
	"github.com/lvandyk/schoolpay/pkg/storage"
)

// ProfileStore is the mapping profile persistence surface.
type ProfileStore interface {
	FindByName(ctx context.Context, name string) (*profile.Profile, error)
	Save(ctx context.Context, p *profile.Profile) error
	RecordUse(ctx context.Context, name string) error
	List(ctx context.Context) ([]profile.Profile, error)
	Delete(ctx context.Context, name string, ownerID uuid.UUID) error
}

// Engine reconciles normalized transactions.
type Engine interface {
	Process(ctx context.Context, txns []normalizer.Transaction) *reconcile.BatchResult
}

// Archiver stores the raw uploaded bytes for audit.
type Archiver interface {
	Store(fileName string, data []byte) (*storage.StoredFile, error)
}

// FileRecorder persists statement file metadata.
type FileRecorder interface {
	Record(ctx context.Context, stored *storage.StoredFile, kind parser.Kind, uploadedBy *uuid.UUID) error
}

// Service wires the statement pipeline together.
type Service struct {
	profiles ProfileStore
	engine   Engine
	archive  Archiver
	files    FileRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// New creates the statement service.
func New(profiles ProfileStore, engine Engine, archive Archiver, files FileRecorder, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		profiles: profiles,
		engine:   engine,
		archive:  archive,
		files:    files,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Analysis previews an upload before processing: the detected layout for
// tabular files, or sample lines for PDFs which use a fixed positional
// convention instead of a mapping.
type Analysis struct {
	Kind               parser.Kind           `json:"kind"`
	Headers            []string              `json:"headers,omitempty"`
	SampleRows         [][]string            `json:"sampleRows,omitempty"`
	SampleLines        []string              `json:"sampleLines,omitempty"`
	Mapping            profile.ColumnMapping `json:"mapping"`
	Confidence         int                   `json:"confidence"`
	NeedsManualMapping bool                  `json:"needsManualMapping"`

	// MatchingProfiles lists saved mapping profiles whose columns all
	// appear in this file's headers, most used first.
	MatchingProfiles []string `json:"matchingProfiles,omitempty"`
}

// Analyze inspects an upload and proposes a column mapping.
func (s *Service) Analyze(ctx context.Context, data []byte, kind parser.Kind) (*Analysis, error) {
	switch kind {
	case parser.KindCSV, parser.KindXLSX:
		table, err := s.parseTable(data, kind)
		if err != nil {
			return nil, err
		}
		detected := detector.Detect(table.Headers)
		return &Analysis{
			Kind:               kind,
			Headers:            table.Headers,
			SampleRows:         table.SampleRows(5),
			Mapping:            detected.Mapping,
			Confidence:         detected.Confidence,
			NeedsManualMapping: detected.NeedsManualMapping,
			MatchingProfiles:   s.matchingProfiles(ctx, table.Headers),
		}, nil
	case parser.KindPDF:
		lines, err := parser.ParsePDF(data)
		if err != nil {
			return nil, err
		}
		samples := make([]string, 0, 5)
		for _, line := range lines {
			if len(samples) == 5 {
				break
			}
			samples = append(samples, line.Text)
		}
		// PDFs are assembled positionally; there is no mapping to confirm.
		return &Analysis{Kind: kind, SampleLines: samples, Confidence: 100}, nil
	default:
		return nil, fmt.Errorf("%w: %q", parser.ErrUnsupportedKind, kind)
	}
}

// ProcessInput is one statement upload ready for reconciliation.
type ProcessInput struct {
	FileName string
	Data     []byte
	Kind     parser.Kind

	// Mapping drives tabular ingestion. ProfileName loads a saved mapping
	// instead; SaveProfileName persists the given mapping for reuse.
	Mapping         profile.ColumnMapping
	ProfileName     string
	SaveProfileName string
	BankName        string

	UploadedBy *uuid.UUID
}

// Process archives the upload, extracts its transactions and reconciles
// them. The returned BatchResult classifies every transaction.
func (s *Service) Process(ctx context.Context, input ProcessInput) (*reconcile.BatchResult, error) {
	if !parser.ValidKind(input.Kind) {
		return nil, fmt.Errorf("%w: %q", parser.ErrUnsupportedKind, input.Kind)
	}

	stored, err := s.archive.Store(input.FileName, input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to archive statement: %w", err)
	}
	if err := s.files.Record(ctx, stored, input.Kind, input.UploadedBy); err != nil {
		return nil, fmt.Errorf("failed to record statement file: %w", err)
	}

	txns, err := s.extractTransactions(ctx, input)
	if err != nil {
		return nil, err
	}

	start := s.now()
	result := s.engine.Process(ctx, txns)
	s.observe(input.Kind, result, s.now().Sub(start))

	s.logger.Info("statement processed",
		slog.String("file", input.FileName),
		slog.String("kind", string(input.Kind)),
		slog.String("checksum", stored.Checksum),
		slog.Int("transactions", result.Total()),
		slog.Int("matched", len(result.Matched)),
		slog.Int("unmatched", len(result.Unmatched)),
		slog.Int("duplicates", len(result.Duplicates)),
	)
	return result, nil
}

// extractTransactions resolves the mapping and turns the upload into
// normalized transactions.
func (s *Service) extractTransactions(ctx context.Context, input ProcessInput) ([]normalizer.Transaction, error) {
	if input.Kind == parser.KindPDF {
		lines, err := parser.ParsePDF(input.Data)
		if err != nil {
			return nil, err
		}
		return assembler.Assemble(lines, s.now()), nil
	}

	mapping, err := s.resolveMapping(ctx, input)
	if err != nil {
		return nil, err
	}

	table, err := s.parseTable(input.Data, input.Kind)
	if err != nil {
		return nil, err
	}

	norm := normalizer.New(mapping)
	now := s.now()
	var txns []normalizer.Transaction
	for _, row := range table.Rows {
		if normalizer.ShouldSkipRow(row) {
			continue
		}
		if tx, ok := norm.Normalize(row, now); ok {
			txns = append(txns, tx)
		}
	}
	return txns, nil
}

func (s *Service) resolveMapping(ctx context.Context, input ProcessInput) (profile.ColumnMapping, error) {
	if input.ProfileName != "" {
		p, err := s.profiles.FindByName(ctx, input.ProfileName)
		if err != nil {
			return profile.ColumnMapping{}, err
		}
		if err := s.profiles.RecordUse(ctx, p.Name); err != nil {
			return profile.ColumnMapping{}, err
		}
		return p.Mapping, nil
	}

	if err := input.Mapping.Validate(); err != nil {
		return profile.ColumnMapping{}, err
	}

	if input.SaveProfileName != "" {
		p := &profile.Profile{
			Name:      input.SaveProfileName,
			BankName:  input.BankName,
			Mapping:   input.Mapping,
			CreatedBy: input.UploadedBy,
		}
		if err := s.profiles.Save(ctx, p); err != nil {
			return profile.ColumnMapping{}, err
		}
		s.logger.Info("mapping profile saved", slog.String("name", p.Name))
	}
	return input.Mapping, nil
}

// matchingProfiles returns saved profiles applicable to the given headers.
// A profile list failure downgrades the preview, it never fails it.
func (s *Service) matchingProfiles(ctx context.Context, headers []string) []string {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		s.logger.Warn("failed to list mapping profiles during analysis", "error", err)
		return nil
	}

	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	var names []string
	for _, p := range profiles {
		applicable := true
		for _, col := range []string{
			p.Mapping.Reference, p.Mapping.Amount, p.Mapping.Date,
			p.Mapping.Description, p.Mapping.Debit, p.Mapping.Credit,
			p.Mapping.Balance,
		} {
			if col != "" && !present[col] {
				applicable = false
				break
			}
		}
		if applicable {
			names = append(names, p.Name)
		}
	}
	return names
}

func (s *Service) parseTable(data []byte, kind parser.Kind) (*parser.Table, error) {
	if kind == parser.KindXLSX {
		return parser.ParseXLSX(data)
	}
	return parser.ParseCSV(data)
}

func (s *Service) observe(kind parser.Kind, result *reconcile.BatchResult, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.StatementsProcessed.WithLabelValues(string(kind)).Inc()
	s.metrics.BatchDuration.Observe(elapsed.Seconds())
	buckets := map[string]int{
		"matched":   len(result.Matched),
		"partial":   len(result.Partial),
		"overpaid":  len(result.Overpaid),
		"unmatched": len(result.Unmatched),
		"duplicate": len(result.Duplicates),
		"error":     len(result.Errors),
	}
	for category, count := range buckets {
		s.metrics.TransactionsTotal.WithLabelValues(category).Add(float64(count))
	}
}

// ListProfiles returns saved mapping profiles, most used first.
func (s *Service) ListProfiles(ctx context.Context) ([]profile.Profile, error) {
	return s.profiles.List(ctx)
}

// DeleteProfile removes a profile; only its creator may do so.
func (s *Service) DeleteProfile(ctx context.Context, name string, ownerID uuid.UUID) error {
	return s.profiles.Delete(ctx, name, ownerID)
}
