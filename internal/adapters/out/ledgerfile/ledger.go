package ledgerfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/stower/stower/internal/domain"
)

// Ledger persists retention records as YAML files under a data directory,
// one file per (backend, subID) pair.
type Ledger struct {
	dir string
	log zerolog.Logger
}

// New creates a file-backed ledger rooted at dir, creating it if needed.
func New(dir string, log zerolog.Logger) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &Ledger{dir: dir, log: log}, nil
}

func (l *Ledger) path(backend, subID string) string {
	name := backend
	if subID != "" {
		name += "-" + subID
	}
	return filepath.Join(l.dir, name+".yml")
}

func key(backend, subID string) string {
	if subID == "" {
		return backend
	}
	return backend + "-" + subID
}

// Load reads the record for the key. A missing file means no uploads have
// been recorded yet and is not an error.
func (l *Ledger) Load(_ context.Context, backend, subID string) ([]domain.LedgerEntry, error) {
	data, err := os.ReadFile(l.path(backend, subID))
	if errors.Is(err, os.ErrNotExist) {
		return []domain.LedgerEntry{}, nil
	}
	if err != nil {
		return nil, &domain.LedgerError{Key: key(backend, subID), Err: err}
	}

	var entries []domain.LedgerEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, &domain.LedgerError{Key: key(backend, subID), Err: fmt.Errorf("decode record: %w", err)}
	}
	return entries, nil
}

// Write replaces the record wholesale. The new record is written to a temp
// file and renamed into place, so a failed write leaves the prior record
// intact and readers never observe a partial file.
func (l *Ledger) Write(_ context.Context, backend, subID string, entries []domain.LedgerEntry) error {
	data, err := yaml.Marshal(entries)
	if err != nil {
		return &domain.LedgerError{Key: key(backend, subID), Err: fmt.Errorf("encode record: %w", err)}
	}

	finalPath := l.path(backend, subID)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return &domain.LedgerError{Key: key(backend, subID), Err: err}
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return &domain.LedgerError{Key: key(backend, subID), Err: err}
	}

	l.log.Debug().
		Str("record", finalPath).
		Int("entries", len(entries)).
		Msg("ledger record written")
	return nil
}
