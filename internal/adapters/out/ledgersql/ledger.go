package ledgersql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/stower/stower/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	backend            TEXT    NOT NULL,
	sub_id             TEXT    NOT NULL,
	position           INTEGER NOT NULL,
	base_name          TEXT    NOT NULL,
	artifact_timestamp TEXT    NOT NULL,
	chunk_suffixes     TEXT    NOT NULL,
	timestamp          TEXT    NOT NULL,
	schema_version     TEXT    NOT NULL,
	PRIMARY KEY (backend, sub_id, position)
);`

// Ledger persists retention records in a SQLite database, one row per entry.
// Entry order within a key is preserved through the position column.
type Ledger struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (and initializes if needed) a SQLite-backed ledger at path.
func Open(path string, log zerolog.Logger) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return &Ledger{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func key(backend, subID string) string {
	if subID == "" {
		return backend
	}
	return backend + "-" + subID
}

// Load returns the recorded entries for the key in stored order.
func (l *Ledger) Load(ctx context.Context, backend, subID string) ([]domain.LedgerEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT base_name, artifact_timestamp, chunk_suffixes, timestamp, schema_version
		 FROM ledger_entries WHERE backend = ? AND sub_id = ? ORDER BY position`,
		backend, subID)
	if err != nil {
		return nil, &domain.LedgerError{Key: key(backend, subID), Err: err}
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var (
			entry  domain.LedgerEntry
			chunks string
		)
		if err := rows.Scan(&entry.Artifact.BaseName, &entry.Artifact.Timestamp, &chunks, &entry.Timestamp, &entry.SchemaVersion); err != nil {
			return nil, &domain.LedgerError{Key: key(backend, subID), Err: err}
		}
		if err := json.Unmarshal([]byte(chunks), &entry.Artifact.ChunkSuffixes); err != nil {
			return nil, &domain.LedgerError{Key: key(backend, subID), Err: fmt.Errorf("decode chunk suffixes: %w", err)}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.LedgerError{Key: key(backend, subID), Err: err}
	}
	return entries, nil
}

// Write replaces the record for the key inside a single transaction, so
// readers see either the prior or the new record set, never a mix.
func (l *Ledger) Write(ctx context.Context, backend, subID string, entries []domain.LedgerEntry) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.LedgerError{Key: key(backend, subID), Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ledger_entries WHERE backend = ? AND sub_id = ?`, backend, subID); err != nil {
		return &domain.LedgerError{Key: key(backend, subID), Err: err}
	}

	for i, entry := range entries {
		chunks, err := json.Marshal(entry.Artifact.ChunkSuffixes)
		if err != nil {
			return &domain.LedgerError{Key: key(backend, subID), Err: fmt.Errorf("encode chunk suffixes: %w", err)}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_entries (backend, sub_id, position, base_name, artifact_timestamp, chunk_suffixes, timestamp, schema_version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			backend, subID, i, entry.Artifact.BaseName, entry.Artifact.Timestamp, string(chunks), entry.Timestamp, entry.SchemaVersion); err != nil {
			return &domain.LedgerError{Key: key(backend, subID), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.LedgerError{Key: key(backend, subID), Err: err}
	}

	l.log.Debug().
		Str("storage", key(backend, subID)).
		Int("entries", len(entries)).
		Msg("ledger record written")
	return nil
}
