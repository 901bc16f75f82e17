package out

import (
	"context"

	"github.com/stower/stower/internal/domain"
)

// Ledger durably records prior successful uploads per logical storage,
// keyed by (backend, subID). Entries are stored most-recent-first.
type Ledger interface {
	// Load returns the recorded entries for the key, or an empty slice when
	// no record exists yet.
	Load(ctx context.Context, backend, subID string) ([]domain.LedgerEntry, error)

	// Write atomically replaces the full record set for the key. A failed
	// write must leave the prior record intact, and concurrent readers must
	// never observe a partial record.
	Write(ctx context.Context, backend, subID string, entries []domain.LedgerEntry) error
}
