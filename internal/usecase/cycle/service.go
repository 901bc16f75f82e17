package cycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stower/stower/internal/boundaries/out"
	"github.com/stower/stower/internal/domain"
)

// maxRemoveWorkers bounds concurrent remote deletions during cycling.
const maxRemoveWorkers = 4

// Service orchestrates the storage-object lifecycle: it uploads the current
// run's artifact through a transfer adapter, then cycles prior uploads
// against the keep count recorded in the configuration.
type Service struct {
	transfers map[string]out.Transfer
	ledger    out.Ledger
	log       zerolog.Logger
}

// NewService creates a cycling service over the given transfer adapters and
// retention ledger.
func NewService(transfers []out.Transfer, ledger out.Ledger, log zerolog.Logger) *Service {
	byBackend := make(map[string]out.Transfer, len(transfers))
	for _, t := range transfers {
		byBackend[t.Backend()] = t
	}
	return &Service{
		transfers: byBackend,
		ledger:    ledger,
		log:       log,
	}
}

// Run uploads the artifact described by cfg and then runs the retention
// cycle. An upload failure aborts the run before cycling; a ledger failure
// abandons cycling only and is reported distinctly. Individual removal
// failures become warnings on the returned report.
//
// Callers must ensure at most one concurrent run per (backend, subID); the
// service provides no cross-process locking.
func (s *Service) Run(ctx context.Context, cfg domain.StorageConfig, producer domain.SettingsProducer) (*domain.RunReport, error) {
	report := &domain.RunReport{
		ID:      uuid.NewString(),
		Backend: cfg.Backend,
		SubID:   cfg.SubID,
	}

	transfer, ok := s.transfers[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownBackend, cfg.Backend)
	}

	s.log.Info().
		Str("run_id", report.ID).
		Str("backend", cfg.Backend).
		Str("storage", cfg.Key()).
		Str("timestamp", cfg.Artifact.Timestamp).
		Msg("starting transfer")

	if err := transfer.Upload(ctx, cfg); err != nil {
		return nil, err
	}
	report.Uploaded = cfg.Artifact.LocalFileNames()

	if err := s.cycle(ctx, transfer, cfg, producer, report); err != nil {
		return report, err
	}
	return report, nil
}

// cycle loads the ledger, reconciles history onto the current run's
// settings, removes entries beyond the keep count, and persists survivors.
func (s *Service) cycle(ctx context.Context, transfer out.Transfer, cfg domain.StorageConfig, producer domain.SettingsProducer, report *domain.RunReport) error {
	if cfg.Keep <= 0 {
		// Cycling disabled, including misconfigured negative counts.
		return nil
	}

	history, err := s.ledger.Load(ctx, cfg.Backend, cfg.SubID)
	if err != nil {
		return err
	}

	// The current run is always the most recent entry; historical entries
	// keep their ledger order, which is most-recent-first by construction of
	// this same pass on prior runs.
	working := make([]domain.StorageConfig, 0, len(history)+1)
	working = append(working, cfg)
	for _, entry := range history {
		working = append(working, reconcile(cfg, entry, producer))
	}

	survivors := working
	if len(working) > cfg.Keep {
		survivors = working[:cfg.Keep]
		s.removeExcess(ctx, transfer, working[cfg.Keep:], report)
	}

	entries := make([]domain.LedgerEntry, 0, len(survivors))
	for _, sc := range survivors {
		entries = append(entries, domain.NewLedgerEntry(sc))
	}
	if err := s.ledger.Write(ctx, cfg.Backend, cfg.SubID, entries); err != nil {
		return err
	}

	s.log.Info().
		Str("run_id", report.ID).
		Str("storage", cfg.Key()).
		Int("kept", len(entries)).
		Int("removed", len(report.Removed)).
		Int("warnings", len(report.Warnings)).
		Msg("cycle complete")
	return nil
}

// reconcile rebuilds a historical storage configuration from a ledger entry:
// the entry is upgraded to the current schema and the run's producer
// re-supplies credentials and paths, so a rotated password or moved
// destination is honored for the deletion call.
func reconcile(current domain.StorageConfig, entry domain.LedgerEntry, producer domain.SettingsProducer) domain.StorageConfig {
	entry = entry.Upgrade()

	hist := domain.StorageConfig{
		Backend:       current.Backend,
		SubID:         current.SubID,
		Trigger:       current.Trigger,
		Keep:          current.Keep,
		Timestamp:     entry.Timestamp,
		Artifact:      entry.Artifact,
		SchemaVersion: entry.SchemaVersion,
		Settings:      map[string]string{},
	}
	if producer != nil {
		producer(&hist)
	}
	return hist
}

// removeExcess deletes the entries beyond the keep count. Deletions run on a
// bounded pool; failures are collected per index and reported in selection
// order. A failed removal never blocks later removals and never re-inserts
// the entry: it is dropped from the ledger regardless, so an unreachable
// backend cannot grow the record without bound.
func (s *Service) removeExcess(ctx context.Context, transfer out.Transfer, excess []domain.StorageConfig, report *domain.RunReport) {
	results := make([]error, len(excess))

	var g errgroup.Group
	g.SetLimit(maxRemoveWorkers)
	for i, entry := range excess {
		g.Go(func() error {
			s.log.Info().
				Str("storage", entry.Key()).
				Str("timestamp", entry.Timestamp).
				Msg("removing expired upload")
			results[i] = transfer.Remove(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range results {
		report.Removed = append(report.Removed, excess[i].Timestamp)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("storage", excess[i].Key()).
				Str("timestamp", excess[i].Timestamp).
				Msg("failed to remove expired upload")
			report.Warnings = append(report.Warnings, fmt.Sprintf("remove %s %s: %v", excess[i].Key(), excess[i].Timestamp, err))
		}
	}
}
