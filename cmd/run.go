package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stower/stower/internal/adapters/out/ledgerfile"
	"github.com/stower/stower/internal/adapters/out/ledgersql"
	"github.com/stower/stower/internal/adapters/out/localdir"
	"github.com/stower/stower/internal/adapters/out/s3"
	"github.com/stower/stower/internal/adapters/out/sftp"
	"github.com/stower/stower/internal/boundaries/out"
	"github.com/stower/stower/internal/config"
	"github.com/stower/stower/internal/domain"
	"github.com/stower/stower/internal/logging"
	"github.com/stower/stower/internal/usecase/cycle"
)

var (
	runTrigger   string
	runTimestamp string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload a trigger's backup artifact and cycle old uploads",
	Long: `Run uploads the artifact the archive producer left in the trigger's
local directory to every configured storage, then removes the oldest uploads
beyond each storage's keep count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTriggerJob(cmd, runTrigger, runTimestamp)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runTrigger, "trigger", "t", "", "trigger name to run (required)")
	runCmd.Flags().StringVar(&runTimestamp, "timestamp", "", "run timestamp (defaults to now)")
	_ = runCmd.MarkFlagRequired("trigger")
}

func runTriggerJob(cmd *cobra.Command, triggerName, timestampFlag string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}

	trigger, err := cfg.Trigger(triggerName)
	if err != nil {
		return err
	}

	runAt := time.Now()
	if timestampFlag != "" {
		runAt, err = time.Parse(domain.TimestampLayout, timestampFlag)
		if err != nil {
			return fmt.Errorf("invalid --timestamp (want %s): %w", domain.TimestampLayout, err)
		}
	}

	artifact, err := discoverArtifact(trigger, runAt.Format(domain.TimestampLayout))
	if err != nil {
		return err
	}

	ledger, closeLedger, err := openLedger(cfg, triggerName, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	svc := cycle.NewService([]out.Transfer{
		localdir.New(logger),
		s3.New(logger),
		sftp.New(logger),
	}, ledger, logger)

	var firstErr error
	for _, spec := range trigger.Storages {
		producer := settingsProducer(spec, trigger)
		storageCfg := domain.NewStorageConfig(spec.Backend, spec.SubID, triggerName, spec.Keep, artifact, producer)

		report, err := svc.Run(cmd.Context(), storageCfg, producer)
		if err != nil {
			logger.Error().Err(err).Str("storage", storageCfg.Key()).Msg("storage run failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("storage %s: %w", storageCfg.Key(), err)
			}
			continue
		}
		logger.Info().
			Str("run_id", report.ID).
			Str("storage", storageCfg.Key()).
			Int("uploaded", len(report.Uploaded)).
			Int("warnings", len(report.Warnings)).
			Msg("storage run finished")
	}
	return firstErr
}

// settingsProducer captures the trigger's resolved settings at run start; the
// cycling engine re-invokes it per historical entry so rotated credentials
// and moved paths apply to removals too.
func settingsProducer(spec config.StorageSpec, trigger config.TriggerConfig) domain.SettingsProducer {
	return func(sc *domain.StorageConfig) {
		settings := make(map[string]string, len(spec.Settings)+1)
		for k, v := range spec.Settings {
			settings[k] = v
		}
		settings["local_dir"] = trigger.LocalDir
		sc.Settings = settings
	}
}

// discoverArtifact finds the run's files in the trigger's local directory:
// either a single <timestamp>.<base_name> file or a set of
// <timestamp>.<base_name>-<suffix> chunks left by the archive producer.
func discoverArtifact(trigger config.TriggerConfig, timestamp string) (domain.Artifact, error) {
	prefix := timestamp + "." + trigger.BaseName

	if _, err := os.Stat(filepath.Join(trigger.LocalDir, prefix)); err == nil {
		return domain.Artifact{BaseName: trigger.BaseName, Timestamp: timestamp}, nil
	}

	matches, err := filepath.Glob(filepath.Join(trigger.LocalDir, prefix+"-*"))
	if err != nil {
		return domain.Artifact{}, err
	}
	if len(matches) == 0 {
		return domain.Artifact{}, fmt.Errorf("%w: %s in %s", domain.ErrArtifactMissing, prefix, trigger.LocalDir)
	}

	suffixes := make([]string, 0, len(matches))
	for _, match := range matches {
		suffixes = append(suffixes, strings.TrimPrefix(filepath.Base(match), prefix+"-"))
	}
	return domain.Artifact{BaseName: trigger.BaseName, Timestamp: timestamp, ChunkSuffixes: suffixes}, nil
}

func openLedger(cfg *config.Config, triggerName string, logger zerolog.Logger) (out.Ledger, func(), error) {
	dir := cfg.LedgerDir(triggerName)

	if cfg.Ledger.Driver == "sqlite" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		ledger, err := ledgersql.Open(filepath.Join(dir, "ledger.db"), logger)
		if err != nil {
			return nil, nil, err
		}
		return ledger, func() { _ = ledger.Close() }, nil
	}

	ledger, err := ledgerfile.New(dir, logger)
	if err != nil {
		return nil, nil, err
	}
	return ledger, func() {}, nil
}
