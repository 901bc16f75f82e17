package domain

// LedgerSchemaVersion is stamped on every entry at persistence time. Records
// without a version predate versioning and are migrated on load.
const LedgerSchemaVersion = "2"

// Backend identifiers for the built-in transfer adapters.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendSFTP  = "sftp"
)

// StorageConfig is a named, versioned bundle of backend settings for one
// logical storage. Two configurations describe the same logical storage iff
// Backend and SubID match; the retention ledger is keyed by that pair.
type StorageConfig struct {
	Backend       string
	SubID         string
	Trigger       string
	Keep          int
	Timestamp     string
	Artifact      Artifact
	SchemaVersion string

	// Settings holds backend-specific credentials and paths. It is never
	// persisted; the run's SettingsProducer re-supplies it when history is
	// reloaded, so credentials may rotate between runs.
	Settings map[string]string
}

// SettingsProducer fills the backend-specific fields of a storage
// configuration from the current run's resolved settings. It is applied once
// at build time and re-applied to every historical entry during
// reconciliation.
type SettingsProducer func(*StorageConfig)

// NewStorageConfig builds the current run's configuration for one logical
// storage. The timestamp is stamped from the artifact's run timestamp.
func NewStorageConfig(backend, subID, trigger string, keep int, artifact Artifact, producer SettingsProducer) StorageConfig {
	cfg := StorageConfig{
		Backend:       backend,
		SubID:         subID,
		Trigger:       trigger,
		Keep:          keep,
		Timestamp:     artifact.Timestamp,
		Artifact:      artifact,
		SchemaVersion: LedgerSchemaVersion,
		Settings:      map[string]string{},
	}
	if producer != nil {
		producer(&cfg)
	}
	return cfg
}

// Key identifies the logical storage this configuration belongs to.
func (c StorageConfig) Key() string {
	if c.SubID == "" {
		return c.Backend
	}
	return c.Backend + "-" + c.SubID
}

// Setting returns a backend-specific setting, or "" when unset.
func (c StorageConfig) Setting(name string) string {
	return c.Settings[name]
}

// RemoteDir is the destination namespace for this run's upload, relative to
// the backend's configured root.
func (c StorageConfig) RemoteDir() string {
	return c.Trigger + "/" + c.Artifact.Timestamp
}

// LedgerEntry is the minimal persisted subset of a storage configuration.
// Credential and path settings are deliberately excluded.
type LedgerEntry struct {
	Artifact      Artifact `yaml:"artifact" json:"artifact"`
	Timestamp     string   `yaml:"timestamp" json:"timestamp"`
	SchemaVersion string   `yaml:"schema_version,omitempty" json:"schema_version,omitempty"`

	// Flat fields written by unversioned releases; consumed by Upgrade and
	// never written back.
	LegacyBaseName string   `yaml:"base_name,omitempty" json:"base_name,omitempty"`
	LegacyTime     string   `yaml:"time,omitempty" json:"time,omitempty"`
	LegacyChunks   []string `yaml:"chunk_suffixes,omitempty" json:"chunk_suffixes,omitempty"`
}

// NewLedgerEntry strips a storage configuration to the fields that survive
// across runs, stamped with the current schema version.
func NewLedgerEntry(cfg StorageConfig) LedgerEntry {
	return LedgerEntry{
		Artifact:      cfg.Artifact,
		Timestamp:     cfg.Timestamp,
		SchemaVersion: LedgerSchemaVersion,
	}
}

// Upgrade migrates an unversioned record into the current shape: legacy flat
// fields move into the nested artifact, everything else is discarded and the
// current schema version is stamped. Running it on an already-current entry
// changes nothing, so repeated upgrades are safe.
func (e LedgerEntry) Upgrade() LedgerEntry {
	if e.SchemaVersion == "" {
		if e.Timestamp == "" {
			e.Timestamp = e.LegacyTime
		}
		if e.Artifact.BaseName == "" {
			e.Artifact = Artifact{
				BaseName:      e.LegacyBaseName,
				Timestamp:     e.LegacyTime,
				ChunkSuffixes: e.LegacyChunks,
			}
		}
	}
	e.SchemaVersion = LedgerSchemaVersion
	e.LegacyBaseName = ""
	e.LegacyTime = ""
	e.LegacyChunks = nil
	return e
}
