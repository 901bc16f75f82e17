package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageConfigStampsTimestampAndVersion(t *testing.T) {
	artifact := NewArtifact("dbdump.tar", time.Date(2026, 8, 23, 14, 5, 9, 0, time.UTC), nil)

	cfg := NewStorageConfig(BackendS3, "offsite", "mydb", 5, artifact, func(sc *StorageConfig) {
		sc.Settings = map[string]string{"bucket": "backups"}
	})

	assert.Equal(t, artifact.Timestamp, cfg.Timestamp)
	assert.Equal(t, LedgerSchemaVersion, cfg.SchemaVersion)
	assert.Equal(t, "backups", cfg.Setting("bucket"))
	assert.Equal(t, "s3-offsite", cfg.Key())
	assert.Equal(t, "mydb/2026.08.23.14.05.09", cfg.RemoteDir())
}

func TestKeyWithoutSubID(t *testing.T) {
	cfg := StorageConfig{Backend: BackendSFTP}
	assert.Equal(t, "sftp", cfg.Key())
}

func TestNewLedgerEntryKeepsOnlyPersistedFields(t *testing.T) {
	cfg := StorageConfig{
		Backend:   BackendS3,
		SubID:     "offsite",
		Trigger:   "mydb",
		Keep:      5,
		Timestamp: "2026.08.23.14.05.09",
		Artifact:  Artifact{BaseName: "dbdump.tar", Timestamp: "2026.08.23.14.05.09"},
		Settings:  map[string]string{"secret_key": "hunter2"},
	}

	entry := NewLedgerEntry(cfg)

	assert.Equal(t, cfg.Artifact, entry.Artifact)
	assert.Equal(t, cfg.Timestamp, entry.Timestamp)
	assert.Equal(t, LedgerSchemaVersion, entry.SchemaVersion)
}

func TestUpgradeMigratesLegacyEntry(t *testing.T) {
	legacy := LedgerEntry{
		LegacyBaseName: "dbdump.tar",
		LegacyTime:     "2020.01.02.03.04.05",
		LegacyChunks:   []string{"aa", "ab"},
	}

	upgraded := legacy.Upgrade()

	assert.Equal(t, LedgerSchemaVersion, upgraded.SchemaVersion)
	assert.Equal(t, "2020.01.02.03.04.05", upgraded.Timestamp)
	require.Equal(t, "dbdump.tar", upgraded.Artifact.BaseName)
	assert.Equal(t, "2020.01.02.03.04.05", upgraded.Artifact.Timestamp)
	assert.Equal(t, []string{"aa", "ab"}, upgraded.Artifact.ChunkSuffixes)

	assert.Empty(t, upgraded.LegacyBaseName)
	assert.Empty(t, upgraded.LegacyTime)
	assert.Nil(t, upgraded.LegacyChunks)
}

func TestUpgradeIsIdempotent(t *testing.T) {
	legacy := LedgerEntry{
		LegacyBaseName: "dbdump.tar",
		LegacyTime:     "2020.01.02.03.04.05",
	}

	once := legacy.Upgrade()
	twice := once.Upgrade()

	assert.Equal(t, once, twice)
}

func TestUpgradeLeavesCurrentEntryAlone(t *testing.T) {
	current := LedgerEntry{
		Artifact:      Artifact{BaseName: "dbdump.tar", Timestamp: "2026.08.23.14.05.09"},
		Timestamp:     "2026.08.23.14.05.09",
		SchemaVersion: LedgerSchemaVersion,
	}

	assert.Equal(t, current, current.Upgrade())
}
