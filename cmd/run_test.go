package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stower/stower/internal/config"
	"github.com/stower/stower/internal/domain"
)

const testTimestamp = "2026.08.23.14.05.09"

func testTrigger(t *testing.T) config.TriggerConfig {
	t.Helper()
	return config.TriggerConfig{BaseName: "dbdump.tar", LocalDir: t.TempDir()}
}

func TestDiscoverArtifactSingleFile(t *testing.T) {
	trigger := testTrigger(t)
	require.NoError(t, os.WriteFile(filepath.Join(trigger.LocalDir, testTimestamp+".dbdump.tar"), []byte("x"), 0600))

	artifact, err := discoverArtifact(trigger, testTimestamp)
	require.NoError(t, err)

	assert.Equal(t, "dbdump.tar", artifact.BaseName)
	assert.Equal(t, testTimestamp, artifact.Timestamp)
	assert.False(t, artifact.Chunked())
}

func TestDiscoverArtifactChunks(t *testing.T) {
	trigger := testTrigger(t)
	for _, suffix := range []string{"aa", "ab", "ac"} {
		name := testTimestamp + ".dbdump.tar-" + suffix
		require.NoError(t, os.WriteFile(filepath.Join(trigger.LocalDir, name), []byte("x"), 0600))
	}

	artifact, err := discoverArtifact(trigger, testTimestamp)
	require.NoError(t, err)

	assert.True(t, artifact.Chunked())
	assert.ElementsMatch(t, []string{"aa", "ab", "ac"}, artifact.ChunkSuffixes)
}

func TestDiscoverArtifactMissing(t *testing.T) {
	trigger := testTrigger(t)

	_, err := discoverArtifact(trigger, testTimestamp)
	require.ErrorIs(t, err, domain.ErrArtifactMissing)
}

func TestSettingsProducerRefreshesSettings(t *testing.T) {
	spec := config.StorageSpec{
		Backend:  domain.BackendS3,
		Settings: map[string]string{"secret_key": "hunter2"},
	}
	trigger := config.TriggerConfig{BaseName: "dbdump.tar", LocalDir: "/var/backups/out"}

	producer := settingsProducer(spec, trigger)

	var cfg domain.StorageConfig
	producer(&cfg)

	assert.Equal(t, "hunter2", cfg.Setting("secret_key"))
	assert.Equal(t, "/var/backups/out", cfg.Setting("local_dir"))

	// Mutating the produced settings must not leak back into the spec.
	cfg.Settings["secret_key"] = "changed"
	assert.Equal(t, "hunter2", spec.Settings["secret_key"])
}
