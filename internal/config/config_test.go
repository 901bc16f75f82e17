package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stower/stower/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stower.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const validConfig = `
data_dir: /var/lib/stower
logging:
  level: debug
ledger:
  driver: sqlite
triggers:
  mydb:
    base_name: dbdump.tar
    local_dir: /var/backups/out
    storages:
      - backend: s3
        sub_id: offsite
        keep: 5
        settings:
          bucket: backups
          access_key: AKIA
          secret_key: hunter2
      - backend: local
        keep: 2
        settings:
          path: /mnt/backups
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/stower", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Ledger.Driver)

	trigger, err := cfg.Trigger("mydb")
	require.NoError(t, err)
	assert.Equal(t, "dbdump.tar", trigger.BaseName)
	require.Len(t, trigger.Storages, 2)
	assert.Equal(t, domain.BackendS3, trigger.Storages[0].Backend)
	assert.Equal(t, 5, trigger.Storages[0].Keep)
	assert.Equal(t, "backups", trigger.Storages[0].Settings["bucket"])
	assert.Equal(t, "", trigger.Storages[1].SubID)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "triggers: {}\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "file", cfg.Ledger.Driver)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestUnknownTrigger(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	_, err = cfg.Trigger("nope")
	require.ErrorIs(t, err, domain.ErrTriggerNotFound)
}

func TestRejectsUnknownBackend(t *testing.T) {
	_, err := Load(writeConfig(t, `
triggers:
  mydb:
    base_name: dbdump.tar
    local_dir: /tmp
    storages:
      - backend: carrier-pigeon
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestRejectsUnknownLedgerDriver(t *testing.T) {
	_, err := Load(writeConfig(t, "ledger:\n  driver: etcd\n"))
	require.Error(t, err)
}

func TestRejectsTriggerWithoutLocalDir(t *testing.T) {
	_, err := Load(writeConfig(t, `
triggers:
  mydb:
    base_name: dbdump.tar
`))
	require.Error(t, err)
}

func TestLedgerDirScopedPerTrigger(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/stower"}
	assert.Equal(t, filepath.Join("/var/lib/stower", "mydb"), cfg.LedgerDir("mydb"))
}
