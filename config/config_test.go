package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clawnet.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.NodeKey)
	require.Equal(t, "./clawnet-data", cfg.DataDir)
	require.FileExists(t, path)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.NodeKey, reloaded.NodeKey, "second load must not rotate the generated key")
}

func TestLoadGeneratesKeyForPreexistingFileMissingOne(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clawnet.toml")
	body := `ListenAddress = ":7101"
DataDir = "./data"

[Storage]
EventLogDir = "./data/events"
SnapshotDir = "./data/snapshots"
SnapshotEveryNEvents = 100

[DAO]
TreasuryAddress = "claw-treasury"

[RateLimit]
EventsPerSecond = 10.0
Burst = 20
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.NodeKey)
}

func TestValidateConfigRejectsMissingFields(t *testing.T) {
	cfg := Config{}
	require.Error(t, ValidateConfig(cfg))

	cfg = Config{
		ListenAddress: ":7101",
		DataDir:       "./data",
		Storage:       DefaultStorage("./data"),
		DAO:           DefaultDAO(),
		RateLimit:     DefaultRateLimit(),
		Gossip:        DefaultGossip(),
	}
	require.NoError(t, ValidateConfig(cfg))

	bad := cfg
	bad.RateLimit.Burst = 0
	require.Error(t, ValidateConfig(bad))

	bad = cfg
	bad.Storage.SnapshotEach = 0
	require.Error(t, ValidateConfig(bad))

	bad = cfg
	bad.DAO.TreasuryAddress = ""
	require.Error(t, ValidateConfig(bad))
}
