package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8181
pipeline:
  min_sites_per_molecule: 2
  dedup_enabled: true
  vocabulary_version: v2
database:
  user: proton
  password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Pipeline.MinSitesPerMolecule)
	assert.True(t, cfg.Pipeline.DedupEnabled)
	assert.Equal(t, "v2", cfg.Pipeline.VocabularyVersion)
	// defaults still filled in
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidConfigFailsValidation(t *testing.T) {
	path := writeConfigFile(t, `
server:
  mode: production
database:
  user: proton
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "server.mode")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PROTONGRAPH_DATABASE_USER", "envuser")
	t.Setenv("PROTONGRAPH_SERVER_PORT", "8282")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "envuser", cfg.Database.User)
	assert.Equal(t, 8282, cfg.Server.Port)
}

func TestMustLoadPanicsOnError(t *testing.T) {
	assert.Panics(t, func() { MustLoad("/does/not/exist.yaml") })
}
