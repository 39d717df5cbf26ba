package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Config that passes Validate after defaults.
func validConfig() *Config {
	cfg := &Config{}
	cfg.Database.User = "proton"
	ApplyDefaults(cfg)
	return cfg
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultMinSitesPerMolecule, cfg.Pipeline.MinSitesPerMolecule)
	assert.Equal(t, DefaultVocabularyVersion, cfg.Pipeline.VocabularyVersion)
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultMinIOBucket, cfg.MinIO.Bucket)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Pipeline.VocabularyVersion = "v7"
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "v7", cfg.Pipeline.VocabularyVersion)
}

func TestApplyDefaultsNilIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadServerPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "server.port")
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Mode = "production"
	assert.ErrorContains(t, cfg.Validate(), "server.mode")
}

func TestValidateRequiresVocabularyVersion(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.VocabularyVersion = ""
	assert.ErrorContains(t, cfg.Validate(), "vocabulary_version")
}

func TestValidateRejectsNegativeWorkers(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.Workers = -1
	assert.ErrorContains(t, cfg.Validate(), "pipeline.workers")
}

func TestValidateRequiresDatabaseUser(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	assert.ErrorContains(t, cfg.Validate(), "database.user")
}

func TestValidateNeo4jOnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Neo4j.Enabled = true
	cfg.Neo4j.URI = ""
	assert.ErrorContains(t, cfg.Validate(), "neo4j.uri")

	cfg.Neo4j.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Format = "xml"
	assert.ErrorContains(t, cfg.Validate(), "log.format")
}
