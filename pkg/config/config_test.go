package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:1234/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "local-model", cfg.LLM.Model)
	assert.Equal(t, 2*time.Second, cfg.LLM.ProbeTimeout)
	assert.Equal(t, "file", cfg.Documents.Backend)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LLM_BASE_URL", "http://llm.internal:9000/v1/")
	t.Setenv("LLM_PROBE_TIMEOUT", "500ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://llm.internal:9000/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.ProbeTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	cfg.Documents.Backend = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg.Documents.Backend = "postgres"
	cfg.Storage.Type = "s3"
	assert.Error(t, cfg.Validate())

	cfg.Storage.Type = "minio"
	cfg.LLM.Language = "de"
	assert.Error(t, cfg.Validate())
}

func TestLoadReportsEnvFile(t *testing.T) {
	if _, set := os.LookupEnv("LOG_LEVEL"); set {
		t.Skip("LOG_LEVEL already set in the environment")
	}
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.EnvFileLoaded)

	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LOG_LEVEL") })

	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.EnvFileLoaded)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
