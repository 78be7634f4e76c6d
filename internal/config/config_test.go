package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":50051", cfg.Server.Address)
	assert.Equal(t, "/api/dashboard/data", cfg.Clients.Dashboard.DataPath)
	assert.Equal(t, 0.6, cfg.Aggregation.PositiveThreshold)
	assert.Equal(t, 0.4, cfg.Aggregation.NegativeThreshold)
	assert.Equal(t, 0.5, cfg.Aggregation.NeutralBaseline)
	assert.Equal(t, "/Shared/Engagement_Analysis", cfg.Report.NotebookPath)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
clients:
  dashboard:
    baseURL: http://backend:8000
    timeout: 2s
aggregation:
  positiveThreshold: 0.7
  negativeThreshold: 0.3
  neutralBaseline: 0.5
`), 0o644))

	t.Setenv("ENGAGEMENT_NEUTRAL_BASELINE", "0.55")
	t.Setenv("ENGAGEMENT_CACHE_HEALTH_TTL", "1m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8000", cfg.Clients.Dashboard.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Clients.Dashboard.Timeout)
	assert.Equal(t, "/health", cfg.Clients.Dashboard.HealthPath, "unset keys keep defaults")

	th := cfg.Aggregation.Thresholds()
	assert.Equal(t, 0.7, th.Positive)
	assert.Equal(t, 0.3, th.Negative)
	assert.Equal(t, 0.55, th.Baseline)
	assert.Equal(t, time.Minute, cfg.Cache.HealthTTL)
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	t.Setenv("ENGAGEMENT_POSITIVE_THRESHOLD", "0.3")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRequiresSource(t *testing.T) {
	cfg := defaultConfig()
	cfg.Source.SamplePath = ""
	assert.Error(t, cfg.Validate())

	cfg.Clients.Dashboard.BaseURL = "http://backend"
	assert.NoError(t, cfg.Validate())

	cfg.Report.OpenAI.Enabled = true
	assert.Error(t, cfg.Validate())
}
