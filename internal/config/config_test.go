package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test,
// restoring the original directory on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
}

func TestLoad_Defaults(t *testing.T) {
	// Run from an empty directory so no config.yaml is picked up.
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 0.8, cfg.Quality.Completeness)
	assert.Equal(t, 0.85, cfg.Quality.Accuracy)
	assert.Equal(t, 0.9, cfg.Quality.Consistency)
	assert.Equal(t, []string{"reference_data", "vendor_datasheets", "literature"}, cfg.Research.Providers)
	assert.Equal(t, 2, cfg.Validation.MinSources)
	assert.Equal(t, 0.7, cfg.Validation.ConfidenceThreshold)
	assert.True(t, cfg.Monitoring.Enabled)
	assert.Equal(t, 0.95, cfg.Monitoring.AlertThreshold)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/props
validation_rules:
  min_sources: 3
  confidence_threshold: 0.8
pipeline:
  workers: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/props", cfg.Store.DatabaseURL)
	assert.Equal(t, 3, cfg.Validation.MinSources)
	assert.Equal(t, 0.8, cfg.Validation.ConfidenceThreshold)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.95, cfg.Monitoring.AlertThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PROPERTY_STORE_DRIVER", "postgres")
	t.Setenv("PROPERTY_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}
