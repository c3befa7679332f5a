package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Values(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 44100.0, cfg.SampleRate)
	assert.Equal(t, 512, cfg.PeriodFrames)
	assert.Equal(t, 5000, cfg.ProbeTimeoutMs)
	assert.Equal(t, "default", cfg.Driver)
	assert.Empty(t, cfg.PluginDirs)
}

func TestLoadFrom_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "plugin_dirs": ["/opt/plugins"],
  "sample_rate": 48000,
  "period_frames": 256
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/opt/plugins"}, cfg.PluginDirs)
	assert.Equal(t, 48000.0, cfg.SampleRate)
	assert.Equal(t, 256, cfg.PeriodFrames)
	// Untouched fields keep their defaults
	assert.Equal(t, 5000, cfg.ProbeTimeoutMs)
}

func TestLoadFrom_MissingFile_UsesDefaults(t *testing.T) {
	cfg, err := loadFrom(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, 44100.0, cfg.SampleRate)
}

func TestLoadFrom_MalformedFile_ReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := loadFrom(path)
	assert.Error(t, err)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sample_rate": 48000}`), 0o644))

	t.Setenv("RACKHOST_SAMPLE_RATE", "96000")
	t.Setenv("RACKHOST_PERIOD_FRAMES", "128")
	t.Setenv("RACKHOST_DEBUG", "true")

	cfg, err := loadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 96000.0, cfg.SampleRate)
	assert.Equal(t, 128, cfg.PeriodFrames)
	assert.True(t, cfg.Debug)
}

func TestApplyEnv_InvalidNumbers_AreIgnored(t *testing.T) {
	t.Setenv("RACKHOST_SAMPLE_RATE", "loud")
	t.Setenv("RACKHOST_PERIOD_FRAMES", "-4")

	cfg := Default()
	applyEnv(cfg)

	assert.Equal(t, 44100.0, cfg.SampleRate)
	assert.Equal(t, 512, cfg.PeriodFrames)
}

func TestValidate_ClampsOutOfRangeValues(t *testing.T) {
	cfg := &Config{SampleRate: -1, PeriodFrames: 0, ProbeTimeoutMs: -100}
	cfg.Validate()

	assert.Equal(t, 44100.0, cfg.SampleRate)
	assert.Equal(t, 512, cfg.PeriodFrames)
	assert.Equal(t, 5000, cfg.ProbeTimeoutMs)
	assert.Equal(t, "default", cfg.Driver)
}
