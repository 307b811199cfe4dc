// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oasdiff/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
)

// writeConfig marshals doc as YAML into dir/config.yaml and returns the path.
func writeConfig(t *testing.T, dir string, doc map[string]interface{}) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func newTestLoader(path string) *Loader {
	l := NewLoader(path, "test")
	l.EnvFile = ""
	return l
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := newTestLoader("").Load()
	require.NoError(t, err)

	want := Defaults()
	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, want.Player, cfg.Player)
	assert.Equal(t, want.Resume.Backend, cfg.Resume.Backend)
	assert.True(t, filepath.IsAbs(cfg.DataDir), "dataDir should be made absolute")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), map[string]interface{}{
		"logLevel": "debug",
		"player": map[string]interface{}{
			"segments":     80,
			"tickInterval": "500ms",
			"thresholds": map[string]interface{}{
				"poorBelow":  3,
				"goodFrom":   8,
				"enterBelow": 1.5,
				"exitAbove":  4,
			},
		},
		"resume": map[string]interface{}{
			"backend": "memory",
		},
	})

	cfg, err := newTestLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 80, cfg.Player.Segments)
	assert.Equal(t, 500*time.Millisecond, cfg.Player.TickInterval)
	assert.Equal(t, buffer.Thresholds{PoorBelow: 3, GoodFrom: 8, EnterBelow: 1.5, ExitAbove: 4}, cfg.Player.Thresholds)
	assert.Equal(t, "memory", cfg.Resume.Backend)
	// Untouched sections keep their defaults.
	assert.Equal(t, Defaults().Sim, cfg.Sim)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), map[string]interface{}{
		"player": map[string]interface{}{"segments": 80},
	})
	t.Setenv("LIONPLAYER_SEGMENTS", "120")
	t.Setenv("LIONPLAYER_EXIT_ABOVE", "3.5")
	t.Setenv("LIONPLAYER_RESUME_BACKEND", "redis")
	t.Setenv("LIONPLAYER_REDIS_ADDR", "localhost:6379")
	t.Setenv("LIONPLAYER_SIM_AUTOPLAY", "false")

	l := newTestLoader(path)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.Player.Segments)
	assert.Equal(t, 3.5, cfg.Player.Thresholds.ExitAbove)
	assert.Equal(t, "redis", cfg.Resume.Backend)
	assert.Equal(t, "localhost:6379", cfg.Resume.Redis.Addr)
	assert.False(t, cfg.Sim.Autoplay)
	assert.Contains(t, l.ConsumedEnvKeys, "LIONPLAYER_SEGMENTS")
	assert.Contains(t, l.ConsumedEnvKeys, "LIONPLAYER_SNAPSHOT_INTERVAL")
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, t.TempDir(), map[string]interface{}{
		"player": map[string]interface{}{"segmentz": 10},
	})

	_, err := newTestLoader(path).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_RejectsNonYAMLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))

	_, err := newTestLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	cfg, err := newTestLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Player, cfg.Player)
}

func TestLoad_MultipleDocumentsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: info\n---\nlogLevel: debug\n"), 0600))

	_, err := newTestLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_InvalidValuesFailValidation(t *testing.T) {
	path := writeConfig(t, t.TempDir(), map[string]interface{}{
		"player": map[string]interface{}{
			"segments": 0,
			"thresholds": map[string]interface{}{
				"enterBelow": 4,
				"exitAbove":  2,
			},
		},
	})

	_, err := newTestLoader(path).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSegmentCount)
	assert.ErrorIs(t, err, ErrInvalidThresholds)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LIONPLAYER_LISTEN=:9999\nLIONPLAYER_LOG_LEVEL=warn\n"), 0600))
	// Process env wins over the dotenv file.
	t.Setenv("LIONPLAYER_LOG_LEVEL", "error")
	t.Cleanup(func() { os.Unsetenv("LIONPLAYER_LISTEN") })

	l := newTestLoader("")
	l.EnvFile = envFile
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	l := newTestLoader("")
	l.EnvFile = filepath.Join(t.TempDir(), "absent.env")
	_, err := l.Load()
	require.NoError(t, err)
}
