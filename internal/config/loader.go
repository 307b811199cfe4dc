// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is shared by every environment key the loader reads.
const EnvPrefix = "LIONPLAYER_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	EnvFile         string              // optional dotenv file; missing files are ignored
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		EnvFile:         ".env",
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path (may be empty).
func (l *Loader) Path() string {
	return l.configPath
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// The file is parsed strictly, then the environment is applied, then the
// result is validated.
func (l *Loader) Load() (AppConfig, error) {
	if err := l.loadDotEnv(); err != nil {
		return AppConfig{}, err
	}

	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if cfg.DataDir != "" {
		if abs, err := filepath.Abs(cfg.DataDir); err == nil {
			cfg.DataDir = abs
		}
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadDotEnv populates the process environment from EnvFile without
// overriding variables that are already set.
func (l *Loader) loadDotEnv() error {
	if l.EnvFile == "" {
		return nil
	}
	if _, err := os.Stat(l.EnvFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(l.EnvFile); err != nil {
		return fmt.Errorf("load env file %s: %w", l.EnvFile, err)
	}
	return nil
}

// loadFile decodes a YAML file over dst with STRICT parsing.
// Unknown fields are fatal to prevent silent misconfiguration.
func (l *Loader) loadFile(path string, dst *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnvConfig applies LIONPLAYER_* overrides (highest priority).
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.Listen = l.envString(EnvPrefix+"LISTEN", cfg.Listen)
	cfg.DataDir = l.envString(EnvPrefix+"DATA_DIR", cfg.DataDir)

	p := &cfg.Player
	p.Segments = l.envInt(EnvPrefix+"SEGMENTS", p.Segments)
	p.TickInterval = l.envDuration(EnvPrefix+"TICK_INTERVAL", p.TickInterval)
	p.Thresholds.PoorBelow = l.envFloat(EnvPrefix+"POOR_BELOW", p.Thresholds.PoorBelow)
	p.Thresholds.GoodFrom = l.envFloat(EnvPrefix+"GOOD_FROM", p.Thresholds.GoodFrom)
	p.Thresholds.EnterBelow = l.envFloat(EnvPrefix+"ENTER_BELOW", p.Thresholds.EnterBelow)
	p.Thresholds.ExitAbove = l.envFloat(EnvPrefix+"EXIT_ABOVE", p.Thresholds.ExitAbove)

	r := &cfg.Resume
	r.Backend = l.envString(EnvPrefix+"RESUME_BACKEND", r.Backend)
	r.Profile = l.envString(EnvPrefix+"RESUME_PROFILE", r.Profile)
	r.SaveInterval = l.envDuration(EnvPrefix+"RESUME_SAVE_INTERVAL", r.SaveInterval)
	r.Redis.Addr = l.envString(EnvPrefix+"REDIS_ADDR", r.Redis.Addr)
	r.Redis.Password = l.envString(EnvPrefix+"REDIS_PASSWORD", r.Redis.Password)
	r.Redis.DB = l.envInt(EnvPrefix+"REDIS_DB", r.Redis.DB)
	r.Redis.TTL = l.envDuration(EnvPrefix+"REDIS_TTL", r.Redis.TTL)

	tr := &cfg.Tracing
	tr.Enabled = l.envBool(EnvPrefix+"TRACING_ENABLED", tr.Enabled)
	tr.Exporter = l.envString(EnvPrefix+"TRACING_EXPORTER", tr.Exporter)
	tr.Endpoint = l.envString(EnvPrefix+"TRACING_ENDPOINT", tr.Endpoint)
	tr.SamplingRate = l.envFloat(EnvPrefix+"TRACING_SAMPLING_RATE", tr.SamplingRate)

	s := &cfg.Sim
	s.MediaID = l.envString(EnvPrefix+"SIM_MEDIA_ID", s.MediaID)
	s.Duration = l.envDuration(EnvPrefix+"SIM_DURATION", s.Duration)
	s.Bitrate = l.envInt64(EnvPrefix+"SIM_BITRATE", s.Bitrate)
	s.Bandwidth = l.envString(EnvPrefix+"SIM_BANDWIDTH", s.Bandwidth)
	s.BandwidthStep = l.envDuration(EnvPrefix+"SIM_BANDWIDTH_STEP", s.BandwidthStep)
	s.Step = l.envDuration(EnvPrefix+"SIM_STEP", s.Step)
	s.Autoplay = l.envBool(EnvPrefix+"SIM_AUTOPLAY", s.Autoplay)

	cfg.Snapshot.Path = l.envString(EnvPrefix+"SNAPSHOT_PATH", cfg.Snapshot.Path)
	cfg.Snapshot.Interval = l.envDuration(EnvPrefix+"SNAPSHOT_INTERVAL", cfg.Snapshot.Interval)
}
