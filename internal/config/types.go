// SPDX-License-Identifier: MIT

package config

import (
	"time"

	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
	"github.com/MohamedMahfouzzzzz/lion-player/internal/resume"
)

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version  string         `yaml:"-" json:"version"`
	LogLevel string         `yaml:"logLevel" json:"logLevel"`
	Listen   string         `yaml:"listen" json:"listen"`
	DataDir  string         `yaml:"dataDir" json:"dataDir"`
	Player   PlayerConfig   `yaml:"player" json:"player"`
	Resume   ResumeConfig   `yaml:"resume" json:"resume"`
	Tracing  TracingConfig  `yaml:"tracing" json:"tracing"`
	Sim      SimConfig      `yaml:"sim" json:"sim"`
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
}

// PlayerConfig tunes buffer monitoring.
type PlayerConfig struct {
	Segments     int               `yaml:"segments" json:"segments"`
	TickInterval time.Duration     `yaml:"tickInterval" json:"tickInterval"`
	Thresholds   buffer.Thresholds `yaml:"thresholds" json:"thresholds"`
}

// ResumeConfig selects where playback positions are kept.
type ResumeConfig struct {
	Backend      string             `yaml:"backend" json:"backend"`
	Profile      string             `yaml:"profile" json:"profile"`
	SaveInterval time.Duration      `yaml:"saveInterval" json:"saveInterval"`
	Redis        resume.RedisConfig `yaml:"redis" json:"redis"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	Endpoint     string  `yaml:"endpoint" json:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
}

// SimConfig describes the simulated media element the daemon plays.
type SimConfig struct {
	MediaID  string        `yaml:"mediaId" json:"mediaId"`
	Duration time.Duration `yaml:"duration" json:"duration"`
	// Bitrate of the media in bits per second.
	Bitrate int64 `yaml:"bitrate" json:"bitrate"`
	// Bandwidth is a comma separated list of bits-per-second values cycled
	// every BandwidthStep, e.g. "8000000,500000,4000000".
	Bandwidth     string        `yaml:"bandwidth" json:"bandwidth"`
	BandwidthStep time.Duration `yaml:"bandwidthStep" json:"bandwidthStep"`
	Step          time.Duration `yaml:"step" json:"step"`
	Autoplay      bool          `yaml:"autoplay" json:"autoplay"`
}

// SnapshotConfig controls the periodic state dump.
type SnapshotConfig struct {
	Path     string        `yaml:"path" json:"path"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		Listen:   ":8088",
		DataDir:  "data",
		Player: PlayerConfig{
			Segments:     buffer.DefaultSegmentCount,
			TickInterval: buffer.DefaultTickInterval,
			Thresholds:   buffer.DefaultThresholds(),
		},
		Resume: ResumeConfig{
			Backend:      "sqlite",
			Profile:      "default",
			SaveInterval: resume.DefaultSaveInterval,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		Sim: SimConfig{
			MediaID:       "demo",
			Duration:      10 * time.Minute,
			Bitrate:       4_000_000,
			Bandwidth:     "8000000,6000000,1500000,3000000,12000000",
			BandwidthStep: 20 * time.Second,
			Step:          250 * time.Millisecond,
			Autoplay:      true,
		},
		Snapshot: SnapshotConfig{
			Interval: 30 * time.Second,
		},
	}
}
