// SPDX-License-Identifier: MIT

package buffer

import (
	"errors"
	"fmt"
)

// DefaultSegmentCount is the number of visual segments when none is configured.
const DefaultSegmentCount = 50

// ErrSourceUnavailable is returned by sources that cannot report buffered
// ranges right now. The monitor treats it like any other source error.
var ErrSourceUnavailable = errors.New("buffered ranges unavailable")

// ErrInvalidThresholds is returned by Thresholds.Validate.
var ErrInvalidThresholds = errors.New("invalid buffer thresholds")

// TimeRange is a contiguous buffered interval in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Tier is the coarse buffer health classification.
type Tier int

const (
	TierPoor Tier = iota
	TierMedium
	TierGood
)

func (t Tier) String() string {
	switch t {
	case TierGood:
		return "good"
	case TierMedium:
		return "medium"
	case TierPoor:
		return "poor"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Classification is the result of Classify.
type Classification struct {
	Tier  Tier    `json:"tier"`
	Ahead float64 `json:"ahead_seconds"`
}

// Segment is one equal-width slice of the media duration.
type Segment struct {
	Index   int  `json:"index"`
	Loaded  bool `json:"loaded"`
	Loading bool `json:"loading"`
}

// Thresholds holds the tier boundaries and the buffering watermarks, in
// seconds of media buffered ahead of the playhead.
type Thresholds struct {
	// PoorBelow: ahead < PoorBelow is poor.
	PoorBelow float64 `yaml:"poorBelow" json:"poor_below"`
	// GoodFrom: ahead >= GoodFrom is good; everything in between is medium.
	GoodFrom float64 `yaml:"goodFrom" json:"good_from"`
	// EnterBelow: buffering starts when ahead drops below this while playing.
	EnterBelow float64 `yaml:"enterBelow" json:"enter_below"`
	// ExitAbove: buffering stops when ahead rises above this.
	ExitAbove float64 `yaml:"exitAbove" json:"exit_above"`
}

// DefaultThresholds returns the stock 2s/5s tiers and 1s/3s watermarks.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PoorBelow:  2,
		GoodFrom:   5,
		EnterBelow: 1,
		ExitAbove:  3,
	}
}

// Validate checks ordering of the boundaries.
func (t Thresholds) Validate() error {
	if t.PoorBelow < 0 || t.EnterBelow < 0 {
		return fmt.Errorf("%w: negative boundary", ErrInvalidThresholds)
	}
	if t.GoodFrom < t.PoorBelow {
		return fmt.Errorf("%w: goodFrom (%g) < poorBelow (%g)", ErrInvalidThresholds, t.GoodFrom, t.PoorBelow)
	}
	if t.ExitAbove <= t.EnterBelow {
		return fmt.Errorf("%w: exitAbove (%g) must exceed enterBelow (%g)", ErrInvalidThresholds, t.ExitAbove, t.EnterBelow)
	}
	return nil
}
