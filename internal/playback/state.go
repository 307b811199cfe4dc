// SPDX-License-Identifier: MIT

package playback

import "github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"

// State is a snapshot of the player as last reported by the host.
type State struct {
	Playing       bool             `json:"playing"`
	Paused        bool             `json:"paused"`
	Ended         bool             `json:"ended"`
	Seeking       bool             `json:"seeking"`
	Loading       bool             `json:"loading"`
	CurrentTime   float64          `json:"current_time"`
	Duration      float64          `json:"duration"`
	Volume        float64          `json:"volume"`
	Muted         bool             `json:"muted"`
	PlaybackRate  float64          `json:"playback_rate"`
	NetworkState  NetworkState     `json:"network_state"`
	ReadyState    ReadyState       `json:"ready_state"`
	BufferHealth  buffer.Tier      `json:"buffer_health"`
	BufferAhead   float64          `json:"buffer_ahead_seconds"`
	Buffering     bool             `json:"buffering"`
	Segments      []buffer.Segment `json:"segments"`
	LoadedPercent float64          `json:"loaded_percent"`
	Error         *MediaError      `json:"error,omitempty"`
}

func initialState() State {
	return State{
		Paused:       true,
		Volume:       1,
		PlaybackRate: 1,
		BufferHealth: buffer.TierPoor,
	}
}

func (s State) clone() State {
	out := s
	out.Segments = append([]buffer.Segment(nil), s.Segments...)
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}
