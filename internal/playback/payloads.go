// SPDX-License-Identifier: MIT

package playback

// Position is the payload of timeupdate, pause and ended.
type Position struct {
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
}

// LoadData is the payload of loaddata once media data is available.
type LoadData struct {
	Duration   float64    `json:"duration"`
	ReadyState ReadyState `json:"ready_state"`
}

// Volume is the payload of volumechange.
type Volume struct {
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
}
