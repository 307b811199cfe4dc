// SPDX-License-Identifier: MIT

package playback

import (
	"github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"
)

// HostEvent names a lifecycle notification of the host media element.
type HostEvent string

const (
	HostLoadStart      HostEvent = "loadstart"
	HostLoadedData     HostEvent = "loadeddata"
	HostCanPlay        HostEvent = "canplay"
	HostCanPlayThrough HostEvent = "canplaythrough"
	HostPlay           HostEvent = "play"
	HostPause          HostEvent = "pause"
	HostEnded          HostEvent = "ended"
	HostSeeking        HostEvent = "seeking"
	HostSeeked         HostEvent = "seeked"
	HostTimeUpdate     HostEvent = "timeupdate"
	HostProgress       HostEvent = "progress"
	HostVolumeChange   HostEvent = "volumechange"
	HostRateChange     HostEvent = "ratechange"
	HostWaiting        HostEvent = "waiting"
	HostStalled        HostEvent = "stalled"
	HostSuspend        HostEvent = "suspend"
	HostError          HostEvent = "error"
)

// HostEvents lists every notification Sync subscribes to.
func HostEvents() []HostEvent {
	return []HostEvent{
		HostLoadStart, HostLoadedData, HostCanPlay, HostCanPlayThrough,
		HostPlay, HostPause, HostEnded, HostSeeking, HostSeeked,
		HostTimeUpdate, HostProgress, HostVolumeChange, HostRateChange,
		HostWaiting, HostStalled, HostSuspend, HostError,
	}
}

// NetworkState mirrors the media element network state.
type NetworkState int

const (
	NetworkEmpty NetworkState = iota
	NetworkIdle
	NetworkLoading
	NetworkNoSource
)

func (n NetworkState) String() string {
	switch n {
	case NetworkEmpty:
		return "empty"
	case NetworkIdle:
		return "idle"
	case NetworkLoading:
		return "loading"
	case NetworkNoSource:
		return "no_source"
	default:
		return "unknown"
	}
}

// ReadyState mirrors the media element ready state.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

func (r ReadyState) String() string {
	switch r {
	case HaveNothing:
		return "have_nothing"
	case HaveMetadata:
		return "have_metadata"
	case HaveCurrentData:
		return "have_current_data"
	case HaveFutureData:
		return "have_future_data"
	case HaveEnoughData:
		return "have_enough_data"
	default:
		return "unknown"
	}
}

// Media error codes reported by hosts.
const (
	MediaErrAborted         = 1
	MediaErrNetwork         = 2
	MediaErrDecode          = 3
	MediaErrSrcNotSupported = 4
)

// UnknownErrorMessage is shown when the host gives no usable error details.
const UnknownErrorMessage = "unknown error occurred"

// MediaError is a playback error reported by the host.
type MediaError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MediaError) Error() string {
	return e.Message
}

// Host is the media element the player wraps.
type Host interface {
	buffer.Source
	Volume() float64
	Muted() bool
	PlaybackRate() float64
	NetworkState() NetworkState
	ReadyState() ReadyState
	LastError() *MediaError
	// Subscribe registers fn for ev and returns a function that removes it.
	Subscribe(ev HostEvent, fn func()) (unsubscribe func())
}

// displayError returns the error shown to the user. Host errors without a
// message fall back to a per-code description, and to UnknownErrorMessage
// when the code is unknown too.
func displayError(raw *MediaError) MediaError {
	if raw == nil {
		return MediaError{Message: UnknownErrorMessage}
	}
	out := *raw
	if out.Message != "" {
		return out
	}
	switch out.Code {
	case MediaErrAborted:
		out.Message = "playback aborted"
	case MediaErrNetwork:
		out.Message = "network error"
	case MediaErrDecode:
		out.Message = "media decode error"
	case MediaErrSrcNotSupported:
		out.Message = "media source not supported"
	default:
		out.Message = UnknownErrorMessage
	}
	return out
}
