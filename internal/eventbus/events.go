// SPDX-License-Identifier: MIT

package eventbus

// Name identifies a player event.
type Name string

// Event vocabulary shared with external listeners.
const (
	LoadData         Name = "loaddata"
	CanPlay          Name = "canplay"
	CanPlayThrough   Name = "canplaythrough"
	Play             Name = "play"
	Pause            Name = "pause"
	Ended            Name = "ended"
	Seeking          Name = "seeking"
	Seeked           Name = "seeked"
	TimeUpdate       Name = "timeupdate"
	Progress         Name = "progress"
	VolumeChange     Name = "volumechange"
	Error            Name = "error"
	RateChange       Name = "ratechange"
	Buffering        Name = "buffering"
	BufferFull       Name = "bufferfull"
	Resize           Name = "resize"
	FullscreenChange Name = "fullscreenchange"
	NetworkChange    Name = "networkchange"
	ThemeChange      Name = "themechange"
	Gesture          Name = "gesture"
	Resume           Name = "resume"
)

var vocabulary = []Name{
	LoadData, CanPlay, CanPlayThrough, Play, Pause, Ended, Seeking, Seeked,
	TimeUpdate, Progress, VolumeChange, Error, RateChange, Buffering, BufferFull,
	Resize, FullscreenChange, NetworkChange, ThemeChange, Gesture, Resume,
}

// Names returns the event vocabulary in declaration order.
func Names() []Name {
	return append([]Name(nil), vocabulary...)
}

// Known reports whether n belongs to the vocabulary.
func Known(n Name) bool {
	for _, v := range vocabulary {
		if v == n {
			return true
		}
	}
	return false
}

// Event is what listeners receive.
type Event struct {
	Name    Name
	Payload any
}
