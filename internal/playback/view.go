// SPDX-License-Identifier: MIT

package playback

import "github.com/MohamedMahfouzzzzz/lion-player/internal/buffer"

// View is the presentation layer. Every call is an idempotent repaint.
type View interface {
	ShowLoading(on bool)
	ShowSeeking(on bool)
	ShowBuffering(on bool)
	ShowError(message string)
	RefreshLoaded(percent float64)
	RefreshTime(current, duration float64)
	RefreshProgress(percent float64)
	RefreshPlayIcon(playing bool)
	RefreshVolumeIcon(volume float64, muted bool)
	RefreshRate(rate float64)
	RefreshHealth(tier buffer.Tier)
	RenderSegments(segments []buffer.Segment)
}

// NopView ignores every call. It is used when no view is attached.
type NopView struct{}

func (NopView) ShowLoading(bool)                {}
func (NopView) ShowSeeking(bool)                {}
func (NopView) ShowBuffering(bool)              {}
func (NopView) ShowError(string)                {}
func (NopView) RefreshLoaded(float64)           {}
func (NopView) RefreshTime(float64, float64)    {}
func (NopView) RefreshProgress(float64)         {}
func (NopView) RefreshPlayIcon(bool)            {}
func (NopView) RefreshVolumeIcon(float64, bool) {}
func (NopView) RefreshRate(float64)             {}
func (NopView) RefreshHealth(buffer.Tier)       {}
func (NopView) RenderSegments([]buffer.Segment) {}
