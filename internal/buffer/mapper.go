// SPDX-License-Identifier: MIT

package buffer

import "math"

// Classify maps buffered ranges and the playhead to a health tier.
// Ahead is measured to the end of the range reaching furthest; it never goes
// negative. A known duration caps the range end. Empty input is poor with zero
// ahead.
func Classify(ranges []TimeRange, currentTime, duration float64, th Thresholds) Classification {
	end, ok := furthestEnd(ranges)
	if !ok {
		return Classification{Tier: TierPoor}
	}
	if finite(duration) && duration > 0 && end > duration {
		end = duration
	}
	if !finite(currentTime) || currentTime < 0 {
		currentTime = 0
	}

	ahead := end - currentTime
	if ahead < 0 {
		ahead = 0
	}
	return Classification{Tier: tierFor(ahead, th), Ahead: ahead}
}

func tierFor(ahead float64, th Thresholds) Tier {
	switch {
	case ahead < th.PoorBelow:
		return TierPoor
	case ahead < th.GoodFrom:
		return TierMedium
	default:
		return TierGood
	}
}

func furthestEnd(ranges []TimeRange) (float64, bool) {
	end, ok := 0.0, false
	for _, r := range ranges {
		if !valid(r) {
			continue
		}
		if !ok || r.End > end {
			end, ok = r.End, true
		}
	}
	return end, ok
}

// Segmentize maps buffered ranges onto count equal-width segments.
// A segment is loaded when a range touches its span (range endpoints round
// outward) and loading when its center lies within one segment width of the
// playhead. Unknown or zero duration yields all-unloaded segments.
func Segmentize(ranges []TimeRange, currentTime, duration float64, count int) []Segment {
	if count <= 0 {
		return []Segment{}
	}
	segs := make([]Segment, count)
	for i := range segs {
		segs[i].Index = i
	}
	if len(ranges) == 0 || !finite(duration) || duration <= 0 {
		return segs
	}

	n := float64(count)
	for _, r := range ranges {
		if !valid(r) {
			continue
		}
		lo := clampIndex(math.Floor(r.Start/duration*n), count)
		hi := clampIndex(math.Ceil(r.End/duration*n), count)
		for i := lo; i <= hi; i++ {
			segs[i].Loaded = true
		}
	}

	if finite(currentTime) {
		width := duration / n
		for i := range segs {
			center := (float64(i) + 0.5) * width
			if math.Abs(center-currentTime) < width {
				segs[i].Loading = true
			}
		}
	}
	return segs
}

func clampIndex(v float64, count int) int {
	if v < 0 {
		return 0
	}
	if v > float64(count-1) {
		return count - 1
	}
	return int(v)
}

func valid(r TimeRange) bool {
	return finite(r.Start) && finite(r.End) && r.Start <= r.End
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LoadedPercent is the share of duration covered by ranges, in [0, 100].
func LoadedPercent(ranges []TimeRange, duration float64) float64 {
	if !finite(duration) || duration <= 0 {
		return 0
	}
	total := 0.0
	for _, r := range ranges {
		if !valid(r) {
			continue
		}
		start := math.Max(r.Start, 0)
		end := math.Min(r.End, duration)
		if end > start {
			total += end - start
		}
	}
	pct := total / duration * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
