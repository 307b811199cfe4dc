// SPDX-License-Identifier: MIT

package buffer

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Tiers(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name  string
		end   float64
		cur   float64
		tier  Tier
		ahead float64
	}{
		{"zero ahead", 10, 10, TierPoor, 0},
		{"just under poor", 11.99, 10, TierPoor, 1.99},
		{"poor boundary", 12, 10, TierMedium, 2},
		{"medium", 14, 10, TierMedium, 4},
		{"good boundary", 15, 10, TierGood, 5},
		{"good", 40, 10, TierGood, 30},
		{"playhead past buffer", 5, 10, TierPoor, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify([]TimeRange{{Start: 0, End: tt.end}}, tt.cur, 100, th)
			assert.Equal(t, tt.tier, c.Tier)
			assert.InDelta(t, tt.ahead, c.Ahead, 1e-9)
		})
	}
}

func TestClassify_Empty(t *testing.T) {
	c := Classify(nil, 3, 100, DefaultThresholds())
	assert.Equal(t, Classification{Tier: TierPoor}, c)
}

func TestClassify_UsesFurthestEnd(t *testing.T) {
	ranges := []TimeRange{{0, 4}, {20, 30}, {8, 12}}
	c := Classify(ranges, 2, 100, DefaultThresholds())
	assert.InDelta(t, 28, c.Ahead, 1e-9)
	assert.Equal(t, TierGood, c.Tier)
}

func TestClassify_SkipsInvalidRanges(t *testing.T) {
	ranges := []TimeRange{{0, 3}, {math.NaN(), 50}, {60, 40}, {0, math.Inf(1)}}
	c := Classify(ranges, 0, 100, DefaultThresholds())
	assert.InDelta(t, 3, c.Ahead, 1e-9)
	assert.Equal(t, TierMedium, c.Tier)
}

func TestClassify_CapsAtDuration(t *testing.T) {
	c := Classify([]TimeRange{{0, 120}}, 99, 100, DefaultThresholds())
	assert.InDelta(t, 1, c.Ahead, 1e-9)
}

func TestSegmentize_EmptyRanges(t *testing.T) {
	segs := Segmentize(nil, 5, 100, 10)
	require.Len(t, segs, 10)
	for i, s := range segs {
		assert.Equal(t, Segment{Index: i}, s)
	}
}

func TestSegmentize_FirstTenSeconds(t *testing.T) {
	segs := Segmentize([]TimeRange{{0, 10}}, 50, 100, 10)
	require.Len(t, segs, 10)
	assert.True(t, segs[0].Loaded)
	// End index rounds up and is inclusive.
	assert.True(t, segs[1].Loaded)
	for i := 2; i < 10; i++ {
		assert.False(t, segs[i].Loaded, "segment %d", i)
	}
}

func TestSegmentize_Loading(t *testing.T) {
	segs := Segmentize([]TimeRange{{0, 100}}, 25, 100, 10)
	var loading []int
	for _, s := range segs {
		if s.Loading {
			loading = append(loading, s.Index)
		}
	}
	// Centers exactly one width away are not loading.
	assert.Equal(t, []int{2}, loading)

	segs = Segmentize([]TimeRange{{0, 100}}, 20, 100, 10)
	loading = loading[:0]
	for _, s := range segs {
		if s.Loading {
			loading = append(loading, s.Index)
		}
	}
	assert.Equal(t, []int{1, 2}, loading)
}

func TestSegmentize_DegenerateDuration(t *testing.T) {
	want := Segmentize(nil, 0, 0, 4)
	for _, d := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		got := Segmentize([]TimeRange{{0, 10}}, 1, d, 4)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("duration %v: segments mismatch (-want +got):\n%s", d, diff)
		}
	}
}

func TestSegmentize_NonPositiveCount(t *testing.T) {
	assert.Empty(t, Segmentize([]TimeRange{{0, 10}}, 0, 100, 0))
	assert.Empty(t, Segmentize([]TimeRange{{0, 10}}, 0, 100, -3))
}

func TestSegmentize_ClipsIndices(t *testing.T) {
	segs := Segmentize([]TimeRange{{90, 150}}, math.NaN(), 100, 10)
	want := make([]Segment, 10)
	for i := range want {
		want[i].Index = i
		want[i].Loaded = i == 9
	}
	if diff := cmp.Diff(want, segs); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestSegmentize_Pure(t *testing.T) {
	ranges := []TimeRange{{0, 12}, {40, 47}}
	a := Segmentize(ranges, 10, 60, 12)
	b := Segmentize(ranges, 10, 60, 12)
	assert.Empty(t, cmp.Diff(a, b))
	assert.Equal(t, []TimeRange{{0, 12}, {40, 47}}, ranges)
}

func TestLoadedPercent(t *testing.T) {
	assert.InDelta(t, 25, LoadedPercent([]TimeRange{{0, 10}, {50, 65}}, 100), 1e-9)
	assert.InDelta(t, 100, LoadedPercent([]TimeRange{{0, 200}}, 100), 1e-9)
	assert.Zero(t, LoadedPercent([]TimeRange{{0, 10}}, 0))
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.ExitAbove = bad.EnterBelow
	assert.ErrorIs(t, bad.Validate(), ErrInvalidThresholds)

	bad = DefaultThresholds()
	bad.GoodFrom = 1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidThresholds)
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "good", TierGood.String())
	assert.Equal(t, "medium", TierMedium.String())
	assert.Equal(t, "poor", TierPoor.String())
	assert.Equal(t, "unknown", Tier(9).String())
}
