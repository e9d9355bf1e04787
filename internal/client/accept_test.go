package client

import (
	"math"
	"testing"
)

// TestShouldAccept covers the acceptance filter, including non-finite seqs.
func TestShouldAccept(t *testing.T) {
	cases := []struct {
		name string
		last int64
		seq  float64
		want bool
	}{
		{"next seq", 5, 6, true},
		{"duplicate", 5, 5, false},
		{"stale", 5, 4, false},
		{"nan", 5, math.NaN(), false},
		{"positive inf", 5, math.Inf(1), false},
		{"negative inf", 5, math.Inf(-1), false},
		{"first event", 0, 1, true},
		{"far ahead", 5, 100, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldAccept(tc.last, tc.seq); got != tc.want {
				t.Fatalf("ShouldAccept(%d, %v) = %v, want %v", tc.last, tc.seq, got, tc.want)
			}
		})
	}
}

// TestNextFrameIndex covers live-follow, pinning, and clamping.
func TestNextFrameIndex(t *testing.T) {
	cases := []struct {
		name       string
		prev       int
		count      int
		liveFollow bool
		want       int
	}{
		{"live follows newest", 0, 4, true, 3},
		{"pin holds", 1, 4, false, 1},
		{"pin clamps past end", 10, 3, false, 2},
		{"pin clamps negative", -2, 3, false, 0},
		{"empty buffer", 5, 0, false, 0},
		{"empty buffer live", 5, 0, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextFrameIndex(tc.prev, tc.count, tc.liveFollow); got != tc.want {
				t.Fatalf("NextFrameIndex(%d, %d, %v) = %d, want %d",
					tc.prev, tc.count, tc.liveFollow, got, tc.want)
			}
		})
	}
}

// TestAdvanceHighlight checks wraparound of the playback cursor.
func TestAdvanceHighlight(t *testing.T) {
	if got := AdvanceHighlight(0, 3); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	if got := AdvanceHighlight(2, 3); got != 0 {
		t.Fatalf("wrap got %d, want 0", got)
	}
	if got := AdvanceHighlight(5, 0); got != 0 {
		t.Fatalf("empty graph got %d, want 0", got)
	}
}
