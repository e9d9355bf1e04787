// Package client reconciles a run's event stream into a view state: an
// acceptance filter over sequence numbers, typed buffers per event kind, and
// frame selection for live-follow versus pinned playback.
package client

import "math"

// ShouldAccept reports whether an incoming sequence number advances the
// stream. Anything non-finite or not strictly greater than the last accepted
// seq is a duplicate or garbage and is dropped.
func ShouldAccept(lastAccepted int64, seq float64) bool {
	if math.IsNaN(seq) || math.IsInf(seq, 0) {
		return false
	}
	return seq > float64(lastAccepted)
}

// NextFrameIndex selects the visible frame after the buffer grew to
// frameCount. Following the live edge always lands on the newest frame; a
// pinned index stays put, clamped into the valid range.
func NextFrameIndex(prev, frameCount int, liveFollow bool) int {
	if frameCount <= 0 {
		return 0
	}
	if liveFollow {
		return frameCount - 1
	}
	if prev < 0 {
		return 0
	}
	if prev > frameCount-1 {
		return frameCount - 1
	}
	return prev
}

// AdvanceHighlight moves the op-graph playback cursor one node forward,
// wrapping at the end.
func AdvanceHighlight(current, nodeCount int) int {
	if nodeCount <= 0 {
		return 0
	}
	return (current + 1) % nodeCount
}
