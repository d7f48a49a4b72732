// ABOUTME: Playback position anchor and interpolation
// ABOUTME: Pure arithmetic over the last position report and the local clock
package lava

import "time"

// Position is the last known playback offset and the local time it was
// observed.
type Position struct {
	Offset time.Duration
	At     time.Time
}

// Project estimates the offset at now. A stopped clock (paused, idle) keeps
// the anchored offset.
func (p Position) Project(now time.Time, running bool) time.Duration {
	if !running || p.At.IsZero() {
		return p.Offset
	}
	elapsed := now.Sub(p.At)
	if elapsed < 0 {
		elapsed = 0
	}
	return p.Offset + elapsed
}

// clampOffset keeps d inside [0, length]. Streams and unknown lengths are
// only bounded below.
func clampOffset(d, length time.Duration, stream bool) time.Duration {
	if d < 0 {
		return 0
	}
	if !stream && length > 0 && d > length {
		return length
	}
	return d
}
