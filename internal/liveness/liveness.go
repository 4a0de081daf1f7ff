// Package liveness derives a machine's reachability status from the
// timestamp of its most recently accepted snapshot.
package liveness

import "time"

// Status is the derived reachability of a machine. It is never persisted.
type Status string

const (
	// StatusUnknown means the machine has never reported.
	StatusUnknown Status = "unknown"
	// StatusOnline means a snapshot arrived within the online threshold.
	StatusOnline Status = "online"
	// StatusWarning means the machine is late but not yet considered gone.
	StatusWarning Status = "warning"
	// StatusOffline means no snapshot within the offline threshold.
	StatusOffline Status = "offline"
)

// Thresholds controls the classification boundaries. Elapsed time below
// Online is online, below Offline is warning, and at or above Offline is
// offline.
type Thresholds struct {
	Online  time.Duration
	Offline time.Duration
}

// DefaultThresholds returns the standard 5 minute / 30 minute boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Online:  5 * time.Minute,
		Offline: 30 * time.Minute,
	}
}

// Classify maps the time since lastSeen to a four-valued status. A nil
// lastSeen means the machine never reported. Timestamps are compared in
// UTC; lastSeen values in the future classify as online.
func Classify(lastSeen *time.Time, now time.Time, t Thresholds) Status {
	if lastSeen == nil {
		return StatusUnknown
	}
	elapsed := now.UTC().Sub(lastSeen.UTC())
	switch {
	case elapsed < t.Online:
		return StatusOnline
	case elapsed < t.Offline:
		return StatusWarning
	default:
		return StatusOffline
	}
}

// Collapse projects the four-valued status onto the two-valued policy
// used by consumers that only distinguish reachable from unreachable:
// warning and unknown both collapse to offline.
func (s Status) Collapse() Status {
	if s == StatusOnline {
		return StatusOnline
	}
	return StatusOffline
}
