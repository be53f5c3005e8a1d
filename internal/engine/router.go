package engine

import "time"

// Decision is the channel router's verdict for one candidate notification.
// Immediate channels dispatch right away; Deferred channels wait for the
// next digest flush (quiet hours or a non-realtime frequency). In-app
// storage is not part of the decision: the store records every candidate
// regardless of routing.
type Decision struct {
	Immediate []Channel
	Deferred  []Channel
}

// Empty reports whether no external delivery will happen at all.
func (d Decision) Empty() bool {
	return len(d.Immediate) == 0 && len(d.Deferred) == 0
}

// Route computes the effective external delivery set for a candidate from
// the preferences as they stand right now. Preferences are read at decision
// time, never captured at rule-definition time.
//
// In order: intersect the candidate's requested channels with the user's
// enabled channels; drop everything if the candidate's category is gated
// off; defer non-critical delivery during quiet hours (critical passes
// untouched); defer everything when the frequency is not realtime.
func Route(candidate Notification, prefs Preferences, now time.Time) Decision {
	effective := make([]Channel, 0, len(candidate.Channels))
	for _, ch := range candidate.Channels {
		if ch.External() && prefs.ChannelEnabled(ch) {
			effective = append(effective, ch)
		}
	}
	if len(effective) == 0 {
		return Decision{}
	}

	// The category gate is absolute for external delivery.
	if !prefs.CategoryEnabled(CategoryOf(candidate.Type)) {
		return Decision{}
	}

	if prefs.QuietHoursActive(now) && candidate.Priority != PriorityCritical {
		return Decision{Deferred: effective}
	}

	if prefs.Frequency != FrequencyRealtime {
		return Decision{Deferred: effective}
	}

	return Decision{Immediate: effective}
}
