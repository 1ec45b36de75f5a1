package auction

import "time"

// EvaluatePopcorn decides whether a bid landing at bidAt pushes out the
// auction's end time. The window slides from the bid's arrival, not from
// the old deadline, so repeated late bids keep sliding instead of
// compounding. Returns the new end time and true when an extension
// applies.
func EvaluatePopcorn(endTime time.Time, cfg PopcornConfig, bidAt time.Time) (time.Time, bool) {
	if !cfg.Enabled || cfg.ExtendSeconds <= 0 {
		return time.Time{}, false
	}
	trigger := time.Duration(cfg.TriggerSeconds) * time.Second
	if endTime.Sub(bidAt) > trigger {
		// Bid arrived outside the anti-snipe window.
		return time.Time{}, false
	}
	newEnd := bidAt.Add(time.Duration(cfg.ExtendSeconds) * time.Second)
	if !newEnd.After(endTime) {
		// End time only ever moves forward.
		return time.Time{}, false
	}
	return newEnd, true
}
