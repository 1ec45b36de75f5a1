package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatePopcorn_InsideWindowSlidesFromArrival(t *testing.T) {
	end := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	cfg := PopcornConfig{Enabled: true, TriggerSeconds: 10, ExtendSeconds: 15}

	// Bid at T-5s lands inside the 10 s window: new end = arrival + 15 s = T+10s.
	bidAt := end.Add(-5 * time.Second)
	newEnd, ok := EvaluatePopcorn(end, cfg, bidAt)
	require.True(t, ok)
	assert.Equal(t, end.Add(10*time.Second), newEnd)
}

func TestEvaluatePopcorn_OutsideWindowNoExtension(t *testing.T) {
	end := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	cfg := PopcornConfig{Enabled: true, TriggerSeconds: 10, ExtendSeconds: 15}

	_, ok := EvaluatePopcorn(end, cfg, end.Add(-20*time.Second))
	assert.False(t, ok)
}

func TestEvaluatePopcorn_Disabled(t *testing.T) {
	end := time.Now().UTC()
	cfg := PopcornConfig{Enabled: false, TriggerSeconds: 10, ExtendSeconds: 15}

	_, ok := EvaluatePopcorn(end, cfg, end)
	assert.False(t, ok)
}

func TestEvaluatePopcorn_NeverShortensEndTime(t *testing.T) {
	end := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	// Extension shorter than the remaining window would pull the deadline
	// backwards; it must be ignored.
	cfg := PopcornConfig{Enabled: true, TriggerSeconds: 30, ExtendSeconds: 5}

	_, ok := EvaluatePopcorn(end, cfg, end.Add(-20*time.Second))
	assert.False(t, ok)
}

func TestEvaluatePopcorn_RepeatedLateBidsKeepSliding(t *testing.T) {
	end := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	cfg := PopcornConfig{Enabled: true, TriggerSeconds: 10, ExtendSeconds: 15}

	// Three snipes, each 6 s after the previous, so every one lands back
	// inside the 10 s window and re-arms it from its own arrival.
	bidAt := end.Add(-2 * time.Second)
	for i := 0; i < 3; i++ {
		newEnd, ok := EvaluatePopcorn(end, cfg, bidAt)
		require.True(t, ok, "bid %d should extend", i)
		assert.Equal(t, bidAt.Add(15*time.Second), newEnd)
		end = newEnd
		bidAt = bidAt.Add(6 * time.Second)
	}
}

func TestEvaluatePopcorn_BidAfterDeadlineStillExtends(t *testing.T) {
	// Status, not wall time, gates admission; a bid committed just after
	// the deadline but before the lifecycle sweep flipped the status is
	// inside the window by definition (negative remaining time).
	end := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	cfg := PopcornConfig{Enabled: true, TriggerSeconds: 10, ExtendSeconds: 15}

	bidAt := end.Add(2 * time.Second)
	newEnd, ok := EvaluatePopcorn(end, cfg, bidAt)
	require.True(t, ok)
	assert.Equal(t, bidAt.Add(15*time.Second), newEnd)
}
