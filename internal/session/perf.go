package session

import (
	"time"

	"skirmish.ai/internal/protocol"
)

// Aggregate accumulates round-trip latency across completed samples.
// Mutated only by the orchestrator; exposed read-only through the bridge.
type Aggregate struct {
	Count      int64
	RoundTrip  time.Duration // received -> replied, summed
	ApplyLag   time.Duration // received -> applied, summed
	IdleGap    time.Duration // previous replied -> current received, summed
	Violations int64
}

// Add folds one completed sample in, pairing it with the previous reply
// time of the same side. Incomplete samples are ignored.
func (a *Aggregate) Add(cur protocol.PerfSample, prevReplied time.Time, deadline time.Duration) {
	if cur.StateReceived.IsZero() || cur.StateApplied.IsZero() || cur.StateReplied.IsZero() {
		return
	}
	rt := cur.RoundTrip()
	a.Count++
	a.RoundTrip += rt
	a.ApplyLag += cur.StateApplied.Sub(cur.StateReceived)
	if !prevReplied.IsZero() && cur.StateReceived.After(prevReplied) {
		a.IdleGap += cur.StateReceived.Sub(prevReplied)
	}
	if deadline > 0 && rt > deadline {
		a.Violations++
	}
}

// AggregateView is the reporting shape, averaged in milliseconds.
type AggregateView struct {
	Count          int64   `json:"count"`
	AvgRoundTripMs float64 `json:"avg_round_trip_ms"`
	AvgApplyLagMs  float64 `json:"avg_apply_lag_ms"`
	AvgIdleGapMs   float64 `json:"avg_idle_gap_ms"`
	Violations     int64   `json:"violations"`
}

func (a Aggregate) View() AggregateView {
	v := AggregateView{Count: a.Count, Violations: a.Violations}
	if a.Count == 0 {
		return v
	}
	ms := func(d time.Duration) float64 {
		return float64(d) / float64(time.Millisecond) / float64(a.Count)
	}
	v.AvgRoundTripMs = ms(a.RoundTrip)
	v.AvgApplyLagMs = ms(a.ApplyLag)
	v.AvgIdleGapMs = ms(a.IdleGap)
	return v
}
