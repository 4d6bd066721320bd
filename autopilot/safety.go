package autopilot

import (
	"context"
	"math/rand/v2"
	"time"
)

// SafetyGate holds the two pacing knobs that keep automated cadence looking
// human: a randomized pre-dispatch delay and a hard floor between
// consecutive executed actions. Both are injectable so tests can run with
// zero-length delays.
type SafetyGate struct {
	// MinDelay and MaxDelay bound the uniform random pre-dispatch delay.
	MinDelay time.Duration
	MaxDelay time.Duration
	// MinSpacing is the floor between the end of one executed action and
	// the start of evaluating the next.
	MinSpacing time.Duration
}

func DefaultSafetyGate() *SafetyGate {
	return &SafetyGate{
		MinDelay:   1 * time.Minute,
		MaxDelay:   6 * time.Minute,
		MinSpacing: 10 * time.Minute,
	}
}

func profileScale(p RiskProfile) float64 {
	switch p {
	case RiskConservative:
		return 1.5
	case RiskAggressive:
		return 0.6
	default:
		return 1.0
	}
}

// Delay returns a pseudo-random duration uniformly distributed in the gate's
// window, scaled by the session's risk profile.
func (g *SafetyGate) Delay(profile RiskProfile) time.Duration {
	if g.MaxDelay <= 0 {
		return 0
	}
	window := g.MaxDelay - g.MinDelay
	d := g.MinDelay
	if window > 0 {
		d += rand.N(window)
	}
	return time.Duration(float64(d) * profileScale(profile))
}

// Wait sleeps for a fresh random delay, returning early with the context's
// error if the session is cancelled mid-delay.
func (g *SafetyGate) Wait(ctx context.Context, profile RiskProfile) error {
	d := g.Delay(profile)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SpacingSatisfied reports whether enough wall time has passed since the
// last executed action for another dispatch to be considered.
func (g *SafetyGate) SpacingSatisfied(lastActivity, now time.Time) bool {
	if lastActivity.IsZero() {
		return true
	}
	return now.Sub(lastActivity) >= g.MinSpacing
}
