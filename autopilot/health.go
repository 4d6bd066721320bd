package autopilot

import (
	"context"
	"log/slog"

	"github.com/flightdeck-social/flightdeck/autopilot/outcomestore"
)

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// HealthSnapshot is the derived wellness estimate for one account.
type HealthSnapshot struct {
	Score     int       `json:"score"`
	RiskLevel RiskLevel `json:"riskLevel"`

	WindowSuccesses int `json:"windowSuccesses"`
	WindowFailures  int `json:"windowFailures"`
}

const (
	// freshAccountScore is assumed for accounts with no persisted score.
	freshAccountScore = 100

	healthNudgeUp   = 2
	healthNudgeDown = 5
	overPostPenalty = 3

	goodSuccessRate = 0.8
	badSuccessRate  = 0.5

	// overPostFactor: posting more than this many times per comment in the
	// window reads as broadcast-only behavior, a known detection signal.
	overPostFactor = 3
	// overPostMinimum avoids penalizing a couple of posts on a quiet account.
	overPostMinimum = 4
)

// HealthMonitor scores accounts from their recent outcome history and
// persists the running score back to the outcome store.
type HealthMonitor struct {
	Outcomes outcomestore.Store
	Logger   *slog.Logger
}

func riskLevelFor(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskLevelLow
	case score >= 40:
		return RiskLevelMedium
	default:
		return RiskLevelHigh
	}
}

// Evaluate recomputes the user's health score from the rolling window and
// persists it. Each evaluation nudges the score rather than recomputing it
// from scratch, so a burst of failures degrades the score over several
// ticks instead of cliff-dropping it.
func (m *HealthMonitor) Evaluate(ctx context.Context, userID string) (HealthSnapshot, error) {
	counts, err := m.Outcomes.WindowCounts(ctx, userID)
	if err != nil {
		return HealthSnapshot{}, err
	}

	score, ok, err := m.Outcomes.GetScore(ctx, userID)
	if err != nil {
		return HealthSnapshot{}, err
	}
	if !ok {
		score = freshAccountScore
	}

	total := counts.Successes + counts.Failures
	if total > 0 {
		rate := float64(counts.Successes) / float64(total)
		if rate > goodSuccessRate {
			score += healthNudgeUp
		} else if rate < badSuccessRate {
			score -= healthNudgeDown
		}
	}

	posts := counts.ByType[string(ActionPost)]
	comments := counts.ByType[string(ActionComment)]
	if posts >= overPostMinimum && posts > overPostFactor*comments {
		score -= overPostPenalty
		if m.Logger != nil {
			m.Logger.Debug("over-posting penalty applied", "user", userID, "posts", posts, "comments", comments)
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	if err := m.Outcomes.SetScore(ctx, userID, score); err != nil {
		return HealthSnapshot{}, err
	}

	return HealthSnapshot{
		Score:           score,
		RiskLevel:       riskLevelFor(score),
		WindowSuccesses: counts.Successes,
		WindowFailures:  counts.Failures,
	}, nil
}
