// Package outcomestore tracks per-user action outcome history and the
// persisted account health score derived from it. Outcomes are visible
// through a rolling 24h window; per-day executed counts back the daily
// automation caps.
package outcomestore

import (
	"context"
	"time"
)

// Window is how far back outcome history is considered when scoring.
const Window = 24 * time.Hour

// Outcome is one attempted action's result.
type Outcome struct {
	Type    string
	Success bool
	// Terminal marks an action abandoned after exhausting its retries.
	Terminal bool
	Detail   string
	At       time.Time
}

// WindowCounts summarizes the last 24h of outcomes for one user.
type WindowCounts struct {
	Successes int
	Failures  int
	ByType    map[string]int
}

type Store interface {
	RecordOutcome(ctx context.Context, userID string, o Outcome) error
	WindowCounts(ctx context.Context, userID string) (WindowCounts, error)
	// DayCount returns the number of successfully executed actions of the
	// given type so far today (UTC).
	DayCount(ctx context.Context, userID, actionType string) (int, error)

	GetScore(ctx context.Context, userID string) (int, bool, error)
	SetScore(ctx context.Context, userID string, score int) error
}

func hourBucket(t time.Time) string {
	return t.UTC().Format(time.RFC3339)[0:13]
}

func dayBucket(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
