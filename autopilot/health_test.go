package autopilot

import (
	"context"
	"testing"

	"github.com/flightdeck-social/flightdeck/autopilot/outcomestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMonitor() (*HealthMonitor, *outcomestore.MemStore) {
	outcomes := outcomestore.NewMemStore()
	return &HealthMonitor{Outcomes: outcomes}, outcomes
}

func record(t *testing.T, outcomes *outcomestore.MemStore, userID, actionType string, success bool, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, outcomes.RecordOutcome(context.Background(), userID, outcomestore.Outcome{
			Type:    actionType,
			Success: success,
		}))
	}
}

func TestHealthFreshAccount(t *testing.T) {
	assert := assert.New(t)
	m, outcomes := testMonitor()

	snap, err := m.Evaluate(context.Background(), "alice")
	assert.NoError(err)
	assert.Equal(100, snap.Score)
	assert.Equal(RiskLevelLow, snap.RiskLevel)

	// the score is persisted on evaluation
	score, ok, err := outcomes.GetScore(context.Background(), "alice")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(100, score)
}

func TestHealthNudges(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	m, outcomes := testMonitor()
	require.NoError(t, outcomes.SetScore(ctx, "alice", 60))
	record(t, outcomes, "alice", string(ActionComment), true, 9)
	record(t, outcomes, "alice", string(ActionComment), false, 1)

	snap, err := m.Evaluate(ctx, "alice")
	assert.NoError(err)
	assert.Equal(62, snap.Score)
	assert.Equal(9, snap.WindowSuccesses)
	assert.Equal(1, snap.WindowFailures)

	m, outcomes = testMonitor()
	require.NoError(t, outcomes.SetScore(ctx, "bob", 60))
	record(t, outcomes, "bob", string(ActionComment), true, 2)
	record(t, outcomes, "bob", string(ActionComment), false, 8)

	snap, err = m.Evaluate(ctx, "bob")
	assert.NoError(err)
	assert.Equal(55, snap.Score)

	// middling success rate leaves the score alone
	m, outcomes = testMonitor()
	require.NoError(t, outcomes.SetScore(ctx, "carol", 60))
	record(t, outcomes, "carol", string(ActionComment), true, 6)
	record(t, outcomes, "carol", string(ActionComment), false, 4)

	snap, err = m.Evaluate(ctx, "carol")
	assert.NoError(err)
	assert.Equal(60, snap.Score)
}

func TestHealthOverPostPenalty(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	m, outcomes := testMonitor()
	require.NoError(t, outcomes.SetScore(ctx, "alice", 60))
	record(t, outcomes, "alice", string(ActionPost), true, 10)
	record(t, outcomes, "alice", string(ActionComment), true, 1)

	// all-success nudge up, then the broadcast-only penalty
	snap, err := m.Evaluate(ctx, "alice")
	assert.NoError(err)
	assert.Equal(60+healthNudgeUp-overPostPenalty, snap.Score)

	// a handful of posts on a quiet account is not penalized
	m, outcomes = testMonitor()
	require.NoError(t, outcomes.SetScore(ctx, "bob", 60))
	record(t, outcomes, "bob", string(ActionPost), true, 3)

	snap, err = m.Evaluate(ctx, "bob")
	assert.NoError(err)
	assert.Equal(60+healthNudgeUp, snap.Score)
}

func TestHealthScoreClamped(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	m, outcomes := testMonitor()
	require.NoError(t, outcomes.SetScore(ctx, "alice", 99))
	record(t, outcomes, "alice", string(ActionComment), true, 5)

	snap, err := m.Evaluate(ctx, "alice")
	assert.NoError(err)
	assert.Equal(100, snap.Score)

	require.NoError(t, outcomes.SetScore(ctx, "bob", 2))
	record(t, outcomes, "bob", string(ActionComment), false, 5)

	snap, err = m.Evaluate(ctx, "bob")
	assert.NoError(err)
	assert.Equal(0, snap.Score)
	assert.Equal(RiskLevelHigh, snap.RiskLevel)
}

func TestRiskLevels(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(RiskLevelLow, riskLevelFor(100))
	assert.Equal(RiskLevelLow, riskLevelFor(70))
	assert.Equal(RiskLevelMedium, riskLevelFor(69))
	assert.Equal(RiskLevelMedium, riskLevelFor(40))
	assert.Equal(RiskLevelHigh, riskLevelFor(39))
	assert.Equal(RiskLevelHigh, riskLevelFor(0))
}
