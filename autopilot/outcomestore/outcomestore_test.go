package outcomestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreWindowCounts(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s := NewMemStore()

	now := time.Now()
	require.NoError(s.RecordOutcome(ctx, "alice", Outcome{Type: "comment", Success: true, At: now}))
	require.NoError(s.RecordOutcome(ctx, "alice", Outcome{Type: "comment", Success: true, At: now.Add(-time.Hour)}))
	require.NoError(s.RecordOutcome(ctx, "alice", Outcome{Type: "post", Success: false, At: now}))
	// outside the window, must not count
	require.NoError(s.RecordOutcome(ctx, "alice", Outcome{Type: "post", Success: true, At: now.Add(-25 * time.Hour)}))

	counts, err := s.WindowCounts(ctx, "alice")
	require.NoError(err)
	assert.Equal(2, counts.Successes)
	assert.Equal(1, counts.Failures)
	assert.Equal(2, counts.ByType["comment"])
	assert.Equal(1, counts.ByType["post"])

	// users are isolated
	counts, err = s.WindowCounts(ctx, "bob")
	require.NoError(err)
	assert.Equal(0, counts.Successes)
	assert.Equal(0, counts.Failures)
}

func TestMemStoreDayCount(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s := NewMemStore()

	now := time.Now()
	require.NoError(s.RecordOutcome(ctx, "alice", Outcome{Type: "comment", Success: true, At: now}))
	require.NoError(s.RecordOutcome(ctx, "alice", Outcome{Type: "comment", Success: true, At: now}))
	// failures do not count against the daily cap
	require.NoError(s.RecordOutcome(ctx, "alice", Outcome{Type: "comment", Success: false, At: now}))
	require.NoError(s.RecordOutcome(ctx, "alice", Outcome{Type: "vote", Success: true, At: now}))

	n, err := s.DayCount(ctx, "alice", "comment")
	require.NoError(err)
	assert.Equal(2, n)

	n, err = s.DayCount(ctx, "alice", "vote")
	require.NoError(err)
	assert.Equal(1, n)

	n, err = s.DayCount(ctx, "alice", "post")
	require.NoError(err)
	assert.Equal(0, n)
}

func TestMemStoreScore(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s := NewMemStore()

	_, ok, err := s.GetScore(ctx, "alice")
	require.NoError(err)
	assert.False(ok)

	require.NoError(s.SetScore(ctx, "alice", 85))
	score, ok, err := s.GetScore(ctx, "alice")
	require.NoError(err)
	assert.True(ok)
	assert.Equal(85, score)
}

func TestBuckets(t *testing.T) {
	assert := assert.New(t)

	at := time.Date(2024, 5, 17, 23, 45, 1, 0, time.UTC)
	assert.Equal("2024-05-17T23", hourBucket(at))
	assert.Equal("2024-05-17", dayBucket(at))

	// buckets are computed in UTC regardless of the input zone
	est := time.FixedZone("EST", -5*60*60)
	assert.Equal("2024-05-18T04", hourBucket(at.In(est).Add(5*time.Hour)))
}
