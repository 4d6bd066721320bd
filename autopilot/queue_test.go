package autopilot

import (
	"testing"
	"time"

	"github.com/flightdeck-social/flightdeck/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func comment(text string) *Action {
	return &Action{
		Type:    ActionComment,
		Comment: &platform.CommentInput{ParentID: "t3_parent", Text: text},
	}
}

func TestQueueDefaults(t *testing.T) {
	assert := assert.New(t)

	var q actionQueue
	now := time.Now()
	a := q.enqueue(comment("hello"), now)

	assert.Equal(uint64(1), a.ID)
	assert.Equal(PriorityNormal, a.Priority)
	assert.Equal(DefaultMaxAttempts, a.MaxAttempts)
	assert.Equal(now, a.ScheduledFor)
	assert.Equal(now, a.CreatedAt)

	b := q.enqueue(comment("again"), now)
	assert.Equal(uint64(2), b.ID)
}

func TestQueueOrdering(t *testing.T) {
	assert := assert.New(t)

	var q actionQueue
	now := time.Now()

	low := comment("low")
	low.Priority = PriorityLow
	first := comment("first")
	second := comment("second")
	high := comment("high")
	high.Priority = PriorityHigh
	early := comment("early")
	early.ScheduledFor = now.Add(-time.Hour)

	q.enqueue(low, now)
	q.enqueue(first, now)
	q.enqueue(second, now)
	q.enqueue(high, now)
	q.enqueue(early, now)

	var texts []string
	for _, a := range q.list() {
		texts = append(texts, a.Comment.Text)
	}
	// priority first, then scheduled time, then insertion order
	assert.Equal([]string{"high", "early", "first", "second", "low"}, texts)
}

func TestQueuePeekEligible(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var q actionQueue
	now := time.Now()

	future := comment("future")
	future.ScheduledFor = now.Add(time.Hour)
	exhausted := comment("exhausted")
	due := comment("due")

	q.enqueue(future, now)
	ex := q.enqueue(exhausted, now)
	ex.Attempts = ex.MaxAttempts
	q.enqueue(due, now)

	got := q.peekEligible(now, nil)
	require.NotNil(got)
	assert.Equal("due", got.Comment.Text)

	// entry stays queued until explicitly removed
	assert.Equal(3, q.len())

	// a filter can pass over otherwise-due entries
	got = q.peekEligible(now, func(a *Action) bool { return a.Comment.Text != "due" })
	assert.Nil(got)

	// once the future entry comes due it is eligible
	got = q.peekEligible(now.Add(2*time.Hour), nil)
	require.NotNil(got)
	assert.Equal("future", got.Comment.Text)
}

func TestQueueRemoveIdempotent(t *testing.T) {
	assert := assert.New(t)

	var q actionQueue
	now := time.Now()
	a := q.enqueue(comment("x"), now)

	assert.True(q.remove(a.ID))
	assert.False(q.remove(a.ID))
	assert.False(q.remove(999))
	assert.Equal(0, q.len())
}

func TestActionValidate(t *testing.T) {
	assert := assert.New(t)

	assert.Error((&Action{Type: ActionComment}).validate())
	assert.Error((&Action{Type: "unknown"}).validate())
	assert.Error((&Action{Type: ActionPost, Post: &platform.PostInput{Community: "c"}}).validate())
	assert.NoError(comment("ok").validate())
	assert.NoError((&Action{
		Type: ActionPost,
		Post: &platform.PostInput{Community: "golang", Title: "t", Body: "b"},
	}).validate())
	assert.Error((&Action{
		Type: ActionVote,
		Vote: &platform.VoteInput{ItemID: "t3_x", Direction: 2},
	}).validate())
}
