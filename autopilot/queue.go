package autopilot

import (
	"sort"
	"time"

	"github.com/flightdeck-social/flightdeck/platform"
)

type ActionType string

const (
	ActionPost    ActionType = "post"
	ActionComment ActionType = "comment"
	ActionVote    ActionType = "vote"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// rank orders priorities for dispatch; unknown values sort with normal.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// DefaultMaxAttempts is how many times an action is tried before it is
// abandoned as a terminal failure.
const DefaultMaxAttempts = 3

// Action is one unit of automated work. Exactly one of Post, Comment, or
// Vote is set, matching Type. An Action belongs to a single user's queue and
// is never shared.
type Action struct {
	ID           uint64                 `json:"id"`
	Type         ActionType             `json:"type"`
	Post         *platform.PostInput    `json:"post,omitempty"`
	Comment      *platform.CommentInput `json:"comment,omitempty"`
	Vote         *platform.VoteInput    `json:"vote,omitempty"`
	Priority     Priority               `json:"priority"`
	ScheduledFor time.Time              `json:"scheduledFor"`
	Attempts     int                    `json:"attempts"`
	MaxAttempts  int                    `json:"maxAttempts"`
	CreatedAt    time.Time              `json:"createdAt"`

	seq uint64
}

func (a *Action) validate() error {
	switch a.Type {
	case ActionPost:
		if a.Post == nil {
			return ErrInvalidAction
		}
		return a.Post.Validate()
	case ActionComment:
		if a.Comment == nil {
			return ErrInvalidAction
		}
		return a.Comment.Validate()
	case ActionVote:
		if a.Vote == nil {
			return ErrInvalidAction
		}
		return a.Vote.Validate()
	default:
		return ErrInvalidAction
	}
}

// actionQueue is the per-session pending action list, kept ordered by
// (priority desc, scheduledFor asc, insertion order). Not safe for
// concurrent use; callers hold the owning session's lock.
type actionQueue struct {
	nextID  uint64
	nextSeq uint64
	items   []*Action
}

func (q *actionQueue) before(a, b *Action) bool {
	if a.Priority.rank() != b.Priority.rank() {
		return a.Priority.rank() > b.Priority.rank()
	}
	if !a.ScheduledFor.Equal(b.ScheduledFor) {
		return a.ScheduledFor.Before(b.ScheduledFor)
	}
	return a.seq < b.seq
}

// enqueue fills defaults, assigns the identifier, and inserts in order.
func (q *actionQueue) enqueue(a *Action, now time.Time) *Action {
	q.nextID++
	q.nextSeq++
	a.ID = q.nextID
	a.seq = q.nextSeq
	if a.ScheduledFor.IsZero() {
		a.ScheduledFor = now
	}
	if a.MaxAttempts <= 0 {
		a.MaxAttempts = DefaultMaxAttempts
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.Priority == "" {
		a.Priority = PriorityNormal
	}

	i := sort.Search(len(q.items), func(i int) bool {
		return q.before(a, q.items[i])
	})
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = a
	return a
}

// peekEligible returns the first due entry without removing it, or nil.
// Future-scheduled entries are simply passed over each call; there is no
// per-action timer.
func (q *actionQueue) peekEligible(now time.Time, allow func(*Action) bool) *Action {
	for _, a := range q.items {
		if a.ScheduledFor.After(now) {
			continue
		}
		if a.Attempts >= a.MaxAttempts {
			continue
		}
		if allow != nil && !allow(a) {
			continue
		}
		return a
	}
	return nil
}

func (q *actionQueue) get(id uint64) *Action {
	for _, a := range q.items {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// remove is idempotent and reports whether an entry was actually removed.
func (q *actionQueue) remove(id uint64) bool {
	for i, a := range q.items {
		if a.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// list returns an ordered snapshot copy for status reporting.
func (q *actionQueue) list() []Action {
	out := make([]Action, len(q.items))
	for i, a := range q.items {
		out[i] = *a
	}
	return out
}

func (q *actionQueue) len() int {
	return len(q.items)
}

func (q *actionQueue) clear() {
	q.items = nil
}
