package autopilot

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

type SessionStatus string

const (
	StatusActive  SessionStatus = "active"
	StatusPaused  SessionStatus = "paused"
	StatusStopped SessionStatus = "stopped"
)

// StopReason distinguishes why a session ended. A stopped-for-cause session
// must be tellable apart from a user-initiated stop.
type StopReason string

const (
	StopReasonUser      StopReason = "user"
	StopReasonEmergency StopReason = "emergency"
	StopReasonAuth      StopReason = "auth_failure"
)

type RiskProfile string

const (
	RiskConservative RiskProfile = "conservative"
	RiskModerate     RiskProfile = "moderate"
	RiskAggressive   RiskProfile = "aggressive"
)

const (
	// MinPostFrequencyMins is the floor for the posting frequency setting.
	MinPostFrequencyMins = 10
	// MaxDailyCap bounds the per-category daily caps.
	MaxDailyCap = 100
	// DefaultDispatchHealthMin is the health score below which a tick idles.
	DefaultDispatchHealthMin = 30
	// StartHealthMin is the health score below which Start is refused.
	StartHealthMin = 50
)

// Settings is the per-user automation configuration. Callers submit
// arbitrary values; Clamp normalizes them before they are stored or applied.
type Settings struct {
	EnablePosts    bool     `json:"enablePosts"`
	EnableComments bool     `json:"enableComments"`
	EnableVotes    bool     `json:"enableVotes"`
	Communities    []string `json:"communities,omitempty"`

	DailyPostCap    int `json:"dailyPostCap"`
	DailyCommentCap int `json:"dailyCommentCap"`
	DailyVoteCap    int `json:"dailyVoteCap"`

	// PostFrequencyMins is the minimum gap between posts, floored at
	// MinPostFrequencyMins.
	PostFrequencyMins int `json:"postFrequencyMins"`

	RiskProfile RiskProfile `json:"riskProfile"`

	// MinHealthScore overrides the dispatch health threshold. Zero means
	// the default.
	MinHealthScore int `json:"minHealthScore"`
}

func DefaultSettings() Settings {
	return Settings{
		EnableComments:    true,
		EnableVotes:       true,
		DailyPostCap:      5,
		DailyCommentCap:   20,
		DailyVoteCap:      50,
		PostFrequencyMins: 60,
		RiskProfile:       RiskModerate,
		MinHealthScore:    DefaultDispatchHealthMin,
	}
}

// Clamp normalizes out-of-range values rather than rejecting them.
func (s *Settings) Clamp() {
	if s.PostFrequencyMins < MinPostFrequencyMins {
		s.PostFrequencyMins = MinPostFrequencyMins
	}
	for _, c := range []*int{&s.DailyPostCap, &s.DailyCommentCap, &s.DailyVoteCap} {
		if *c < 0 {
			*c = 0
		}
		if *c > MaxDailyCap {
			*c = MaxDailyCap
		}
	}
	switch s.RiskProfile {
	case RiskConservative, RiskModerate, RiskAggressive:
	default:
		s.RiskProfile = RiskModerate
	}
	if s.MinHealthScore < 0 {
		s.MinHealthScore = 0
	}
	if s.MinHealthScore > 100 {
		s.MinHealthScore = 100
	}
	if s.MinHealthScore == 0 {
		s.MinHealthScore = DefaultDispatchHealthMin
	}
}

func (s *Settings) typeEnabled(t ActionType) bool {
	switch t {
	case ActionPost:
		return s.EnablePosts
	case ActionComment:
		return s.EnableComments
	case ActionVote:
		return s.EnableVotes
	default:
		return false
	}
}

func (s *Settings) dailyCap(t ActionType) int {
	switch t {
	case ActionPost:
		return s.DailyPostCap
	case ActionComment:
		return s.DailyCommentCap
	case ActionVote:
		return s.DailyVoteCap
	default:
		return 0
	}
}

// session is the in-process state for one user's running autopilot. The
// mutex guards everything below it; state is mutated both by the owning
// scheduler loop and by administrative calls.
type session struct {
	userID    string
	sessionID string
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu             sync.Mutex
	status         SessionStatus
	stopReason     StopReason
	settings       Settings
	queue          actionQueue
	lastActivityAt time.Time
	startedAt      time.Time
}

func newSessionID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
