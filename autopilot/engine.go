package autopilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flightdeck-social/flightdeck/autopilot/outcomestore"
	"github.com/flightdeck-social/flightdeck/platform"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/semaphore"
)

var tracer = otel.Tracer("autopilot")

// PlatformClient is the outbound interface to the content platform. The
// production implementation lives in the platform package; tests inject
// fakes.
type PlatformClient interface {
	SubmitPost(ctx context.Context, userID string, in platform.PostInput) (*platform.PostResult, error)
	SubmitComment(ctx context.Context, userID string, in platform.CommentInput) (*platform.CommentResult, error)
	Vote(ctx context.Context, userID string, in platform.VoteInput) error
}

type EngineConfig struct {
	Logger      *slog.Logger
	Platform    PlatformClient
	Store       Store
	Credentials CredentialStore
	Outcomes    outcomestore.Store

	// Safety overrides the default pacing policy; tests set zero-length
	// delays here.
	Safety *SafetyGate
	// TickInterval is the scheduler loop period per session.
	TickInterval time.Duration
	// CallTimeout bounds each external platform call.
	CallTimeout time.Duration

	CredentialCacheSize int
	CredentialCacheTTL  time.Duration
}

// Engine owns all autopilot sessions in this process: one scheduler loop
// goroutine per active session, plus the administrative surface the API
// layer calls into.
type Engine struct {
	logger   *slog.Logger
	platform PlatformClient
	store    Store
	creds    CredentialStore
	outcomes outcomestore.Store
	health   *HealthMonitor
	safety   *SafetyGate

	tickInterval time.Duration
	callTimeout  time.Duration

	sessions  *xsync.MapOf[string, *session]
	credCache *expirable.LRU[string, *Credential]

	// serializes Start/Resume so the at-most-one-active-session-per-user
	// invariant holds under concurrent starts
	startMu sync.Mutex
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Platform == nil || cfg.Store == nil || cfg.Credentials == nil || cfg.Outcomes == nil {
		return nil, fmt.Errorf("engine requires platform client, session store, credential store, and outcome store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "autopilot")
	safety := cfg.Safety
	if safety == nil {
		safety = DefaultSafetyGate()
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 30 * time.Second
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	cacheSize := cfg.CredentialCacheSize
	if cacheSize <= 0 {
		cacheSize = 10_000
	}
	cacheTTL := cfg.CredentialCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &Engine{
		logger:       logger,
		platform:     cfg.Platform,
		store:        cfg.Store,
		creds:        cfg.Credentials,
		outcomes:     cfg.Outcomes,
		health:       &HealthMonitor{Outcomes: cfg.Outcomes, Logger: logger},
		safety:       safety,
		tickInterval: tick,
		callTimeout:  callTimeout,
		sessions:     xsync.NewMapOf[string, *session](),
		credCache:    expirable.NewLRU[string, *Credential](cacheSize, nil, cacheTTL),
	}, nil
}

func (e *Engine) credential(ctx context.Context, userID string) (*Credential, error) {
	now := time.Now()
	if c, ok := e.credCache.Get(userID); ok && c.Valid(now) {
		return c, nil
	}
	c, err := e.creds.GetCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("loading credential: %w", err)
	}
	if !c.Valid(now) {
		return nil, ErrUnauthenticated
	}
	e.credCache.Add(userID, c)
	return c, nil
}

type StartResult struct {
	SessionID   string        `json:"sessionId"`
	Status      SessionStatus `json:"status"`
	HealthScore int           `json:"healthScore"`
}

// Start begins automation for a user. It refuses to start when a session is
// already active, when the user has no usable credential, or when the
// account's health score is below StartHealthMin.
func (e *Engine) Start(ctx context.Context, userID string, settings Settings) (*StartResult, error) {
	settings.Clamp()

	e.startMu.Lock()
	defer e.startMu.Unlock()

	if existing, ok := e.sessions.Load(userID); ok {
		existing.mu.Lock()
		active := existing.status == StatusActive
		existing.mu.Unlock()
		if active {
			return nil, ErrAlreadyRunning
		}
	}

	if _, err := e.credential(ctx, userID); err != nil {
		return nil, err
	}

	snap, err := e.health.Evaluate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("evaluating account health: %w", err)
	}
	if snap.Score < StartHealthMin {
		return nil, ErrUnhealthyAccount
	}

	now := time.Now()
	s := &session{
		userID:    userID,
		sessionID: newSessionID(),
		status:    StatusActive,
		settings:  settings,
		startedAt: now,
		done:      make(chan struct{}),
	}
	s.logger = e.logger.With("user", userID, "session", s.sessionID)

	rec := &SessionRecord{
		UserID:    userID,
		SessionID: s.sessionID,
		Status:    StatusActive,
		Settings:  settings,
		StartedAt: now,
	}
	if err := e.store.PutSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	e.sessions.Store(userID, s)
	go e.runLoop(loopCtx, s)

	sessionsStarted.Inc()
	sessionsActive.Inc()
	s.logger.Info("autopilot session started", "health", snap.Score, "risk", snap.RiskLevel)

	return &StartResult{SessionID: s.sessionID, Status: StatusActive, HealthScore: snap.Score}, nil
}

// Stop ends a user's session at their request.
func (e *Engine) Stop(ctx context.Context, userID string) error {
	return e.stopSession(ctx, userID, StopReasonUser)
}

func (e *Engine) stopSession(ctx context.Context, userID string, reason StopReason) error {
	s, ok := e.sessions.LoadAndDelete(userID)
	if !ok {
		return ErrNotRunning
	}

	s.cancel()
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.status = StatusStopped
	s.stopReason = reason
	s.queue.clear()
	s.mu.Unlock()

	if err := e.store.UpdateSessionStatus(ctx, userID, StatusStopped, reason); err != nil {
		s.logger.Error("failed to persist session stop", "err", err)
	}

	sessionsActive.Dec()
	sessionsStopped.WithLabelValues(string(reason)).Inc()
	s.logger.Info("autopilot session stopped", "reason", reason)
	return nil
}

// failSession stops a session from inside its own loop, eg on a fatal
// authentication failure. The loop goroutine itself closes the done channel
// when it returns.
func (e *Engine) failSession(s *session, reason StopReason) {
	cur, ok := e.sessions.LoadAndDelete(s.userID)
	if !ok || cur != s {
		// an administrative stop already claimed it
		return
	}

	s.cancel()

	s.mu.Lock()
	s.status = StatusStopped
	s.stopReason = reason
	s.queue.clear()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.UpdateSessionStatus(ctx, s.userID, StatusStopped, reason); err != nil {
		s.logger.Error("failed to persist session stop", "err", err)
	}

	sessionsActive.Dec()
	sessionsStopped.WithLabelValues(string(reason)).Inc()
	s.logger.Warn("autopilot session stopped for cause", "reason", reason)
}

// maxParallelStops bounds the EmergencyStopAll fan-out.
const maxParallelStops = 8

// EmergencyStopAll stops every active session and returns how many were
// stopped. It never partially fails: one session's stop failing (or
// panicking) is logged and the sweep continues.
func (e *Engine) EmergencyStopAll(ctx context.Context) int {
	var userIDs []string
	e.sessions.Range(func(userID string, _ *session) bool {
		userIDs = append(userIDs, userID)
		return true
	})

	sem := semaphore.NewWeighted(maxParallelStops)
	var wg sync.WaitGroup
	var stopped atomic.Int64

	for _, userID := range userIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("emergency stop panicked", "user", userID, "err", r)
					// the session itself was claimed and torn down before
					// the persistence call, so the gauge must still move
					sessionsActive.Dec()
					sessionsStopped.WithLabelValues(string(StopReasonEmergency)).Inc()
				}
			}()
			if err := e.stopSession(ctx, userID, StopReasonEmergency); err != nil {
				e.logger.Error("emergency stop failed", "user", userID, "err", err)
				return
			}
			stopped.Add(1)
		}(userID)
	}
	wg.Wait()

	e.logger.Warn("emergency stop completed", "sessions", len(userIDs), "stopped", stopped.Load())
	return int(stopped.Load())
}

// UpdateSettings clamps and persists new settings. A running session picks
// them up on its next tick without restarting.
func (e *Engine) UpdateSettings(ctx context.Context, userID string, settings Settings) error {
	settings.Clamp()

	if err := e.store.PutSettings(ctx, userID, settings); err != nil {
		return fmt.Errorf("persisting settings: %w", err)
	}

	if s, ok := e.sessions.Load(userID); ok {
		s.mu.Lock()
		if s.status == StatusActive {
			s.settings = settings
		}
		s.mu.Unlock()
		s.logger.Info("session settings updated")
	}
	return nil
}

type StatusInfo struct {
	UserID         string        `json:"userId"`
	Active         bool          `json:"active"`
	SessionID      string        `json:"sessionId,omitempty"`
	Status         SessionStatus `json:"status"`
	StopReason     StopReason    `json:"stopReason,omitempty"`
	QueueLength    int           `json:"queueLength"`
	HealthScore    int           `json:"healthScore"`
	RiskLevel      RiskLevel     `json:"riskLevel"`
	TodayCount     int           `json:"todayCount"`
	LastActivityAt *time.Time    `json:"lastActivityAt,omitempty"`
}

// Status reports the user's current automation state. Safe to call with no
// session; the result then has Active=false and the last persisted status.
func (e *Engine) Status(ctx context.Context, userID string) (*StatusInfo, error) {
	info := &StatusInfo{UserID: userID, Status: StatusStopped}

	score, ok, err := e.outcomes.GetScore(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		score = freshAccountScore
	}
	info.HealthScore = score
	info.RiskLevel = riskLevelFor(score)

	for _, t := range []ActionType{ActionPost, ActionComment, ActionVote} {
		n, err := e.outcomes.DayCount(ctx, userID, string(t))
		if err != nil {
			return nil, err
		}
		info.TodayCount += n
	}

	if s, ok := e.sessions.Load(userID); ok {
		s.mu.Lock()
		info.Active = s.status == StatusActive
		info.SessionID = s.sessionID
		info.Status = s.status
		info.StopReason = s.stopReason
		info.QueueLength = s.queue.len()
		if !s.lastActivityAt.IsZero() {
			t := s.lastActivityAt
			info.LastActivityAt = &t
		}
		s.mu.Unlock()
		return info, nil
	}

	rec, err := e.store.GetSession(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return info, nil
		}
		return nil, err
	}
	info.SessionID = rec.SessionID
	info.Status = rec.Status
	info.StopReason = rec.StopReason
	if !rec.LastActivityAt.IsZero() {
		t := rec.LastActivityAt
		info.LastActivityAt = &t
	}
	return info, nil
}

// Enqueue validates and adds an action to a running session's queue.
func (e *Engine) Enqueue(ctx context.Context, userID string, act *Action) (*Action, error) {
	if err := act.validate(); err != nil {
		if errors.Is(err, ErrInvalidAction) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, err)
	}

	s, ok := e.sessions.Load(userID)
	if !ok {
		return nil, ErrNotRunning
	}

	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return nil, ErrNotRunning
	}
	queued := s.queue.enqueue(act, time.Now())
	cp := *queued
	s.mu.Unlock()

	actionsEnqueued.WithLabelValues(string(act.Type)).Inc()
	s.logger.Debug("action enqueued", "id", cp.ID, "type", cp.Type, "priority", cp.Priority)
	return &cp, nil
}

// RemoveAction is idempotent and reports whether an entry was removed.
func (e *Engine) RemoveAction(ctx context.Context, userID string, actionID uint64) (bool, error) {
	s, ok := e.sessions.Load(userID)
	if !ok {
		return false, ErrNotRunning
	}
	s.mu.Lock()
	removed := s.queue.remove(actionID)
	s.mu.Unlock()
	return removed, nil
}

// ListActions returns an ordered snapshot of the user's pending actions.
func (e *Engine) ListActions(ctx context.Context, userID string) ([]Action, error) {
	s, ok := e.sessions.Load(userID)
	if !ok {
		return nil, ErrNotRunning
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.list(), nil
}

type SessionSummary struct {
	UserID         string        `json:"userId"`
	SessionID      string        `json:"sessionId"`
	Status         SessionStatus `json:"status"`
	QueueLength    int           `json:"queueLength"`
	StartedAt      time.Time     `json:"startedAt"`
	LastActivityAt *time.Time    `json:"lastActivityAt,omitempty"`
}

// ListSessions snapshots every in-process session, ordered by user.
func (e *Engine) ListSessions(ctx context.Context) []SessionSummary {
	var out []SessionSummary
	e.sessions.Range(func(userID string, s *session) bool {
		s.mu.Lock()
		sum := SessionSummary{
			UserID:      userID,
			SessionID:   s.sessionID,
			Status:      s.status,
			QueueLength: s.queue.len(),
			StartedAt:   s.startedAt,
		}
		if !s.lastActivityAt.IsZero() {
			t := s.lastActivityAt
			sum.LastActivityAt = &t
		}
		s.mu.Unlock()
		out = append(out, sum)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// ResumeSessions relaunches loops for sessions persisted as active,
// typically at process start. Queued actions do not survive restarts; only
// the session itself resumes.
func (e *Engine) ResumeSessions(ctx context.Context) (int, error) {
	recs, err := e.store.ListActiveSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing active sessions: %w", err)
	}

	e.startMu.Lock()
	defer e.startMu.Unlock()

	resumed := 0
	for _, rec := range recs {
		if _, ok := e.sessions.Load(rec.UserID); ok {
			continue
		}

		if _, err := e.credential(ctx, rec.UserID); err != nil {
			e.logger.Warn("not resuming session, credential unusable", "user", rec.UserID, "err", err)
			if serr := e.store.UpdateSessionStatus(ctx, rec.UserID, StatusStopped, StopReasonAuth); serr != nil {
				e.logger.Error("failed to persist session stop", "user", rec.UserID, "err", serr)
			}
			continue
		}

		settings := rec.Settings
		settings.Clamp()
		s := &session{
			userID:         rec.UserID,
			sessionID:      rec.SessionID,
			status:         StatusActive,
			settings:       settings,
			startedAt:      rec.StartedAt,
			lastActivityAt: rec.LastActivityAt,
			done:           make(chan struct{}),
		}
		s.logger = e.logger.With("user", rec.UserID, "session", rec.SessionID)

		loopCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		e.sessions.Store(rec.UserID, s)
		go e.runLoop(loopCtx, s)

		sessionsActive.Inc()
		s.logger.Info("autopilot session resumed")
		resumed++
	}
	return resumed, nil
}

// Shutdown cancels all loops without marking sessions stopped, so they are
// resumed on the next process start.
func (e *Engine) Shutdown(ctx context.Context) {
	var all []*session
	e.sessions.Range(func(userID string, s *session) bool {
		all = append(all, s)
		return true
	})
	for _, s := range all {
		s.cancel()
	}
	for _, s := range all {
		select {
		case <-s.done:
		case <-ctx.Done():
			return
		}
		e.sessions.Delete(s.userID)
		sessionsActive.Dec()
	}
	e.logger.Info("autopilot engine shut down", "sessions", len(all))
}
