package autopilot

import (
	"context"
	"fmt"
	"time"

	"github.com/flightdeck-social/flightdeck/autopilot/outcomestore"
	"github.com/flightdeck-social/flightdeck/platform"
)

// runLoop is the scheduler loop for one session. It owns all dispatching
// for its user; nothing else executes this user's actions.
func (e *Engine) runLoop(ctx context.Context, s *session) {
	defer close(s.done)

	s.logger.Debug("scheduler loop starting", "tick", e.tickInterval)
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("scheduler loop exiting")
			return
		case <-ticker.C:
		}
		e.tick(ctx, s)
	}
}

// tick runs one dispatch pass: spacing gate, health gate, queue peek,
// safety delay, external call, outcome recording. The loop never has two
// dispatches in flight, so a user's actions cannot overlap themselves.
func (e *Engine) tick(ctx context.Context, s *session) {
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	settings := s.settings
	lastActivity := s.lastActivityAt
	s.mu.Unlock()

	now := time.Now()
	if !e.safety.SpacingSatisfied(lastActivity, now) {
		ticksSkipped.WithLabelValues("spacing").Inc()
		return
	}

	snap, err := e.health.Evaluate(ctx, s.userID)
	if err != nil {
		s.logger.Error("health evaluation failed", "err", err)
		return
	}
	if snap.Score < settings.MinHealthScore {
		// the session stays active and silently idles
		ticksSkipped.WithLabelValues("health").Inc()
		s.logger.Debug("dispatch deferred, health below threshold",
			"score", snap.Score, "threshold", settings.MinHealthScore)
		return
	}

	s.mu.Lock()
	act := s.queue.peekEligible(now, func(a *Action) bool {
		return settings.typeEnabled(a.Type)
	})
	var pending Action
	if act != nil {
		pending = *act
	}
	s.mu.Unlock()

	if act == nil {
		ticksSkipped.WithLabelValues("empty").Inc()
		return
	}

	if dayCap := settings.dailyCap(pending.Type); dayCap > 0 {
		n, err := e.outcomes.DayCount(ctx, s.userID, string(pending.Type))
		if err != nil {
			s.logger.Error("daily cap lookup failed", "err", err)
			return
		}
		if n >= dayCap {
			ticksSkipped.WithLabelValues("daily_cap").Inc()
			s.logger.Debug("dispatch deferred, daily cap reached", "type", pending.Type, "cap", dayCap)
			return
		}
	}

	if err := e.safety.Wait(ctx, settings.RiskProfile); err != nil {
		// cancelled mid-delay; discard without executing
		return
	}

	// the queue may have changed while the delay ran; an action removed
	// administratively must not reach the platform
	s.mu.Lock()
	cur := s.queue.get(pending.ID)
	if cur != nil {
		pending = *cur
	}
	s.mu.Unlock()
	if cur == nil {
		ticksSkipped.WithLabelValues("removed").Inc()
		return
	}

	spanCtx, span := tracer.Start(ctx, "dispatchAction")
	callCtx, cancel := context.WithTimeout(spanCtx, e.callTimeout)
	start := time.Now()
	execErr := e.execute(callCtx, s.userID, &pending)
	cancel()
	span.End()
	dispatchDuration.Observe(time.Since(start).Seconds())

	if execErr == nil {
		finished := time.Now()
		s.mu.Lock()
		s.queue.remove(pending.ID)
		s.lastActivityAt = finished
		s.mu.Unlock()

		if err := e.store.UpdateSessionActivity(ctx, s.userID, finished); err != nil {
			s.logger.Error("failed to persist session activity", "err", err)
		}
		if err := e.outcomes.RecordOutcome(ctx, s.userID, outcomestore.Outcome{
			Type:    string(pending.Type),
			Success: true,
			At:      finished,
		}); err != nil {
			s.logger.Error("failed to record outcome", "err", err)
		}
		actionsExecuted.WithLabelValues(string(pending.Type), "ok").Inc()
		s.logger.Info("action executed", "id", pending.ID, "type", pending.Type, "attempt", pending.Attempts+1)
		return
	}

	actionsExecuted.WithLabelValues(string(pending.Type), "error").Inc()

	if platform.IsAuth(execErr) {
		// credentials are unrecoverable without user action; no retry
		s.logger.Error("fatal auth failure from platform, stopping session", "err", execErr)
		e.failSession(s, StopReasonAuth)
		return
	}

	e.handleFailure(ctx, s, pending.ID, execErr)
}

func (e *Engine) execute(ctx context.Context, userID string, act *Action) error {
	switch act.Type {
	case ActionPost:
		res, err := e.platform.SubmitPost(ctx, userID, *act.Post)
		if err != nil {
			return err
		}
		e.logger.Debug("post submitted", "user", userID, "externalId", res.ExternalID, "url", res.URL)
		return nil
	case ActionComment:
		res, err := e.platform.SubmitComment(ctx, userID, *act.Comment)
		if err != nil {
			return err
		}
		e.logger.Debug("comment submitted", "user", userID, "externalId", res.ExternalID)
		return nil
	case ActionVote:
		return e.platform.Vote(ctx, userID, *act.Vote)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, act.Type)
	}
}
