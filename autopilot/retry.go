package autopilot

import (
	"context"

	"github.com/flightdeck-social/flightdeck/autopilot/outcomestore"
)

// handleFailure applies the retry policy to a failed action. Below
// MaxAttempts the action stays in the queue at its original priority and
// order; no extra backoff is applied, the next tick's spacing rules provide
// the delay. At MaxAttempts it is removed and recorded as a terminal
// failure.
func (e *Engine) handleFailure(ctx context.Context, s *session, actionID uint64, execErr error) {
	s.mu.Lock()
	act := s.queue.get(actionID)
	if act == nil {
		s.mu.Unlock()
		// removed administratively while the call was in flight
		return
	}
	act.Attempts++
	actType := act.Type
	attempts := act.Attempts
	exhausted := act.Attempts >= act.MaxAttempts
	if exhausted {
		s.queue.remove(actionID)
	}
	s.mu.Unlock()

	if !exhausted {
		s.logger.Warn("action failed, will retry",
			"id", actionID, "type", actType, "attempt", attempts, "err", execErr)
		if err := e.outcomes.RecordOutcome(ctx, s.userID, outcomestore.Outcome{
			Type:    string(actType),
			Success: false,
			Detail:  execErr.Error(),
		}); err != nil {
			s.logger.Error("failed to record outcome", "err", err)
		}
		return
	}

	s.logger.Error("action permanently failed",
		"id", actionID, "type", actType, "attempts", attempts, "err", execErr)
	actionsTerminal.WithLabelValues(string(actType)).Inc()
	if err := e.outcomes.RecordOutcome(ctx, s.userID, outcomestore.Outcome{
		Type:     string(actType),
		Success:  false,
		Terminal: true,
		Detail:   execErr.Error(),
	}); err != nil {
		s.logger.Error("failed to record outcome", "err", err)
	}
}
