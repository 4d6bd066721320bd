package autopilot

import (
	"context"
	"time"
)

// SessionRecord is the persisted shape of a session. The in-process session
// struct is authoritative while a loop is running; the record is what
// survives restarts and feeds ResumeSessions.
type SessionRecord struct {
	UserID         string
	SessionID      string
	Status         SessionStatus
	StopReason     StopReason
	Settings       Settings
	LastActivityAt time.Time
	StartedAt      time.Time
}

// Store persists session records. Implementations must be safe for
// concurrent use; the engine calls them from many session loops at once.
type Store interface {
	// GetSession returns the most recent record for the user, or
	// ErrSessionNotFound.
	GetSession(ctx context.Context, userID string) (*SessionRecord, error)
	PutSession(ctx context.Context, rec *SessionRecord) error
	UpdateSessionStatus(ctx context.Context, userID string, status SessionStatus, reason StopReason) error
	UpdateSessionActivity(ctx context.Context, userID string, at time.Time) error
	// PutSettings upserts the user's settings, creating a stopped record if
	// the user has never run a session.
	PutSettings(ctx context.Context, userID string, settings Settings) error
	// ListActiveSessions returns records whose persisted status is active,
	// for resuming loops at process start.
	ListActiveSessions(ctx context.Context) ([]*SessionRecord, error)
}

// Credential is a user's platform API credential.
type Credential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the credential can be presented to the platform.
func (c *Credential) Valid(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}

type CredentialStore interface {
	// GetCredential returns the user's credential, or ErrCredentialNotFound.
	GetCredential(ctx context.Context, userID string) (*Credential, error)
}
