package autopilot

import (
	"context"
	"sync"
	"time"
)

// MemStore is a simple in-memory implementation of Store and
// CredentialStore, used in tests and single-process setups without a
// database.
type MemStore struct {
	lk       sync.RWMutex
	sessions map[string]*SessionRecord
	creds    map[string]*Credential
}

func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]*SessionRecord),
		creds:    make(map[string]*Credential),
	}
}

var _ Store = (*MemStore)(nil)
var _ CredentialStore = (*MemStore)(nil)

func (s *MemStore) GetSession(ctx context.Context, userID string) (*SessionRecord, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()

	rec, ok := s.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *rec
	return &out, nil
}

func (s *MemStore) PutSession(ctx context.Context, rec *SessionRecord) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	cp := *rec
	s.sessions[rec.UserID] = &cp
	return nil
}

func (s *MemStore) UpdateSessionStatus(ctx context.Context, userID string, status SessionStatus, reason StopReason) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	rec, ok := s.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	rec.Status = status
	rec.StopReason = reason
	return nil
}

func (s *MemStore) UpdateSessionActivity(ctx context.Context, userID string, at time.Time) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	rec, ok := s.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	rec.LastActivityAt = at
	return nil
}

func (s *MemStore) PutSettings(ctx context.Context, userID string, settings Settings) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	rec, ok := s.sessions[userID]
	if !ok {
		s.sessions[userID] = &SessionRecord{
			UserID:   userID,
			Status:   StatusStopped,
			Settings: settings,
		}
		return nil
	}
	rec.Settings = settings
	return nil
}

func (s *MemStore) ListActiveSessions(ctx context.Context) ([]*SessionRecord, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()

	var out []*SessionRecord
	for _, rec := range s.sessions {
		if rec.Status == StatusActive {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemStore) GetCredential(ctx context.Context, userID string) (*Credential, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()

	c, ok := s.creds[userID]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemStore) PutCredential(ctx context.Context, c *Credential) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	cp := *c
	s.creds[c.UserID] = &cp
	return nil
}
