package autopilot

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormDBSession struct {
	gorm.Model
	UserID         string `gorm:"uniqueIndex"`
	SessionID      string `gorm:"index"`
	Status         string `gorm:"index"`
	StopReason     string
	Settings       Settings `gorm:"serializer:json"`
	LastActivityAt *time.Time
	StartedAt      *time.Time
}

type GormDBCredential struct {
	gorm.Model
	UserID       string `gorm:"uniqueIndex"`
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// GormStore is a gorm-backed implementation of Store and CredentialStore.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&GormDBSession{}, &GormDBCredential{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

var _ Store = (*GormStore)(nil)
var _ CredentialStore = (*GormStore)(nil)

func recordFromDB(dbs *GormDBSession) *SessionRecord {
	rec := &SessionRecord{
		UserID:     dbs.UserID,
		SessionID:  dbs.SessionID,
		Status:     SessionStatus(dbs.Status),
		StopReason: StopReason(dbs.StopReason),
		Settings:   dbs.Settings,
	}
	if dbs.LastActivityAt != nil {
		rec.LastActivityAt = *dbs.LastActivityAt
	}
	if dbs.StartedAt != nil {
		rec.StartedAt = *dbs.StartedAt
	}
	return rec
}

func (s *GormStore) GetSession(ctx context.Context, userID string) (*SessionRecord, error) {
	var dbs GormDBSession
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&dbs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return recordFromDB(&dbs), nil
}

func (s *GormStore) PutSession(ctx context.Context, rec *SessionRecord) error {
	dbs := GormDBSession{
		UserID:     rec.UserID,
		SessionID:  rec.SessionID,
		Status:     string(rec.Status),
		StopReason: string(rec.StopReason),
		Settings:   rec.Settings,
	}
	if !rec.LastActivityAt.IsZero() {
		t := rec.LastActivityAt
		dbs.LastActivityAt = &t
	}
	if !rec.StartedAt.IsZero() {
		t := rec.StartedAt
		dbs.StartedAt = &t
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"session_id", "status", "stop_reason", "settings",
			"last_activity_at", "started_at", "updated_at",
		}),
	}).Create(&dbs).Error
}

func (s *GormStore) UpdateSessionStatus(ctx context.Context, userID string, status SessionStatus, reason StopReason) error {
	res := s.db.WithContext(ctx).Model(&GormDBSession{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"status": string(status), "stop_reason": string(reason)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *GormStore) UpdateSessionActivity(ctx context.Context, userID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&GormDBSession{}).
		Where("user_id = ?", userID).
		Update("last_activity_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *GormStore) PutSettings(ctx context.Context, userID string, settings Settings) error {
	var dbs GormDBSession
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&dbs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(&GormDBSession{
			UserID:   userID,
			Status:   string(StatusStopped),
			Settings: settings,
		}).Error
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&dbs).Update("settings", settings).Error
}

func (s *GormStore) ListActiveSessions(ctx context.Context) ([]*SessionRecord, error) {
	var dbsessions []*GormDBSession
	if err := s.db.WithContext(ctx).Where("status = ?", string(StatusActive)).Find(&dbsessions).Error; err != nil {
		return nil, err
	}
	out := make([]*SessionRecord, 0, len(dbsessions))
	for _, dbs := range dbsessions {
		out = append(out, recordFromDB(dbs))
	}
	return out, nil
}

func (s *GormStore) GetCredential(ctx context.Context, userID string) (*Credential, error) {
	var dbc GormDBCredential
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&dbc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	cred := &Credential{
		UserID:       dbc.UserID,
		AccessToken:  dbc.AccessToken,
		RefreshToken: dbc.RefreshToken,
	}
	if dbc.ExpiresAt != nil {
		cred.ExpiresAt = *dbc.ExpiresAt
	}
	return cred, nil
}

// PutCredential upserts a user's platform credential. Used by the account
// onboarding path, which lives outside this package.
func (s *GormStore) PutCredential(ctx context.Context, c *Credential) error {
	dbc := GormDBCredential{
		UserID:       c.UserID,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
	}
	if !c.ExpiresAt.IsZero() {
		t := c.ExpiresAt
		dbc.ExpiresAt = &t
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "expires_at", "updated_at",
		}),
	}).Create(&dbc).Error
}
