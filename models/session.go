package models

import (
	"time"

	"gorm.io/gorm"
)

const DefaultSessionTTL = 7 * 24 * time.Hour

// Session is server-side login state referenced by the connect.sid cookie.
type Session struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Token      string    `json:"-" gorm:"size:64;uniqueIndex;not null"`
	UserID     uint      `json:"userId" gorm:"not null;index"`
	ExpiresAt  time.Time `json:"expiresAt" gorm:"not null;index"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	IsRevoked  bool      `json:"isRevoked" gorm:"default:false;index"`
	UserAgent  string    `json:"userAgent" gorm:"size:500"`
	IPAddress  string    `json:"ipAddress" gorm:"size:45"`
	CreatedAt  time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updatedAt" gorm:"autoUpdateTime"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for the Session model
func (Session) TableName() string {
	return "sessions"
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsValid checks the session is neither expired nor revoked
func (s *Session) IsValid(now time.Time) bool {
	return !s.IsExpired(now) && !s.IsRevoked
}

func (s *Session) Revoke() {
	s.IsRevoked = true
	s.UpdatedAt = time.Now()
}

// BeforeCreate is a GORM hook that runs before creating a session
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	now := tx.NowFunc()
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = now.Add(DefaultSessionTTL)
	}
	if s.LastSeenAt.IsZero() {
		s.LastSeenAt = now
	}
	return nil
}
