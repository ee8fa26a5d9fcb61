package services

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"handyconnect-server/models"
	"handyconnect-server/utils"
)

// sessionTouchInterval limits how often a sliding session is written back.
const sessionTouchInterval = time.Minute

// SessionService manages cookie sessions and websocket tickets.
type SessionService struct {
	db           *gorm.DB
	ttl          time.Duration
	ticketSecret string
	ticketTTL    time.Duration
	now          func() time.Time
}

type SessionOptions struct {
	TTL          time.Duration
	TicketSecret string
	TicketTTL    time.Duration
}

func NewSessionService(db *gorm.DB, opts SessionOptions) *SessionService {
	if opts.TTL <= 0 {
		opts.TTL = models.DefaultSessionTTL
	}
	if opts.TicketTTL <= 0 {
		opts.TicketTTL = 5 * time.Minute
	}
	return &SessionService{
		db:           db,
		ttl:          opts.TTL,
		ticketSecret: opts.TicketSecret,
		ticketTTL:    opts.TicketTTL,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create opens a new session for the user and returns it with its token.
func (s *SessionService) Create(ctx context.Context, userID uint, userAgent, ipAddress string) (*models.Session, error) {
	token, err := utils.GenerateSecureToken(32)
	if err != nil {
		return nil, Downstream("Failed to generate session", err)
	}

	now := s.now()
	session := &models.Session{
		Token:      token,
		UserID:     userID,
		ExpiresAt:  now.Add(s.ttl),
		LastSeenAt: now,
		UserAgent:  truncate(userAgent, 500),
		IPAddress:  truncate(ipAddress, 45),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, Downstream("Failed to create session", err)
	}

	log.Printf("✅ Session opened for user %d", userID)
	return session, nil
}

// Resolve looks up a live session and its user, sliding the expiry forward.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.Session, *models.User, error) {
	if token == "" {
		return nil, nil, Unauthorized("Authentication required")
	}

	var session models.Session
	err := s.db.WithContext(ctx).Preload("User").Preload("User.WorkerProfile").
		Where("token = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, Unauthorized("Session not found")
	}
	if err != nil {
		return nil, nil, Downstream("Failed to load session", err)
	}

	now := s.now()
	if !session.IsValid(now) {
		return nil, nil, Unauthorized("Session expired")
	}

	if now.Sub(session.LastSeenAt) >= sessionTouchInterval {
		expiresAt := now.Add(s.ttl)
		if err := s.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", session.ID).
			Updates(map[string]interface{}{"expires_at": expiresAt, "last_seen_at": now}).Error; err != nil {
			log.Printf("⚠️ Failed to extend session %d: %v", session.ID, err)
		} else {
			session.ExpiresAt = expiresAt
			session.LastSeenAt = now
		}
	}

	user := session.User
	return &session, &user, nil
}

func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("token = ?", token).
		Update("is_revoked", true).Error
	if err != nil {
		return Downstream("Failed to revoke session", err)
	}
	return nil
}

// RevokeAllForUser ends every session of a user
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Update("is_revoked", true).Error
	if err != nil {
		return Downstream("Failed to revoke sessions", err)
	}
	return nil
}

// SweepExpired deletes expired and revoked sessions.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR is_revoked = ?", s.now(), true).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// IssueSocketTicket signs a short-lived token for the websocket auth frame.
func (s *SessionService) IssueSocketTicket(userID uint) (string, time.Time, error) {
	if s.ticketSecret == "" {
		return "", time.Time{}, Unavailable("Real-time tickets are not configured")
	}
	token, expiresAt, err := utils.GenerateSocketTicket(s.ticketSecret, userID, s.ticketTTL)
	if err != nil {
		return "", time.Time{}, Downstream("Failed to sign ticket", err)
	}
	return token, expiresAt, nil
}

func (s *SessionService) VerifySocketTicket(token string) (uint, error) {
	userID, err := utils.VerifySocketTicket(s.ticketSecret, token)
	if err != nil {
		return 0, Unauthorized("Invalid ticket")
	}
	return userID, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
