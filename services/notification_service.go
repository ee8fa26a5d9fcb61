package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"

	"gorm.io/gorm"

	"handyconnect-server/models"
)

// Mailer delivers an email copy of a notification.
type Mailer interface {
	Send(to, subject, body string) error
}

// NotificationService stores notifications, pushes them to live connections
// and optionally mirrors them by email.
type NotificationService struct {
	db        *gorm.DB
	publisher Publisher
	mailer    Mailer
}

func NewNotificationService(db *gorm.DB, publisher Publisher, mailer Mailer) *NotificationService {
	return &NotificationService{
		db:        db,
		publisher: publisherOrNoop(publisher),
		mailer:    mailer,
	}
}

// Notify creates a notification for userID.
func (s *NotificationService) Notify(ctx context.Context, userID uint, notifType, title, message string, relatedID *uint) (*models.Notification, error) {
	notification := &models.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      notifType,
		RelatedID: relatedID,
	}
	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, Downstream("Failed to create notification", err)
	}

	s.publisher.PublishToUsers([]uint{userID}, EventNotification, notification)
	if s.mailer != nil {
		go s.mail(*notification)
	}
	return notification, nil
}

// notifyQuietly is used after a committed state change; a failed notification
// never fails the request that caused it.
func (s *NotificationService) notifyQuietly(ctx context.Context, userID uint, notifType, title, message string, relatedID *uint) {
	if s == nil || userID == 0 {
		return
	}
	if _, err := s.Notify(ctx, userID, notifType, title, message, relatedID); err != nil {
		log.Printf("⚠️ Failed to notify user %d (%s): %v", userID, notifType, err)
	}
}

func (s *NotificationService) mail(n models.Notification) {
	var user models.User
	if err := s.db.Select("id", "email", "first_name").First(&user, n.UserID).Error; err != nil {
		log.Printf("⚠️ Notification mail skipped for user %d: %v", n.UserID, err)
		return
	}
	body := fmt.Sprintf("<p>Hello %s,</p><p>%s</p>", html.EscapeString(user.FirstName), html.EscapeString(n.Message))
	if err := s.mailer.Send(user.Email, n.Title, body); err != nil {
		log.Printf("❌ Failed to mail notification %d to %s: %v", n.ID, user.Email, err)
	}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool) ([]models.Notification, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Order("id DESC").Find(&notifications).Error; err != nil {
		return nil, Downstream("Failed to fetch notifications", err)
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, Downstream("Failed to count notifications", err)
	}
	return count, nil
}

// MarkAsRead flags one of the user's notifications as read. Marking an
// already-read notification succeeds. Other users' notifications are reported
// as not found.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, notificationID uint) (*models.Notification, error) {
	var notification models.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", notificationID, userID).First(&notification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Notification")
	}
	if err != nil {
		return nil, Downstream("Failed to fetch notification", err)
	}

	if !notification.IsRead {
		if err := s.db.WithContext(ctx).Model(&notification).Update("is_read", true).Error; err != nil {
			return nil, Downstream("Failed to update notification", err)
		}
		notification.IsRead = true
	}
	return &notification, nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, Downstream("Failed to update notifications", result.Error)
	}
	return result.RowsAffected, nil
}
