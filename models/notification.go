package models

import (
	"time"
)

const (
	NotificationInterventionRequest   = "intervention_request"
	NotificationInterventionAccepted  = "intervention_accepted"
	NotificationInterventionStarted   = "intervention_started"
	NotificationInterventionCompleted = "intervention_completed"
	NotificationInterventionCancelled = "intervention_cancelled"
	NotificationInterventionDisputed  = "intervention_disputed"
	NotificationNewReview             = "new_review"
	NotificationPaymentReceived       = "payment_received"
)

type Notification struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"not null;index"`
	Title     string    `json:"title" gorm:"size:255;not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	Type      string    `json:"type" gorm:"size:50;not null"`
	IsRead    bool      `json:"isRead" gorm:"default:false;index"`
	RelatedID *uint     `json:"relatedId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}
