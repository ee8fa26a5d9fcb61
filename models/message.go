package models

import "time"

// Message is one chat line exchanged about an intervention.
type Message struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	InterventionID uint      `json:"interventionId" gorm:"not null;index:idx_messages_intervention_created,priority:1"`
	SenderID       uint      `json:"senderId" gorm:"not null;index"`
	ReceiverID     uint      `json:"receiverId" gorm:"not null;index"`
	Content        string    `json:"content" gorm:"type:text;not null"`
	IsRead         bool      `json:"isRead" gorm:"default:false"`
	CreatedAt      time.Time `json:"createdAt" gorm:"index:idx_messages_intervention_created,priority:2"`
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}
