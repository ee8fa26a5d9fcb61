package models

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCanceled  PaymentStatus = "canceled"
)

// Payment records a payment intent created with the gateway. Status only
// moves away from pending after the gateway itself reports the outcome.
type Payment struct {
	ID               uint          `json:"id" gorm:"primaryKey"`
	UserID           uint          `json:"userId" gorm:"not null;index"`
	InterventionID   *uint         `json:"interventionId" gorm:"index"`
	Amount           float64       `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency         string        `json:"currency" gorm:"size:3;not null"`
	Description      string        `json:"description" gorm:"size:255"`
	ProviderIntentID string        `json:"providerIntentId" gorm:"size:255;uniqueIndex;not null"`
	Status           PaymentStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ConfirmedAt      *time.Time    `json:"confirmedAt,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// TableName specifies the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}
