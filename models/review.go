package models

import (
	"time"

	"gorm.io/gorm"
)

type Review struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	InterventionID uint           `json:"interventionId" gorm:"uniqueIndex;not null"`
	ClientID       uint           `json:"clientId" gorm:"not null;index"`
	WorkerID       uint           `json:"workerId" gorm:"not null;index"`
	Rating         int            `json:"rating" gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Comment        *string        `json:"comment" gorm:"type:text"`
	IsModerated    bool           `json:"isModerated" gorm:"default:false;index"`
	IsVisible      bool           `json:"isVisible"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	Client *User `json:"client,omitempty" gorm:"foreignKey:ClientID"`
}

// TableName specifies the table name for the Review model
func (Review) TableName() string {
	return "reviews"
}

// WorkerRatingSummary is the aggregate written back to a worker profile.
type WorkerRatingSummary struct {
	WorkerID     uint    `json:"workerId"`
	Rating       float64 `json:"rating"`
	TotalReviews int     `json:"totalReviews"`
}
