package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ServiceCategory is the trade a worker offers and an intervention asks for.
type ServiceCategory string

const (
	CategoryPlumbing    ServiceCategory = "plumbing"
	CategoryElectricity ServiceCategory = "electricity"
	CategoryPainting    ServiceCategory = "painting"
	CategoryCarpentry   ServiceCategory = "carpentry"
	CategoryGardening   ServiceCategory = "gardening"
	CategoryCleaning    ServiceCategory = "cleaning"
	CategoryRenovation  ServiceCategory = "renovation"
	CategoryHVAC        ServiceCategory = "hvac"
)

var ServiceCategories = []ServiceCategory{
	CategoryPlumbing,
	CategoryElectricity,
	CategoryPainting,
	CategoryCarpentry,
	CategoryGardening,
	CategoryCleaning,
	CategoryRenovation,
	CategoryHVAC,
}

func (c ServiceCategory) IsValid() bool {
	for _, known := range ServiceCategories {
		if c == known {
			return true
		}
	}
	return false
}

// WorkerProfile is the one-to-one extension of a worker account.
// Rating and TotalReviews are derived from the reviews table and are only
// written by the review aggregator.
type WorkerProfile struct {
	ID              uint                        `json:"id" gorm:"primaryKey"`
	UserID          uint                        `json:"userId" gorm:"uniqueIndex;not null"`
	Category        ServiceCategory             `json:"category" gorm:"type:varchar(30);not null;index"`
	Specializations datatypes.JSONSlice[string] `json:"specializations"`
	Experience      int                         `json:"experience" gorm:"not null;default:0"`
	Skills          datatypes.JSONSlice[string] `json:"skills"`
	Certifications  datatypes.JSONSlice[string] `json:"certifications"`
	Description     string                      `json:"description" gorm:"type:text"`
	HourlyRate      float64                     `json:"hourlyRate" gorm:"type:decimal(10,2);not null"`
	IsAvailable     bool                        `json:"isAvailable" gorm:"index"`
	Rating          float64                     `json:"rating" gorm:"type:decimal(3,2);default:0;index"`
	TotalReviews    int                         `json:"totalReviews" gorm:"default:0"`
	PhoneNumber     string                      `json:"phoneNumber" gorm:"type:varchar(20)"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for the WorkerProfile model
func (WorkerProfile) TableName() string {
	return "worker_profiles"
}
