package models

import "time"

// Favorite is a client's bookmark of a worker. One row per (client, worker).
type Favorite struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ClientID  uint      `json:"clientId" gorm:"not null;uniqueIndex:idx_favorites_client_worker"`
	WorkerID  uint      `json:"workerId" gorm:"not null;uniqueIndex:idx_favorites_client_worker;index"`
	CreatedAt time.Time `json:"createdAt"`

	Worker *User `json:"worker,omitempty" gorm:"foreignKey:WorkerID"`
}

// TableName specifies the table name for the Favorite model
func (Favorite) TableName() string {
	return "favorites"
}
