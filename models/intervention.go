package models

import (
	"time"
)

type InterventionStatus string

const (
	StatusPending    InterventionStatus = "pending"
	StatusAccepted   InterventionStatus = "accepted"
	StatusInProgress InterventionStatus = "in_progress"
	StatusCompleted  InterventionStatus = "completed"
	StatusCancelled  InterventionStatus = "cancelled"
	StatusDisputed   InterventionStatus = "disputed"
)

type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency:
		return true
	default:
		return false
	}
}

// transitions lists the statuses reachable from each status.
// completed and cancelled are terminal.
var transitions = map[InterventionStatus][]InterventionStatus{
	StatusPending:    {StatusAccepted, StatusCancelled, StatusDisputed},
	StatusAccepted:   {StatusInProgress, StatusCancelled, StatusDisputed},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusDisputed},
	StatusDisputed:   {StatusCompleted, StatusCancelled},
}

func (s InterventionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled, StatusDisputed:
		return true
	default:
		return false
	}
}

func (s InterventionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether an intervention may move from one status to another.
func CanTransition(from, to InterventionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Intervention struct {
	ID                uint               `json:"id" gorm:"primaryKey"`
	ClientID          uint               `json:"clientId" gorm:"not null;index"`
	WorkerID          *uint              `json:"workerId" gorm:"index"`
	Title             string             `json:"title" gorm:"size:255;not null"`
	Description       string             `json:"description" gorm:"type:text;not null"`
	Category          ServiceCategory    `json:"category" gorm:"type:varchar(30);not null;index"`
	Urgency           Urgency            `json:"urgency" gorm:"type:varchar(20);not null;default:'medium'"`
	PreferredDate     *time.Time         `json:"preferredDate"`
	EstimatedDuration *int               `json:"estimatedDuration"`
	MaxBudget         *float64           `json:"maxBudget" gorm:"type:decimal(10,2)"`
	Address           string             `json:"address" gorm:"size:255;not null"`
	City              string             `json:"city" gorm:"size:100;not null"`
	Status            InterventionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`

	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty" gorm:"index"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`

	Client *User `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Worker *User `json:"worker,omitempty" gorm:"foreignKey:WorkerID"`
}

// TableName specifies the table name for the Intervention model
func (Intervention) TableName() string {
	return "interventions"
}

func (i *Intervention) IsParticipant(userID uint) bool {
	return i.ClientID == userID || i.IsAssignedTo(userID)
}

func (i *Intervention) IsAssignedTo(userID uint) bool {
	return i.WorkerID != nil && *i.WorkerID == userID
}

// Counterpart returns the other participant for userID, or 0 when there is none yet.
func (i *Intervention) Counterpart(userID uint) uint {
	if i.ClientID == userID {
		if i.WorkerID != nil {
			return *i.WorkerID
		}
		return 0
	}
	return i.ClientID
}
