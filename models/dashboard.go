package models

// DashboardStats carries the per-role dashboard figures. Fields that do not
// apply to the caller's role are omitted.
type DashboardStats struct {
	ActiveInterventions *int64   `json:"activeInterventions,omitempty"`
	CompletedThisMonth  *int64   `json:"completedThisMonth,omitempty"`
	TotalSpent          *float64 `json:"totalSpent,omitempty"`
	FavoriteWorkers     *int64   `json:"favoriteWorkers,omitempty"`
	MonthlyEarnings     *float64 `json:"monthlyEarnings,omitempty"`
	AverageRating       *float64 `json:"averageRating,omitempty"`
	TotalReviews        *int64   `json:"totalReviews,omitempty"`

	TotalUsers          *int64                       `json:"totalUsers,omitempty"`
	TotalWorkers        *int64                       `json:"totalWorkers,omitempty"`
	InterventionsByStat map[InterventionStatus]int64 `json:"interventionsByStatus,omitempty"`
	UnmoderatedReviews  *int64                       `json:"unmoderatedReviews,omitempty"`
}
