package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"handyconnect-server/models"
)

// DashboardService computes point-in-time statistics straight from storage.
type DashboardService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *DashboardService) monthStart() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Stats returns the dashboard figures for the user's role.
func (s *DashboardService) Stats(ctx context.Context, user *models.User) (*models.DashboardStats, error) {
	switch user.Role {
	case models.RoleClient:
		return s.clientStats(ctx, user.ID)
	case models.RoleWorker:
		return s.workerStats(ctx, user.ID)
	case models.RoleAdmin:
		return s.adminStats(ctx)
	}
	return &models.DashboardStats{}, nil
}

func (s *DashboardService) clientStats(ctx context.Context, clientID uint) (*models.DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &models.DashboardStats{}

	var active, completed, favorites int64
	if err := db.Model(&models.Intervention{}).
		Where("client_id = ? AND status = ?", clientID, models.StatusInProgress).
		Count(&active).Error; err != nil {
		return nil, Downstream("Failed to compute dashboard stats", err)
	}
	if err := db.Model(&models.Intervention{}).
		Where("client_id = ? AND status = ? AND completed_at >= ?", clientID, models.StatusCompleted, s.monthStart()).
		Count(&completed).Error; err != nil {
		return nil, Downstream("Failed to compute dashboard stats", err)
	}
	if err := db.Model(&models.Favorite{}).Where("client_id = ?", clientID).Count(&favorites).Error; err != nil {
		return nil, Downstream("Failed to compute dashboard stats", err)
	}

	spent, err := s.sumBudget(db.Where("client_id = ? AND status = ?", clientID, models.StatusCompleted))
	if err != nil {
		return nil, err
	}

	stats.ActiveInterventions = &active
	stats.CompletedThisMonth = &completed
	stats.TotalSpent = &spent
	stats.FavoriteWorkers = &favorites
	return stats, nil
}

// workerStats reports earnings as the sum of the clients' max budgets.
func (s *DashboardService) workerStats(ctx context.Context, workerID uint) (*models.DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &models.DashboardStats{}

	var completed int64
	if err := db.Model(&models.Intervention{}).
		Where("worker_id = ? AND status = ? AND completed_at >= ?", workerID, models.StatusCompleted, s.monthStart()).
		Count(&completed).Error; err != nil {
		return nil, Downstream("Failed to compute dashboard stats", err)
	}

	earnings, err := s.sumBudget(db.Where("worker_id = ? AND status = ? AND completed_at >= ?",
		workerID, models.StatusCompleted, s.monthStart()))
	if err != nil {
		return nil, err
	}

	var active int64
	if err := db.Model(&models.Intervention{}).
		Where("worker_id = ? AND status IN ?", workerID, []models.InterventionStatus{models.StatusAccepted, models.StatusInProgress}).
		Count(&active).Error; err != nil {
		return nil, Downstream("Failed to compute dashboard stats", err)
	}

	var profile models.WorkerProfile
	if err := db.Select("rating", "total_reviews").Where("user_id = ?", workerID).Limit(1).Find(&profile).Error; err != nil {
		return nil, Downstream("Failed to compute dashboard stats", err)
	}
	totalReviews := int64(profile.TotalReviews)

	stats.CompletedThisMonth = &completed
	stats.MonthlyEarnings = &earnings
	stats.ActiveInterventions = &active
	stats.AverageRating = &profile.Rating
	stats.TotalReviews = &totalReviews
	return stats, nil
}

func (s *DashboardService) adminStats(ctx context.Context) (*models.DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &models.DashboardStats{InterventionsByStat: map[models.InterventionStatus]int64{}}

	var users, workers, unmoderated int64
	if err := db.Model(&models.User{}).Count(&users).Error; err != nil {
		return nil, Downstream("Failed to compute dashboard stats", err)
	}
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleWorker).Count(&workers).Error; err != nil {
		return nil, Downstream("Failed to compute dashboard stats", err)
	}
	if err := db.Model(&models.Review{}).Where("is_moderated = ?", false).Count(&unmoderated).Error; err != nil {
		return nil, Downstream("Failed to compute dashboard stats", err)
	}

	var rows []struct {
		Status models.InterventionStatus
		Total  int64
	}
	if err := db.Model(&models.Intervention{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, Downstream("Failed to compute dashboard stats", err)
	}
	for _, row := range rows {
		stats.InterventionsByStat[row.Status] = row.Total
	}

	stats.TotalUsers = &users
	stats.TotalWorkers = &workers
	stats.UnmoderatedReviews = &unmoderated
	return stats, nil
}

func (s *DashboardService) sumBudget(scoped *gorm.DB) (float64, error) {
	var agg struct {
		Total float64
	}
	if err := scoped.Model(&models.Intervention{}).
		Select("COALESCE(SUM(max_budget), 0) AS total").
		Scan(&agg).Error; err != nil {
		return 0, Downstream("Failed to compute dashboard stats", err)
	}
	return agg.Total, nil
}
