package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"handyconnect-server/database"
	"handyconnect-server/models"
)

// ReviewService records reviews and keeps worker ratings in sync with them.
type ReviewService struct {
	db            *gorm.DB
	notifications *NotificationService
}

func NewReviewService(db *gorm.DB, notifications *NotificationService) *ReviewService {
	return &ReviewService{db: db, notifications: notifications}
}

type CreateReviewInput struct {
	InterventionID uint    `json:"interventionId" validate:"required"`
	WorkerID       *uint   `json:"workerId"`
	Rating         int     `json:"rating" validate:"required,min=1,max=5"`
	Comment        *string `json:"comment" validate:"omitempty,max=2000"`
}

// Create stores the client's review of a completed intervention and
// recomputes the worker's rating in the same transaction.
func (s *ReviewService) Create(ctx context.Context, clientID uint, input CreateReviewInput) (*models.Review, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	var review *models.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var intervention models.Intervention
		if err := tx.First(&intervention, input.InterventionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("Intervention")
			}
			return Downstream("Failed to fetch intervention", err)
		}
		if intervention.ClientID != clientID {
			return Forbidden("Only the client of this intervention can review it")
		}
		if intervention.Status != models.StatusCompleted {
			return Conflict("Only completed interventions can be reviewed")
		}
		if intervention.WorkerID == nil {
			return Conflict("Intervention has no assigned worker")
		}
		if input.WorkerID != nil && *input.WorkerID != *intervention.WorkerID {
			return FieldError("workerId", "Does not match the intervention's worker")
		}

		var existing int64
		if err := tx.Model(&models.Review{}).Unscoped().
			Where("intervention_id = ?", intervention.ID).
			Count(&existing).Error; err != nil {
			return Downstream("Failed to check existing review", err)
		}
		if existing > 0 {
			return Conflict("This intervention has already been reviewed")
		}

		review = &models.Review{
			InterventionID: intervention.ID,
			ClientID:       clientID,
			WorkerID:       *intervention.WorkerID,
			Rating:         input.Rating,
			Comment:        trimmedOrNil(input.Comment),
			IsVisible:      true,
		}
		if err := tx.Create(review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return Conflict("This intervention has already been reviewed")
			}
			return Downstream("Failed to create review", err)
		}

		_, err := recomputeWorkerRating(tx, review.WorkerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifications.notifyQuietly(ctx, review.WorkerID, models.NotificationNewReview,
		"New review", fmt.Sprintf("You received a %d-star review", review.Rating), &review.InterventionID)
	return review, nil
}

// RecomputeWorkerRating rebuilds a worker's rating from the reviews table.
// Running it again without new reviews yields the same values.
func (s *ReviewService) RecomputeWorkerRating(ctx context.Context, workerID uint) (*models.WorkerRatingSummary, error) {
	var summary *models.WorkerRatingSummary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		summary, err = recomputeWorkerRating(tx, workerID)
		return err
	})
	return summary, err
}

// recomputeWorkerRating writes AVG and COUNT over the worker's reviews to the
// profile. On postgres the profile row is locked first so concurrent reviews
// serialize on it.
func recomputeWorkerRating(tx *gorm.DB, workerID uint) (*models.WorkerRatingSummary, error) {
	profileQuery := tx.Where("user_id = ?", workerID)
	if database.IsPostgres(tx) {
		profileQuery = profileQuery.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var profile models.WorkerProfile
	if err := profileQuery.First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Worker profile")
		}
		return nil, Downstream("Failed to fetch worker profile", err)
	}

	var agg struct {
		Average float64
		Total   int64
	}
	if err := tx.Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS total").
		Where("worker_id = ?", workerID).
		Scan(&agg).Error; err != nil {
		return nil, Downstream("Failed to aggregate reviews", err)
	}

	summary := &models.WorkerRatingSummary{
		WorkerID:     workerID,
		Rating:       math.Round(agg.Average*100) / 100,
		TotalReviews: int(agg.Total),
	}
	if err := tx.Model(&models.WorkerProfile{}).Where("id = ?", profile.ID).
		Updates(map[string]interface{}{
			"rating":        summary.Rating,
			"total_reviews": summary.TotalReviews,
		}).Error; err != nil {
		return nil, Downstream("Failed to update worker rating", err)
	}
	return summary, nil
}

// ListForWorker returns a worker's visible reviews, newest first.
func (s *ReviewService) ListForWorker(ctx context.Context, workerID uint) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.WithContext(ctx).
		Preload("Client").
		Where("worker_id = ? AND is_visible = ?", workerID, true).
		Order("created_at DESC").Order("id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, Downstream("Failed to fetch reviews", err)
	}
	return reviews, nil
}

// ListUnmoderated returns reviews awaiting moderation, oldest first.
func (s *ReviewService) ListUnmoderated(ctx context.Context) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.WithContext(ctx).
		Preload("Client").
		Where("is_moderated = ?", false).
		Order("created_at ASC").Order("id ASC").
		Find(&reviews).Error
	if err != nil {
		return nil, Downstream("Failed to fetch reviews", err)
	}
	return reviews, nil
}

type ModerateReviewInput struct {
	IsModerated *bool `json:"isModerated"`
	IsVisible   *bool `json:"isVisible"`
}

// Moderate updates the moderation flags. The worker's rating is left as is.
func (s *ReviewService) Moderate(ctx context.Context, id uint, input ModerateReviewInput) (*models.Review, error) {
	updates := map[string]interface{}{}
	if input.IsModerated != nil {
		updates["is_moderated"] = *input.IsModerated
	}
	if input.IsVisible != nil {
		updates["is_visible"] = *input.IsVisible
	}
	if len(updates) == 0 {
		return nil, ValidationError("Nothing to update", map[string]string{
			"isModerated": "Provide isModerated or isVisible",
		})
	}

	var review models.Review
	if err := s.db.WithContext(ctx).First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Review")
		}
		return nil, Downstream("Failed to fetch review", err)
	}
	if err := s.db.WithContext(ctx).Model(&review).Updates(updates).Error; err != nil {
		return nil, Downstream("Failed to moderate review", err)
	}
	if err := s.db.WithContext(ctx).First(&review, id).Error; err != nil {
		return nil, Downstream("Failed to fetch review", err)
	}
	return &review, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
