package services

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"handyconnect-server/models"
)

type FavoriteService struct {
	db *gorm.DB
}

func NewFavoriteService(db *gorm.DB) *FavoriteService {
	return &FavoriteService{db: db}
}

// Add bookmarks a worker. Adding an existing favorite returns the stored row.
func (s *FavoriteService) Add(ctx context.Context, clientID, workerID uint) (*models.Favorite, error) {
	if workerID == 0 {
		return nil, FieldError("workerId", "This field is required")
	}
	if clientID == workerID {
		return nil, FieldError("workerId", "Cannot favorite yourself")
	}

	var worker models.User
	err := s.db.WithContext(ctx).Select("id", "role").First(&worker, workerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !worker.IsWorker()) {
		return nil, NotFound("Worker")
	}
	if err != nil {
		return nil, Downstream("Failed to fetch worker", err)
	}

	favorite := &models.Favorite{ClientID: clientID, WorkerID: workerID}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(favorite).Error; err != nil {
		return nil, Downstream("Failed to add favorite", err)
	}

	var stored models.Favorite
	if err := s.db.WithContext(ctx).
		Where("client_id = ? AND worker_id = ?", clientID, workerID).
		First(&stored).Error; err != nil {
		return nil, Downstream("Failed to fetch favorite", err)
	}
	return &stored, nil
}

func (s *FavoriteService) Remove(ctx context.Context, clientID, workerID uint) error {
	result := s.db.WithContext(ctx).
		Where("client_id = ? AND worker_id = ?", clientID, workerID).
		Delete(&models.Favorite{})
	if result.Error != nil {
		return Downstream("Failed to remove favorite", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFound("Favorite")
	}
	return nil
}

// List returns the client's favorites with each worker and profile, newest first.
func (s *FavoriteService) List(ctx context.Context, clientID uint) ([]models.Favorite, error) {
	favorites := []models.Favorite{}
	err := s.db.WithContext(ctx).
		Preload("Worker").
		Preload("Worker.WorkerProfile").
		Where("client_id = ?", clientID).
		Order("created_at DESC").Order("id DESC").
		Find(&favorites).Error
	if err != nil {
		return nil, Downstream("Failed to fetch favorites", err)
	}
	return favorites, nil
}
