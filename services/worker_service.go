package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"handyconnect-server/models"
	"handyconnect-server/types"
)

const defaultSearchLimit = 20

type WorkerService struct {
	db *gorm.DB
}

func NewWorkerService(db *gorm.DB) *WorkerService {
	return &WorkerService{db: db}
}

// WorkerSearchFilters are all optional and combine with AND.
type WorkerSearchFilters struct {
	Category      *models.ServiceCategory
	City          string
	MinRating     *float64
	MaxHourlyRate *float64
	IsAvailable   *bool
	Limit         int
	Offset        int
}

type WorkerSearchResult struct {
	Workers []models.User `json:"workers"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// SearchWorkers lists workers matching every supplied filter, best rated first.
// Storage failures are returned as errors, never as an empty page.
func (s *WorkerService) SearchWorkers(ctx context.Context, filters WorkerSearchFilters) (*WorkerSearchResult, error) {
	limit, offset := clampPage(filters.Limit, filters.Offset, defaultSearchLimit)

	query := s.db.WithContext(ctx).Model(&models.User{}).
		Select("users.*").
		Joins("JOIN worker_profiles ON worker_profiles.user_id = users.id AND worker_profiles.deleted_at IS NULL").
		Where("users.role = ?", models.RoleWorker)

	if filters.Category != nil {
		query = query.Where("worker_profiles.category = ?", *filters.Category)
	}
	if city := strings.TrimSpace(filters.City); city != "" {
		query = query.Where(`LOWER(users.city) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(city))+"%")
	}
	if filters.MinRating != nil {
		query = query.Where("worker_profiles.rating >= ?", *filters.MinRating)
	}
	if filters.MaxHourlyRate != nil {
		query = query.Where("worker_profiles.hourly_rate <= ?", *filters.MaxHourlyRate)
	}
	if filters.IsAvailable != nil {
		query = query.Where("worker_profiles.is_available = ?", *filters.IsAvailable)
	}

	workers := []models.User{}
	err := query.
		Order("worker_profiles.rating DESC").
		Order("users.id ASC").
		Limit(limit).
		Offset(offset).
		Preload("WorkerProfile").
		Find(&workers).Error
	if err != nil {
		return nil, Downstream("Failed to search workers", err)
	}

	return &WorkerSearchResult{Workers: workers, Limit: limit, Offset: offset}, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// GetWorkerWithProfile returns a worker merged with its profile.
func (s *WorkerService) GetWorkerWithProfile(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("WorkerProfile").
		Where("id = ? AND role = ?", id, models.RoleWorker).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && user.WorkerProfile == nil) {
		return nil, NotFound("Worker")
	}
	if err != nil {
		return nil, Downstream("Failed to fetch worker", err)
	}
	return &user, nil
}

type WorkerProfileInput struct {
	Category        models.ServiceCategory `json:"category" validate:"required,category"`
	Specializations []string               `json:"specializations" validate:"max=20,dive,min=1,max=100"`
	Experience      int                    `json:"experience" validate:"min=0,max=80"`
	Skills          []string               `json:"skills" validate:"max=50,dive,min=1,max=100"`
	Certifications  []string               `json:"certifications" validate:"max=20,dive,min=1,max=200"`
	Description     string                 `json:"description" validate:"max=5000"`
	HourlyRate      types.FlexFloat        `json:"hourlyRate" validate:"gt=0"`
	IsAvailable     *bool                  `json:"isAvailable"`
	PhoneNumber     string                 `json:"phoneNumber" validate:"max=20"`
}

// CreateProfile attaches a worker profile to the user, promoting a client
// account to worker in the same transaction.
func (s *WorkerService) CreateProfile(ctx context.Context, userID uint, input WorkerProfileInput) (*models.WorkerProfile, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	var profile *models.WorkerProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("User")
			}
			return Downstream("Failed to fetch user", err)
		}
		if user.IsAdmin() {
			return Forbidden("Admins cannot have a worker profile")
		}

		var existing int64
		if err := tx.Model(&models.WorkerProfile{}).Where("user_id = ?", userID).Count(&existing).Error; err != nil {
			return Downstream("Failed to check worker profile", err)
		}
		if existing > 0 {
			return Conflict("Worker profile already exists")
		}

		var err error
		profile, err = createWorkerProfile(tx, userID, &input)
		if err != nil {
			return err
		}
		if !user.IsWorker() {
			if err := tx.Model(&user).Update("role", models.RoleWorker).Error; err != nil {
				return Downstream("Failed to update role", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func createWorkerProfile(tx *gorm.DB, userID uint, input *WorkerProfileInput) (*models.WorkerProfile, error) {
	available := true
	if input.IsAvailable != nil {
		available = *input.IsAvailable
	}
	profile := &models.WorkerProfile{
		UserID:          userID,
		Category:        input.Category,
		Specializations: datatypes.JSONSlice[string](cleanList(input.Specializations)),
		Experience:      input.Experience,
		Skills:          datatypes.JSONSlice[string](cleanList(input.Skills)),
		Certifications:  datatypes.JSONSlice[string](cleanList(input.Certifications)),
		Description:     strings.TrimSpace(input.Description),
		HourlyRate:      input.HourlyRate.Float64(),
		IsAvailable:     available,
		PhoneNumber:     strings.TrimSpace(input.PhoneNumber),
	}
	if err := tx.Create(profile).Error; err != nil {
		return nil, Downstream("Failed to create worker profile", err)
	}
	return profile, nil
}

// WorkerProfilePatch updates a profile partially. Rating and review totals
// are derived from reviews and cannot be set here.
type WorkerProfilePatch struct {
	Category        *models.ServiceCategory `json:"category" validate:"omitempty,category"`
	Specializations *[]string               `json:"specializations" validate:"omitempty,max=20,dive,min=1,max=100"`
	Experience      *int                    `json:"experience" validate:"omitempty,min=0,max=80"`
	Skills          *[]string               `json:"skills" validate:"omitempty,max=50,dive,min=1,max=100"`
	Certifications  *[]string               `json:"certifications" validate:"omitempty,max=20,dive,min=1,max=200"`
	Description     *string                 `json:"description" validate:"omitempty,max=5000"`
	HourlyRate      *types.FlexFloat        `json:"hourlyRate" validate:"omitempty,gt=0"`
	IsAvailable     *bool                   `json:"isAvailable"`
	PhoneNumber     *string                 `json:"phoneNumber" validate:"omitempty,max=20"`
}

func (s *WorkerService) UpdateProfile(ctx context.Context, userID uint, patch WorkerProfilePatch) (*models.WorkerProfile, error) {
	if err := validateStruct(patch); err != nil {
		return nil, err
	}

	var profile models.WorkerProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Worker profile")
	}
	if err != nil {
		return nil, Downstream("Failed to fetch worker profile", err)
	}

	updates := map[string]interface{}{}
	if patch.Category != nil {
		updates["category"] = *patch.Category
	}
	if patch.Specializations != nil {
		updates["specializations"] = datatypes.JSONSlice[string](cleanList(*patch.Specializations))
	}
	if patch.Experience != nil {
		updates["experience"] = *patch.Experience
	}
	if patch.Skills != nil {
		updates["skills"] = datatypes.JSONSlice[string](cleanList(*patch.Skills))
	}
	if patch.Certifications != nil {
		updates["certifications"] = datatypes.JSONSlice[string](cleanList(*patch.Certifications))
	}
	if patch.Description != nil {
		updates["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.HourlyRate != nil {
		updates["hourly_rate"] = patch.HourlyRate.Float64()
	}
	if patch.IsAvailable != nil {
		updates["is_available"] = *patch.IsAvailable
	}
	if patch.PhoneNumber != nil {
		updates["phone_number"] = strings.TrimSpace(*patch.PhoneNumber)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&profile).Updates(updates).Error; err != nil {
			return nil, Downstream("Failed to update worker profile", err)
		}
	}
	if err := s.db.WithContext(ctx).First(&profile, profile.ID).Error; err != nil {
		return nil, Downstream("Failed to fetch worker profile", err)
	}
	return &profile, nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}
