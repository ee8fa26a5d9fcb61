package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"handyconnect-server/models"
	"handyconnect-server/utils"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type RegisterInput struct {
	Email         string              `json:"email" validate:"required,email,max=255"`
	Password      string              `json:"password" validate:"required,min=8,max=72"`
	FirstName     string              `json:"firstName" validate:"required,max=100"`
	LastName      string              `json:"lastName" validate:"required,max=100"`
	Role          models.UserRole     `json:"role" validate:"omitempty,oneof=client worker"`
	City          string              `json:"city" validate:"max=100"`
	WorkerProfile *WorkerProfileInput `json:"workerProfile"`
}

// Register creates a client or worker account. A worker account and its
// profile are written in the same transaction.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.Role == "" {
		input.Role = models.RoleClient
	}
	if input.Role == models.RoleWorker {
		if input.WorkerProfile == nil {
			return nil, FieldError("workerProfile", "This field is required")
		}
		if err := validateStruct(input.WorkerProfile); err != nil {
			return nil, err
		}
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, Downstream("Failed to hash password", err)
	}

	user := &models.User{
		Email:        input.Email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: &hash,
		Role:         input.Role,
		City:         strings.TrimSpace(input.City),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&existing).Error; err != nil {
			return Downstream("Failed to check email", err)
		}
		if existing > 0 {
			return Conflict("Email already registered")
		}
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return Conflict("Email already registered")
			}
			return Downstream("Failed to create user", err)
		}
		if user.Role == models.RoleWorker {
			profile, err := createWorkerProfile(tx, user.ID, input.WorkerProfile)
			if err != nil {
				return err
			}
			user.WorkerProfile = profile
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks an email/password pair. Unknown emails and wrong
// passwords produce the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, Downstream("Failed to fetch user", err)
	}
	if !user.HasPassword() || !utils.CheckPasswordHash(password, *user.PasswordHash) {
		return nil, Unauthorized("Invalid email or password")
	}
	return &user, nil
}

// GetUser returns the user with its worker profile when it has one.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("WorkerProfile").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("User")
	}
	if err != nil {
		return nil, Downstream("Failed to fetch user", err)
	}
	return &user, nil
}

type UpdateUserInput struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	City      *string `json:"city" validate:"omitempty,max=100"`
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input UpdateUserInput) (*models.User, error) {
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		input.Email = &email
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.City != nil {
		updates["city"] = strings.TrimSpace(*input.City)
	}
	if input.Email != nil {
		var taken int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("email = ? AND id <> ?", *input.Email, userID).
			Count(&taken).Error; err != nil {
			return nil, Downstream("Failed to check email", err)
		}
		if taken > 0 {
			return nil, Conflict("Email already registered")
		}
		updates["email"] = *input.Email
	}

	if len(updates) > 0 {
		result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
		if result.Error != nil {
			return nil, Downstream("Failed to update profile", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, NotFound("User")
		}
	}
	return s.GetUser(ctx, userID)
}

func (s *UserService) SetProfileImage(ctx context.Context, userID uint, url string) (*models.User, error) {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("profile_image_url", url)
	if result.Error != nil {
		return nil, Downstream("Failed to update profile image", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, NotFound("User")
	}
	return s.GetUser(ctx, userID)
}

// ListUsers is the admin listing, newest accounts first.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	limit, offset = clampPage(limit, offset, 50)

	var users []models.User
	err := s.db.WithContext(ctx).Preload("WorkerProfile").
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, Downstream("Failed to fetch users", err)
	}
	return users, nil
}

const maxPageSize = 100

// clampPage applies the default page size and keeps limit/offset in range.
func clampPage(limit, offset, defaultLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
