package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const maxImageSize = 5 * 1024 * 1024

// ImageUploader stores an image and returns its public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, file io.Reader, folder, publicID string) (string, error)
}

type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryUploader(url string) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, err
	}
	return &CloudinaryUploader{cld: cld}, nil
}

func (u *CloudinaryUploader) UploadImage(ctx context.Context, file io.Reader, folder, publicID string) (string, error) {
	overwrite := true
	unique := false
	result, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:         folder,
		PublicID:       publicID,
		Overwrite:      &overwrite,
		UniqueFilename: &unique,
		ResourceType:   "image",
	})
	if err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}

// MediaService validates and uploads user images.
type MediaService struct {
	uploader ImageUploader
	users    *UserService
}

func NewMediaService(uploader ImageUploader, users *UserService) *MediaService {
	return &MediaService{uploader: uploader, users: users}
}

func (s *MediaService) Enabled() bool {
	return s != nil && s.uploader != nil
}

// ValidateImageFile checks size (at most 5MB) and extension (jpg, png, webp).
func ValidateImageFile(h *multipart.FileHeader) error {
	if h == nil || h.Size <= 0 {
		return FieldError("photo", "This field is required")
	}
	if h.Size > maxImageSize {
		return FieldError("photo", "Must be at most 5MB")
	}
	switch strings.ToLower(filepath.Ext(h.Filename)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return nil
	default:
		return FieldError("photo", "Must be a jpg, png or webp image")
	}
}

// UploadProfilePhoto stores the photo and records its URL on the user.
func (s *MediaService) UploadProfilePhoto(ctx context.Context, userID uint, header *multipart.FileHeader) (string, error) {
	if !s.Enabled() {
		return "", Unavailable("Image uploads are not configured")
	}
	if err := ValidateImageFile(header); err != nil {
		return "", err
	}

	file, err := header.Open()
	if err != nil {
		return "", FieldError("photo", "Could not read file")
	}
	defer file.Close()

	folder := fmt.Sprintf("users/%d", userID)
	url, err := s.uploader.UploadImage(ctx, file, folder, "profile")
	if err != nil {
		log.Printf("❌ Profile photo upload failed for user %d: %v", userID, err)
		return "", Downstream("Failed to upload image", err)
	}
	log.Printf("📸 Profile photo uploaded for user %d", userID)

	if _, err := s.users.SetProfileImage(ctx, userID, url); err != nil {
		return "", err
	}
	return url, nil
}
