package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handyconnect-server/models"
)

func TestRegisterClient(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Email: "  Amina@Example.com ", Password: "s3cret-pass", FirstName: "Amina", LastName: "B", City: "Rabat",
	})
	require.NoError(t, err)
	assert.Equal(t, "amina@example.com", user.Email)
	assert.Equal(t, models.RoleClient, user.Role)
	assert.Nil(t, user.WorkerProfile)
	require.NotNil(t, user.PasswordHash)
	assert.NotEqual(t, "s3cret-pass", *user.PasswordHash)

	_, err = svc.Register(ctx, RegisterInput{Email: "AMINA@example.com", Password: "another-pass", FirstName: "A", LastName: "B"})
	assert.Equal(t, CodeConflict, CodeOf(err))

	authed, err := svc.Authenticate(ctx, "AMINA@EXAMPLE.COM", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "amina@example.com", "wrong-pass")
	assert.Equal(t, CodeUnauthorized, CodeOf(err))
	_, err = svc.Authenticate(ctx, "nobody@example.com", "s3cret-pass")
	assert.Equal(t, CodeUnauthorized, CodeOf(err))
}

func TestRegisterWorkerCreatesProfile(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{
		Email: "w@example.com", Password: "s3cret-pass", FirstName: "W", LastName: "K", Role: models.RoleWorker,
	})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "workerProfile")

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	user, err := svc.Register(ctx, RegisterInput{
		Email: "w@example.com", Password: "s3cret-pass", FirstName: "W", LastName: "K", Role: models.RoleWorker,
		WorkerProfile: &WorkerProfileInput{Category: models.CategoryElectricity, HourlyRate: 120, Experience: 4},
	})
	require.NoError(t, err)
	require.NotNil(t, user.WorkerProfile)
	assert.True(t, user.WorkerProfile.IsAvailable)

	loaded, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.WorkerProfile)
	assert.Equal(t, models.CategoryElectricity, loaded.WorkerProfile.Category)
	assert.Equal(t, 0.0, loaded.WorkerProfile.Rating)

	_, err = svc.Register(ctx, RegisterInput{
		Email: "admin@example.com", Password: "s3cret-pass", FirstName: "A", LastName: "D", Role: models.RoleAdmin,
	})
	assert.Equal(t, CodeValidation, CodeOf(err))
}

func TestUpdateUserProfile(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	user := createUser(t, db, models.RoleClient, "Fes")
	other := createUser(t, db, models.RoleClient, "")

	city, first := " Tangier ", "Youssef"
	updated, err := svc.UpdateProfile(ctx, user.ID, UpdateUserInput{City: &city, FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Tangier", updated.City)
	assert.Equal(t, "Youssef", updated.FirstName)

	taken := other.Email
	_, err = svc.UpdateProfile(ctx, user.ID, UpdateUserInput{Email: &taken})
	assert.Equal(t, CodeConflict, CodeOf(err))

	_, err = svc.UpdateProfile(ctx, 9999, UpdateUserInput{City: &city})
	assert.Equal(t, CodeNotFound, CodeOf(err))

	users, err := svc.ListUsers(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestClampPage(t *testing.T) {
	limit, offset := clampPage(0, -5, 20)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)

	limit, _ = clampPage(1000, 0, 20)
	assert.Equal(t, maxPageSize, limit)
}

type fakeUploader struct {
	folder string
	err    error
}

func (u *fakeUploader) UploadImage(_ context.Context, file io.Reader, folder, publicID string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.folder = folder
	_, _ = io.Copy(io.Discard, file)
	return "https://cdn.example.com/" + folder + "/" + publicID + ".jpg", nil
}

func multipartHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("photo", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["photo"][0]
}

func TestValidateImageFile(t *testing.T) {
	assert.NoError(t, ValidateImageFile(&multipart.FileHeader{Filename: "me.JPG", Size: 1024}))
	assert.NoError(t, ValidateImageFile(&multipart.FileHeader{Filename: "me.webp", Size: 1024}))
	assert.Equal(t, CodeValidation, CodeOf(ValidateImageFile(&multipart.FileHeader{Filename: "me.gif", Size: 1024})))
	assert.Equal(t, CodeValidation, CodeOf(ValidateImageFile(&multipart.FileHeader{Filename: "me.png", Size: maxImageSize + 1})))
	assert.Equal(t, CodeValidation, CodeOf(ValidateImageFile(nil)))
}

func TestUploadProfilePhoto(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)
	user := createUser(t, db, models.RoleClient, "")
	uploader := &fakeUploader{}
	media := NewMediaService(uploader, users)

	url, err := media.UploadProfilePhoto(context.Background(), user.ID, multipartHeader(t, "me.png", []byte("png-bytes")))
	require.NoError(t, err)
	assert.Contains(t, url, "users/")

	loaded, err := users.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.ProfileImageURL)
	assert.Equal(t, url, *loaded.ProfileImageURL)

	uploader.err = errors.New("cdn down")
	_, err = media.UploadProfilePhoto(context.Background(), user.ID, multipartHeader(t, "me.png", []byte("png-bytes")))
	assert.Equal(t, CodeDownstream, CodeOf(err))

	disabled := NewMediaService(nil, users)
	_, err = disabled.UploadProfilePhoto(context.Background(), user.ID, multipartHeader(t, "me.png", []byte("x")))
	assert.Equal(t, CodeUnavailable, CodeOf(err))
}
