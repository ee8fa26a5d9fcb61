package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"handyconnect-server/models"
)

func newReviewService(db *gorm.DB) (*ReviewService, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewReviewService(db, NewNotificationService(db, pub, nil)), pub
}

func reviewCompleted(t *testing.T, db *gorm.DB, svc *ReviewService, worker *models.User, rating int) *models.Review {
	t.Helper()
	client := createUser(t, db, models.RoleClient, "")
	i := createIntervention(t, db, client, worker, models.StatusCompleted)
	review, err := svc.Create(context.Background(), client.ID, CreateReviewInput{InterventionID: i.ID, Rating: rating})
	require.NoError(t, err)
	return review
}

func profileOf(t *testing.T, db *gorm.DB, workerID uint) models.WorkerProfile {
	t.Helper()
	var profile models.WorkerProfile
	require.NoError(t, db.Where("user_id = ?", workerID).First(&profile).Error)
	return profile
}

func TestReviewLiftsWorkerIntoSearch(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newReviewService(db)
	workers := NewWorkerService(db)
	worker := createWorker(t, db, workerOpts{rate: 150, rating: 0, available: true})

	minRating := 4.0
	before, err := workers.SearchWorkers(context.Background(), WorkerSearchFilters{MinRating: &minRating})
	require.NoError(t, err)
	assert.Empty(t, before.Workers)

	reviewCompleted(t, db, svc, worker, 5)

	found, err := workers.GetWorkerWithProfile(context.Background(), worker.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, found.WorkerProfile.Rating)
	assert.Equal(t, 1, found.WorkerProfile.TotalReviews)
	assert.Equal(t, 150.0, found.WorkerProfile.HourlyRate)

	after, err := workers.SearchWorkers(context.Background(), WorkerSearchFilters{MinRating: &minRating})
	require.NoError(t, err)
	require.Len(t, after.Workers, 1)
	assert.Equal(t, worker.ID, after.Workers[0].ID)
}

func TestReviewRatingIsMeanOfReviews(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newReviewService(db)
	worker := createWorker(t, db, workerOpts{})

	reviewCompleted(t, db, svc, worker, 4)
	reviewCompleted(t, db, svc, worker, 2)
	profile := profileOf(t, db, worker.ID)
	assert.Equal(t, 3.0, profile.Rating)
	assert.Equal(t, 2, profile.TotalReviews)

	reviewCompleted(t, db, svc, worker, 5)
	profile = profileOf(t, db, worker.ID)
	assert.Equal(t, 3.67, profile.Rating)
	assert.Equal(t, 3, profile.TotalReviews)

	summary, err := svc.RecomputeWorkerRating(context.Background(), worker.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.67, summary.Rating)
	assert.Equal(t, 3, summary.TotalReviews)
	again := profileOf(t, db, worker.ID)
	assert.Equal(t, profile.Rating, again.Rating)
	assert.Equal(t, profile.TotalReviews, again.TotalReviews)
}

func TestConcurrentReviewsAreAllCounted(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newReviewService(db)
	worker := createWorker(t, db, workerOpts{})

	const n = 6
	clients := make([]*models.User, n)
	interventions := make([]*models.Intervention, n)
	for k := 0; k < n; k++ {
		clients[k] = createUser(t, db, models.RoleClient, "")
		interventions[k] = createIntervention(t, db, clients[k], worker, models.StatusCompleted)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for k := 0; k < n; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			_, errs[k] = svc.Create(context.Background(), clients[k].ID, CreateReviewInput{
				InterventionID: interventions[k].ID,
				Rating:         k%5 + 1,
			})
		}(k)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	profile := profileOf(t, db, worker.ID)
	assert.Equal(t, n, profile.TotalReviews)
	// 1+2+3+4+5+1 = 16 over 6 reviews
	assert.Equal(t, 2.67, profile.Rating)
}

func TestReviewGating(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newReviewService(db)
	ctx := context.Background()
	client := createUser(t, db, models.RoleClient, "")
	other := createUser(t, db, models.RoleClient, "")
	worker := createWorker(t, db, workerOpts{})
	otherWorker := createWorker(t, db, workerOpts{})

	inProgress := createIntervention(t, db, client, worker, models.StatusInProgress)
	_, err := svc.Create(ctx, client.ID, CreateReviewInput{InterventionID: inProgress.ID, Rating: 5})
	assert.Equal(t, CodeConflict, CodeOf(err))

	done := createIntervention(t, db, client, worker, models.StatusCompleted)
	_, err = svc.Create(ctx, other.ID, CreateReviewInput{InterventionID: done.ID, Rating: 5})
	assert.Equal(t, CodeForbidden, CodeOf(err))

	_, err = svc.Create(ctx, client.ID, CreateReviewInput{InterventionID: done.ID, WorkerID: &otherWorker.ID, Rating: 5})
	assert.Equal(t, CodeValidation, CodeOf(err))

	for _, rating := range []int{0, 6} {
		_, err = svc.Create(ctx, client.ID, CreateReviewInput{InterventionID: done.ID, Rating: rating})
		assert.Equal(t, CodeValidation, CodeOf(err), "rating %d", rating)
	}

	_, err = svc.Create(ctx, client.ID, CreateReviewInput{InterventionID: 4242, Rating: 5})
	assert.Equal(t, CodeNotFound, CodeOf(err))

	comment := "  Quick and tidy  "
	review, err := svc.Create(ctx, client.ID, CreateReviewInput{InterventionID: done.ID, WorkerID: &worker.ID, Rating: 5, Comment: &comment})
	require.NoError(t, err)
	assert.Equal(t, "Quick and tidy", *review.Comment)
	assert.True(t, review.IsVisible)
	assert.False(t, review.IsModerated)

	_, err = svc.Create(ctx, client.ID, CreateReviewInput{InterventionID: done.ID, Rating: 1})
	assert.Equal(t, CodeConflict, CodeOf(err))
	assert.Equal(t, 5.0, profileOf(t, db, worker.ID).Rating)

	notes := notificationsFor(t, db, worker.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationNewReview, notes[0].Type)
}

func TestModerationHidesButStillCounts(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newReviewService(db)
	ctx := context.Background()
	worker := createWorker(t, db, workerOpts{})

	low := reviewCompleted(t, db, svc, worker, 1)
	reviewCompleted(t, db, svc, worker, 5)

	pending, err := svc.ListUnmoderated(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Equal(t, low.ID, pending[0].ID)

	hidden, visible := false, true
	moderated, err := svc.Moderate(ctx, low.ID, ModerateReviewInput{IsModerated: &visible, IsVisible: &hidden})
	require.NoError(t, err)
	assert.True(t, moderated.IsModerated)
	assert.False(t, moderated.IsVisible)

	listed, err := svc.ListForWorker(ctx, worker.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 5, listed[0].Rating)
	require.NotNil(t, listed[0].Client)

	pending, err = svc.ListUnmoderated(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	assert.Equal(t, 3.0, profileOf(t, db, worker.ID).Rating)

	_, err = svc.Moderate(ctx, low.ID, ModerateReviewInput{})
	assert.Equal(t, CodeValidation, CodeOf(err))
	_, err = svc.Moderate(ctx, 9999, ModerateReviewInput{IsVisible: &visible})
	assert.Equal(t, CodeNotFound, CodeOf(err))
}
