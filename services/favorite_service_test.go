package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handyconnect-server/models"
)

func TestFavoriteAddAndRemove(t *testing.T) {
	db := newTestDB(t)
	svc := NewFavoriteService(db)
	ctx := context.Background()
	client := createUser(t, db, models.RoleClient, "")
	worker := createWorker(t, db, workerOpts{})
	other := createWorker(t, db, workerOpts{})

	fav, err := svc.Add(ctx, client.ID, worker.ID)
	require.NoError(t, err)
	_, err = svc.Add(ctx, client.ID, other.ID)
	require.NoError(t, err)

	list, err := svc.List(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, f := range list {
		require.NotNil(t, f.Worker)
		assert.NotNil(t, f.Worker.WorkerProfile)
	}

	require.NoError(t, svc.Remove(ctx, client.ID, worker.ID))
	list, err = svc.List(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].WorkerID)
	assert.NotEqual(t, fav.ID, list[0].ID)

	err = svc.Remove(ctx, client.ID, worker.ID)
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestFavoriteIsUniquePerPair(t *testing.T) {
	db := newTestDB(t)
	svc := NewFavoriteService(db)
	ctx := context.Background()
	client := createUser(t, db, models.RoleClient, "")
	worker := createWorker(t, db, workerOpts{})

	first, err := svc.Add(ctx, client.ID, worker.ID)
	require.NoError(t, err)
	second, err := svc.Add(ctx, client.ID, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Favorite{}).Where("client_id = ?", client.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFavoriteTargetMustBeWorker(t *testing.T) {
	db := newTestDB(t)
	svc := NewFavoriteService(db)
	ctx := context.Background()
	client := createUser(t, db, models.RoleClient, "")
	notWorker := createUser(t, db, models.RoleClient, "")

	_, err := svc.Add(ctx, client.ID, notWorker.ID)
	assert.Equal(t, CodeNotFound, CodeOf(err))
	_, err = svc.Add(ctx, client.ID, 9999)
	assert.Equal(t, CodeNotFound, CodeOf(err))
	_, err = svc.Add(ctx, client.ID, 0)
	assert.Equal(t, CodeValidation, CodeOf(err))
}
