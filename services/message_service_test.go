package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handyconnect-server/models"
)

func TestMessagesBetweenParticipants(t *testing.T) {
	db := newTestDB(t)
	pub := &recordingPublisher{}
	svc := NewMessageService(db, pub)
	ctx := context.Background()
	client := createUser(t, db, models.RoleClient, "")
	worker := createWorker(t, db, workerOpts{})
	i := createIntervention(t, db, client, worker, models.StatusAccepted)

	first, err := svc.Send(ctx, client, SendMessageInput{InterventionID: i.ID, ReceiverID: worker.ID, Content: "  When can you come?  "})
	require.NoError(t, err)
	assert.Equal(t, "When can you come?", first.Content)
	assert.False(t, first.IsRead)

	second, err := svc.Send(ctx, worker, SendMessageInput{InterventionID: i.ID, ReceiverID: client.ID, Content: "Tomorrow at 9"})
	require.NoError(t, err)
	third, err := svc.Send(ctx, client, SendMessageInput{InterventionID: i.ID, ReceiverID: worker.ID, Content: "Perfect"})
	require.NoError(t, err)

	history, err := svc.ListByIntervention(ctx, client, i.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []uint{first.ID, second.ID, third.ID}, []uint{history[0].ID, history[1].ID, history[2].ID})

	events := pub.ofType(EventNewMessage)
	require.Len(t, events, 3)
	assert.ElementsMatch(t, []uint{client.ID, worker.ID}, events[0].UserIDs)

	marked, err := svc.MarkAsRead(ctx, worker.ID, i.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)
	marked, err = svc.MarkAsRead(ctx, worker.ID, i.ID)
	require.NoError(t, err)
	assert.Zero(t, marked)

	var unreadForClient int64
	require.NoError(t, db.Model(&models.Message{}).Where("receiver_id = ? AND is_read = ?", client.ID, false).Count(&unreadForClient).Error)
	assert.Equal(t, int64(1), unreadForClient)
}

func TestMessageParticipantRules(t *testing.T) {
	db := newTestDB(t)
	svc := NewMessageService(db, nil)
	ctx := context.Background()
	client := createUser(t, db, models.RoleClient, "")
	stranger := createUser(t, db, models.RoleClient, "")
	worker := createWorker(t, db, workerOpts{})
	outsider := createWorker(t, db, workerOpts{})
	assigned := createIntervention(t, db, client, worker, models.StatusInProgress)

	_, err := svc.Send(ctx, stranger, SendMessageInput{InterventionID: assigned.ID, ReceiverID: client.ID, Content: "hi"})
	assert.Equal(t, CodeForbidden, CodeOf(err))

	_, err = svc.Send(ctx, outsider, SendMessageInput{InterventionID: assigned.ID, ReceiverID: client.ID, Content: "hi"})
	assert.Equal(t, CodeForbidden, CodeOf(err))

	_, err = svc.Send(ctx, client, SendMessageInput{InterventionID: assigned.ID, ReceiverID: outsider.ID, Content: "hi"})
	assert.Equal(t, CodeValidation, CodeOf(err))

	_, err = svc.Send(ctx, client, SendMessageInput{InterventionID: assigned.ID, ReceiverID: client.ID, Content: "hi"})
	assert.Equal(t, CodeValidation, CodeOf(err))

	_, err = svc.Send(ctx, client, SendMessageInput{InterventionID: assigned.ID, ReceiverID: worker.ID, Content: "   "})
	assert.Equal(t, CodeValidation, CodeOf(err))

	_, err = svc.Send(ctx, client, SendMessageInput{InterventionID: 9999, ReceiverID: worker.ID, Content: "hi"})
	assert.Equal(t, CodeNotFound, CodeOf(err))

	for _, status := range []models.InterventionStatus{models.StatusCancelled, models.StatusCompleted} {
		closed := createIntervention(t, db, client, worker, status)
		_, err = svc.Send(ctx, client, SendMessageInput{InterventionID: closed.ID, ReceiverID: worker.ID, Content: "hi"})
		assert.Equal(t, CodeConflict, CodeOf(err), status)
	}

	disputed := createIntervention(t, db, client, worker, models.StatusDisputed)
	_, err = svc.Send(ctx, worker, SendMessageInput{InterventionID: disputed.ID, ReceiverID: client.ID, Content: "about the invoice"})
	assert.NoError(t, err)

	_, err = svc.ListByIntervention(ctx, stranger, assigned.ID)
	assert.Equal(t, CodeForbidden, CodeOf(err))
}

func TestMessagesOnOpenRequest(t *testing.T) {
	db := newTestDB(t)
	svc := NewMessageService(db, nil)
	ctx := context.Background()
	client := createUser(t, db, models.RoleClient, "")
	a := createWorker(t, db, workerOpts{})
	b := createWorker(t, db, workerOpts{})
	open := createIntervention(t, db, client, nil, models.StatusPending)

	_, err := svc.Send(ctx, a, SendMessageInput{InterventionID: open.ID, ReceiverID: client.ID, Content: "I can do it"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, client, SendMessageInput{InterventionID: open.ID, ReceiverID: b.ID, Content: "Are you free?"})
	require.NoError(t, err)

	// Workers only talk to the client, never to each other.
	_, err = svc.Send(ctx, a, SendMessageInput{InterventionID: open.ID, ReceiverID: b.ID, Content: "psst"})
	assert.Equal(t, CodeValidation, CodeOf(err))

	other := createUser(t, db, models.RoleClient, "")
	_, err = svc.Send(ctx, client, SendMessageInput{InterventionID: open.ID, ReceiverID: other.ID, Content: "hi"})
	assert.Equal(t, CodeValidation, CodeOf(err))

	all, err := svc.ListByIntervention(ctx, client, open.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	seenByA, err := svc.ListByIntervention(ctx, a, open.ID)
	require.NoError(t, err)
	require.Len(t, seenByA, 1)
	assert.Equal(t, a.ID, seenByA[0].SenderID)

	seenByB, err := svc.ListByIntervention(ctx, b, open.ID)
	require.NoError(t, err)
	require.Len(t, seenByB, 1)
	assert.Equal(t, b.ID, seenByB[0].ReceiverID)
}
