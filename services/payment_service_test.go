package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"handyconnect-server/models"
	"handyconnect-server/types"
)

func newPaymentService(db *gorm.DB, gateway PaymentGateway) *PaymentService {
	return NewPaymentService(db, gateway, "MAD", NewNotificationService(db, nil, nil))
}

func TestCreateIntentUsesMinorUnits(t *testing.T) {
	db := newTestDB(t)
	gateway := newFakeGateway()
	svc := newPaymentService(db, gateway)
	client := createUser(t, db, models.RoleClient, "")
	worker := createWorker(t, db, workerOpts{})
	i := createIntervention(t, db, client, worker, models.StatusCompleted)

	created, err := svc.CreateIntent(context.Background(), client, CreatePaymentInput{
		Amount:         types.FlexFloat(199.99),
		InterventionID: &i.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", created.ClientSecret)
	assert.Equal(t, models.PaymentPending, created.Payment.Status)
	assert.Equal(t, 199.99, created.Payment.Amount)
	assert.Equal(t, "mad", created.Payment.Currency)
	assert.Contains(t, created.Payment.Description, "Fix leak")

	require.Len(t, gateway.created, 1)
	assert.Equal(t, int64(19999), gateway.created[0].AmountMinor)
	assert.Equal(t, "mad", gateway.created[0].Currency)
	assert.Equal(t, client.ID, gateway.created[0].UserID)
}

func TestCreateIntentRules(t *testing.T) {
	db := newTestDB(t)
	gateway := newFakeGateway()
	svc := newPaymentService(db, gateway)
	ctx := context.Background()
	client := createUser(t, db, models.RoleClient, "")
	stranger := createUser(t, db, models.RoleClient, "")
	i := createIntervention(t, db, client, nil, models.StatusPending)

	_, err := svc.CreateIntent(ctx, client, CreatePaymentInput{Amount: 0.5})
	assert.Equal(t, CodeValidation, CodeOf(err))

	_, err = svc.CreateIntent(ctx, stranger, CreatePaymentInput{Amount: 50, InterventionID: &i.ID})
	assert.Equal(t, CodeForbidden, CodeOf(err))

	missing := uint(9999)
	_, err = svc.CreateIntent(ctx, client, CreatePaymentInput{Amount: 50, InterventionID: &missing})
	assert.Equal(t, CodeNotFound, CodeOf(err))

	require.NoError(t, db.Model(i).Update("paid_at", time.Now().UTC()).Error)
	_, err = svc.CreateIntent(ctx, client, CreatePaymentInput{Amount: 50, InterventionID: &i.ID})
	assert.Equal(t, CodeConflict, CodeOf(err))

	gateway.err = errors.New("card network down")
	_, err = svc.CreateIntent(ctx, client, CreatePaymentInput{Amount: 50})
	assert.Equal(t, CodeDownstream, CodeOf(err))

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPaymentsUnavailableWithoutGateway(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(db, nil)
	client := createUser(t, db, models.RoleClient, "")

	assert.False(t, svc.Enabled())
	_, err := svc.CreateIntent(context.Background(), client, CreatePaymentInput{Amount: 10})
	assert.Equal(t, CodeUnavailable, CodeOf(err))
	_, err = svc.Confirm(context.Background(), client, 1)
	assert.Equal(t, CodeUnavailable, CodeOf(err))

	n, err := svc.PollPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConfirmOnlySettlesOnGatewaySuccess(t *testing.T) {
	db := newTestDB(t)
	gateway := newFakeGateway()
	svc := newPaymentService(db, gateway)
	ctx := context.Background()
	client := createUser(t, db, models.RoleClient, "")
	worker := createWorker(t, db, workerOpts{})
	i := createIntervention(t, db, client, worker, models.StatusCompleted)

	created, err := svc.CreateIntent(ctx, client, CreatePaymentInput{Amount: 120, InterventionID: &i.ID})
	require.NoError(t, err)
	paymentID := created.Payment.ID

	// The client claiming success is not enough.
	payment, err := svc.Confirm(ctx, client, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)
	var stored models.Intervention
	require.NoError(t, db.First(&stored, i.ID).Error)
	assert.Nil(t, stored.PaidAt)

	other := createUser(t, db, models.RoleClient, "")
	_, err = svc.Confirm(ctx, other, paymentID)
	assert.Equal(t, CodeNotFound, CodeOf(err))

	gateway.setStatus(created.Payment.ProviderIntentID, GatewayStatusSucceeded)
	payment, err = svc.Confirm(ctx, client, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, payment.Status)
	assert.NotNil(t, payment.ConfirmedAt)

	require.NoError(t, db.First(&stored, i.ID).Error)
	assert.NotNil(t, stored.PaidAt)

	notes := notificationsFor(t, db, worker.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationPaymentReceived, notes[0].Type)

	// Confirming again is a no-op.
	payment, err = svc.Confirm(ctx, client, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, payment.Status)
	assert.Len(t, notificationsFor(t, db, worker.ID), 1)
}

func TestPollPendingSettlesRecentIntents(t *testing.T) {
	db := newTestDB(t)
	gateway := newFakeGateway()
	svc := newPaymentService(db, gateway)
	ctx := context.Background()
	client := createUser(t, db, models.RoleClient, "")

	var created []*CreatedPayment
	for k := 0; k < 4; k++ {
		c, err := svc.CreateIntent(ctx, client, CreatePaymentInput{Amount: 10})
		require.NoError(t, err)
		created = append(created, c)
	}
	gateway.setStatus(created[0].Payment.ProviderIntentID, GatewayStatusSucceeded)
	gateway.setStatus(created[1].Payment.ProviderIntentID, GatewayStatusCanceled)
	gateway.setStatus(created[3].Payment.ProviderIntentID, GatewayStatusSucceeded)

	// Too old to be polled.
	require.NoError(t, db.Model(&models.Payment{}).Where("id = ?", created[3].Payment.ID).
		Update("created_at", time.Now().UTC().Add(-72*time.Hour)).Error)

	settled, err := svc.PollPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	payments, err := svc.ListForUser(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, payments, 4)
	byID := map[uint]models.PaymentStatus{}
	for _, p := range payments {
		byID[p.ID] = p.Status
	}
	assert.Equal(t, models.PaymentSucceeded, byID[created[0].Payment.ID])
	assert.Equal(t, models.PaymentCanceled, byID[created[1].Payment.ID])
	assert.Equal(t, models.PaymentPending, byID[created[2].Payment.ID])
	assert.Equal(t, models.PaymentPending, byID[created[3].Payment.ID])

	settled, err = svc.PollPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, settled)
}
