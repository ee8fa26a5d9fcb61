package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"handyconnect-server/models"
	"handyconnect-server/types"
)

// pendingPaymentWindow bounds how long the poller keeps checking an intent.
const pendingPaymentWindow = 48 * time.Hour

// PaymentService creates payment intents and only marks interventions paid
// after the gateway itself reports success.
type PaymentService struct {
	db            *gorm.DB
	gateway       PaymentGateway
	currency      string
	notifications *NotificationService
	now           func() time.Time
}

func NewPaymentService(db *gorm.DB, gateway PaymentGateway, currency string, notifications *NotificationService) *PaymentService {
	return &PaymentService{
		db:            db,
		gateway:       gateway,
		currency:      strings.ToLower(currency),
		notifications: notifications,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *PaymentService) Enabled() bool {
	return s != nil && s.gateway != nil
}

type CreatePaymentInput struct {
	Amount         types.FlexFloat `json:"amount" validate:"gte=1"`
	Description    string          `json:"description" validate:"max=255"`
	InterventionID *uint           `json:"interventionId"`
}

type CreatedPayment struct {
	Payment      *models.Payment `json:"payment"`
	ClientSecret string          `json:"clientSecret"`
}

// CreateIntent asks the gateway for a payment intent and records it as pending.
func (s *PaymentService) CreateIntent(ctx context.Context, user *models.User, input CreatePaymentInput) (*CreatedPayment, error) {
	if !s.Enabled() {
		return nil, Unavailable("Payments are not configured")
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(input.Description)
	if input.InterventionID != nil {
		var intervention models.Intervention
		err := s.db.WithContext(ctx).First(&intervention, *input.InterventionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Intervention")
		}
		if err != nil {
			return nil, Downstream("Failed to fetch intervention", err)
		}
		if intervention.ClientID != user.ID && !user.IsAdmin() {
			return nil, Forbidden("Only the client can pay for this intervention")
		}
		if intervention.PaidAt != nil {
			return nil, Conflict("Intervention is already paid")
		}
		if description == "" {
			description = fmt.Sprintf("Intervention #%d: %s", intervention.ID, intervention.Title)
		}
	}

	amount := input.Amount.Float64()
	intent, err := s.gateway.CreatePaymentIntent(ctx, PaymentIntentRequest{
		AmountMinor:    int64(math.Round(amount * 100)),
		Currency:       s.currency,
		Description:    description,
		UserID:         user.ID,
		InterventionID: input.InterventionID,
	})
	if err != nil {
		log.Printf("❌ Payment gateway error for user %d: %v", user.ID, err)
		return nil, Downstream("Failed to create payment intent", err)
	}

	payment := &models.Payment{
		UserID:           user.ID,
		InterventionID:   input.InterventionID,
		Amount:           math.Round(amount*100) / 100,
		Currency:         s.currency,
		Description:      description,
		ProviderIntentID: intent.ID,
		Status:           models.PaymentPending,
	}
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, Downstream("Failed to record payment", err)
	}

	log.Printf("💳 Payment intent %s created for user %d (%.2f %s)", intent.ID, user.ID, payment.Amount, payment.Currency)
	return &CreatedPayment{Payment: payment, ClientSecret: intent.ClientSecret}, nil
}

// Confirm re-reads the intent from the gateway. The caller's own report of a
// successful checkout is never trusted.
func (s *PaymentService) Confirm(ctx context.Context, actor *models.User, paymentID uint) (*models.Payment, error) {
	if !s.Enabled() {
		return nil, Unavailable("Payments are not configured")
	}

	var payment models.Payment
	err := s.db.WithContext(ctx).First(&payment, paymentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Payment")
	}
	if err != nil {
		return nil, Downstream("Failed to fetch payment", err)
	}
	if payment.UserID != actor.ID && !actor.IsAdmin() {
		return nil, NotFound("Payment")
	}
	if payment.Status != models.PaymentPending {
		return &payment, nil
	}
	return s.sync(ctx, &payment)
}

// sync applies the gateway's view of the intent. The status write is
// conditional on pending so the poller and an explicit confirm cannot both
// settle the same payment.
func (s *PaymentService) sync(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	intent, err := s.gateway.GetPaymentIntent(ctx, payment.ProviderIntentID)
	if err != nil {
		return nil, Downstream("Failed to verify payment", err)
	}

	var next models.PaymentStatus
	switch intent.Status {
	case GatewayStatusSucceeded:
		next = models.PaymentSucceeded
	case GatewayStatusCanceled:
		next = models.PaymentCanceled
	default:
		return payment, nil
	}

	now := s.now()
	settled := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": next}
		if next == models.PaymentSucceeded {
			updates["confirmed_at"] = now
		}
		result := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		settled = result.RowsAffected == 1
		if settled && next == models.PaymentSucceeded && payment.InterventionID != nil {
			return tx.Model(&models.Intervention{}).
				Where("id = ? AND paid_at IS NULL", *payment.InterventionID).
				Update("paid_at", now).Error
		}
		return nil
	})
	if err != nil {
		return nil, Downstream("Failed to settle payment", err)
	}

	if err := s.db.WithContext(ctx).First(payment, payment.ID).Error; err != nil {
		return nil, Downstream("Failed to fetch payment", err)
	}
	if settled && next == models.PaymentSucceeded {
		log.Printf("✅ Payment %d confirmed by gateway", payment.ID)
		s.notifyPaid(ctx, payment)
	}
	return payment, nil
}

func (s *PaymentService) notifyPaid(ctx context.Context, payment *models.Payment) {
	if payment.InterventionID == nil {
		return
	}
	var intervention models.Intervention
	if err := s.db.WithContext(ctx).First(&intervention, *payment.InterventionID).Error; err != nil || intervention.WorkerID == nil {
		return
	}
	s.notifications.notifyQuietly(ctx, *intervention.WorkerID, models.NotificationPaymentReceived,
		"Payment received",
		fmt.Sprintf("Payment of %.2f %s received for \"%s\"", payment.Amount, strings.ToUpper(payment.Currency), intervention.Title),
		&intervention.ID)
}

// PollPending settles recent pending payments and returns how many succeeded.
func (s *PaymentService) PollPending(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}

	var pending []models.Payment
	if err := s.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", models.PaymentPending, s.now().Add(-pendingPaymentWindow)).
		Order("id ASC").
		Find(&pending).Error; err != nil {
		return 0, err
	}

	succeeded := 0
	for i := range pending {
		if ctx.Err() != nil {
			return succeeded, ctx.Err()
		}
		payment, err := s.sync(ctx, &pending[i])
		if err != nil {
			log.Printf("⚠️ Payment %d poll failed: %v", pending[i].ID, err)
			continue
		}
		if payment.Status == models.PaymentSucceeded {
			succeeded++
		}
	}
	return succeeded, nil
}

func (s *PaymentService) ListForUser(ctx context.Context, userID uint) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&payments).Error
	if err != nil {
		return nil, Downstream("Failed to fetch payments", err)
	}
	return payments, nil
}
