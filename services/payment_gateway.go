package services

import (
	"context"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Gateway statuses the payment service acts on.
const (
	GatewayStatusSucceeded = "succeeded"
	GatewayStatusCanceled  = "canceled"
)

type PaymentIntentRequest struct {
	AmountMinor    int64
	Currency       string
	Description    string
	UserID         uint
	InterventionID *uint
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
}

// PaymentGateway is the external payment collaborator.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
}

// StripeGateway implements PaymentGateway with Stripe PaymentIntents.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{api: client.New(secretKey, nil)}
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.AddMetadata("userId", strconv.FormatUint(uint64(req.UserID), 10))
	if req.InterventionID != nil {
		params.AddMetadata("interventionId", strconv.FormatUint(uint64(*req.InterventionID), 10))
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}
	return fromStripe(pi), nil
}

func (g *StripeGateway) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, err
	}
	return fromStripe(pi), nil
}

func fromStripe(pi *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
	}
}
