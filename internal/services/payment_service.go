// internal/services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/apporbit/apporbit-backend/internal/config"
)

// IntentParams describes a PaymentIntent to open with the gateway.
type IntentParams struct {
	AmountCents int64
	Currency    string
	Metadata    map[string]string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// IntentCreator opens payment intents with the payment gateway.
type IntentCreator interface {
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
}

type stripeIntents struct{}

// NewStripeIntentCreator configures the global Stripe key and returns a
// creator backed by the PaymentIntents API.
func NewStripeIntentCreator(secretKey string) IntentCreator {
	stripe.Key = secretKey
	return stripeIntents{}
}

func (stripeIntents) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(p.AmountCents),
		Currency:           stripe.String(p.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

type PaymentService struct {
	intents  IntentCreator
	coupons  *CouponService
	currency string
	timeout  time.Duration
}

type CreatePaymentIntentRequest struct {
	Price      float64 `json:"price" validate:"required,gt=0"`
	CouponCode string  `json:"coupon_code,omitempty" validate:"omitempty,max=64"`
}

type PaymentIntentResponse struct {
	ClientSecret    string  `json:"client_secret"`
	PaymentID       string  `json:"payment_id"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	DiscountPercent float64 `json:"discount_percent,omitempty"`
}

func NewPaymentService(intents IntentCreator, coupons *CouponService, cfg config.PaymentConfig) *PaymentService {
	return &PaymentService{
		intents:  intents,
		coupons:  coupons,
		currency: cfg.Currency,
		timeout:  cfg.Timeout,
	}
}

// CreatePaymentIntent opens a subscription payment for email. The gateway
// call is bounded by the configured timeout.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, email string, req *CreatePaymentIntentRequest) (*PaymentIntentResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var discount float64
	if req.CouponCode != "" {
		if s.coupons == nil {
			return nil, invalid("coupons are not accepted")
		}
		coupon, err := s.coupons.Redeemable(ctx, req.CouponCode)
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("unknown coupon code %s", req.CouponCode)
		}
		if err != nil {
			return nil, err
		}
		discount = coupon.DiscountPercent
	}

	amount := int64(math.Round(req.Price * 100 * (100 - discount) / 100))
	if amount < 1 {
		return nil, invalid("amount after discount must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	intent, err := s.intents.CreateIntent(ctx, IntentParams{
		AmountCents: amount,
		Currency:    s.currency,
		Metadata: map[string]string{
			"email":       normalizeEmail(email),
			"coupon_code": req.CouponCode,
		},
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrGatewayTimeout
		}
		logrus.WithError(err).WithField("email", email).Error("Failed to create payment intent")
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &PaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentID:       intent.ID,
		Amount:          amount,
		Currency:        s.currency,
		DiscountPercent: discount,
	}, nil
}
