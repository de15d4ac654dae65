package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// ErrMissingSignature is returned when a webhook arrives without a signature header.
var ErrMissingSignature = errors.New("missing webhook signature")

// CheckoutRequest describes a single-line-item hosted checkout.
type CheckoutRequest struct {
	ProductName       string
	AmountMinorUnits  int64
	Currency          string
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
}

// CheckoutSession is the provider-neutral view of a hosted checkout session.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// IsPaid reports whether the session finished with a captured payment.
func (s *CheckoutSession) IsPaid() bool {
	return s.Status == string(stripe.CheckoutSessionStatusComplete) &&
		s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// checkoutCurrencies are the two-decimal currencies promotions can be priced in.
var checkoutCurrencies = map[stripe.Currency]bool{
	stripe.CurrencyUSD: true,
	stripe.CurrencyEUR: true,
	stripe.CurrencyGBP: true,
	stripe.CurrencyCAD: true,
	stripe.CurrencyAUD: true,
	stripe.CurrencyNZD: true,
	stripe.CurrencyCHF: true,
	stripe.CurrencySEK: true,
	stripe.CurrencyNOK: true,
	stripe.CurrencyDKK: true,
	stripe.CurrencySGD: true,
	stripe.CurrencyMXN: true,
	stripe.CurrencyBRL: true,
}

// SupportedCurrency reports whether code (any case) can be used for a checkout.
func SupportedCurrency(code string) bool {
	return checkoutCurrencies[stripe.Currency(strings.ToLower(code))]
}

// CheckoutProvider creates and retrieves hosted checkout sessions.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
}

// EventVerifier authenticates raw webhook bodies.
type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type StripeService struct {
	api           *client.API
	webhookSecret string
}

func NewStripeService(secretKey, webhookSecret string) *StripeService {
	return &StripeService{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
	}
}

// CreateCheckoutSession creates a payment-mode Checkout Session with one line item.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
					UnitAmount: stripe.Int64(req.AmountMinorUnits),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

// GetCheckoutSession retrieves a Checkout Session by id.
func (s *StripeService) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

// ConstructEvent verifies the Stripe-Signature header against the raw body
// exactly as received and decodes the event.
func (s *StripeService) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if signature == "" {
		return stripe.Event{}, ErrMissingSignature
	}
	return webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

func fromStripeSession(sess *stripe.CheckoutSession) *CheckoutSession {
	return &CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Currency:      strings.ToUpper(string(sess.Currency)),
		Metadata:      sess.Metadata,
	}
}

// CheckoutSessionFromEvent decodes the checkout session carried by a webhook event.
func CheckoutSessionFromEvent(event stripe.Event) (*CheckoutSession, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return fromStripeSession(&sess), nil
}
