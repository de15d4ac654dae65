package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
	"gorm.io/gorm"

	"splikz/internal/config"
	"splikz/internal/middleware"
	"splikz/internal/models"
	"splikz/internal/services"
	"splikz/internal/testutil"
)

const testWebhookSecret = "whsec_test_secret"

type stubProvider struct {
	mu        sync.Mutex
	created   int
	sessions  map[string]*services.CheckoutSession
	createErr error
}

func (p *stubProvider) CreateCheckoutSession(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created++
	id := fmt.Sprintf("cs_test_%d", p.created)
	sess := &services.CheckoutSession{
		ID: id, URL: "https://checkout.stripe.com/c/pay/" + id,
		Status: "open", PaymentStatus: "unpaid",
		AmountTotal: req.AmountMinorUnits, Currency: req.Currency, Metadata: req.Metadata,
	}
	p.sessions[id] = sess
	return sess, nil
}

func (p *stubProvider) GetCheckoutSession(ctx context.Context, id string) (*services.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[id]
	if !ok {
		return nil, errors.New("resource_missing: No such checkout.session")
	}
	cp := *sess
	return &cp, nil
}

type promotionFixture struct {
	e        *echo.Echo
	db       *gorm.DB
	provider *stubProvider
	handler  *PromotionHandler
}

func newPromotionFixture(t *testing.T) *promotionFixture {
	t.Helper()
	db := testutil.NewDB(t)
	provider := &stubProvider{sessions: map[string]*services.CheckoutSession{}}
	svc := services.NewPromotionService(db, provider, config.PromotionConfig{
		MinDailyBudgetCents: 50,
		MaxDailyBudgetCents: 50000,
		MaxDurationDays:     365,
		DefaultCurrency:     "USD",
		SuccessPath:         "/promote/success",
		CancelPath:          "/promote/cancel",
	}, "https://splikz.test")

	e := echo.New()
	e.HTTPErrorHandler = middleware.CustomErrorHandler
	return &promotionFixture{
		e:        e,
		db:       db,
		provider: provider,
		handler:  NewPromotionHandler(svc, services.NewStripeService("sk_test_unused", testWebhookSecret)),
	}
}

func (f *promotionFixture) serve(h echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	c.Set(middleware.ContextUserUID, "owner-1")
	if err := h(c); err != nil {
		f.e.HTTPErrorHandler(err, c)
	}
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func signedWebhook(t *testing.T, payload string) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(string(signed.Payload)))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func completedEvent(eventID, sessionID, paymentStatus string, metadata map[string]string) string {
	meta, _ := json.Marshal(metadata)
	return fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "api_version": "2024-06-20",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": %q,
    "object": "checkout.session",
    "status": "complete",
    "payment_status": %q,
    "amount_total": 1500,
    "currency": "usd",
    "metadata": %s
  }}
}`, eventID, sessionID, paymentStatus, meta)
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCreateCheckoutHandler(t *testing.T) {
	f := newPromotionFixture(t)

	rec := f.serve(f.handler.CreateCheckout, jsonRequest(http.MethodPost, "/api/promotions/checkout",
		`{"contentId":"abc","durationDays":3,"dailyBudgetCents":500}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cs_test_1", body["sessionId"])
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", body["url"])
	assert.Equal(t, float64(1500), body["totalAmountCents"])
	assert.Equal(t, "USD", body["currency"])
}

func TestCreateCheckoutHandlerErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		providerErr error
		wantCode    int
		wantError   string
	}{
		{name: "missing content", body: `{"durationDays":3,"dailyBudgetCents":500}`, wantCode: http.StatusBadRequest, wantError: "missing_fields"},
		{name: "zero days", body: `{"contentId":"abc","dailyBudgetCents":500}`, wantCode: http.StatusBadRequest, wantError: "missing_fields"},
		{name: "duration too long", body: `{"contentId":"abc","durationDays":200000,"dailyBudgetCents":50}`, wantCode: http.StatusBadRequest, wantError: "missing_fields"},
		{name: "unknown currency", body: `{"contentId":"abc","durationDays":1,"dailyBudgetCents":500,"currency":"ZZZ"}`, wantCode: http.StatusBadRequest, wantError: "missing_fields"},
		{name: "malformed json", body: `{"contentId":`, wantCode: http.StatusBadRequest, wantError: "missing_fields"},
		{name: "provider down", body: `{"contentId":"abc","durationDays":1,"dailyBudgetCents":500}`,
			providerErr: errors.New("Invalid API Key provided: sk_live_****"), wantCode: http.StatusInternalServerError, wantError: "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPromotionFixture(t)
			f.provider.createErr = tt.providerErr

			rec := f.serve(f.handler.CreateCheckout, jsonRequest(http.MethodPost, "/api/promotions/checkout", tt.body))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.wantError), rec.Body.String())
			assert.Zero(t, f.provider.created)
		})
	}
}

func TestCheckoutRedirectHandler(t *testing.T) {
	f := newPromotionFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/promote/checkout",
		strings.NewReader("contentId=abc&durationDays=2&dailyBudgetCents=100"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := f.serve(f.handler.CheckoutRedirect, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", rec.Header().Get(echo.HeaderLocation))
}

func TestStripeWebhookActivatesOnce(t *testing.T) {
	f := newPromotionFixture(t)
	require.NoError(t, f.db.Create(&models.Video{ID: "abc", UserID: "owner-1"}).Error)

	payload := completedEvent("evt_1", "cs_live_1", "paid", map[string]string{
		"contentId": "abc", "ownerId": "owner-1", "durationDays": "3", "dailyBudgetCents": "500",
	})

	for i := 0; i < 2; i++ {
		rec := f.serve(f.handler.StripeWebhook, signedWebhook(t, payload))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	var promotions []models.Promotion
	require.NoError(t, f.db.Find(&promotions).Error)
	require.Len(t, promotions, 1)
	p := promotions[0]
	assert.Equal(t, "abc", p.ContentID)
	assert.Equal(t, 3, p.DurationDays)
	assert.Equal(t, int64(1500), p.TotalAmountMinorUnits)
	assert.Equal(t, models.PromotionStatusActive, p.Status)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), p.EndsAt, time.Minute)

	var video models.Video
	require.NoError(t, f.db.First(&video, "id = ?", "abc").Error)
	assert.True(t, video.IsBoosted)
	require.NotNil(t, video.BoostEndsAt)
	assert.True(t, video.BoostEndsAt.Equal(p.EndsAt))

	assert.Equal(t, int64(2), countRows(t, f.db, &models.PaymentCallbackHistory{}))
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	f := newPromotionFixture(t)
	payload := completedEvent("evt_1", "cs_1", "paid", map[string]string{"contentId": "abc", "durationDays": "1"})

	tampered := signedWebhook(t, payload)
	tampered.Body = io.NopCloser(strings.NewReader(strings.Replace(payload, `"durationDays":"1"`, `"durationDays":"9"`, 1)))

	missing := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(payload))

	wrongSecret := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(payload))
	wrongSecret.Header.Set("Stripe-Signature", webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload), Secret: "whsec_other", Timestamp: time.Now(),
	}).Header)

	for name, req := range map[string]*http.Request{"tampered": tampered, "missing": missing, "wrong secret": wrongSecret} {
		t.Run(name, func(t *testing.T) {
			rec := f.serve(f.handler.StripeWebhook, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	assert.Zero(t, countRows(t, f.db, &models.Promotion{}))
	assert.Zero(t, countRows(t, f.db, &models.PaymentCallbackHistory{}))
}

func TestStripeWebhookMissingContentIsIgnored(t *testing.T) {
	f := newPromotionFixture(t)
	require.NoError(t, f.db.Create(&models.Video{ID: "abc"}).Error)

	rec := f.serve(f.handler.StripeWebhook, signedWebhook(t,
		completedEvent("evt_2", "cs_2", "paid", map[string]string{"durationDays": "3"})))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, countRows(t, f.db, &models.Promotion{}))

	var video models.Video
	require.NoError(t, f.db.First(&video, "id = ?", "abc").Error)
	assert.False(t, video.IsBoosted)
}

func TestStripeWebhookPartialFailureStillAcknowledged(t *testing.T) {
	f := newPromotionFixture(t)

	rec := f.serve(f.handler.StripeWebhook, signedWebhook(t,
		completedEvent("evt_3", "cs_3", "paid", map[string]string{"contentId": "deleted-video", "durationDays": "1"})))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), countRows(t, f.db, &models.Promotion{}))
}

func TestStripeWebhookUnpaidCompletionWaits(t *testing.T) {
	f := newPromotionFixture(t)

	rec := f.serve(f.handler.StripeWebhook, signedWebhook(t,
		completedEvent("evt_4", "cs_4", "unpaid", map[string]string{"contentId": "abc", "durationDays": "1"})))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, countRows(t, f.db, &models.Promotion{}))
}

func TestStripeWebhookExpiredSession(t *testing.T) {
	f := newPromotionFixture(t)

	rec := f.serve(f.handler.CreateCheckout, jsonRequest(http.MethodPost, "/api/promotions/checkout",
		`{"contentId":"abc","durationDays":1,"dailyBudgetCents":100}`))
	require.Equal(t, http.StatusOK, rec.Code)

	expired := `{"id":"evt_5","object":"event","type":"checkout.session.expired",
		"data":{"object":{"id":"cs_test_1","object":"checkout.session","status":"expired","payment_status":"unpaid","metadata":{"contentId":"abc"}}}}`
	rec = f.serve(f.handler.StripeWebhook, signedWebhook(t, expired))
	assert.Equal(t, http.StatusOK, rec.Code)

	var tracked models.PaymentSession
	require.NoError(t, f.db.Where("checkout_session_id = ?", "cs_test_1").First(&tracked).Error)
	assert.Equal(t, models.PaymentSessionStatusExpired, tracked.Status)
	assert.Zero(t, countRows(t, f.db, &models.Promotion{}))
}

func TestStripeWebhookIgnoresOtherEvents(t *testing.T) {
	f := newPromotionFixture(t)

	rec := f.serve(f.handler.StripeWebhook, signedWebhook(t,
		`{"id":"evt_6","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), countRows(t, f.db, &models.PaymentCallbackHistory{}))
}

func TestConfirmHandler(t *testing.T) {
	f := newPromotionFixture(t)
	require.NoError(t, f.db.Create(&models.Video{ID: "abc"}).Error)

	rec := f.serve(f.handler.CreateCheckout, jsonRequest(http.MethodPost, "/api/promotions/checkout",
		`{"contentId":"abc","durationDays":3,"dailyBudgetCents":500}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.serve(f.handler.Confirm, httptest.NewRequest(http.MethodGet, "/api/promotions/confirm?session_id=cs_test_1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":false,"status":"open","payment_status":"unpaid"}`, rec.Body.String())
	assert.Zero(t, countRows(t, f.db, &models.Promotion{}))

	f.provider.sessions["cs_test_1"].Status = "complete"
	f.provider.sessions["cs_test_1"].PaymentStatus = "paid"

	for i := 0; i < 2; i++ {
		rec = f.serve(f.handler.Confirm, jsonRequest(http.MethodPost, "/api/promotions/confirm", `{"sessionId":"cs_test_1"}`))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true,"sessionId":"cs_test_1"}`, rec.Body.String())
	}
	assert.Equal(t, int64(1), countRows(t, f.db, &models.Promotion{}))
}

func TestConfirmHandlerErrors(t *testing.T) {
	f := newPromotionFixture(t)

	rec := f.serve(f.handler.Confirm, httptest.NewRequest(http.MethodGet, "/api/promotions/confirm", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"missing_fields"}`, rec.Body.String())

	rec = f.serve(f.handler.Confirm, httptest.NewRequest(http.MethodGet, "/api/promotions/confirm?sessionId=cs_unknown", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"server_error"}`, rec.Body.String())
}

func TestListPromotionsHandler(t *testing.T) {
	f := newPromotionFixture(t)
	require.NoError(t, f.db.Create(&models.Video{ID: "abc"}).Error)

	f.serve(f.handler.StripeWebhook, signedWebhook(t, completedEvent("evt_7", "cs_7", "paid",
		map[string]string{"contentId": "abc", "ownerId": "owner-1", "durationDays": "1"})))
	f.serve(f.handler.StripeWebhook, signedWebhook(t, completedEvent("evt_8", "cs_8", "paid",
		map[string]string{"contentId": "abc", "ownerId": "someone-else", "durationDays": "1"})))

	rec := f.serve(f.handler.ListPromotions, httptest.NewRequest(http.MethodGet, "/api/promotions?contentId=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Promotions []models.Promotion `json:"promotions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Promotions, 1)
	assert.Equal(t, "cs_7", body.Promotions[0].CheckoutSessionID)
}
