package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	zlog "github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v80"

	"splikz/internal/middleware"
	"splikz/internal/services"
)

const maxWebhookBodyBytes = 64 << 10

// Error codes returned to clients.
const (
	errMissingFields = "missing_fields"
	errServerError   = "server_error"
)

type PromotionHandler struct {
	promotions *services.PromotionService
	verifier   services.EventVerifier
}

func NewPromotionHandler(promotions *services.PromotionService, verifier services.EventVerifier) *PromotionHandler {
	return &PromotionHandler{promotions: promotions, verifier: verifier}
}

type checkoutRequest struct {
	ContentID        string `json:"contentId" form:"contentId" query:"contentId"`
	DurationDays     int    `json:"durationDays" form:"durationDays" query:"durationDays"`
	DailyBudgetCents int64  `json:"dailyBudgetCents" form:"dailyBudgetCents" query:"dailyBudgetCents"`
	Currency         string `json:"currency" form:"currency" query:"currency"`
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

func (h *PromotionHandler) startCheckout(c echo.Context) (*services.CheckoutResult, int, string) {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return nil, http.StatusBadRequest, errMissingFields
	}

	res, err := h.promotions.CreateCheckout(c.Request().Context(), services.PromotionRequest{
		ContentID:             req.ContentID,
		OwnerID:               middleware.UserUID(c),
		DurationDays:          req.DurationDays,
		DailyBudgetMinorUnits: req.DailyBudgetCents,
		Currency:              req.Currency,
	})
	switch {
	case err == nil:
		return res, http.StatusOK, ""
	case errors.Is(err, services.ErrInvalidRequest):
		return nil, http.StatusBadRequest, errMissingFields
	default:
		zlog.Error().Err(err).Str("content_id", req.ContentID).Msg("checkout session creation failed")
		return nil, http.StatusInternalServerError, errServerError
	}
}

// CreateCheckout opens a checkout session and returns its URL as JSON.
func (h *PromotionHandler) CreateCheckout(c echo.Context) error {
	res, code, msg := h.startCheckout(c)
	if res == nil {
		return errorJSON(c, code, msg)
	}
	return c.JSON(http.StatusOK, res)
}

// CheckoutRedirect opens a checkout session and sends the browser to it.
func (h *PromotionHandler) CheckoutRedirect(c echo.Context) error {
	res, code, msg := h.startCheckout(c)
	if res == nil {
		return errorJSON(c, code, msg)
	}
	return c.Redirect(http.StatusSeeOther, res.URL)
}

// StripeWebhook handles checkout session events. It answers 200 for every
// verified event it handled or chose to ignore.
func (h *PromotionHandler) StripeWebhook(c echo.Context) error {
	req := c.Request()
	payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, maxWebhookBodyBytes))
	if err != nil {
		zlog.Warn().Err(err).Msg("failed to read webhook body")
		return errorJSON(c, http.StatusBadRequest, "invalid_payload")
	}

	event, err := h.verifier.ConstructEvent(payload, req.Header.Get("Stripe-Signature"))
	if err != nil {
		zlog.Warn().Err(err).Msg("webhook signature verification failed")
		return errorJSON(c, http.StatusBadRequest, "invalid_signature")
	}
	services.ObserveWebhookEvent(string(event.Type))

	if !strings.HasPrefix(string(event.Type), "checkout.session.") {
		h.promotions.RecordCallback(req.Context(), event.ID, string(event.Type), "", payload)
		zlog.Debug().Str("event_type", string(event.Type)).Msg("ignoring webhook event")
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}

	sess, err := services.CheckoutSessionFromEvent(event)
	if err != nil {
		zlog.Warn().Err(err).Str("event_id", event.ID).Msg("undecodable checkout session event")
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}
	h.promotions.RecordCallback(req.Context(), event.ID, string(event.Type), sess.ID, payload)

	log := zlog.With().Str("event_id", event.ID).Str("session_id", sess.ID).Logger()

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		// Delayed payment methods complete the session before the funds arrive.
		if sess.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusUnpaid) {
			log.Info().Msg("checkout completed without payment, waiting for async result")
			break
		}
		_, err := h.promotions.ActivateSession(req.Context(), sess, services.SourceWebhook)
		if errors.Is(err, services.ErrMissingMetadata) {
			break
		}
		if err != nil {
			log.Error().Err(err).Msg("promotion activation failed")
			return errorJSON(c, http.StatusInternalServerError, errServerError)
		}

	case stripe.EventTypeCheckoutSessionExpired, stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		h.promotions.HandleExpired(req.Context(), sess)

	default:
		log.Debug().Str("event_type", string(event.Type)).Msg("ignoring checkout session event")
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

type confirmRequest struct {
	SessionID      string `json:"sessionId" form:"sessionId"`
	SessionIDSnake string `json:"session_id" form:"session_id"`
}

func confirmSessionID(c echo.Context) string {
	if id := c.QueryParam("session_id"); id != "" {
		return id
	}
	if id := c.QueryParam("sessionId"); id != "" {
		return id
	}
	if c.Request().Method == http.MethodGet {
		return ""
	}

	var body confirmRequest
	if err := c.Bind(&body); err != nil {
		return ""
	}
	if body.SessionID != "" {
		return body.SessionID
	}
	return body.SessionIDSnake
}

// Confirm polls a checkout session after the browser returns from checkout
// and activates the promotion when it is paid.
func (h *PromotionHandler) Confirm(c echo.Context) error {
	sessionID := strings.TrimSpace(confirmSessionID(c))
	if sessionID == "" {
		return errorJSON(c, http.StatusBadRequest, errMissingFields)
	}

	res, err := h.promotions.Confirm(c.Request().Context(), sessionID)
	switch {
	case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, services.ErrMissingMetadata):
		return errorJSON(c, http.StatusBadRequest, errMissingFields)
	case err != nil:
		zlog.Error().Err(err).Str("session_id", sessionID).Msg("checkout confirmation failed")
		return errorJSON(c, http.StatusInternalServerError, errServerError)
	}

	if !res.Paid {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"ok":             false,
			"status":         res.Status,
			"payment_status": res.PaymentStatus,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":        true,
		"sessionId": res.SessionID,
	})
}

// ListPromotions returns the caller's promotions, optionally for one video.
func (h *PromotionHandler) ListPromotions(c echo.Context) error {
	promotions, err := h.promotions.ListForOwner(c.Request().Context(), middleware.UserUID(c), c.QueryParam("contentId"))
	if err != nil {
		zlog.Error().Err(err).Msg("failed to list promotions")
		return errorJSON(c, http.StatusInternalServerError, errServerError)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"promotions": promotions})
}
