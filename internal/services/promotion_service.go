package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"splikz/internal/config"
	"splikz/internal/models"
)

var (
	// ErrInvalidRequest marks a promotion request rejected before any provider call.
	ErrInvalidRequest = errors.New("invalid promotion request")
	// ErrProvider wraps failures talking to the payment provider.
	ErrProvider = errors.New("payment provider error")
	// ErrMissingMetadata marks a paid session that does not identify its content.
	ErrMissingMetadata = errors.New("checkout session metadata is incomplete")
	// ErrContentNotFound is returned when the boosted video row does not exist.
	ErrContentNotFound = errors.New("content not found")
)

// Metadata keys written on checkout sessions.
const (
	MetaContentID   = "contentId"
	MetaOwnerID     = "ownerId"
	MetaDuration    = "durationDays"
	MetaDailyBudget = "dailyBudgetCents"
	MetaCurrency    = "currency"
)

// PromotionRequest is a request to boost a video for a number of days.
type PromotionRequest struct {
	ContentID             string
	OwnerID               string
	DurationDays          int
	DailyBudgetMinorUnits int64
	Currency              string
}

// CheckoutResult is returned once a hosted checkout session exists.
type CheckoutResult struct {
	SessionID             string `json:"sessionId"`
	URL                   string `json:"url"`
	DailyBudgetMinorUnits int64  `json:"dailyBudgetCents"`
	TotalAmountMinorUnits int64  `json:"totalAmountCents"`
	Currency              string `json:"currency"`
}

// ActivationResult describes the outcome of one activation attempt.
type ActivationResult struct {
	Promotion *models.Promotion
	// Created is false when an earlier attempt already activated the session.
	Created bool
	// BoostErr is set when the promotion is recorded but the video flag was not updated.
	BoostErr error
}

// ConfirmResult is the outcome of polling a checkout session.
type ConfirmResult struct {
	Paid          bool
	SessionID     string
	Status        string
	PaymentStatus string
	Activation    *ActivationResult
}

// ActivationListener is notified after a promotion row is created for the first time.
type ActivationListener func(ctx context.Context, promotion *models.Promotion)

type PromotionService struct {
	db       *gorm.DB
	provider CheckoutProvider
	cfg      config.PromotionConfig
	appURL   string
	now      func() time.Time
	onCreate ActivationListener
}

func NewPromotionService(db *gorm.DB, provider CheckoutProvider, cfg config.PromotionConfig, appURL string) *PromotionService {
	return &PromotionService{
		db:       db,
		provider: provider,
		cfg:      cfg,
		appURL:   strings.TrimRight(appURL, "/"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnActivated registers a listener for first-time activations.
func (s *PromotionService) OnActivated(fn ActivationListener) {
	s.onCreate = fn
}

// ClampDailyBudget adjusts v into the configured range. A zero maximum disables clamping.
func (s *PromotionService) ClampDailyBudget(v int64) int64 {
	if s.cfg.MaxDailyBudgetCents == 0 {
		return v
	}
	if v < s.cfg.MinDailyBudgetCents {
		return s.cfg.MinDailyBudgetCents
	}
	if v > s.cfg.MaxDailyBudgetCents {
		return s.cfg.MaxDailyBudgetCents
	}
	return v
}

// MaxDurationDays is the longest promotion a checkout may be opened for.
func (s *PromotionService) MaxDurationDays() int {
	if s.cfg.MaxDurationDays > 0 && s.cfg.MaxDurationDays < config.MaxPromotionDays {
		return s.cfg.MaxDurationDays
	}
	return config.MaxPromotionDays
}

// promotionTotal returns days × dailyBudget, or false when it overflows.
func promotionTotal(days int, dailyBudget int64) (int64, bool) {
	if days <= 0 || dailyBudget <= 0 || dailyBudget > math.MaxInt64/int64(days) {
		return 0, false
	}
	return int64(days) * dailyBudget, true
}

func (s *PromotionService) normalize(req PromotionRequest) (PromotionRequest, error) {
	req.ContentID = strings.TrimSpace(req.ContentID)
	if req.ContentID == "" || req.DurationDays <= 0 || req.DailyBudgetMinorUnits <= 0 {
		return req, ErrInvalidRequest
	}
	if req.DurationDays > s.MaxDurationDays() {
		return req, ErrInvalidRequest
	}

	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = strings.ToUpper(s.cfg.DefaultCurrency)
	}
	if !SupportedCurrency(req.Currency) {
		return req, ErrInvalidRequest
	}

	req.DailyBudgetMinorUnits = s.ClampDailyBudget(req.DailyBudgetMinorUnits)
	if _, ok := promotionTotal(req.DurationDays, req.DailyBudgetMinorUnits); !ok {
		return req, ErrInvalidRequest
	}
	return req, nil
}

// CreateCheckout validates req, prices it, and opens a hosted checkout session.
func (s *PromotionService) CreateCheckout(ctx context.Context, req PromotionRequest) (*CheckoutResult, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	total, _ := promotionTotal(req.DurationDays, req.DailyBudgetMinorUnits)
	metadata := map[string]string{
		MetaContentID:   req.ContentID,
		MetaOwnerID:     req.OwnerID,
		MetaDuration:    strconv.Itoa(req.DurationDays),
		MetaDailyBudget: strconv.FormatInt(req.DailyBudgetMinorUnits, 10),
		MetaCurrency:    req.Currency,
	}

	checkoutReq := CheckoutRequest{
		ProductName:       fmt.Sprintf("Promotion for content #%s", req.ContentID),
		AmountMinorUnits:  total,
		Currency:          req.Currency,
		SuccessURL:        s.successURL(req.ContentID),
		CancelURL:         s.cancelURL(req.ContentID),
		ClientReferenceID: req.OwnerID,
		Metadata:          metadata,
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, checkoutReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	checkoutSessionsCreated.Inc()

	s.trackSession(ctx, req, total, checkoutReq, sess)

	return &CheckoutResult{
		SessionID:             sess.ID,
		URL:                   sess.URL,
		DailyBudgetMinorUnits: req.DailyBudgetMinorUnits,
		TotalAmountMinorUnits: total,
		Currency:              req.Currency,
	}, nil
}

func (s *PromotionService) successURL(contentID string) string {
	// The placeholder must stay literal; the provider substitutes it.
	return fmt.Sprintf("%s%s?contentId=%s&session_id={CHECKOUT_SESSION_ID}",
		s.appURL, s.cfg.SuccessPath, url.QueryEscape(contentID))
}

func (s *PromotionService) cancelURL(contentID string) string {
	return fmt.Sprintf("%s%s?contentId=%s", s.appURL, s.cfg.CancelPath, url.QueryEscape(contentID))
}

func (s *PromotionService) trackSession(ctx context.Context, req PromotionRequest, total int64, checkoutReq CheckoutRequest, sess *CheckoutSession) {
	reqBytes, _ := json.Marshal(checkoutReq)
	respBytes, _ := json.Marshal(sess)

	record := models.PaymentSession{
		PaymentGateway:    models.PaymentGatewayStripe,
		CheckoutSessionID: sess.ID,
		ContentID:         req.ContentID,
		OwnerID:           req.OwnerID,
		AmountMinorUnits:  total,
		Currency:          req.Currency,
		Status:            models.PaymentSessionStatusOpen,
		RequestMetadata:   reqBytes,
		ResponseMetadata:  respBytes,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		zlog.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to track checkout session")
	}
}

// ActivateSession performs the idempotent activation for a completed session.
// Calling it any number of times, from any number of goroutines or processes,
// leaves exactly one Promotion row for the session.
func (s *PromotionService) ActivateSession(ctx context.Context, sess *CheckoutSession, source string) (*ActivationResult, error) {
	log := zlog.With().Str("session_id", sess.ID).Str("source", source).Logger()

	contentID := strings.TrimSpace(sess.Metadata[MetaContentID])
	days, _ := strconv.Atoi(sess.Metadata[MetaDuration])
	if contentID == "" || days <= 0 || days > config.MaxPromotionDays {
		promotionActivations.WithLabelValues(source, "malformed").Inc()
		log.Warn().Interface("metadata", sess.Metadata).Msg("checkout session without promotion metadata")
		return nil, ErrMissingMetadata
	}

	dailyBudget, _ := strconv.ParseInt(sess.Metadata[MetaDailyBudget], 10, 64)
	total := sess.AmountTotal
	if total <= 0 {
		total, _ = promotionTotal(days, dailyBudget)
	}
	currency := sess.Currency
	if currency == "" {
		currency = strings.ToUpper(sess.Metadata[MetaCurrency])
	}

	now := s.now()
	candidate := models.Promotion{
		ID:                    uuid.NewString(),
		ContentID:             contentID,
		OwnerID:               sess.Metadata[MetaOwnerID],
		CheckoutSessionID:     sess.ID,
		DurationDays:          days,
		DailyBudgetMinorUnits: dailyBudget,
		TotalAmountMinorUnits: total,
		Currency:              currency,
		Status:                models.PromotionStatusActive,
		StartsAt:              now,
		EndsAt:                now.Add(time.Duration(days) * 24 * time.Hour),
	}

	// The unique index on checkout_session_id turns a concurrent or repeated
	// attempt into a no-op insert.
	insert := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "checkout_session_id"}}, DoNothing: true}).
		Create(&candidate)
	if insert.Error != nil {
		promotionActivations.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("insert promotion: %w", insert.Error)
	}
	created := insert.RowsAffected > 0

	var current models.Promotion
	if err := s.db.WithContext(ctx).Where("checkout_session_id = ?", sess.ID).First(&current).Error; err != nil {
		promotionActivations.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("load promotion: %w", err)
	}

	result := &ActivationResult{Promotion: &current, Created: created}
	if created {
		promotionActivations.WithLabelValues(source, "created").Inc()
		log.Info().Str("content_id", contentID).Time("ends_at", current.EndsAt).Msg("promotion activated")
	} else {
		promotionActivations.WithLabelValues(source, "duplicate").Inc()
		log.Debug().Str("promotion_id", current.ID).Msg("promotion already active for session")
	}

	if current.IsLive(now) {
		if err := s.syncBoost(ctx, current.ContentID, now); err != nil {
			promotionPartialFailures.Inc()
			log.Error().Err(err).Str("content_id", current.ContentID).Str("promotion_id", current.ID).
				Msg("promotion recorded but content boost flag not updated")
			result.BoostErr = err
		}
	}

	s.markSession(ctx, sess.ID, models.PaymentSessionStatusComplete)

	if created && s.onCreate != nil {
		s.onCreate(ctx, &current)
	}
	return result, nil
}

// syncBoost sets the video's boost flag from its latest live promotion, so every
// activation attempt converges on the same boost_ends_at.
func (s *PromotionService) syncBoost(ctx context.Context, contentID string, now time.Time) error {
	var latest models.Promotion
	err := s.db.WithContext(ctx).
		Where("content_id = ? AND status = ? AND ends_at > ?", contentID, models.PromotionStatusActive, now).
		Order("ends_at desc").
		First(&latest).Error
	if err != nil {
		return fmt.Errorf("load latest promotion: %w", err)
	}

	res := s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ?", contentID).
		Updates(map[string]interface{}{
			"is_boosted":    true,
			"boost_ends_at": latest.EndsAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update video boost: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrContentNotFound
	}
	return nil
}

func (s *PromotionService) markSession(ctx context.Context, sessionID string, status models.PaymentSessionStatus) {
	err := s.db.WithContext(ctx).Model(&models.PaymentSession{}).
		Where("checkout_session_id = ? AND status = ?", sessionID, models.PaymentSessionStatusOpen).
		Update("status", status).Error
	if err != nil {
		zlog.Warn().Err(err).Str("session_id", sessionID).Msg("failed to update checkout session status")
	}
}

// HandleExpired records that a checkout session expired before payment.
func (s *PromotionService) HandleExpired(ctx context.Context, sess *CheckoutSession) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Promotion{}).
		Where("checkout_session_id = ?", sess.ID).Count(&count).Error; err == nil && count > 0 {
		zlog.Warn().Str("session_id", sess.ID).Msg("expired event for a session that already has a promotion")
		return
	}
	s.markSession(ctx, sess.ID, models.PaymentSessionStatusExpired)
	zlog.Info().Str("session_id", sess.ID).Str("content_id", sess.Metadata[MetaContentID]).
		Msg("checkout session expired before payment")
}

// Confirm polls the provider for a session and activates it when paid.
func (s *PromotionService) Confirm(ctx context.Context, sessionID string) (*ConfirmResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidRequest
	}

	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	result := &ConfirmResult{
		SessionID:     sess.ID,
		Status:        sess.Status,
		PaymentStatus: sess.PaymentStatus,
	}
	if !sess.IsPaid() {
		return result, nil
	}

	activation, err := s.ActivateSession(ctx, sess, SourceConfirm)
	if err != nil {
		return nil, err
	}
	result.Paid = true
	result.Activation = activation
	return result, nil
}

// ListForOwner returns the owner's promotions, newest first, optionally for one video.
func (s *PromotionService) ListForOwner(ctx context.Context, ownerID, contentID string) ([]models.Promotion, error) {
	query := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if contentID != "" {
		query = query.Where("content_id = ?", contentID)
	}

	var promotions []models.Promotion
	if err := query.Order("created_at desc").Find(&promotions).Error; err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	return promotions, nil
}

// RecordCallback appends a verified webhook to the audit log. Failures are logged only.
func (s *PromotionService) RecordCallback(ctx context.Context, eventID, eventType, sessionID string, payload []byte) {
	history := models.PaymentCallbackHistory{
		PaymentGateway:    models.PaymentGatewayStripe,
		EventID:           eventID,
		EventType:         eventType,
		CheckoutSessionID: sessionID,
		Metadata:          payload,
	}
	if err := s.db.WithContext(ctx).Create(&history).Error; err != nil {
		zlog.Warn().Err(err).Str("event_id", eventID).Msg("failed to record webhook event")
	}
}
