package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"splikz/internal/models"
	"splikz/internal/services"
)

// ExpirePromotionsTaskDef sweeps lapsed promotions and clears stale boost flags.
type ExpirePromotionsTaskDef struct {
	now func() time.Time
}

// TaskID returns the unique identifier for this task
func (t *ExpirePromotionsTaskDef) TaskID() string {
	return "expire_promotions"
}

func (t *ExpirePromotionsTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	now := time.Now().UTC()
	if t.now != nil {
		now = t.now()
	}

	res, err := services.ExpireLapsedPromotions(ctx, db, now)
	if err != nil {
		return nil, err
	}
	if res.PromotionsExpired > 0 || res.VideosUnboosted > 0 {
		zlog.Info().Int64("promotions_expired", res.PromotionsExpired).Int64("videos_unboosted", res.VideosUnboosted).
			Msg("promotion expiry sweep")
	}

	return map[string]interface{}{
		"promotions_expired": res.PromotionsExpired,
		"videos_unboosted":   res.VideosUnboosted,
	}, nil
}

// ExpirePromotionsTask is the singleton instance of ExpirePromotionsTaskDef
var ExpirePromotionsTask = &ExpirePromotionsTaskDef{}

// PromotionReceiptArgs are the arguments of a send_promotion_receipt task.
type PromotionReceiptArgs struct {
	PromotionID string `json:"promotion_id"`
	Email       string `json:"email"`
}

// SendPromotionReceiptTaskDef emails the owner once their promotion is live.
type SendPromotionReceiptTaskDef struct {
	mailer services.Mailer
}

// TaskID returns the unique identifier for this task
func (t *SendPromotionReceiptTaskDef) TaskID() string {
	return "send_promotion_receipt"
}

// CreateTask builds a ScheduledTask record for this task
func (t *SendPromotionReceiptTaskDef) CreateTask(args PromotionReceiptArgs) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, time.Now().UTC(), nil, models.ScheduledTaskTypeOneTime, 3)
}

func (t *SendPromotionReceiptTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	argsBytes, err := json.Marshal(task.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}
	var args PromotionReceiptArgs
	if err := json.Unmarshal(argsBytes, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	if args.PromotionID == "" || args.Email == "" {
		return nil, fmt.Errorf("promotion_id and email are required")
	}

	var promotion models.Promotion
	if err := db.WithContext(ctx).First(&promotion, "id = ?", args.PromotionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return map[string]interface{}{"status": "skipped", "reason": "promotion not found"}, nil
		}
		return nil, fmt.Errorf("load promotion: %w", err)
	}

	var video models.Video
	title := "your video"
	if err := db.WithContext(ctx).Select("id", "title").First(&video, "id = ?", promotion.ContentID).Error; err == nil && video.Title != "" {
		title = fmt.Sprintf("%q", video.Title)
	}

	if t.mailer == nil {
		return nil, services.ErrMailNotConfigured
	}
	if err := t.mailer.SendEmail([]string{args.Email}, "Your Splikz promotion is live", receiptBody(promotion, title)); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":       "sent",
		"promotion_id": promotion.ID,
	}, nil
}

func receiptBody(p models.Promotion, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for promoting %s on Splikz.\n\n", title)
	fmt.Fprintf(&b, "Duration: %d day(s)\n", p.DurationDays)
	fmt.Fprintf(&b, "Daily budget: %s\n", formatMinorUnits(p.DailyBudgetMinorUnits, p.Currency))
	fmt.Fprintf(&b, "Total charged: %s\n", formatMinorUnits(p.TotalAmountMinorUnits, p.Currency))
	fmt.Fprintf(&b, "Boost ends: %s\n\n", p.EndsAt.UTC().Format("Jan 2, 2006 15:04 MST"))
	fmt.Fprintf(&b, "Reference: %s\n", p.CheckoutSessionID)
	return b.String()
}

func formatMinorUnits(amount int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, strings.ToUpper(currency))
}

// EnqueuePromotionReceipt schedules a receipt for the promotion owner when
// their profile has an email address. It reports whether a task was created.
func EnqueuePromotionReceipt(ctx context.Context, db *gorm.DB, promotion *models.Promotion) (bool, error) {
	if promotion.OwnerID == "" {
		return false, nil
	}

	var profile models.Profile
	err := db.WithContext(ctx).Select("id", "email").First(&profile, "id = ?", promotion.OwnerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && profile.Email == "") {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}

	def := &SendPromotionReceiptTaskDef{}
	task, err := def.CreateTask(PromotionReceiptArgs{PromotionID: promotion.ID, Email: profile.Email})
	if err != nil {
		return false, err
	}
	if err := db.WithContext(ctx).Create(task).Error; err != nil {
		return false, fmt.Errorf("create receipt task: %w", err)
	}
	return true, nil
}
