package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"splikz/internal/models"
)

// ExpiryResult counts the rows touched by one expiry sweep.
type ExpiryResult struct {
	PromotionsExpired int64
	VideosUnboosted   int64
}

// ExpireLapsedPromotions moves lapsed promotions to expired and clears the boost
// flag on videos that no longer have a live promotion.
func ExpireLapsedPromotions(ctx context.Context, db *gorm.DB, now time.Time) (ExpiryResult, error) {
	var result ExpiryResult

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Promotion{}).
			Where("status = ? AND ends_at <= ?", models.PromotionStatusActive, now).
			Update("status", models.PromotionStatusExpired)
		if res.Error != nil {
			return fmt.Errorf("expire promotions: %w", res.Error)
		}
		result.PromotionsExpired = res.RowsAffected

		live := tx.Model(&models.Promotion{}).
			Select("content_id").
			Where("status = ? AND ends_at > ?", models.PromotionStatusActive, now)

		res = tx.Model(&models.Video{}).
			Where("is_boosted = ?", true).
			Where("(boost_ends_at IS NULL OR boost_ends_at <= ?)", now).
			Where("id NOT IN (?)", live).
			Updates(map[string]interface{}{
				"is_boosted":    false,
				"boost_ends_at": nil,
			})
		if res.Error != nil {
			return fmt.Errorf("clear video boosts: %w", res.Error)
		}
		result.VideosUnboosted = res.RowsAffected
		return nil
	})
	return result, err
}
