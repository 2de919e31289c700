// Package profiles provides the destination-store writes for the customer
// sync engine: idempotent profile upserts and wholesale rebuilds of the
// derived aggregate tables.
package profiles

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dineops/customer-sync/internal/database"
	"github.com/dineops/customer-sync/internal/entities"
)

// Repository handles all analytics database writes for the sync engine.
type Repository struct {
	analytics *database.Analytics
}

func NewRepository(analytics *database.Analytics) *Repository {
	return &Repository{analytics: analytics}
}

// UpsertProfile writes a computed profile keyed by customer id:
// update-if-exists, insert-if-absent, all mutable fields overwritten
// (last-writer-wins). Safe to invoke repeatedly with the same input.
func (r *Repository) UpsertProfile(ctx context.Context, profile *entities.CustomerProfile) error {
	return database.RunWithRetry(ctx, "analytics", func() error {
		db := r.analytics.DB.WithContext(ctx)

		var existing entities.CustomerProfile
		result := db.Where("customer_id = ?", profile.CustomerID).First(&existing)

		if result.Error == gorm.ErrRecordNotFound {
			return db.Create(profile).Error
		}
		if result.Error != nil {
			return result.Error
		}

		return db.Model(&entities.CustomerProfile{}).
			Where("customer_id = ?", profile.CustomerID).
			Updates(map[string]any{
				"open_id":                 profile.OpenID,
				"vip_num":                 profile.VipNum,
				"phone":                   profile.Phone,
				"nickname":                profile.Nickname,
				"gender":                  profile.Gender,
				"city":                    profile.City,
				"district":                profile.District,
				"first_order_date":        profile.FirstOrderDate,
				"last_order_date":         profile.LastOrderDate,
				"total_orders":            profile.TotalOrders,
				"total_spend":             profile.TotalSpend,
				"avg_order_amount":        profile.AvgOrderAmount,
				"order_frequency":         profile.OrderFrequency,
				"rfm_score":               profile.RFMScore,
				"customer_segment":        profile.CustomerSegment,
				"customer_lifetime_value": profile.LifetimeValue,
				"updated_at":              time.Now(),
			}).Error
	})
}

// GetProfile fetches one profile by customer id.
func (r *Repository) GetProfile(customerID string) (*entities.CustomerProfile, error) {
	var profile entities.CustomerProfile
	err := r.analytics.DB.Where("customer_id = ?", customerID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// CountProfiles returns the number of destination profiles.
func (r *Repository) CountProfiles() (int64, error) {
	var count int64
	err := r.analytics.DB.Model(&entities.CustomerProfile{}).Count(&count).Error
	return count, err
}

// SegmentStat is a per-segment rollup over the destination profiles.
type SegmentStat struct {
	Segment       string
	CustomerCount int
	AvgSpend      float64
}

// SegmentRollup groups destination profiles by segment.
func (r *Repository) SegmentRollup(ctx context.Context) ([]SegmentStat, error) {
	var stats []SegmentStat
	err := database.RunWithRetry(ctx, "analytics", func() error {
		stats = stats[:0]
		return r.analytics.DB.WithContext(ctx).
			Model(&entities.CustomerProfile{}).
			Select("customer_segment AS segment, COUNT(*) AS customer_count, AVG(total_spend) AS avg_spend").
			Group("customer_segment").
			Order("customer_segment").
			Scan(&stats).Error
	})
	if err != nil {
		return nil, fmt.Errorf("segment rollup: %w", err)
	}
	return stats, nil
}

// ListSuggestions returns the marketing suggestions from the latest run.
func (r *Repository) ListSuggestions() ([]entities.MarketingSuggestion, error) {
	var rows []entities.MarketingSuggestion
	err := r.analytics.DB.Order("segment").Find(&rows).Error
	return rows, err
}

// ListTimeSlots returns one customer's time-of-day distribution.
func (r *Repository) ListTimeSlots(customerID string) ([]entities.TimeSlotAnalysis, error) {
	var rows []entities.TimeSlotAnalysis
	err := r.analytics.DB.Where("customer_id = ?", customerID).Order("time_slot").Find(&rows).Error
	return rows, err
}

// ListPreferences returns one customer's product-category preferences.
func (r *Repository) ListPreferences(customerID string) ([]entities.ProductPreference, error) {
	var rows []entities.ProductPreference
	err := r.analytics.DB.Where("customer_id = ?", customerID).Order("total_spend DESC").Find(&rows).Error
	return rows, err
}

// ReplaceTimeSlots rebuilds the time-of-day distribution table for this
// run: delete everything, bulk-insert the new rows, all in one
// transaction under the table's advisory lock.
func (r *Repository) ReplaceTimeSlots(ctx context.Context, rows []entities.TimeSlotAnalysis) error {
	return r.replaceAll(ctx, entities.TimeSlotAnalysis{}.TableName(), &entities.TimeSlotAnalysis{}, func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

// ReplacePreferences rebuilds the product-category preference table.
func (r *Repository) ReplacePreferences(ctx context.Context, rows []entities.ProductPreference) error {
	return r.replaceAll(ctx, entities.ProductPreference{}.TableName(), &entities.ProductPreference{}, func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

// ReplaceSuggestions rebuilds the segment marketing-suggestion table.
func (r *Repository) ReplaceSuggestions(ctx context.Context, rows []entities.MarketingSuggestion) error {
	return r.replaceAll(ctx, entities.MarketingSuggestion{}.TableName(), &entities.MarketingSuggestion{}, func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

// replaceAll is the delete-then-insert rebuild shared by the secondary
// aggregate tables. The advisory lock keeps concurrent runs from
// interleaving a delete with another run's insert; the transaction keeps
// a mid-rebuild failure from leaving the table half-empty.
func (r *Repository) replaceAll(ctx context.Context, table string, model any, insert func(tx *gorm.DB) error) error {
	unlock := r.analytics.LockTable(table)
	defer unlock()

	return database.RunWithRetry(ctx, "analytics", func() error {
		return r.analytics.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
			if err := insert(tx); err != nil {
				return fmt.Errorf("fill %s: %w", table, err)
			}
			return nil
		})
	})
}
