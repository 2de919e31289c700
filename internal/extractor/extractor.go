// Package extractor reads pre-aggregated customer data out of the source
// orders database in fixed-size pages.
package extractor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dineops/customer-sync/internal/database"
	"github.com/dineops/customer-sync/internal/entities"
)

// DefaultPageSize is the number of aggregated customers fetched per page.
const DefaultPageSize = 500

// CustomerAggregate is one source customer with order statistics rolled up
// by the aggregation query.
type CustomerAggregate struct {
	OpenID         string
	VipNum         string
	Phone          string
	Nickname       string
	Gender         string
	City           string
	District       string
	FirstOrderDate time.Time
	LastOrderDate  time.Time
	TotalOrders    int
	TotalSpend     float64
	AvgOrderAmount float64
}

// CustomerID derives the destination key: the open-id when present,
// otherwise a synthesized fallback from the VIP number or phone.
func (c CustomerAggregate) CustomerID() string {
	switch {
	case c.OpenID != "":
		return c.OpenID
	case c.VipNum != "":
		return "vip:" + c.VipNum
	case c.Phone != "":
		return "tel:" + c.Phone
	default:
		return "anonymous"
	}
}

// TimeSlotCount is a per-customer order count in one time-of-day bucket.
type TimeSlotCount struct {
	CustomerID string
	TimeSlot   string
	OrderCount int
}

// CategoryAggregate is a per-customer rollup of one product category.
type CategoryAggregate struct {
	CustomerID string
	Category   string
	OrderCount int
	TotalSpend float64
}

// Extractor pages through the source orders table. Pages are keyed by a
// deterministic open-id ordering, so every qualifying customer is visited
// exactly once as long as the source is not mutated mid-run.
type Extractor struct {
	db       *gorm.DB
	pageSize int
}

func New(src *database.Source, pageSize int) *Extractor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Extractor{db: src.DB, pageSize: pageSize}
}

func (e *Extractor) PageSize() int {
	return e.pageSize
}

// qualifying restricts a query to orders that count towards profiles:
// paid (or legacy NULL pay-state) and not soft-deleted.
func qualifying(db *gorm.DB) *gorm.DB {
	return db.Where("(pay_state = ? OR pay_state IS NULL) AND is_deleted = ?", entities.PayStatePaid, false)
}

// CountCustomers returns the number of distinct qualifying customers.
func (e *Extractor) CountCustomers(ctx context.Context) (int64, error) {
	var count int64
	err := database.RunWithRetry(ctx, "source", func() error {
		return qualifying(e.db.WithContext(ctx).Model(&entities.Order{})).
			Distinct("open_id").
			Count(&count).Error
	})
	if err != nil {
		return 0, fmt.Errorf("count source customers: %w", err)
	}
	return count, nil
}

// customerRow is the raw scan target for the aggregation query. Date
// aggregates come back as text from SQLite expression columns and are
// parsed afterwards; monetary aggregates may be NULL when every qualifying
// order is missing an amount.
type customerRow struct {
	OpenID         string
	VipNum         string
	Phone          string
	Nickname       string
	Gender         string
	City           string
	District       string
	FirstOrderDate string
	LastOrderDate  string
	TotalOrders    int
	TotalSpend     sql.NullFloat64
	AvgOrderAmount sql.NullFloat64
}

// Page fetches one page of aggregated customers starting at offset.
// An empty slice signals the end of the data set.
func (e *Extractor) Page(ctx context.Context, offset int) ([]CustomerAggregate, error) {
	var rows []customerRow

	err := database.RunWithRetry(ctx, "source", func() error {
		rows = rows[:0]
		return qualifying(e.db.WithContext(ctx).Model(&entities.Order{})).
			Select(`open_id,
				MAX(vip_num) AS vip_num,
				MAX(phone) AS phone,
				MAX(nickname) AS nickname,
				MAX(gender) AS gender,
				MAX(city) AS city,
				MAX(district) AS district,
				MIN(record_time) AS first_order_date,
				MAX(record_time) AS last_order_date,
				COUNT(*) AS total_orders,
				SUM(amount) AS total_spend,
				AVG(amount) AS avg_order_amount`).
			Group("open_id").
			Order("open_id").
			Limit(e.pageSize).
			Offset(offset).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("extract customer page at offset %d: %w", offset, err)
	}

	out := make([]CustomerAggregate, 0, len(rows))
	for _, r := range rows {
		first, err := parseSourceTime(r.FirstOrderDate)
		if err != nil {
			return nil, fmt.Errorf("customer %s: bad first order date %q: %w", r.OpenID, r.FirstOrderDate, err)
		}
		last, err := parseSourceTime(r.LastOrderDate)
		if err != nil {
			return nil, fmt.Errorf("customer %s: bad last order date %q: %w", r.OpenID, r.LastOrderDate, err)
		}

		out = append(out, CustomerAggregate{
			OpenID:         r.OpenID,
			VipNum:         r.VipNum,
			Phone:          r.Phone,
			Nickname:       r.Nickname,
			Gender:         r.Gender,
			City:           r.City,
			District:       r.District,
			FirstOrderDate: first,
			LastOrderDate:  last,
			TotalOrders:    r.TotalOrders,
			TotalSpend:     r.TotalSpend.Float64,
			AvgOrderAmount: r.AvgOrderAmount.Float64,
		})
	}

	return out, nil
}

// TimeSlots buckets every qualifying order into a time-of-day slot per
// customer. Bucketing happens in Go to stay off dialect-specific date
// functions.
func (e *Extractor) TimeSlots(ctx context.Context) ([]TimeSlotCount, error) {
	type orderTime struct {
		OpenID     string
		VipNum     string
		Phone      string
		RecordTime time.Time
	}

	var rows []orderTime
	err := database.RunWithRetry(ctx, "source", func() error {
		rows = rows[:0]
		return qualifying(e.db.WithContext(ctx).Model(&entities.Order{})).
			Select("open_id, vip_num, phone, record_time").
			Order("open_id").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("extract order times: %w", err)
	}

	counts := make(map[string]map[string]int)
	order := make([]string, 0)
	for _, r := range rows {
		key := CustomerAggregate{OpenID: r.OpenID, VipNum: r.VipNum, Phone: r.Phone}.CustomerID()
		slot := TimeSlotFor(r.RecordTime)
		if counts[key] == nil {
			counts[key] = make(map[string]int)
			order = append(order, key)
		}
		counts[key][slot]++
	}

	var out []TimeSlotCount
	for _, key := range order {
		for _, slot := range timeSlots {
			if n := counts[key][slot]; n > 0 {
				out = append(out, TimeSlotCount{CustomerID: key, TimeSlot: slot, OrderCount: n})
			}
		}
	}

	return out, nil
}

var timeSlots = []string{"morning", "afternoon", "evening", "night"}

// TimeSlotFor maps an order time to its bucket: morning 06-11, afternoon
// 11-17, evening 17-22, night otherwise.
func TimeSlotFor(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 6 && h < 11:
		return "morning"
	case h >= 11 && h < 17:
		return "afternoon"
	case h >= 17 && h < 22:
		return "evening"
	default:
		return "night"
	}
}

// CategoryPreferences rolls up qualifying order items by customer and
// product category.
func (e *Extractor) CategoryPreferences(ctx context.Context) ([]CategoryAggregate, error) {
	type categoryRow struct {
		OpenID     string
		VipNum     string
		Phone      string
		Category   string
		OrderCount int
		TotalSpend sql.NullFloat64
	}

	var rows []categoryRow
	err := database.RunWithRetry(ctx, "source", func() error {
		rows = rows[:0]
		return qualifying(e.db.WithContext(ctx).Model(&entities.Order{})).
			Select(`orders.open_id,
				MAX(orders.vip_num) AS vip_num,
				MAX(orders.phone) AS phone,
				order_items.category,
				COUNT(DISTINCT orders.id) AS order_count,
				SUM(order_items.amount) AS total_spend`).
			Joins("JOIN order_items ON order_items.order_id = orders.id").
			Group("orders.open_id, order_items.category").
			Order("orders.open_id, order_items.category").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("extract category preferences: %w", err)
	}

	out := make([]CategoryAggregate, 0, len(rows))
	for _, r := range rows {
		key := CustomerAggregate{OpenID: r.OpenID, VipNum: r.VipNum, Phone: r.Phone}.CustomerID()
		out = append(out, CategoryAggregate{
			CustomerID: key,
			Category:   r.Category,
			OrderCount: r.OrderCount,
			TotalSpend: r.TotalSpend.Float64,
		})
	}

	return out, nil
}

// sourceTimeLayouts covers the formats SQLite hands back for datetime
// expression columns depending on how the value was bound.
var sourceTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseSourceTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range sourceTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
