package entities

import (
	"time"
)

// CustomerProfile is the destination analytics row, one per customer.
// The engine upserts these keyed by CustomerID and never hard-deletes them.
type CustomerProfile struct {
	CustomerID      string     `gorm:"primaryKey;size:128" json:"customer_id"`
	OpenID          string     `gorm:"size:128;index" json:"open_id"`
	VipNum          string     `gorm:"size:64" json:"vip_num"`
	Phone           string     `gorm:"size:32" json:"phone"`
	Nickname        string     `gorm:"size:128" json:"nickname"`
	Gender          string     `gorm:"size:16" json:"gender"`
	City            string     `gorm:"size:64" json:"city"`
	District        string     `gorm:"size:64" json:"district"`
	FirstOrderDate  *time.Time `json:"first_order_date"`
	LastOrderDate   *time.Time `json:"last_order_date"`
	TotalOrders     int        `json:"total_orders"`
	TotalSpend      float64    `json:"total_spend"`
	AvgOrderAmount  float64    `json:"avg_order_amount"`
	OrderFrequency  float64    `json:"order_frequency"` // orders per 30 days
	RFMScore        string     `gorm:"size:3" json:"rfm_score"`
	CustomerSegment string     `gorm:"size:64" json:"customer_segment"`
	LifetimeValue   float64    `gorm:"column:customer_lifetime_value" json:"customer_lifetime_value"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (CustomerProfile) TableName() string {
	return "customer_profiles"
}

// TimeSlotAnalysis is the per-customer time-of-day order distribution.
// Rebuilt wholesale (delete then insert) on every run.
type TimeSlotAnalysis struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	CustomerID string `gorm:"size:128;index" json:"customer_id"`
	TimeSlot   string `gorm:"size:16" json:"time_slot"` // morning/afternoon/evening/night
	OrderCount int    `json:"order_count"`
}

func (TimeSlotAnalysis) TableName() string {
	return "customer_time_analysis"
}

// ProductPreference is the per-customer product-category rollup.
// Rebuilt wholesale on every run.
type ProductPreference struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	CustomerID string  `gorm:"size:128;index" json:"customer_id"`
	Category   string  `gorm:"size:64" json:"category"`
	OrderCount int     `json:"order_count"`
	TotalSpend float64 `json:"total_spend"`
}

func (ProductPreference) TableName() string {
	return "customer_product_preferences"
}

// MarketingSuggestion is a segment-level recommendation record.
// Rebuilt wholesale on every run.
type MarketingSuggestion struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Segment       string    `gorm:"size:64;index" json:"segment"`
	CustomerCount int       `json:"customer_count"`
	AvgSpend      float64   `json:"avg_spend"`
	Suggestion    string    `gorm:"type:text" json:"suggestion"`
	GeneratedAt   time.Time `json:"generated_at"`
}

func (MarketingSuggestion) TableName() string {
	return "ai_marketing_suggestions"
}
