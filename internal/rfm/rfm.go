// Package rfm converts customer purchase aggregates into
// Recency/Frequency/Monetary scores and named segments.
package rfm

import (
	"fmt"
	"math"
	"time"
)

// Segment labels match the dashboard's Chinese tier names.
const (
	SegmentKeyValue         = "重要价值客户"
	SegmentKeyGrowth        = "重要发展客户"
	SegmentKeyRetention     = "重要挽留客户"
	SegmentGeneralValue     = "一般价值客户"
	SegmentGeneralGrowth    = "一般发展客户"
	SegmentGeneralRetention = "一般挽留客户"
	SegmentLowValue         = "低价值客户"
)

// Score holds the three 1-5 digits of an RFM score.
type Score struct {
	Recency   int
	Frequency int
	Monetary  int
}

// String renders the score as the 3-character form stored on profiles,
// e.g. "535".
func (s Score) String() string {
	return fmt.Sprintf("%d%d%d", s.Recency, s.Frequency, s.Monetary)
}

// Compute scores a customer from their last order date, order count and
// total spend, relative to now.
func Compute(lastOrder time.Time, totalOrders int, totalSpend float64, now time.Time) Score {
	return Score{
		Recency:   scoreRecency(lastOrder, now),
		Frequency: scoreFrequency(totalOrders),
		Monetary:  scoreMonetary(totalSpend),
	}
}

// Thresholds are inclusive lower bounds: exactly 30 days scores 5,
// exactly 1000 spend scores 3.
func scoreRecency(lastOrder, now time.Time) int {
	days := int(now.Sub(lastOrder).Hours() / 24)
	switch {
	case days <= 30:
		return 5
	case days <= 60:
		return 4
	case days <= 90:
		return 3
	case days <= 180:
		return 2
	default:
		return 1
	}
}

func scoreFrequency(totalOrders int) int {
	switch {
	case totalOrders >= 20:
		return 5
	case totalOrders >= 10:
		return 4
	case totalOrders >= 5:
		return 3
	case totalOrders >= 2:
		return 2
	default:
		return 1
	}
}

func scoreMonetary(totalSpend float64) int {
	switch {
	case totalSpend >= 10000:
		return 5
	case totalSpend >= 5000:
		return 4
	case totalSpend >= 1000:
		return 3
	case totalSpend >= 500:
		return 2
	default:
		return 1
	}
}

// Segment maps a score to its named customer tier. A digit counts as
// "high" at 4 or above.
func Segment(s Score) string {
	r := s.Recency >= 4
	f := s.Frequency >= 4
	m := s.Monetary >= 4

	switch {
	case r && f && m:
		return SegmentKeyValue
	case r && f:
		return SegmentKeyGrowth
	case r && m:
		return SegmentKeyRetention
	case f && m:
		return SegmentGeneralValue
	case r:
		return SegmentGeneralGrowth
	case f:
		return SegmentGeneralRetention
	default:
		return SegmentLowValue
	}
}

// OrderFrequency returns orders per 30-day period over the customer's
// active span, rounded to 2 decimals. A single order or a non-positive
// span yields 0.
func OrderFrequency(firstOrder, lastOrder time.Time, totalOrders int) float64 {
	if totalOrders <= 1 {
		return 0
	}
	days := lastOrder.Sub(firstOrder).Hours() / 24
	if days <= 0 {
		return 0
	}
	if days < 1 {
		days = 1
	}
	return round2(float64(totalOrders) / days * 30)
}

// LifetimeValue estimates customer lifetime value as a year of spend at
// the observed monthly pace. Customers without a measurable pace are
// valued at what they have already spent.
func LifetimeValue(avgOrderAmount, orderFrequency, totalSpend float64) float64 {
	if orderFrequency <= 0 {
		return round2(totalSpend)
	}
	return round2(avgOrderAmount * orderFrequency * 12)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
