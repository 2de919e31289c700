package entities

import (
	"time"
)

// Pay states considered settled at the source. A NULL pay state is treated
// as paid (legacy rows written before the column existed).
const (
	PayStatePaid = 1
)

// Order mirrors the source transactional orders table. The engine only
// reads these rows; qualifying orders are paid (or NULL pay-state) and not
// soft-deleted.
type Order struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	OpenID     string      `gorm:"size:128;index" json:"open_id"`
	VipNum     string      `gorm:"size:64" json:"vip_num"`
	Phone      string      `gorm:"size:32" json:"phone"`
	Nickname   string      `gorm:"size:128" json:"nickname"`
	Gender     string      `gorm:"size:16" json:"gender"`
	City       string      `gorm:"size:64" json:"city"`
	District   string      `gorm:"size:64" json:"district"`
	PayState   *int        `json:"pay_state"`
	Amount     *float64    `json:"amount"`
	RecordTime time.Time   `gorm:"index" json:"record_time"`
	IsDeleted  bool        `json:"is_deleted"`
	Items      []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem is a line on a source order, carrying the product category used
// by the preference aggregation pass.
type OrderItem struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	OrderID  uint    `gorm:"index" json:"order_id"`
	Name     string  `gorm:"size:128" json:"name"`
	Category string  `gorm:"size:64" json:"category"`
	Quantity int     `json:"quantity"`
	Amount   float64 `json:"amount"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
