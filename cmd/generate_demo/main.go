// Command generate_demo creates a demo orders database with randomized
// restaurant order history, usable as a sync source.
// Usage: go run cmd/generate_demo/main.go [-db path/to/orders.db]
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dineops/customer-sync/internal/config"
	"github.com/dineops/customer-sync/internal/entities"
)

func main() {
	dbPath := flag.String("db", config.DefaultSourceDSN, "path to the demo orders database file")
	customers := flag.Int("customers", 200, "number of customers to generate")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	log.Printf("Generating demo orders database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(*dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}

	if err := db.AutoMigrate(&entities.Order{}, &entities.OrderItem{}); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	total := 0
	for i := 0; i < *customers; i++ {
		total += generateCustomer(db, rng, i)
	}

	log.Printf("Demo orders database generated: %d customers, %d orders", *customers, total)
}

var (
	cities    = []string{"成都", "重庆", "杭州", "上海", "深圳"}
	districts = []string{"锦江区", "武侯区", "渝中区", "西湖区", "南山区"}
	genders   = []string{"男", "女", ""}

	menu = []struct {
		name     string
		category string
		price    float64
	}{
		{"水煮鱼", "热菜", 88},
		{"回锅肉", "热菜", 58},
		{"麻婆豆腐", "热菜", 32},
		{"夫妻肺片", "凉菜", 42},
		{"口水鸡", "凉菜", 46},
		{"担担面", "主食", 22},
		{"蛋炒饭", "主食", 18},
		{"酸梅汤", "饮品", 12},
		{"茉莉花茶", "饮品", 15},
		{"冰粉", "甜品", 10},
	}
)

// generateCustomer writes one customer's order history and returns the
// number of orders created.
func generateCustomer(db *gorm.DB, rng *rand.Rand, n int) int {
	openID := fmt.Sprintf("demo-customer-%04d", n)
	nickname := fmt.Sprintf("食客%d", n)
	city := cities[rng.Intn(len(cities))]
	district := districts[rng.Intn(len(districts))]
	gender := genders[rng.Intn(len(genders))]

	// A handful of regulars, a long tail of one-off visitors
	orderCount := 1 + rng.Intn(4)
	if rng.Float64() < 0.2 {
		orderCount = 5 + rng.Intn(20)
	}

	now := time.Now()
	for i := 0; i < orderCount; i++ {
		daysAgo := rng.Intn(365)
		hour := 7 + rng.Intn(15)
		recordTime := now.AddDate(0, 0, -daysAgo).
			Truncate(24 * time.Hour).
			Add(time.Duration(hour)*time.Hour + time.Duration(rng.Intn(60))*time.Minute)

		order := entities.Order{
			OpenID:     openID,
			Nickname:   nickname,
			Gender:     gender,
			City:       city,
			District:   district,
			PayState:   payState(rng),
			RecordTime: recordTime,
		}

		var orderTotal float64
		for _, dish := range pickDishes(rng) {
			qty := 1 + rng.Intn(2)
			lineAmount := dish.price * float64(qty)
			orderTotal += lineAmount
			order.Items = append(order.Items, entities.OrderItem{
				Name:     dish.name,
				Category: dish.category,
				Quantity: qty,
				Amount:   lineAmount,
			})
		}
		order.Amount = &orderTotal

		if err := db.Create(&order).Error; err != nil {
			log.Printf("Failed to save order for %s: %v", openID, err)
		}
	}
	return orderCount
}

func pickDishes(rng *rand.Rand) []struct {
	name     string
	category string
	price    float64
} {
	count := 1 + rng.Intn(3)
	picked := menu[:0:0]
	for i := 0; i < count; i++ {
		picked = append(picked, menu[rng.Intn(len(menu))])
	}
	return picked
}

// payState marks most orders paid and the rest unpaid, so demo syncs
// exercise the qualifying-order filter.
func payState(rng *rand.Rand) *int {
	state := entities.PayStatePaid
	if rng.Float64() < 0.1 {
		state = 0
	}
	return &state
}
