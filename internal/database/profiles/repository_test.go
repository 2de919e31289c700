package profiles

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dineops/customer-sync/internal/database"
	"github.com/dineops/customer-sync/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := "./test_profiles_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&entities.CustomerProfile{},
		&entities.TimeSlotAnalysis{},
		&entities.ProductPreference{},
		&entities.MarketingSuggestion{},
	)
	require.NoError(t, err)

	analytics := &database.Analytics{DB: db}
	repo := NewRepository(analytics)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, cleanup
}

func sampleProfile(customerID string) *entities.CustomerProfile {
	first := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	last := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &entities.CustomerProfile{
		CustomerID:      customerID,
		OpenID:          customerID,
		Nickname:        "测试客户",
		City:            "北京",
		FirstOrderDate:  &first,
		LastOrderDate:   &last,
		TotalOrders:     8,
		TotalSpend:      1280.50,
		AvgOrderAmount:  160.06,
		OrderFrequency:  4.07,
		RFMScore:        "433",
		CustomerSegment: "重要发展客户",
		LifetimeValue:   7817.73,
	}
}

func TestUpsertProfile_InsertThenUpdate(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.UpsertProfile(ctx, sampleProfile("c1")))

	updated := sampleProfile("c1")
	updated.TotalOrders = 9
	updated.TotalSpend = 1400
	updated.RFMScore = "533"
	require.NoError(t, repo.UpsertProfile(ctx, updated))

	count, err := repo.CountProfiles()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := repo.GetProfile("c1")
	require.NoError(t, err)
	assert.Equal(t, 9, got.TotalOrders)
	assert.InDelta(t, 1400.0, got.TotalSpend, 0.001)
	assert.Equal(t, "533", got.RFMScore)
}

func TestUpsertProfile_Idempotent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.UpsertProfile(ctx, sampleProfile("c1")))
	before, err := repo.GetProfile("c1")
	require.NoError(t, err)

	require.NoError(t, repo.UpsertProfile(ctx, sampleProfile("c1")))
	after, err := repo.GetProfile("c1")
	require.NoError(t, err)

	assert.Equal(t, before.TotalOrders, after.TotalOrders)
	assert.Equal(t, before.TotalSpend, after.TotalSpend)
	assert.Equal(t, before.AvgOrderAmount, after.AvgOrderAmount)
	assert.Equal(t, before.OrderFrequency, after.OrderFrequency)
	assert.Equal(t, before.RFMScore, after.RFMScore)
	assert.Equal(t, before.CustomerSegment, after.CustomerSegment)
	assert.Equal(t, before.LifetimeValue, after.LifetimeValue)
	assert.True(t, before.FirstOrderDate.Equal(*after.FirstOrderDate))
	assert.True(t, before.LastOrderDate.Equal(*after.LastOrderDate))
}

func TestReplaceTimeSlots_OverwritesPreviousRun(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first := []entities.TimeSlotAnalysis{
		{CustomerID: "c1", TimeSlot: "morning", OrderCount: 3},
		{CustomerID: "c1", TimeSlot: "evening", OrderCount: 1},
	}
	require.NoError(t, repo.ReplaceTimeSlots(ctx, first))

	second := []entities.TimeSlotAnalysis{
		{CustomerID: "c2", TimeSlot: "night", OrderCount: 2},
	}
	require.NoError(t, repo.ReplaceTimeSlots(ctx, second))

	var rows []entities.TimeSlotAnalysis
	require.NoError(t, repo.analytics.DB.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "c2", rows[0].CustomerID)
	assert.Equal(t, "night", rows[0].TimeSlot)
}

func TestReplacePreferences_EmptyRunClearsTable(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.ReplacePreferences(ctx, []entities.ProductPreference{
		{CustomerID: "c1", Category: "川菜", OrderCount: 2, TotalSpend: 83},
	}))
	require.NoError(t, repo.ReplacePreferences(ctx, nil))

	var count int64
	require.NoError(t, repo.analytics.DB.Model(&entities.ProductPreference{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestReplaceSuggestions(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	rows := []entities.MarketingSuggestion{
		{Segment: "重要价值客户", CustomerCount: 10, AvgSpend: 5200, Suggestion: "专属会员礼遇", GeneratedAt: time.Now()},
		{Segment: "低价值客户", CustomerCount: 40, AvgSpend: 120, Suggestion: "新客召回券", GeneratedAt: time.Now()},
	}
	require.NoError(t, repo.ReplaceSuggestions(ctx, rows))

	var got []entities.MarketingSuggestion
	require.NoError(t, repo.analytics.DB.Order("segment").Find(&got).Error)
	require.Len(t, got, 2)
}

func TestSegmentRollup(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p1 := sampleProfile("c1")
	p1.CustomerSegment = "重要价值客户"
	p1.TotalSpend = 6000
	p2 := sampleProfile("c2")
	p2.CustomerSegment = "重要价值客户"
	p2.TotalSpend = 4000
	p3 := sampleProfile("c3")
	p3.CustomerSegment = "低价值客户"
	p3.TotalSpend = 100

	for _, p := range []*entities.CustomerProfile{p1, p2, p3} {
		require.NoError(t, repo.UpsertProfile(ctx, p))
	}

	stats, err := repo.SegmentRollup(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	bySegment := make(map[string]SegmentStat)
	for _, s := range stats {
		bySegment[s.Segment] = s
	}
	assert.Equal(t, 2, bySegment["重要价值客户"].CustomerCount)
	assert.InDelta(t, 5000.0, bySegment["重要价值客户"].AvgSpend, 0.001)
	assert.Equal(t, 1, bySegment["低价值客户"].CustomerCount)
}
