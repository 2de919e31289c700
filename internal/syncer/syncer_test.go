package syncer

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

	"github.com/dineops/customer-sync/internal/entities"
	"github.com/dineops/customer-sync/internal/registry"
)

type testEnv struct {
	engine    *Engine
	store     *registry.InMemory
	sourceDSN string
	destDSN   string
	cleanup   func()
}

func setupEnv(t *testing.T, pageSize int) *testEnv {
	sourceDSN := "./test_syncer_src_" + t.Name() + ".db"
	destDSN := "./test_syncer_dst_" + t.Name() + ".db"

	store := registry.NewInMemory()
	engine := NewEngine(Options{
		SourceDSN:    sourceDSN,
		AnalyticsDSN: destDSN,
		PageSize:     pageSize,
		PagePause:    time.Millisecond,
	}, store)

	return &testEnv{
		engine:    engine,
		store:     store,
		sourceDSN: sourceDSN,
		destDSN:   destDSN,
		cleanup: func() {
			os.Remove(sourceDSN)
			os.Remove(destDSN)
		},
	}
}

func (env *testEnv) openSource(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(env.sourceDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Order{}, &entities.OrderItem{}))
	return db
}

func (env *testEnv) openDest(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(env.destDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func paid() *int {
	v := entities.PayStatePaid
	return &v
}

func amount(v float64) *float64 {
	return &v
}

// seedScenario writes the three-customer fixture: C1 with 5 paid orders
// totalling 1200 (last one 10 days ago), C2 with a single 50 order 200
// days ago, C3 with no qualifying orders at all.
func seedScenario(t *testing.T, db *gorm.DB) {
	now := time.Now().UTC()

	c1Times := []time.Time{
		now.AddDate(0, 0, -100),
		now.AddDate(0, 0, -80),
		now.AddDate(0, 0, -50),
		now.AddDate(0, 0, -30),
		now.AddDate(0, 0, -10),
	}
	c1Amounts := []float64{200, 250, 250, 250, 250}
	for i, ts := range c1Times {
		require.NoError(t, db.Create(&entities.Order{
			OpenID: "c1", Nickname: "常客", PayState: paid(),
			Amount: amount(c1Amounts[i]), RecordTime: ts,
			Items: []entities.OrderItem{{Name: "招牌菜", Category: "热菜", Quantity: 1, Amount: c1Amounts[i]}},
		}).Error)
	}

	require.NoError(t, db.Create(&entities.Order{
		OpenID: "c2", Nickname: "过客", PayState: paid(),
		Amount: amount(50), RecordTime: now.AddDate(0, 0, -200),
	}).Error)

	unpaid := 0
	require.NoError(t, db.Create(&entities.Order{
		OpenID: "c3", Nickname: "未付", PayState: &unpaid,
		Amount: amount(500), RecordTime: now,
	}).Error)
}

func TestRun_EndToEnd(t *testing.T) {
	env := setupEnv(t, 500)
	defer env.cleanup()

	src := env.openSource(t)
	seedScenario(t, src)
	closeDB(src)

	task := env.store.Create()
	require.NoError(t, env.engine.Run(context.Background(), task.TaskID))

	got, err := env.store.Get(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, entities.TaskStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 2, got.TotalRecords)
	assert.Equal(t, 2, got.ProcessedRecords)
	require.NotNil(t, got.EndTime)

	dest := env.openDest(t)
	defer closeDB(dest)

	var count int64
	require.NoError(t, dest.Model(&entities.CustomerProfile{}).Count(&count).Error)
	assert.Equal(t, int64(2), count, "only customers with qualifying orders get profiles")

	var c1 entities.CustomerProfile
	require.NoError(t, dest.Where("customer_id = ?", "c1").First(&c1).Error)
	assert.Equal(t, "533", c1.RFMScore)
	assert.Equal(t, "一般发展客户", c1.CustomerSegment)
	assert.Equal(t, 5, c1.TotalOrders)
	assert.InDelta(t, 1200.0, c1.TotalSpend, 0.001)
	assert.Greater(t, c1.OrderFrequency, 0.0)

	var c2 entities.CustomerProfile
	require.NoError(t, dest.Where("customer_id = ?", "c2").First(&c2).Error)
	assert.Equal(t, "111", c2.RFMScore)
	assert.Equal(t, "低价值客户", c2.CustomerSegment)
	assert.Equal(t, 0.0, c2.OrderFrequency)

	var slotCount int64
	require.NoError(t, dest.Model(&entities.TimeSlotAnalysis{}).Count(&slotCount).Error)
	assert.Greater(t, slotCount, int64(0))

	var prefCount int64
	require.NoError(t, dest.Model(&entities.ProductPreference{}).Count(&prefCount).Error)
	assert.Greater(t, prefCount, int64(0))

	var suggestions []entities.MarketingSuggestion
	require.NoError(t, dest.Find(&suggestions).Error)
	require.NotEmpty(t, suggestions)
	segments := make(map[string]entities.MarketingSuggestion)
	for _, s := range suggestions {
		segments[s.Segment] = s
	}
	assert.Contains(t, segments, "一般发展客户")
	assert.Contains(t, segments, "低价值客户")
	assert.Equal(t, 1, segments["低价值客户"].CustomerCount)
	assert.NotEmpty(t, segments["低价值客户"].Suggestion)
}

func TestRun_IdempotentAcrossRuns(t *testing.T) {
	env := setupEnv(t, 500)
	defer env.cleanup()

	src := env.openSource(t)
	seedScenario(t, src)
	closeDB(src)

	first := env.store.Create()
	require.NoError(t, env.engine.Run(context.Background(), first.TaskID))

	dest := env.openDest(t)
	var before entities.CustomerProfile
	require.NoError(t, dest.Where("customer_id = ?", "c1").First(&before).Error)
	closeDB(dest)

	second := env.store.Create()
	require.NoError(t, env.engine.Run(context.Background(), second.TaskID))

	dest = env.openDest(t)
	defer closeDB(dest)

	var count int64
	require.NoError(t, dest.Model(&entities.CustomerProfile{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var after entities.CustomerProfile
	require.NoError(t, dest.Where("customer_id = ?", "c1").First(&after).Error)
	assert.Equal(t, before.TotalOrders, after.TotalOrders)
	assert.Equal(t, before.TotalSpend, after.TotalSpend)
	assert.Equal(t, before.AvgOrderAmount, after.AvgOrderAmount)
	assert.Equal(t, before.OrderFrequency, after.OrderFrequency)
	assert.Equal(t, before.RFMScore, after.RFMScore)
	assert.Equal(t, before.CustomerSegment, after.CustomerSegment)
	assert.Equal(t, before.LifetimeValue, after.LifetimeValue)
}

func TestRun_PagedExtraction(t *testing.T) {
	env := setupEnv(t, 2)
	defer env.cleanup()

	src := env.openSource(t)
	now := time.Now().UTC()
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5"} {
		require.NoError(t, src.Create(&entities.Order{
			OpenID: id, PayState: paid(), Amount: amount(100), RecordTime: now,
		}).Error)
	}
	closeDB(src)

	task := env.store.Create()
	require.NoError(t, env.engine.Run(context.Background(), task.TaskID))

	dest := env.openDest(t)
	defer closeDB(dest)

	var count int64
	require.NoError(t, dest.Model(&entities.CustomerProfile{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)

	got, _ := env.store.Get(task.TaskID)
	assert.Equal(t, 5, got.ProcessedRecords)
}

func TestRun_SourceFailureMarksTaskFailed(t *testing.T) {
	env := setupEnv(t, 500)
	defer env.cleanup()

	// a directory is not a usable database file
	env.engine.opts.SourceDSN = t.TempDir()

	task := env.store.Create()
	err := env.engine.Run(context.Background(), task.TaskID)
	require.Error(t, err)

	got, _ := env.store.Get(task.TaskID)
	assert.Equal(t, entities.TaskStatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
	require.NotNil(t, got.EndTime)
}

func TestRun_CancelledContextAborts(t *testing.T) {
	env := setupEnv(t, 500)
	defer env.cleanup()

	src := env.openSource(t)
	seedScenario(t, src)
	closeDB(src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := env.store.Create()
	err := env.engine.Run(ctx, task.TaskID)
	require.Error(t, err)

	got, _ := env.store.Get(task.TaskID)
	assert.Equal(t, entities.TaskStatusFailed, got.Status)
}

func TestStartAsyncSync_ReturnsImmediately(t *testing.T) {
	env := setupEnv(t, 500)
	defer env.cleanup()

	src := env.openSource(t)
	seedScenario(t, src)
	closeDB(src)

	taskID, err := env.engine.StartAsyncSync()
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	assert.Eventually(t, func() bool {
		task, err := env.engine.GetSyncStatus(taskID)
		return err == nil && task.Status == entities.TaskStatusCompleted
	}, 10*time.Second, 20*time.Millisecond)

	tasks := env.engine.GetAllSyncTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, taskID, tasks[0].TaskID)
}

func TestProfileProgress(t *testing.T) {
	assert.Equal(t, 15, profileProgress(0, 100))
	assert.Equal(t, 25, profileProgress(50, 100))
	assert.Equal(t, 35, profileProgress(100, 100))
	assert.Equal(t, 35, profileProgress(10, 0), "unknown total jumps to stage end")
	assert.Equal(t, 35, profileProgress(200, 100), "overshoot is clamped")
}
