// Package syncer orchestrates the customer profile sync: extraction from
// the source orders database, RFM scoring, idempotent upserts into the
// analytics store, and the secondary aggregation passes.
package syncer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dineops/customer-sync/internal/database"
	"github.com/dineops/customer-sync/internal/database/profiles"
	"github.com/dineops/customer-sync/internal/entities"
	"github.com/dineops/customer-sync/internal/extractor"
	"github.com/dineops/customer-sync/internal/registry"
	"github.com/dineops/customer-sync/internal/rfm"
)

const defaultPagePause = 200 * time.Millisecond

// Dispatcher hands a run off to the background worker pool. The backlite
// queue implements this in production; tests run synchronously without it.
type Dispatcher interface {
	Dispatch(taskID string) error
}

// Options configures a sync engine.
type Options struct {
	SourceDSN    string
	AnalyticsDSN string
	PageSize     int
	PagePause    time.Duration // yield between profile pages
}

// Engine runs progress-tracked sync tasks. One Engine serves the whole
// process; each run gets its own task record and connections.
type Engine struct {
	opts       Options
	store      registry.TaskStore
	dispatcher Dispatcher
}

func NewEngine(opts Options, store registry.TaskStore) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = extractor.DefaultPageSize
	}
	if opts.PagePause <= 0 {
		opts.PagePause = defaultPagePause
	}
	return &Engine{opts: opts, store: store}
}

// SetDispatcher installs the background worker queue. Without one, runs
// are dispatched on a plain goroutine.
func (e *Engine) SetDispatcher(d Dispatcher) {
	e.dispatcher = d
}

// StartAsyncSync creates a pending task, dispatches the run and returns
// the task id immediately. Progress is observable only via GetSyncStatus.
func (e *Engine) StartAsyncSync() (string, error) {
	task := e.store.Create()

	if e.dispatcher != nil {
		if err := e.dispatcher.Dispatch(task.TaskID); err != nil {
			e.store.Fail(task.TaskID, fmt.Sprintf("dispatch failed: %v", err))
			return "", fmt.Errorf("dispatch sync task: %w", err)
		}
		return task.TaskID, nil
	}

	go func() {
		if err := e.Run(context.Background(), task.TaskID); err != nil {
			log.Printf("Customer sync: task %s failed: %v", task.TaskID, err)
		}
	}()
	return task.TaskID, nil
}

// GetSyncStatus returns a snapshot of one task.
func (e *Engine) GetSyncStatus(taskID string) (*entities.SyncTask, error) {
	return e.store.Get(taskID)
}

// GetAllSyncTasks returns snapshots of every known task, newest first.
func (e *Engine) GetAllSyncTasks() []*entities.SyncTask {
	return e.store.List()
}

// CancelSyncTask interrupts a running task. The run context is cancelled,
// so in-flight stages stop at their next checkpoint.
func (e *Engine) CancelSyncTask(taskID string) bool {
	return e.store.Cancel(taskID)
}

// Run executes the full stage sequence for one task. The first
// unrecoverable error aborts the remaining stages and marks the task
// failed; already-written rows are not rolled back.
func (e *Engine) Run(ctx context.Context, taskID string) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.store.BindCancel(taskID, cancel)
	e.store.MarkRunning(taskID)

	started := time.Now()
	err := e.runStages(runCtx, taskID)
	if err != nil {
		e.store.Fail(taskID, err.Error())
		log.Printf("Customer sync: task %s failed after %v: %v", taskID, time.Since(started).Round(time.Millisecond), err)
		return err
	}

	e.store.Complete(taskID)
	log.Printf("Customer sync: task %s completed in %v", taskID, time.Since(started).Round(time.Millisecond))
	return nil
}

func (e *Engine) runStages(ctx context.Context, taskID string) error {
	// Stage: connect (5%)
	src, err := database.OpenSource(ctx, e.opts.SourceDSN)
	if err != nil {
		return err
	}
	defer src.Close()

	analytics, err := database.OpenAnalytics(ctx, e.opts.AnalyticsDSN)
	if err != nil {
		return err
	}
	defer analytics.Close()

	e.store.SetStep(taskID, "连接数据库", 5)

	repo := profiles.NewRepository(analytics)
	ex := extractor.New(src, e.opts.PageSize)

	// Stage: count source customers (10%)
	total, err := ex.CountCustomers(ctx)
	if err != nil {
		return err
	}
	e.store.SetTotals(taskID, int(total), 0)
	e.store.SetStep(taskID, "统计客户数量", 10)
	log.Printf("Customer sync: task %s syncing %d customers", taskID, total)

	// Stage: customer profiles (15% -> 35%)
	if err := e.syncProfiles(ctx, taskID, ex, repo, int(total)); err != nil {
		return err
	}

	// Stage: time-of-day distribution rebuild (-> 50%)
	slots, err := ex.TimeSlots(ctx)
	if err != nil {
		return err
	}
	if err := repo.ReplaceTimeSlots(ctx, timeSlotRows(slots)); err != nil {
		return err
	}
	e.store.SetStep(taskID, "重建时段分析", 50)

	// Stage: product-category preference rebuild (-> 70%)
	prefs, err := ex.CategoryPreferences(ctx)
	if err != nil {
		return err
	}
	if err := repo.ReplacePreferences(ctx, preferenceRows(prefs)); err != nil {
		return err
	}
	e.store.SetStep(taskID, "重建品类偏好", 70)

	// Stage: segment marketing suggestions (-> 90%)
	stats, err := repo.SegmentRollup(ctx)
	if err != nil {
		return err
	}
	if err := repo.ReplaceSuggestions(ctx, suggestionRows(stats, time.Now())); err != nil {
		return err
	}
	e.store.SetStep(taskID, "生成营销建议", 90)

	return nil
}

// syncProfiles drives the extract -> score -> upsert loop page by page,
// pausing briefly between pages so one run does not monopolize the
// process.
func (e *Engine) syncProfiles(ctx context.Context, taskID string, ex *extractor.Extractor, repo *profiles.Repository, total int) error {
	processed := 0
	e.store.SetStep(taskID, "同步客户画像", 15)

	for offset := 0; ; offset += ex.PageSize() {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := ex.Page(ctx, offset)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}

		now := time.Now()
		for _, agg := range page {
			profile := buildProfile(agg, now)
			if err := repo.UpsertProfile(ctx, profile); err != nil {
				return fmt.Errorf("upsert profile %s: %w", profile.CustomerID, err)
			}
		}

		processed += len(page)
		e.store.SetTotals(taskID, -1, processed)
		e.store.SetStep(taskID, "同步客户画像", profileProgress(processed, total))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.opts.PagePause):
		}
	}

	e.store.SetStep(taskID, "同步客户画像", 35)
	return nil
}

// profileProgress maps page completion onto the 15-35% band of the run.
func profileProgress(processed, total int) int {
	if total <= 0 {
		return 35
	}
	p := 15 + processed*20/total
	if p > 35 {
		p = 35
	}
	return p
}

// buildProfile scores one aggregated customer and assembles the
// destination row.
func buildProfile(agg extractor.CustomerAggregate, now time.Time) *entities.CustomerProfile {
	score := rfm.Compute(agg.LastOrderDate, agg.TotalOrders, agg.TotalSpend, now)
	frequency := rfm.OrderFrequency(agg.FirstOrderDate, agg.LastOrderDate, agg.TotalOrders)

	first := agg.FirstOrderDate
	last := agg.LastOrderDate

	return &entities.CustomerProfile{
		CustomerID:      agg.CustomerID(),
		OpenID:          agg.OpenID,
		VipNum:          agg.VipNum,
		Phone:           agg.Phone,
		Nickname:        agg.Nickname,
		Gender:          agg.Gender,
		City:            agg.City,
		District:        agg.District,
		FirstOrderDate:  &first,
		LastOrderDate:   &last,
		TotalOrders:     agg.TotalOrders,
		TotalSpend:      agg.TotalSpend,
		AvgOrderAmount:  agg.AvgOrderAmount,
		OrderFrequency:  frequency,
		RFMScore:        score.String(),
		CustomerSegment: rfm.Segment(score),
		LifetimeValue:   rfm.LifetimeValue(agg.AvgOrderAmount, frequency, agg.TotalSpend),
	}
}

func timeSlotRows(slots []extractor.TimeSlotCount) []entities.TimeSlotAnalysis {
	rows := make([]entities.TimeSlotAnalysis, 0, len(slots))
	for _, s := range slots {
		rows = append(rows, entities.TimeSlotAnalysis{
			CustomerID: s.CustomerID,
			TimeSlot:   s.TimeSlot,
			OrderCount: s.OrderCount,
		})
	}
	return rows
}

func preferenceRows(prefs []extractor.CategoryAggregate) []entities.ProductPreference {
	rows := make([]entities.ProductPreference, 0, len(prefs))
	for _, p := range prefs {
		rows = append(rows, entities.ProductPreference{
			CustomerID: p.CustomerID,
			Category:   p.Category,
			OrderCount: p.OrderCount,
			TotalSpend: p.TotalSpend,
		})
	}
	return rows
}
