// Package scheduler triggers periodic customer syncs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dineops/customer-sync/internal/entities"
)

// SyncStarter starts an asynchronous sync run and reports known tasks.
// The syncer engine satisfies this.
type SyncStarter interface {
	StartAsyncSync() (string, error)
	GetAllSyncTasks() []*entities.SyncTask
}

// SyncScheduler manages periodic customer sync runs.
type SyncScheduler struct {
	engine   SyncStarter
	schedule string

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewSyncScheduler creates a scheduler that triggers syncs on the given
// cron schedule (standard five-field format).
func NewSyncScheduler(engine SyncStarter, schedule string) *SyncScheduler {
	return &SyncScheduler{
		engine:   engine,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.runSync()
	})
	if err != nil {
		return fmt.Errorf("invalid sync schedule '%s': %w", s.schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Sync scheduler: started with schedule '%s'. Next run: %v",
		s.schedule, s.nextRunLocked())

	// Monitor for context cancellation
	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a triggered run to be
// handed off.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Sync scheduler: stopped")
}

// RunNow triggers an immediate sync outside the schedule.
func (s *SyncScheduler) RunNow() {
	go s.runSync()
}

// IsRunning returns whether the scheduler is active.
func (s *SyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next scheduled sync will occur.
func (s *SyncScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	return s.nextRunLocked()
}

func (s *SyncScheduler) nextRunLocked() *time.Time {
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runSync starts a sync unless one is already pending or running.
func (s *SyncScheduler) runSync() {
	for _, task := range s.engine.GetAllSyncTasks() {
		if !task.Status.Terminal() {
			log.Printf("Scheduled sync: skipped (task %s still %s)", task.TaskID, task.Status)
			return
		}
	}

	taskID, err := s.engine.StartAsyncSync()
	if err != nil {
		log.Printf("Scheduled sync: failed to start: %v", err)
		return
	}
	log.Printf("Scheduled sync: started task %s", taskID)
}
