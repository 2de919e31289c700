// Package registry tracks sync tasks for the lifetime of the process.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dineops/customer-sync/internal/entities"
)

var ErrTaskNotFound = errors.New("sync task not found")

// TaskStore owns sync task records. The in-memory implementation below
// suits single-instance deployments; a shared table can stand in behind
// the same interface for horizontal scaling.
type TaskStore interface {
	Create() *entities.SyncTask
	Get(taskID string) (*entities.SyncTask, error)
	List() []*entities.SyncTask

	// BindCancel attaches the run context's cancel func so Cancel can
	// actually interrupt the work, not just flip a flag.
	BindCancel(taskID string, cancel context.CancelFunc)

	MarkRunning(taskID string)
	SetStep(taskID, step string, progress int)
	SetTotals(taskID string, total, processed int)
	Complete(taskID string)
	Fail(taskID, errMsg string)

	// Cancel interrupts a running task. Returns true when a running task
	// was found and cancelled.
	Cancel(taskID string) bool
}

type taskEntry struct {
	task   entities.SyncTask
	cancel context.CancelFunc
}

// InMemory is the process-local TaskStore. Task history is lost on
// restart.
type InMemory struct {
	mu    sync.RWMutex
	tasks map[string]*taskEntry
}

var _ TaskStore = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{tasks: make(map[string]*taskEntry)}
}

func (s *InMemory) Create() *entities.SyncTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := entities.SyncTask{
		TaskID:      uuid.NewString(),
		Status:      entities.TaskStatusPending,
		CurrentStep: "等待启动",
		StartTime:   time.Now(),
	}
	s.tasks[task.TaskID] = &taskEntry{task: task}

	snapshot := task
	return &snapshot
}

func (s *InMemory) Get(taskID string) (*entities.SyncTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	snapshot := entry.task
	return &snapshot, nil
}

func (s *InMemory) List() []*entities.SyncTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.SyncTask, 0, len(s.tasks))
	for _, entry := range s.tasks {
		snapshot := entry.task
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

func (s *InMemory) BindCancel(taskID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.tasks[taskID]; ok {
		entry.cancel = cancel
	}
}

func (s *InMemory) MarkRunning(taskID string) {
	s.update(taskID, func(t *entities.SyncTask) {
		if t.Status == entities.TaskStatusPending {
			t.Status = entities.TaskStatusRunning
			t.StartTime = time.Now()
		}
	})
}

func (s *InMemory) SetStep(taskID, step string, progress int) {
	s.update(taskID, func(t *entities.SyncTask) {
		t.CurrentStep = step
		// Progress never moves backwards within one task.
		if progress > t.Progress {
			t.Progress = progress
		}
	})
}

func (s *InMemory) SetTotals(taskID string, total, processed int) {
	s.update(taskID, func(t *entities.SyncTask) {
		if total >= 0 {
			t.TotalRecords = total
		}
		if processed >= 0 {
			if processed > t.TotalRecords {
				processed = t.TotalRecords
			}
			t.ProcessedRecords = processed
		}
	})
}

func (s *InMemory) Complete(taskID string) {
	s.update(taskID, func(t *entities.SyncTask) {
		if t.Status.Terminal() {
			return
		}
		now := time.Now()
		t.Status = entities.TaskStatusCompleted
		t.Progress = 100
		t.CurrentStep = "同步完成"
		t.EndTime = &now
	})
}

func (s *InMemory) Fail(taskID, errMsg string) {
	s.update(taskID, func(t *entities.SyncTask) {
		if t.Status.Terminal() {
			return
		}
		now := time.Now()
		t.Status = entities.TaskStatusFailed
		t.Error = errMsg
		t.EndTime = &now
	})
}

func (s *InMemory) Cancel(taskID string) bool {
	s.mu.Lock()
	entry, ok := s.tasks[taskID]
	if !ok || entry.task.Status != entities.TaskStatusRunning {
		s.mu.Unlock()
		return false
	}
	cancel := entry.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.Fail(taskID, "任务已取消")
	return true
}

func (s *InMemory) update(taskID string, fn func(*entities.SyncTask)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.tasks[taskID]; ok {
		fn(&entry.task)
	}
}
