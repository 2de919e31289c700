package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// SyncRunner executes one sync task to completion. The syncer engine
// satisfies this.
type SyncRunner interface {
	Run(ctx context.Context, taskID string) error
}

// SyncRunTask carries one customer sync run through the queue. The task
// record itself lives in the registry; only its id travels here.
type SyncRunTask struct {
	TaskID string `json:"task_id"`
}

// Config returns the queue configuration for customer sync runs.
// A failed run is not retried by the queue since the engine retries
// transient database errors internally and marks the task failed.
func (t SyncRunTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "customer_sync",
		MaxAttempts: 1,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SyncRunProcessor creates a processor function for SyncRunTask.
func SyncRunProcessor(runner SyncRunner) backlite.QueueProcessor[SyncRunTask] {
	return func(ctx context.Context, task SyncRunTask) error {
		if runner == nil {
			return fmt.Errorf("sync runner not configured")
		}

		log.Printf("[TASK] Starting customer sync run %s", task.TaskID)
		if err := runner.Run(ctx, task.TaskID); err != nil {
			return fmt.Errorf("sync run %s: %w", task.TaskID, err)
		}
		return nil
	}
}

// NewSyncRunQueue creates a backlite queue for customer sync runs.
func NewSyncRunQueue(runner SyncRunner) backlite.Queue {
	return backlite.NewQueue(SyncRunProcessor(runner))
}

// Dispatcher enqueues sync runs onto the task queue. It implements the
// engine's dispatcher hook so StartAsyncSync hands runs to the worker
// pool instead of spawning goroutines.
type Dispatcher struct {
	client *Client
}

func NewDispatcher(client *Client) *Dispatcher {
	return &Dispatcher{client: client}
}

func (d *Dispatcher) Dispatch(taskID string) error {
	if _, err := d.client.Add(SyncRunTask{TaskID: taskID}).Save(); err != nil {
		return fmt.Errorf("enqueue sync run %s: %w", taskID, err)
	}
	return nil
}
