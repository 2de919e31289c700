package entities

import (
	"time"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is final. A task never leaves a
// terminal status.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// SyncTask tracks the progress of one sync run. One record exists per
// invocation of the engine; callers observe it by polling.
type SyncTask struct {
	TaskID           string     `json:"task_id"`
	Status           TaskStatus `json:"status"`
	Progress         int        `json:"progress"` // 0-100, never decreases
	CurrentStep      string     `json:"current_step"`
	TotalRecords     int        `json:"total_records"`
	ProcessedRecords int        `json:"processed_records"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	Error            string     `json:"error,omitempty"`
}
