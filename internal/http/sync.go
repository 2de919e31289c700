package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dineops/customer-sync/internal/entities"
	"github.com/dineops/customer-sync/internal/registry"
)

// SyncService is the engine surface the sync endpoints need.
type SyncService interface {
	StartAsyncSync() (string, error)
	GetSyncStatus(taskID string) (*entities.SyncTask, error)
	GetAllSyncTasks() []*entities.SyncTask
	CancelSyncTask(taskID string) bool
}

// SyncController exposes the sync engine over HTTP.
type SyncController struct {
	service SyncService
}

func NewSyncController(service SyncService) *SyncController {
	return &SyncController{service: service}
}

// StartSync kicks off an asynchronous sync run and returns its task id.
// The response arrives before any data moves; poll GetStatus for progress.
func (s *SyncController) StartSync(c *gin.Context) {
	taskID, err := s.service.StartAsyncSync()
	if err != nil {
		respondInternalError(c, err, "start sync")
		return
	}
	respondAccepted(c, "sync started", gin.H{"task_id": taskID})
}

// GetStatus returns a snapshot of one sync task.
func (s *SyncController) GetStatus(c *gin.Context) {
	task, err := s.service.GetSyncStatus(c.Param("id"))
	if err != nil {
		if errors.Is(err, registry.ErrTaskNotFound) {
			respondNotFound(c, "task")
			return
		}
		respondInternalError(c, err, "get sync status")
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListTasks returns all known sync tasks, newest first.
func (s *SyncController) ListTasks(c *gin.Context) {
	tasks := s.service.GetAllSyncTasks()
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// CancelSync interrupts a running sync task.
func (s *SyncController) CancelSync(c *gin.Context) {
	taskID := c.Param("id")
	if s.service.CancelSyncTask(taskID) {
		c.JSON(http.StatusOK, SuccessResponse{Message: "task cancelled"})
		return
	}

	// Distinguish a missing task from one that is not cancellable.
	if _, err := s.service.GetSyncStatus(taskID); errors.Is(err, registry.ErrTaskNotFound) {
		respondNotFound(c, "task")
		return
	}
	respondError(c, http.StatusConflict, "task is not running")
}
