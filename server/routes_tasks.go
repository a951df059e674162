// Package server - Routen fuer asynchrone Tasks
//
// Diese Datei enthaelt:
// - CreateTaskHandler: Task anlegen und einreihen
// - GetTaskHandler/TaskResultHandler: Status und Ergebnis abfragen
// - CancelTaskHandler: Task stornieren
// - TaskStatsHandler/UserTasksHandler: Queue-Zaehler und User-Historie
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/envconfig"
	"github.com/7blacky7/gpugate/taskstore"
)

// taskTypeEnabled prueft das Feature-Flag fuer einen Task-Typ
func taskTypeEnabled(t api.TaskType) bool {
	switch t {
	case api.TaskTypeImage:
		return envconfig.EnableImage(true)
	case api.TaskTypeImage2Image:
		return envconfig.EnableImage2Image(true)
	case api.TaskTypeVideo:
		return envconfig.EnableVideo(true)
	default:
		return true
	}
}

// CreateTaskHandler legt einen Task an und reiht ihn ein
func (s *Server) CreateTaskHandler(c *gin.Context) {
	var req api.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskType, err := api.ParseTaskType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !taskTypeEnabled(taskType) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": string(taskType) + " tasks are disabled"})
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = c.GetHeader("X-User-Id")
	}

	task, err := s.store.Create(c.Request.Context(), taskType, req.Params, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, api.CreateTaskResponse{TaskID: task.ID, Status: task.Status})
}

// GetTaskHandler liefert den vollen Task inklusive Fortschritt
func (s *Server) GetTaskHandler(c *gin.Context) {
	task, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, taskstore.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

// TaskResultHandler liefert nur das Ergebnis eines fertigen Tasks.
// Nicht abgeschlossene Tasks melden den aktuellen Status als Konflikt.
func (s *Server) TaskResultHandler(c *gin.Context) {
	task, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, taskstore.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	switch task.Status {
	case api.TaskStatusCompleted:
		c.Data(http.StatusOK, "application/json", task.Result)
	case api.TaskStatusFailed:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": task.Error})
	default:
		c.JSON(http.StatusConflict, gin.H{"status": task.Status, "progress": task.Progress})
	}
}

// CancelTaskHandler storniert einen Task
func (s *Server) CancelTaskHandler(c *gin.Context) {
	task, err := s.store.Cancel(c.Request.Context(), c.Param("id"))
	if errors.Is(err, taskstore.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, taskstore.ErrNotCancellable) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

// TaskStatsHandler liefert die Queue-Zaehler
func (s *Server) TaskStatsHandler(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// UserTasksHandler liefert die juengsten Tasks eines Users
func (s *Server) UserTasksHandler(c *gin.Context) {
	tasks, err := s.store.GetUserTasks(c.Request.Context(), c.Param("uid"), 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}
