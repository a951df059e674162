// types_task.go - Task-Typen fuer die asynchrone Queue
// Enthaelt: TaskType, TaskStatus, Task, QueueStats, CreateTaskRequest
package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskType beschreibt die Art eines asynchronen Jobs
type TaskType string

const (
	TaskTypeImage       TaskType = "image"
	TaskTypeImage2Image TaskType = "image2image"
	TaskTypeVideo       TaskType = "video"
	TaskTypeLlmCompare  TaskType = "llm_compare"
)

// TaskTypes sind alle bekannten Task-Typen in stabiler Reihenfolge
var TaskTypes = []TaskType{TaskTypeImage, TaskTypeImage2Image, TaskTypeVideo, TaskTypeLlmCompare}

// ParseTaskType parst einen Task-Typ aus einem String
func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(strings.ToLower(strings.TrimSpace(s))) {
	case TaskTypeImage:
		return TaskTypeImage, nil
	case TaskTypeImage2Image:
		return TaskTypeImage2Image, nil
	case TaskTypeVideo:
		return TaskTypeVideo, nil
	case TaskTypeLlmCompare:
		return TaskTypeLlmCompare, nil
	default:
		return "", fmt.Errorf("unknown task type %q", s)
	}
}

// TaskStatus beschreibt den Lebenszyklus-Zustand eines Tasks.
// Uebergaenge sind monoton: Pending -> Processing -> Completed/Failed,
// Cancelled nur aus Pending oder Processing.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Terminal meldet ob der Status ein Endzustand ist
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Task ist ein persistierter asynchroner Job
type Task struct {
	ID        string          `json:"id"`
	Type      TaskType        `json:"type"`
	Status    TaskStatus      `json:"status"`
	Progress  float64         `json:"progress"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	UserID    string          `json:"user_id,omitempty"`
}

// QueueStats sind die aktuellen Queue-Zaehler
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
}

// CreateTaskRequest ist der Request-Body zum Anlegen eines Tasks
type CreateTaskRequest struct {
	Type   string          `json:"type" binding:"required"`
	Params json.RawMessage `json:"params"`
	UserID string          `json:"user_id"`
}

// CreateTaskResponse meldet den neu angelegten Task
type CreateTaskResponse struct {
	TaskID string     `json:"task_id"`
	Status TaskStatus `json:"status"`
}
