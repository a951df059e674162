// serialize.go - Abbildung Task <-> Redis-Hash
//
// Alle Hash-Felder sind Strings. Zeitstempel als RFC3339 in UTC,
// Params und Result als JSON-Text.
package taskstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/7blacky7/gpugate/api"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// taskFields serialisiert einen Task in die Hash-Felder
func taskFields(task *api.Task) map[string]any {
	fields := map[string]any{
		"type":       string(task.Type),
		"status":     string(task.Status),
		"progress":   formatFloat(task.Progress),
		"created_at": formatTime(task.CreatedAt),
		"updated_at": formatTime(task.UpdatedAt),
	}
	if len(task.Params) > 0 {
		fields["params"] = string(task.Params)
	}
	if len(task.Result) > 0 {
		fields["result"] = string(task.Result)
	}
	if task.Error != "" {
		fields["error"] = task.Error
	}
	if task.UserID != "" {
		fields["user_id"] = task.UserID
	}
	return fields
}

// taskFromFields deserialisiert einen Task aus den Hash-Feldern
func taskFromFields(id string, fields map[string]string) (*api.Task, error) {
	taskType, err := api.ParseTaskType(fields["type"])
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}

	task := &api.Task{
		ID:     id,
		Type:   taskType,
		Status: api.TaskStatus(fields["status"]),
		Error:  fields["error"],
		UserID: fields["user_id"],
	}

	if s := fields["progress"]; s != "" {
		task.Progress, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("task %s: invalid progress %q", id, s)
		}
	}
	if s := fields["created_at"]; s != "" {
		task.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("task %s: invalid created_at %q", id, s)
		}
	}
	if s := fields["updated_at"]; s != "" {
		task.UpdatedAt, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("task %s: invalid updated_at %q", id, s)
		}
	}
	if s := fields["params"]; s != "" {
		task.Params = json.RawMessage(s)
	}
	if s := fields["result"]; s != "" {
		task.Result = json.RawMessage(s)
	}
	return task, nil
}
