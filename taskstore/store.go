// Package taskstore - Redis-gestuetzte Task-Queue
//
// Diese Datei enthaelt:
// - Store: Task-Persistenz und Queue-Operationen auf Redis
// - Create/Get/Update-Operationen fuer den Task-Lebenszyklus
// - NextPending/Requeue/ReclaimOrphans fuer den Worker
//
// Schluessel-Layout:
//
//	task:{id}         Hash mit allen Task-Feldern, TTL
//	queue:pending     Liste, FIFO (RPUSH hinten, LPOP vorne)
//	queue:processing  Set der gerade laufenden Task-IDs
//	user:{uid}:tasks  Liste der letzten Task-IDs eines Users, max 100
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/envconfig"
)

const (
	keyPending    = "queue:pending"
	keyProcessing = "queue:processing"

	// userHistoryLimit begrenzt die gespeicherte Historie pro User
	userHistoryLimit = 100
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrNotCancellable = errors.New("task is already in a terminal state")
)

func taskKey(id string) string       { return "task:" + id }
func userTasksKey(uid string) string { return "user:" + uid + ":tasks" }

// Store verwaltet Tasks und Queues in Redis
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewStore erstellt einen Store mit der konfigurierten TTL
func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client, ttl: envconfig.TaskTTL()}
}

// Connect baut die Redis-Verbindung aus REDIS_URL auf und prueft sie
func Connect(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(envconfig.RedisURL())
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	slog.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

// Ping prueft die Redis-Verbindung
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Create legt einen neuen Task an und haengt ihn hinten an die
// Pending-Queue. Die User-Historie wird auf die letzten Eintraege
// getrimmt, aeltere IDs verweisen ggf. auf bereits abgelaufene Tasks.
func (s *Store) Create(ctx context.Context, taskType api.TaskType, params []byte, userID string) (*api.Task, error) {
	now := time.Now().UTC()
	task := &api.Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		Status:    api.TaskStatusPending,
		Progress:  0,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    userID,
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, taskKey(task.ID), taskFields(task))
	pipe.Expire(ctx, taskKey(task.ID), s.ttl)
	pipe.RPush(ctx, keyPending, task.ID)
	if userID != "" {
		pipe.LPush(ctx, userTasksKey(userID), task.ID)
		pipe.LTrim(ctx, userTasksKey(userID), 0, userHistoryLimit-1)
		pipe.Expire(ctx, userTasksKey(userID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	slog.Debug("task created", "task", task.ID, "type", taskType, "user", userID)
	return task, nil
}

// Get laedt einen Task. ErrTaskNotFound wenn der Hash fehlt oder
// bereits per TTL abgelaufen ist.
func (s *Store) Get(ctx context.Context, id string) (*api.Task, error) {
	fields, err := s.client.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrTaskNotFound
	}
	return taskFromFields(id, fields)
}

// NextPending nimmt den aeltesten Task aus der Pending-Queue und
// markiert ihn als Processing. Gibt nil zurueck wenn die Queue leer
// ist. Eintraege deren Task abgelaufen oder nicht mehr pending ist
// (z.B. storniert) werden uebersprungen.
func (s *Store) NextPending(ctx context.Context) (*api.Task, error) {
	for {
		id, err := s.client.LPop(ctx, keyPending).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("pop pending: %w", err)
		}

		task, err := s.Get(ctx, id)
		if errors.Is(err, ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if task.Status != api.TaskStatusPending {
			// Storniert waehrend es in der Queue lag
			continue
		}

		task.Status = api.TaskStatusProcessing
		task.UpdatedAt = time.Now().UTC()
		pipe := s.client.TxPipeline()
		pipe.HSet(ctx, taskKey(id), "status", string(task.Status), "updated_at", formatTime(task.UpdatedAt))
		pipe.SAdd(ctx, keyProcessing, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("claim task %s: %w", id, err)
		}
		return task, nil
	}
}

// Requeue legt einen beanspruchten Task zurueck ans Ende der
// Pending-Queue, z.B. wenn der Worker fuer den Typ gesaettigt ist.
func (s *Store) Requeue(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, taskKey(id), "status", string(api.TaskStatusPending), "updated_at", formatTime(time.Now().UTC()))
	pipe.SRem(ctx, keyProcessing, id)
	pipe.RPush(ctx, keyPending, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("requeue task %s: %w", id, err)
	}
	return nil
}

// UpdateProgress setzt den Fortschritt eines laufenden Tasks
func (s *Store) UpdateProgress(ctx context.Context, id string, progress float64) error {
	err := s.client.HSet(ctx, taskKey(id),
		"progress", formatFloat(progress),
		"updated_at", formatTime(time.Now().UTC()),
	).Err()
	if err != nil {
		return fmt.Errorf("update progress for %s: %w", id, err)
	}
	return nil
}

// Complete schliesst einen Task erfolgreich ab und entfernt ihn aus
// dem Processing-Set. Die TTL wird aufgefrischt damit das Ergebnis
// die volle Aufbewahrungszeit abrufbar bleibt.
func (s *Store) Complete(ctx context.Context, id string, result []byte) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, taskKey(id),
		"status", string(api.TaskStatusCompleted),
		"progress", formatFloat(100),
		"result", string(result),
		"updated_at", formatTime(time.Now().UTC()),
	)
	pipe.Expire(ctx, taskKey(id), s.ttl)
	pipe.SRem(ctx, keyProcessing, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete task %s: %w", id, err)
	}
	return nil
}

// Fail markiert einen Task als fehlgeschlagen
func (s *Store) Fail(ctx context.Context, id string, taskErr error) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, taskKey(id),
		"status", string(api.TaskStatusFailed),
		"error", taskErr.Error(),
		"updated_at", formatTime(time.Now().UTC()),
	)
	pipe.Expire(ctx, taskKey(id), s.ttl)
	pipe.SRem(ctx, keyProcessing, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fail task %s: %w", id, err)
	}
	return nil
}

// Cancel storniert einen Task der noch nicht terminal ist und
// entfernt ihn aus beiden Queues. NextPending ueberspringt stornierte
// Tasks zusaetzlich anhand des Status, falls Cancel mit einem Claim
// ueberlappt.
func (s *Store) Cancel(ctx context.Context, id string) (*api.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCancellable, id, task.Status)
	}

	task.Status = api.TaskStatusCancelled
	task.UpdatedAt = time.Now().UTC()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, taskKey(id), "status", string(task.Status), "updated_at", formatTime(task.UpdatedAt))
	pipe.LRem(ctx, keyPending, 0, id)
	pipe.SRem(ctx, keyProcessing, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("cancel task %s: %w", id, err)
	}

	slog.Info("task cancelled", "task", id, "type", task.Type)
	return task, nil
}

// GetUserTasks liefert die juengsten Tasks eines Users, neueste
// zuerst. IDs deren Task bereits abgelaufen ist werden uebersprungen.
func (s *Store) GetUserTasks(ctx context.Context, userID string, limit int64) ([]*api.Task, error) {
	if limit <= 0 || limit > userHistoryLimit {
		limit = userHistoryLimit
	}
	ids, err := s.client.LRange(ctx, userTasksKey(userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list tasks for user %s: %w", userID, err)
	}

	tasks := make([]*api.Task, 0, len(ids))
	for _, id := range ids {
		task, err := s.Get(ctx, id)
		if errors.Is(err, ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Stats liefert die aktuellen Queue-Zaehler
func (s *Store) Stats(ctx context.Context) (api.QueueStats, error) {
	pending, err := s.client.LLen(ctx, keyPending).Result()
	if err != nil {
		return api.QueueStats{}, fmt.Errorf("pending length: %w", err)
	}
	processing, err := s.client.SCard(ctx, keyProcessing).Result()
	if err != nil {
		return api.QueueStats{}, fmt.Errorf("processing cardinality: %w", err)
	}
	return api.QueueStats{Pending: pending, Processing: processing}, nil
}

// ReclaimOrphans legt Tasks die bei einem Absturz im Processing-Set
// zurueckgeblieben sind wieder in die Pending-Queue. Wird beim
// Worker-Start aufgerufen.
func (s *Store) ReclaimOrphans(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, keyProcessing).Result()
	if err != nil {
		return 0, fmt.Errorf("list processing set: %w", err)
	}

	reclaimed := 0
	for _, id := range ids {
		task, err := s.Get(ctx, id)
		if errors.Is(err, ErrTaskNotFound) {
			s.client.SRem(ctx, keyProcessing, id)
			continue
		}
		if err != nil {
			return reclaimed, err
		}
		if task.Status != api.TaskStatusProcessing {
			s.client.SRem(ctx, keyProcessing, id)
			continue
		}
		if err := s.Requeue(ctx, id); err != nil {
			return reclaimed, err
		}
		slog.Warn("reclaimed orphaned task", "task", id, "type", task.Type)
		reclaimed++
	}
	return reclaimed, nil
}
