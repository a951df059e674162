// store_test.go - Unit Tests fuer die Redis-Task-Queue
//
// Laeuft komplett gegen miniredis, kein echter Redis noetig.
package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/7blacky7/gpugate/api"
)

// setupStore startet einen miniredis und einen Store mit kurzer TTL
func setupStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, &Store{client: client, ttl: time.Hour}
}

// TestTaskLifecycle testet den vollen Weg Pending -> Processing -> Completed
func TestTaskLifecycle(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	params := json.RawMessage(`{"prompt":"ein Berg bei Sonnenaufgang"}`)
	task, err := store.Create(ctx, api.TaskTypeImage, params, "user-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if task.Status != api.TaskStatusPending {
		t.Fatalf("neuer Task hat Status %s, erwartet pending", task.Status)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Pending != 1 || stats.Processing != 0 {
		t.Fatalf("Stats() = %+v, erwartet 1 pending / 0 processing", stats)
	}

	claimed, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending() error = %v", err)
	}
	if claimed == nil || claimed.ID != task.ID {
		t.Fatalf("NextPending() = %v, erwartet Task %s", claimed, task.ID)
	}
	if claimed.Status != api.TaskStatusProcessing {
		t.Errorf("beanspruchter Task hat Status %s, erwartet processing", claimed.Status)
	}

	stats, _ = store.Stats(ctx)
	if stats.Pending != 0 || stats.Processing != 1 {
		t.Fatalf("Stats() = %+v, erwartet 0 pending / 1 processing", stats)
	}

	if err := store.UpdateProgress(ctx, task.ID, 80); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	got, _ := store.Get(ctx, task.ID)
	if got.Progress != 80 {
		t.Errorf("Progress = %v, erwartet 80", got.Progress)
	}

	result := json.RawMessage(`{"image_base64":"aGFsbG8=","seed":42}`)
	if err := store.Complete(ctx, task.ID, result); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	got, err = store.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != api.TaskStatusCompleted || got.Progress != 100 {
		t.Errorf("Task nach Complete: status=%s progress=%v", got.Status, got.Progress)
	}
	if string(got.Result) != string(result) {
		t.Errorf("Result = %s, erwartet %s", got.Result, result)
	}

	stats, _ = store.Stats(ctx)
	if stats.Pending != 0 || stats.Processing != 0 {
		t.Errorf("Stats() = %+v, erwartet leere Queues", stats)
	}
}

// TestFailTask testet den Fehlerpfad
func TestFailTask(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	task, _ := store.Create(ctx, api.TaskTypeVideo, nil, "")
	if _, err := store.NextPending(ctx); err != nil {
		t.Fatalf("NextPending() error = %v", err)
	}

	if err := store.Fail(ctx, task.ID, errors.New("runner crashed")); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	got, _ := store.Get(ctx, task.ID)
	if got.Status != api.TaskStatusFailed || got.Error != "runner crashed" {
		t.Errorf("Task nach Fail: status=%s error=%q", got.Status, got.Error)
	}
	stats, _ := store.Stats(ctx)
	if stats.Processing != 0 {
		t.Errorf("Processing = %d, erwartet 0", stats.Processing)
	}
}

// TestCancelRemovesQueueEntry testet dass Cancel den Eintrag aus der
// Pending-Queue entfernt und die Zaehler sofort stimmen
func TestCancelRemovesQueueEntry(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	cancelled, _ := store.Create(ctx, api.TaskTypeImage, nil, "")
	kept, _ := store.Create(ctx, api.TaskTypeImage, nil, "")

	if _, err := store.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Pending != 1 {
		t.Fatalf("Pending = %d, erwartet 1 (stornierter Eintrag entfernt)", stats.Pending)
	}

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending() error = %v", err)
	}
	if next == nil || next.ID != kept.ID {
		t.Fatalf("NextPending() = %v, erwartet %s", next, kept.ID)
	}

	// Queue ist danach leer
	next, _ = store.NextPending(ctx)
	if next != nil {
		t.Errorf("NextPending() auf leerer Queue = %v, erwartet nil", next)
	}
}

// TestCancelTerminalFails testet dass terminale Tasks nicht stornierbar sind
func TestCancelTerminalFails(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	task, _ := store.Create(ctx, api.TaskTypeImage, nil, "")
	store.NextPending(ctx)
	store.Complete(ctx, task.ID, json.RawMessage(`{}`))

	if _, err := store.Cancel(ctx, task.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("Cancel() auf completed = %v, erwartet ErrNotCancellable", err)
	}
}

// TestRequeueGoesToTail testet dass zurueckgelegte Tasks hinten landen
func TestRequeueGoesToTail(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	first, _ := store.Create(ctx, api.TaskTypeVideo, nil, "")
	second, _ := store.Create(ctx, api.TaskTypeImage, nil, "")

	claimed, _ := store.NextPending(ctx)
	if claimed.ID != first.ID {
		t.Fatalf("NextPending() = %s, erwartet FIFO-Kopf %s", claimed.ID, first.ID)
	}

	if err := store.Requeue(ctx, first.ID); err != nil {
		t.Fatalf("Requeue() error = %v", err)
	}

	next, _ := store.NextPending(ctx)
	if next.ID != second.ID {
		t.Errorf("nach Requeue kam %s zuerst, erwartet %s", next.ID, second.ID)
	}
	next, _ = store.NextPending(ctx)
	if next.ID != first.ID {
		t.Errorf("zurueckgelegter Task %s kam nicht am Ende", first.ID)
	}

	got, _ := store.Get(ctx, first.ID)
	if got.Status != api.TaskStatusProcessing {
		t.Errorf("Status = %s, erwartet processing nach erneutem Claim", got.Status)
	}
}

// TestTaskExpiry testet dass Tasks nach der TTL verschwinden
func TestTaskExpiry(t *testing.T) {
	mr, store := setupStore(t)
	ctx := context.Background()

	task, _ := store.Create(ctx, api.TaskTypeImage, nil, "user-1")

	mr.FastForward(2 * time.Hour)

	if _, err := store.Get(ctx, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Get() nach TTL = %v, erwartet ErrTaskNotFound", err)
	}

	// Abgelaufene Eintraege werden vom Worker kommentarlos verworfen
	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending() error = %v", err)
	}
	if next != nil {
		t.Errorf("NextPending() = %v, erwartet nil fuer abgelaufenen Task", next)
	}
}

// TestUserHistoryTrim testet die Begrenzung der User-Historie
func TestUserHistoryTrim(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	var lastID string
	for i := 0; i < userHistoryLimit+10; i++ {
		task, err := store.Create(ctx, api.TaskTypeImage, json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)), "user-1")
		if err != nil {
			t.Fatalf("Create() #%d error = %v", i, err)
		}
		lastID = task.ID
	}

	tasks, err := store.GetUserTasks(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("GetUserTasks() error = %v", err)
	}
	if len(tasks) != userHistoryLimit {
		t.Fatalf("Historie hat %d Eintraege, erwartet %d", len(tasks), userHistoryLimit)
	}
	// Neueste zuerst
	if tasks[0].ID != lastID {
		t.Errorf("Historie[0] = %s, erwartet juengster Task %s", tasks[0].ID, lastID)
	}

	limited, _ := store.GetUserTasks(ctx, "user-1", 5)
	if len(limited) != 5 {
		t.Errorf("GetUserTasks(limit=5) = %d Eintraege", len(limited))
	}
}

// TestReclaimOrphans testet die Wiederaufnahme nach einem Absturz
func TestReclaimOrphans(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	task, _ := store.Create(ctx, api.TaskTypeVideo, nil, "")
	if _, err := store.NextPending(ctx); err != nil {
		t.Fatalf("NextPending() error = %v", err)
	}

	// Absturz simuliert: Task haengt im Processing-Set, kein Worker lebt
	reclaimed, err := store.ReclaimOrphans(ctx)
	if err != nil {
		t.Fatalf("ReclaimOrphans() error = %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("ReclaimOrphans() = %d, erwartet 1", reclaimed)
	}

	stats, _ := store.Stats(ctx)
	if stats.Pending != 1 || stats.Processing != 0 {
		t.Fatalf("Stats() = %+v, erwartet Task zurueck in pending", stats)
	}

	next, _ := store.NextPending(ctx)
	if next == nil || next.ID != task.ID {
		t.Errorf("NextPending() = %v, erwartet zurueckgeholten Task %s", next, task.ID)
	}
}
