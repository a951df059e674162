// worker_test.go - Unit Tests fuer den Queue-Worker
//
// Der Store laeuft gegen miniredis, die Handler sind steuerbare Fakes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/taskstore"
)

// setupWorker baut Store und Worker mit schneller Poll-Rate
func setupWorker(t *testing.T) (*taskstore.Store, *Worker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Setenv("TASK_TTL_HOURS", "1")
	store := taskstore.NewStore(client)
	w := NewWorker(store)
	w.pollInterval = 10 * time.Millisecond
	return store, w
}

// waitFor pollt cond bis sie wahr wird oder die Frist ablaeuft
func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timeout: %s", msg)
}

// TestWorkerTypeLimit testet dass pro Typ nie mehr Tasks laufen als erlaubt
func TestWorkerTypeLimit(t *testing.T) {
	store, w := setupWorker(t)
	ctx := context.Background()

	release := make(chan struct{})
	w.Handle(api.TaskTypeImage, func(ctx context.Context, task *api.Task, report func(float64)) (json.RawMessage, error) {
		<-release
		return json.RawMessage(`{}`), nil
	})

	for i := 0; i < 3; i++ {
		if _, err := store.Create(ctx, api.TaskTypeImage, nil, ""); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "zwei Image-Tasks laufen", func() bool { return w.Running(api.TaskTypeImage) == 2 })

	// Der dritte Task bleibt in der Queue, das Limit ist 2
	stats, _ := store.Stats(ctx)
	if stats.Pending != 1 {
		t.Errorf("Pending = %d, erwartet 1 (zurueckgelegter Task)", stats.Pending)
	}
	if got := w.Running(api.TaskTypeImage); got != 2 {
		t.Errorf("Running(image) = %d, erwartet 2", got)
	}

	close(release)
	waitFor(t, "alle Tasks fertig", func() bool {
		stats, _ := store.Stats(ctx)
		return stats.Pending == 0 && stats.Processing == 0
	})
	w.Stop()
}

// TestWorkerSaturationBlocksOnlyOneType testet dass ein gesaettigter
// Typ Tasks anderer Typen nicht dauerhaft blockiert
func TestWorkerSaturationBlocksOnlyOneType(t *testing.T) {
	store, w := setupWorker(t)
	ctx := context.Background()

	videoRelease := make(chan struct{})
	w.Handle(api.TaskTypeVideo, func(ctx context.Context, task *api.Task, report func(float64)) (json.RawMessage, error) {
		<-videoRelease
		return json.RawMessage(`{}`), nil
	})

	var imageDone sync.WaitGroup
	imageDone.Add(1)
	w.Handle(api.TaskTypeImage, func(ctx context.Context, task *api.Task, report func(float64)) (json.RawMessage, error) {
		imageDone.Done()
		return json.RawMessage(`{}`), nil
	})

	// Zwei Video-Tasks (Limit 1), dahinter ein Image-Task
	store.Create(ctx, api.TaskTypeVideo, nil, "")
	store.Create(ctx, api.TaskTypeVideo, nil, "")
	imgTask, _ := store.Create(ctx, api.TaskTypeImage, nil, "")

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Das zweite Video wird zurueckgelegt, der Image-Task laeuft trotzdem
	imageDone.Wait()
	waitFor(t, "image-Task abgeschlossen", func() bool {
		got, err := store.Get(ctx, imgTask.ID)
		return err == nil && got.Status == api.TaskStatusCompleted
	})

	close(videoRelease)
	waitFor(t, "alle Videos fertig", func() bool {
		stats, _ := store.Stats(ctx)
		return stats.Pending == 0 && stats.Processing == 0
	})
	w.Stop()
}

// TestWorkerFIFO testet dass Tasks eines Typs in Erstellungs-Reihenfolge laufen
func TestWorkerFIFO(t *testing.T) {
	store, w := setupWorker(t)
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	w.Handle(api.TaskTypeVideo, func(ctx context.Context, task *api.Task, report func(float64)) (json.RawMessage, error) {
		mu.Lock()
		order = append(order, task.ID)
		mu.Unlock()
		return json.RawMessage(`{}`), nil
	})

	var want []string
	for i := 0; i < 4; i++ {
		task, _ := store.Create(ctx, api.TaskTypeVideo, nil, "")
		want = append(want, task.ID)
	}

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "alle Videos fertig", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == len(want)
	})
	w.Stop()

	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Reihenfolge = %v, erwartet %v", order, want)
		}
	}
}

// TestWorkerFailure testet dass Handler-Fehler den Task als failed markieren
func TestWorkerFailure(t *testing.T) {
	store, w := setupWorker(t)
	ctx := context.Background()

	w.Handle(api.TaskTypeImage, func(ctx context.Context, task *api.Task, report func(float64)) (json.RawMessage, error) {
		return nil, errors.New("out of memory")
	})

	task, _ := store.Create(ctx, api.TaskTypeImage, nil, "")
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "Task failed", func() bool {
		got, err := store.Get(ctx, task.ID)
		return err == nil && got.Status == api.TaskStatusFailed
	})
	w.Stop()

	got, _ := store.Get(ctx, task.ID)
	if got.Error != "out of memory" {
		t.Errorf("Error = %q, erwartet out of memory", got.Error)
	}
}

// TestWorkerProgressReport testet die Fortschritts-Persistenz
func TestWorkerProgressReport(t *testing.T) {
	store, w := setupWorker(t)
	ctx := context.Background()

	progressed := make(chan struct{})
	release := make(chan struct{})
	w.Handle(api.TaskTypeImage, func(ctx context.Context, task *api.Task, report func(float64)) (json.RawMessage, error) {
		report(80)
		close(progressed)
		<-release
		return json.RawMessage(`{}`), nil
	})

	task, _ := store.Create(ctx, api.TaskTypeImage, nil, "")
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	<-progressed
	waitFor(t, "Fortschritt persistiert", func() bool {
		got, err := store.Get(ctx, task.ID)
		return err == nil && got.Progress == 80
	})
	close(release)
	w.Stop()
}

// TestWorkerStopAllowsInflightCompletion testet dass Stop auf laufende
// Tasks wartet und deren Ergebnis noch persistiert wird
func TestWorkerStopAllowsInflightCompletion(t *testing.T) {
	store, w := setupWorker(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	w.Handle(api.TaskTypeImage, func(ctx context.Context, task *api.Task, report func(float64)) (json.RawMessage, error) {
		close(started)
		<-release
		return json.RawMessage(`{"ok":true}`), nil
	})

	task, _ := store.Create(ctx, api.TaskTypeImage, nil, "")
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-started

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop() kehrte zurueck obwohl ein Task noch laeuft")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-stopped

	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != api.TaskStatusCompleted {
		t.Errorf("Status = %s, erwartet completed", got.Status)
	}
	if string(got.Result) != `{"ok":true}` {
		t.Errorf("Result = %s, erwartet {\"ok\":true}", got.Result)
	}
}
