// Package server - Queue-Worker
//
// Diese Datei enthaelt:
// - Worker: Poll-Schleife ueber der Pending-Queue
// - Typ-Limits: maximale gleichzeitige Tasks pro Task-Typ
// - dispatch: Handler-Ausfuehrung mit Fortschritts-Callback
//
// Der Worker nimmt Tasks FIFO aus der Queue. Ist das Limit fuer den
// Typ ausgeschoepft wandert der Task ans Queue-Ende zurueck, damit
// Tasks anderer Typen nicht blockiert werden.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/taskstore"
)

// defaultPollInterval ist die Abtastrate der Pending-Queue
const defaultPollInterval = 500 * time.Millisecond

// defaultTypeLimits begrenzt gleichzeitige Tasks pro Typ.
// Video und Vergleich belegen den Accelerator exklusiv.
var defaultTypeLimits = map[api.TaskType]int{
	api.TaskTypeImage:       2,
	api.TaskTypeImage2Image: 2,
	api.TaskTypeVideo:       1,
	api.TaskTypeLlmCompare:  1,
}

// TaskHandler fuehrt einen Task aus. report meldet Fortschritt in
// Prozent, das Ergebnis wird als JSON persistiert.
type TaskHandler func(ctx context.Context, task *api.Task, report func(progress float64)) (json.RawMessage, error)

// Worker pollt die Pending-Queue und verteilt Tasks an Handler
type Worker struct {
	store        *taskstore.Store
	handlers     map[api.TaskType]TaskHandler
	limits       map[api.TaskType]int
	pollInterval time.Duration

	// mu schuetzt running
	mu      sync.Mutex
	running map[api.TaskType]int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewWorker erstellt einen Worker mit den Standard-Limits
func NewWorker(store *taskstore.Store) *Worker {
	return &Worker{
		store:        store,
		handlers:     make(map[api.TaskType]TaskHandler),
		limits:       defaultTypeLimits,
		pollInterval: defaultPollInterval,
		running:      make(map[api.TaskType]int),
	}
}

// Handle registriert den Handler fuer einen Task-Typ
func (w *Worker) Handle(t api.TaskType, h TaskHandler) {
	w.handlers[t] = h
}

// Start holt verwaiste Tasks zurueck und startet die Poll-Schleife
func (w *Worker) Start(ctx context.Context) error {
	reclaimed, err := w.store.ReclaimOrphans(ctx)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		slog.Info("reclaimed orphaned tasks from previous run", "count", reclaimed)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
	slog.Info("task worker started", "poll_interval", w.pollInterval, "limits", w.limits)
	return nil
}

// Stop beendet die Poll-Schleife und wartet bis laufende Tasks
// abgeschlossen und ihre Ergebnisse persistiert sind
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	slog.Info("task worker stopped")
}

// run ist die Poll-Schleife
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll nimmt Tasks aus der Queue bis sie leer ist oder ein Task
// zurueckgelegt werden musste. Maximal ein Requeue pro Tick, sonst
// wuerde die Schleife bei gesaettigtem Typ rotieren statt zu warten.
func (w *Worker) poll(ctx context.Context) {
	for {
		task, err := w.store.NextPending(ctx)
		if err != nil {
			slog.Error("polling pending queue failed", "error", err)
			return
		}
		if task == nil {
			return
		}

		if !w.tryAcquireSlot(task.Type) {
			slog.Debug("type limit reached, requeueing task", "task", task.ID, "type", task.Type)
			if err := w.store.Requeue(ctx, task.ID); err != nil {
				slog.Error("requeue failed", "task", task.ID, "error", err)
			}
			return
		}

		// Stop() bricht nur die Poll-Schleife ab. Laufende Tasks
		// duerfen fertig werden, sonst koennte ihr Ergebnis nach dem
		// Cancel nicht mehr persistiert werden.
		w.wg.Add(1)
		go w.dispatch(context.WithoutCancel(ctx), task)
	}
}

// tryAcquireSlot belegt einen Slot fuer den Typ wenn das Limit es erlaubt
func (w *Worker) tryAcquireSlot(t api.TaskType) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	limit, ok := w.limits[t]
	if !ok {
		limit = 1
	}
	if w.running[t] >= limit {
		return false
	}
	w.running[t]++
	return true
}

func (w *Worker) releaseSlot(t api.TaskType) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running[t]--
}

// Running liefert die Anzahl laufender Tasks eines Typs
func (w *Worker) Running(t api.TaskType) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running[t]
}

// dispatch fuehrt einen Task aus und persistiert das Ergebnis
func (w *Worker) dispatch(ctx context.Context, task *api.Task) {
	defer w.wg.Done()
	defer w.releaseSlot(task.Type)

	handler, ok := w.handlers[task.Type]
	if !ok {
		slog.Error("no handler registered for task type", "task", task.ID, "type", task.Type)
		w.store.Fail(ctx, task.ID, errors.New("no handler for task type "+string(task.Type)))
		return
	}

	started := time.Now()
	slog.Info("task started", "task", task.ID, "type", task.Type)
	taskStartedTotal.WithLabelValues(string(task.Type)).Inc()

	report := func(progress float64) {
		if err := w.store.UpdateProgress(ctx, task.ID, progress); err != nil {
			slog.Debug("progress update failed", "task", task.ID, "error", err)
		}
	}

	result, err := handler(ctx, task, report)

	// Waehrend der Ausfuehrung storniert: Ergebnis verwerfen,
	// der Status bleibt cancelled
	if current, getErr := w.store.Get(ctx, task.ID); getErr == nil && current.Status == api.TaskStatusCancelled {
		slog.Info("task was cancelled during execution, discarding result", "task", task.ID)
		return
	}

	if err != nil {
		slog.Error("task failed", "task", task.ID, "type", task.Type, "error", err, "duration", time.Since(started))
		taskFinishedTotal.WithLabelValues(string(task.Type), "failed").Inc()
		if failErr := w.store.Fail(ctx, task.ID, err); failErr != nil {
			slog.Error("persisting task failure failed", "task", task.ID, "error", failErr)
		}
		return
	}

	if err := w.store.Complete(ctx, task.ID, result); err != nil {
		slog.Error("persisting task result failed", "task", task.ID, "error", err)
		return
	}
	taskFinishedTotal.WithLabelValues(string(task.Type), "completed").Inc()
	slog.Info("task completed", "task", task.ID, "type", task.Type, "duration", time.Since(started))
}
