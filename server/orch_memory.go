// Package server - Orchestrator Speicherdruck und Verdraengung
//
// Diese Datei enthaelt:
// - ensureMemoryLocked: LRU-Verdraengung bis genug Speicher frei ist
// - GpuStatus: aktueller Speicherzustand fuer Routen und Worker
package server

import (
	"context"
	"log/slog"
	"sort"

	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/format"
)

// ensureMemoryLocked verdraengt residente Models in LRU-Reihenfolge
// bis requiredMB frei sind. loadMu muss gehalten werden!
//
// Die Probe wird nach jeder Verdraengung neu abgetastet statt mit
// Schaetzwerten weiterzurechnen, der Treiber ist die Wahrheit.
// Reicht es auch nach Verdraengung aller Kandidaten nicht, wird nur
// gewarnt: die Schaetzung kann zu hoch liegen, der Ladeversuch
// entscheidet.
func (o *Orchestrator) ensureMemoryLocked(ctx context.Context, requiredMB uint64) error {
	for {
		gpu := o.getGpuFn(ctx)
		if gpu.FreeMB >= requiredMB {
			return nil
		}

		o.loadedMu.Lock()
		candidates := make([]*modelRef, 0, len(o.loaded))
		for _, ref := range o.loaded {
			candidates = append(candidates, ref)
		}
		o.loadedMu.Unlock()

		if len(candidates) == 0 {
			slog.Warn("could not free enough memory, attempting load anyway",
				"need", format.HumanMegaBytes(requiredMB),
				"free", format.HumanMegaBytes(gpu.FreeMB))
			return nil
		}

		sort.Sort(byLastUsed(candidates))
		victim := candidates[0]
		slog.Info("evicting least recently used model",
			"victim", victim.modelID,
			"last_used", victim.lastUsed,
			"need", format.HumanMegaBytes(requiredMB),
			"free", format.HumanMegaBytes(gpu.FreeMB))

		if err := o.unloadLocked(ctx, victim); err != nil {
			return err
		}
	}
}

// GpuStatus liefert den aktuellen Speicherzustand des Accelerators
func (o *Orchestrator) GpuStatus(ctx context.Context) api.GPUStatus {
	gpu := o.getGpuFn(ctx)
	gpuMemoryUsedMB.Set(float64(gpu.UsedMB))
	return gpu
}
