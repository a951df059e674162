// Package server - Orchestrator Laden und Entladen
//
// Diese Datei enthaelt:
// - Load: Model laden, mit Verdraengung bei Speicherdruck
// - Unload: Model entladen, idempotent
// - EnsureLoaded: Laden nur wenn nicht bereits resident
// - unloadLocked: interner Entlade-Pfad, loadMu muss gehalten werden
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/format"
)

// Load laedt ein Model. Bereits residente Models sind ein No-Op,
// ausser force ist gesetzt, dann wird entladen und neu geladen.
// Blockiert bis das Model bereit ist oder der Load fehlschlaegt.
func (o *Orchestrator) Load(ctx context.Context, modelID string, modelType api.ModelType, force bool) (*api.LoadModelResponse, error) {
	o.loadMu.Lock()
	defer o.loadMu.Unlock()

	if ref := o.getRef(modelID); ref != nil {
		if !force {
			o.touch(modelID)
			return &api.LoadModelResponse{
				Model:    modelID,
				Status:   api.ModelStatusLoaded,
				MemoryMB: ref.memoryMB,
				Message:  "already loaded",
			}, nil
		}
		slog.Info("force reload requested, unloading current instance", "model", modelID)
		if err := o.unloadLocked(ctx, ref); err != nil {
			return nil, err
		}
	}

	adapter, err := o.adapterFn(modelType)
	if err != nil {
		return nil, err
	}

	o.setStatus(modelID, modelType, api.ModelStatusLoading, "")

	estimate := adapter.Estimate(modelID)
	slog.Info("loading model", "model", modelID, "type", modelType, "estimated", format.HumanMegaBytes(estimate))

	if err := o.ensureMemoryLocked(ctx, estimate); err != nil {
		o.setStatus(modelID, modelType, api.ModelStatusError, err.Error())
		return nil, err
	}

	inst, err := adapter.Load(ctx, modelID)
	if err != nil {
		o.setStatus(modelID, modelType, api.ModelStatusError, err.Error())
		modelLoadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("loading %s: %w", modelID, err)
	}

	now := time.Now()
	ref := &modelRef{
		modelID:   modelID,
		modelType: modelType,
		inst:      inst,
		memoryMB:  inst.MemoryMB,
		loadedAt:  now,
		lastUsed:  now,
	}

	o.loadedMu.Lock()
	o.loaded[modelID] = ref
	o.status[modelID] = &api.ModelStatusInfo{Type: modelType, Status: api.ModelStatusLoaded, LoadedAt: &now}
	count := len(o.loaded)
	o.loadedMu.Unlock()

	modelLoadsTotal.WithLabelValues("success").Inc()
	residentModels.Set(float64(count))
	slog.Info("model loaded", "model", modelID, "memory", format.HumanMegaBytes(inst.MemoryMB), "resident", count)
	return &api.LoadModelResponse{Model: modelID, Status: api.ModelStatusLoaded, MemoryMB: inst.MemoryMB}, nil
}

// Unload entlaedt ein Model. Idempotent: ein nicht residentes Model
// ist kein Fehler und meldet 0 MB freigegeben.
func (o *Orchestrator) Unload(ctx context.Context, modelID string) (*api.UnloadModelResponse, error) {
	o.loadMu.Lock()
	defer o.loadMu.Unlock()

	ref := o.getRef(modelID)
	if ref == nil {
		return &api.UnloadModelResponse{Model: modelID, FreedMB: 0}, nil
	}

	freed := ref.memoryMB
	if err := o.unloadLocked(ctx, ref); err != nil {
		return nil, err
	}
	return &api.UnloadModelResponse{Model: modelID, FreedMB: freed}, nil
}

// EnsureLoaded laedt ein Model nur wenn es nicht bereits resident ist
func (o *Orchestrator) EnsureLoaded(ctx context.Context, modelID string, modelType api.ModelType) error {
	if o.IsLoaded(modelID) {
		o.touch(modelID)
		return nil
	}
	_, err := o.Load(ctx, modelID, modelType, false)
	return err
}

// unloadLocked entlaedt eine Referenz. loadMu muss gehalten werden!
func (o *Orchestrator) unloadLocked(ctx context.Context, ref *modelRef) error {
	o.setStatus(ref.modelID, ref.modelType, api.ModelStatusUnloading, "")

	adapter, err := o.adapterFn(ref.modelType)
	if err != nil {
		return err
	}

	freed, err := adapter.Unload(ctx, ref.inst)
	if err != nil {
		// Registry trotzdem bereinigen, der Runner-Prozess ist weg
		slog.Error("unload reported error, dropping instance anyway", "model", ref.modelID, "error", err)
	}

	o.loadedMu.Lock()
	delete(o.loaded, ref.modelID)
	o.status[ref.modelID] = &api.ModelStatusInfo{Type: ref.modelType, Status: api.ModelStatusNotLoaded}
	residentModels.Set(float64(len(o.loaded)))
	o.loadedMu.Unlock()

	slog.Info("model unloaded", "model", ref.modelID, "freed", format.HumanMegaBytes(freed))
	return nil
}
