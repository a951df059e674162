// Package server - Orchestrator Lese-Zugriffe
//
// Diese Datei enthaelt:
// - Acquire/AcquireByType: Instanz-Zugriff fuer Generierung
// - IsLoaded/ListModels/Status: Registry-Abfragen
//
// Alles hier nimmt nur loadedMu, blockiert also nie hinter einem
// laufenden Load.
package server

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/7blacky7/gpugate/adapters"
	"github.com/7blacky7/gpugate/api"
)

// getRef liefert die Referenz eines residenten Models oder nil
func (o *Orchestrator) getRef(modelID string) *modelRef {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()
	return o.loaded[modelID]
}

// touch aktualisiert den LRU-Zeitstempel eines Models
func (o *Orchestrator) touch(modelID string) {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()
	if ref, ok := o.loaded[modelID]; ok {
		ref.lastUsed = time.Now()
	}
}

// setStatus setzt den Operator-sichtbaren Status eines Models
func (o *Orchestrator) setStatus(modelID string, t api.ModelType, status api.ModelStatus, errMsg string) {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()
	o.status[modelID] = &api.ModelStatusInfo{Type: t, Status: status, Error: errMsg}
}

// IsLoaded meldet ob ein Model resident ist
func (o *Orchestrator) IsLoaded(modelID string) bool {
	return o.getRef(modelID) != nil
}

// Acquire liefert die Instanz eines residenten Models fuer eine
// Generierung und aktualisiert den LRU-Zeitstempel
func (o *Orchestrator) Acquire(modelID string) (*adapters.Instance, error) {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()
	ref, ok := o.loaded[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotLoaded, modelID)
	}
	ref.lastUsed = time.Now()
	return ref.inst, nil
}

// AcquireByType liefert das resident geladene Model eines Typs.
// Fehler wenn keines oder mehrere geladen sind.
func (o *Orchestrator) AcquireByType(t api.ModelType) (string, *adapters.Instance, error) {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()

	var found *modelRef
	for _, ref := range o.loaded {
		if ref.modelType != t {
			continue
		}
		if found != nil {
			return "", nil, fmt.Errorf("multiple %s models loaded, specify one explicitly", t)
		}
		found = ref
	}
	if found == nil {
		return "", nil, fmt.Errorf("%w: no %s model resident", ErrModelNotLoaded, t)
	}
	found.lastUsed = time.Now()
	return found.modelID, found.inst, nil
}

// ResolveModel loest einen Nutzer-Namen auf eine residente Model-ID auf.
// Reihenfolge: exakte ID, exakter Kurzname, eindeutiger Teilstring.
func (o *Orchestrator) ResolveModel(name string) (string, error) {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()

	if _, ok := o.loaded[name]; ok {
		return name, nil
	}
	for id := range o.loaded {
		if api.ShortName(id) == name {
			return id, nil
		}
	}

	var matches []string
	lower := strings.ToLower(name)
	for id := range o.loaded {
		if strings.Contains(strings.ToLower(id), lower) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("%w: %s", ErrModelNotLoaded, name)
	default:
		return "", fmt.Errorf("model name %q is ambiguous: matches %s", name, strings.Join(matches, ", "))
	}
}

// ListModels liefert alle bekannten Models inklusive der bereits
// wieder entladenen, sortiert nach Model-ID
func (o *Orchestrator) ListModels() []api.ModelInfo {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()

	models := make([]api.ModelInfo, 0, len(o.status))
	for id, info := range o.status {
		entry := api.ModelInfo{
			ModelID:   id,
			ModelType: info.Type,
			Status:    info.Status,
			Name:      api.ShortName(id),
			LoadedAt:  info.LoadedAt,
			Error:     info.Error,
		}
		if ref, ok := o.loaded[id]; ok {
			entry.MemoryMB = ref.memoryMB
		}
		models = append(models, entry)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ModelID < models[j].ModelID })
	return models
}

// Status liefert den Status eines einzelnen Models.
// Nie gesehene Models melden not_loaded statt eines Fehlers.
func (o *Orchestrator) Status(modelID string) api.ModelStatusInfo {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()
	if info, ok := o.status[modelID]; ok {
		return *info
	}
	return api.ModelStatusInfo{Status: api.ModelStatusNotLoaded}
}

// LoadedIDs liefert die IDs aller residenten Models sortiert
func (o *Orchestrator) LoadedIDs() []string {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()
	ids := make([]string, 0, len(o.loaded))
	for id := range o.loaded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadedType liefert den Typ eines residenten Models
func (o *Orchestrator) LoadedType(modelID string) (api.ModelType, bool) {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()
	if ref, ok := o.loaded[modelID]; ok {
		return ref.modelType, true
	}
	return "", false
}
