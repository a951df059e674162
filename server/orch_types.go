// Package server - Orchestrator Typen und Strukturen
//
// Diese Datei enthaelt:
// - Orchestrator: Residency-Registry und Lade-Serialisierung
// - modelRef: Referenz auf ein geladenes Model
// - Sortier-Typen fuer die Opfer-Auswahl bei Verdraengung
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/7blacky7/gpugate/adapters"
	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/discover"
)

// ErrModelNotLoaded wird fuer Zugriffe auf nicht residente Models zurueckgegeben
var ErrModelNotLoaded = errors.New("model not loaded")

// Orchestrator verwaltet das Laden und Entladen von Models.
//
// loadMu serialisiert alle Lade- und Entladevorgaenge inklusive
// Verdraengung, es laeuft also nie mehr als eine Residency-Aenderung
// gleichzeitig. loadedMu schuetzt nur die Maps, damit Lese-Zugriffe
// (Status, Liste, Generierung) nicht hinter minutenlangen Loads warten.
type Orchestrator struct {
	loadMu sync.Mutex

	// loadedMu schuetzt loaded und status
	loadedMu sync.Mutex
	loaded   map[string]*modelRef
	status   map[string]*api.ModelStatusInfo

	adapterFn func(t api.ModelType) (adapters.Adapter, error)
	getGpuFn  func(ctx context.Context) api.GPUStatus
}

// NewOrchestrator erstellt einen Orchestrator
func NewOrchestrator() *Orchestrator {
	o := &Orchestrator{
		loaded:    make(map[string]*modelRef),
		status:    make(map[string]*api.ModelStatusInfo),
		adapterFn: adapters.ForType,
		getGpuFn:  discover.GPUStatus,
	}
	// Residency-Buchhaltung als Fallback-Quelle der Probe registrieren,
	// auf Systemen ohne Treiber-Query zaehlt nur was hier gebucht ist
	discover.SetRuntimeStatsFn(o.runtimeStats)
	return o
}

// runtimeStats liefert (total, used) aus Sicht der Registry.
// Total kennt nur die Konfiguration, deshalb 0.
func (o *Orchestrator) runtimeStats() (uint64, uint64) {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()
	var used uint64
	for _, ref := range o.loaded {
		used += ref.memoryMB
	}
	return 0, used
}

// modelRef haelt eine Referenz auf ein geladenes Model
type modelRef struct {
	modelID   string
	modelType api.ModelType
	inst      *adapters.Instance
	memoryMB  uint64
	loadedAt  time.Time
	lastUsed  time.Time
}

// byLastUsed sortiert Referenzen fuer die LRU-Opfer-Auswahl,
// am laengsten unbenutzt zuerst. Sekundaer nach Model-ID damit
// die Reihenfolge deterministisch bleibt.
type byLastUsed []*modelRef

func (a byLastUsed) Len() int      { return len(a) }
func (a byLastUsed) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a byLastUsed) Less(i, j int) bool {
	if !a[i].lastUsed.Equal(a[j].lastUsed) {
		return a[i].lastUsed.Before(a[j].lastUsed)
	}
	return a[i].modelID < a[j].modelID
}
