// Package adapters - ModelAdapter-Vertrag und Registry
//
// Diese Datei enthaelt:
// - Instance: Opaques Handle auf eine residente Model-Instanz
// - Adapter: Interface pro Model-Familie (Estimate/Load/Unload/Generate)
// - Registry: Adapter-Lookup nach ModelType, beim Start befuellt
//
// Die eigentlichen Inferenz-Runtimes sind externe Runner-Subprozesse,
// der Kern sieht sie ausschliesslich durch dieses Interface.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/7blacky7/gpugate/api"
)

// ErrUnknownModelType wird fuer nicht registrierte Model-Typen zurueckgegeben
var ErrUnknownModelType = errors.New("unknown model type")

// Instance ist ein residentes Model aus Adapter-Sicht.
// Nur der Adapter der das Handle erzeugt hat darf es konsumieren.
type Instance struct {
	ModelID  string
	MemoryMB uint64
	Metadata map[string]string

	runner *Runner

	// Worker-Subprozesse der Runtime, beim Laden eingesammelt
	workerPids []int
}

// Pid gibt die Prozess-ID des Runner-Subprozesses zurueck
func (inst *Instance) Pid() int {
	if inst.runner == nil {
		return -1
	}
	return inst.runner.Pid()
}

// Adapter ist der Vertrag den der Kern von jeder Model-Familie verlangt
type Adapter interface {
	// Estimate schaetzt den Speicherbedarf in MB aus der Model-ID.
	// Rein, blockiert nicht, dient nur der Admission-Entscheidung.
	Estimate(modelID string) uint64

	// Load startet die Runtime und gibt das Handle mit gemessenem
	// Speicherbedarf zurueck. Blockiert bis das Model bereit ist.
	Load(ctx context.Context, modelID string) (*Instance, error)

	// Unload faehrt die Runtime herunter und gibt den freigegebenen
	// Speicher in MB zurueck.
	Unload(ctx context.Context, inst *Instance) (uint64, error)

	// Generate fuehrt eine synchrone Generierung aus
	Generate(ctx context.Context, inst *Instance, params any) (json.RawMessage, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[api.ModelType]Adapter)
)

// Register traegt einen Adapter fuer einen Model-Typ ein.
// Wird beim Start aufgerufen, spaetere Registrierung ueberschreibt.
func Register(t api.ModelType, a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = a
}

// ForType gibt den Adapter fuer einen Model-Typ zurueck
func ForType(t api.ModelType) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if a, ok := registry[t]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownModelType, t)
}

// RegisterDefaults befuellt die Registry mit den vier Standard-Familien
func RegisterDefaults() {
	Register(api.ModelTypeLLM, NewLLMAdapter())
	Register(api.ModelTypeImage, NewImageAdapter())
	Register(api.ModelTypeImage2Image, NewImage2ImageAdapter())
	Register(api.ModelTypeVideo, NewVideoAdapter())
}
