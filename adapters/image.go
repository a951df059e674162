// image.go - Adapter fuer Text-zu-Bild und Bild-zu-Bild
//
// Diese Datei enthaelt:
// - ImageAdapter: Diffusions-Runtime fuer Text-zu-Bild
// - Image2ImageAdapter: gleiche Runtime, anderer Pipeline-Modus
// - estimateImageMemory: Schaetzung ueber bekannte Architektur-Namen
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// defaultImageEstimate wenn keine Architektur erkennbar ist
const defaultImageEstimate uint64 = 8_000

// estimateImageMemory schaetzt den Speicherbedarf eines Diffusionsmodells.
// Reihenfolge ist relevant: spezifische Marker vor generischen pruefen.
func estimateImageMemory(modelID string) uint64 {
	id := strings.ToLower(modelID)
	switch {
	case strings.Contains(id, "flux"):
		return 16_000
	case strings.Contains(id, "z-image"):
		return 14_000
	case strings.Contains(id, "xl"):
		return 7_000
	case strings.Contains(id, "2-1"), strings.Contains(id, "2.1"):
		return 5_000
	case strings.Contains(id, "1-5"), strings.Contains(id, "1.5"):
		return 4_000
	}

	slog.Warn("unknown image architecture, using default estimate", "model", modelID, "default_mb", defaultImageEstimate)
	return defaultImageEstimate
}

// ImageAdapter implementiert Adapter fuer Text-zu-Bild-Modelle
type ImageAdapter struct {
	// pipeline unterscheidet Text-zu-Bild von Bild-zu-Bild,
	// die Runtime waehlt danach den Pipeline-Modus
	pipeline string
}

// NewImageAdapter erstellt den Text-zu-Bild-Adapter
func NewImageAdapter() *ImageAdapter {
	return &ImageAdapter{pipeline: "text2image"}
}

// NewImage2ImageAdapter erstellt den Bild-zu-Bild-Adapter
func NewImage2ImageAdapter() *ImageAdapter {
	return &ImageAdapter{pipeline: "image2image"}
}

func (a *ImageAdapter) Estimate(modelID string) uint64 {
	return estimateImageMemory(modelID)
}

// Load startet die Diffusions-Runtime im passenden Pipeline-Modus
func (a *ImageAdapter) Load(ctx context.Context, modelID string) (*Instance, error) {
	runner, err := startRunner("image", modelID, []string{"--pipeline", a.pipeline}, 1)
	if err != nil {
		return nil, err
	}

	memoryMB, err := runner.WaitUntilRunning(ctx)
	if err != nil {
		killProcessTree(runner.Pid(), nil)
		return nil, err
	}
	if memoryMB == 0 {
		memoryMB = estimateImageMemory(modelID)
	}
	slog.Info("image runtime ready", "model", modelID, "pipeline", a.pipeline, "memory_mb", memoryMB)

	return &Instance{
		ModelID:  modelID,
		MemoryMB: memoryMB,
		Metadata: map[string]string{"pipeline": a.pipeline},
		runner:   runner,
	}, nil
}

// Unload faehrt die Diffusions-Runtime herunter
func (a *ImageAdapter) Unload(ctx context.Context, inst *Instance) (uint64, error) {
	if err := inst.runner.Shutdown(ctx); err != nil {
		slog.Warn("graceful runner shutdown failed, killing process", "model", inst.ModelID, "error", err)
		killProcessTree(inst.runner.Pid(), nil)
	}
	slog.Info("image runtime unloaded", "model", inst.ModelID, "freed_mb", inst.MemoryMB)
	return inst.MemoryMB, nil
}

// Generate fuehrt eine Bildgenerierung aus
func (a *ImageAdapter) Generate(ctx context.Context, inst *Instance, params any) (json.RawMessage, error) {
	if inst.Metadata["pipeline"] != a.pipeline {
		return nil, fmt.Errorf("instance %s was loaded for pipeline %s, not %s", inst.ModelID, inst.Metadata["pipeline"], a.pipeline)
	}
	return inst.runner.Generate(ctx, params)
}
