// Package server - Task-Handler fuer Bildgenerierung
//
// Diese Datei enthaelt:
// - Handlers: Buendel der Task-Handler, bindet Orchestrator und Adapter
// - HandleImage: Text-zu-Bild
// - HandleImage2Image: Bild-zu-Bild
//
// Fortschritts-Meilensteine: 10 nach Parametervalidierung, 20 sobald
// das Model resident ist, 80 nach der Generierung, 90 nach der
// Nachbearbeitung. 100 setzt der Worker beim Persistieren.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/7blacky7/gpugate/adapters"
	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/envconfig"
)

// Handlers buendelt die Task-Handler ueber dem Orchestrator
type Handlers struct {
	orch *Orchestrator
}

// NewHandlers erstellt die Task-Handler
func NewHandlers(orch *Orchestrator) *Handlers {
	return &Handlers{orch: orch}
}

// Register traegt alle Handler beim Worker ein
func (h *Handlers) Register(w *Worker) {
	w.Handle(api.TaskTypeImage, h.HandleImage)
	w.Handle(api.TaskTypeImage2Image, h.HandleImage2Image)
	w.Handle(api.TaskTypeVideo, h.HandleVideo)
	w.Handle(api.TaskTypeLlmCompare, h.HandleLlmCompare)
}

// generate laedt das Model bei Bedarf und fuehrt die Generierung aus
func (h *Handlers) generate(ctx context.Context, modelID string, t api.ModelType, params any, report func(float64)) (json.RawMessage, error) {
	if err := h.orch.EnsureLoaded(ctx, modelID, t); err != nil {
		return nil, fmt.Errorf("ensuring %s resident: %w", modelID, err)
	}
	report(20)

	inst, err := h.orch.Acquire(modelID)
	if err != nil {
		return nil, err
	}
	adapter, err := adapters.ForType(t)
	if err != nil {
		return nil, err
	}

	result, err := adapter.Generate(ctx, inst, params)
	if err != nil {
		return nil, fmt.Errorf("generation with %s failed: %w", modelID, err)
	}
	report(80)
	return result, nil
}

// HandleImage fuehrt einen Text-zu-Bild-Task aus
func (h *Handlers) HandleImage(ctx context.Context, task *api.Task, report func(float64)) (json.RawMessage, error) {
	var params api.ImageParams
	if len(task.Params) > 0 {
		if err := json.Unmarshal(task.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid image params: %w", err)
		}
	}
	if params.Prompt == "" {
		return nil, errors.New("prompt is required")
	}
	if params.Width <= 0 {
		params.Width = 1024
	}
	if params.Height <= 0 {
		params.Height = 1024
	}
	if params.NumInferenceSteps <= 0 {
		params.NumInferenceSteps = 30
	}
	if params.GuidanceScale <= 0 {
		params.GuidanceScale = 7.5
	}
	report(10)

	modelID := params.Model
	if modelID == "" {
		modelID = envconfig.ImageModel()
	}

	result, err := h.generate(ctx, modelID, api.ModelTypeImage, params, report)
	if err != nil {
		return nil, err
	}
	report(90)
	return result, nil
}

// HandleImage2Image fuehrt einen Bild-zu-Bild-Task aus
func (h *Handlers) HandleImage2Image(ctx context.Context, task *api.Task, report func(float64)) (json.RawMessage, error) {
	var params api.Image2ImageParams
	if len(task.Params) > 0 {
		if err := json.Unmarshal(task.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid image2image params: %w", err)
		}
	}
	if params.Prompt == "" {
		return nil, errors.New("prompt is required")
	}
	if params.ImageBase64 == "" {
		return nil, errors.New("image_base64 is required")
	}
	if params.Strength <= 0 || params.Strength > 1 {
		params.Strength = 0.75
	}
	if params.NumInferenceSteps <= 0 {
		params.NumInferenceSteps = 30
	}
	if params.GuidanceScale <= 0 {
		params.GuidanceScale = 7.5
	}
	report(10)

	modelID := params.Model
	if modelID == "" {
		modelID = envconfig.Image2ImageModel()
	}

	result, err := h.generate(ctx, modelID, api.ModelTypeImage2Image, params, report)
	if err != nil {
		return nil, err
	}
	report(90)
	return result, nil
}
