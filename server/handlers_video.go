// Package server - Task-Handler fuer Videogenerierung
//
// Diese Datei enthaelt:
// - HandleVideo: Text/Bild-zu-Video mit Familien-Normalisierung
// - normalizeVideoParams: Parameter an die Architektur-Familie anpassen
//
// Video-Familien haben harte Anforderungen an Aufloesung und
// Frame-Anzahl, unpassende Werte wuerden im Runner erst nach Minuten
// scheitern. Deshalb wird hier vor dem Laden normalisiert.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/7blacky7/gpugate/adapters"
	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/envconfig"
)

// videoGenRequest ist der Request an die Video-Runtime,
// Parameter plus die familien-abhaengige Framerate
type videoGenRequest struct {
	api.VideoParams
	FPS int `json:"fps"`
}

// videoFrameDefaults ist die Standard-Frame-Anzahl pro Familie
var videoFrameDefaults = map[adapters.VideoFamily]int{
	adapters.VideoFamilyCogVideoX: 49,
	adapters.VideoFamilyHunyuan:   85,
	adapters.VideoFamilyWan:       81,
	adapters.VideoFamilyWanRapid:  81,
	adapters.VideoFamilyLTX:       97,
	adapters.VideoFamilyUnknown:   49,
}

// roundTo rundet v auf das naechste Vielfache von step, mindestens step
func roundTo(v, step int) int {
	if v < step {
		return step
	}
	return (v + step/2) / step * step
}

// normalizeVideoParams passt Parameter an die Familie an
func normalizeVideoParams(family adapters.VideoFamily, params *api.VideoParams) {
	if params.Width <= 0 {
		params.Width = 832
	}
	if params.Height <= 0 {
		params.Height = 480
	}
	// Hunyuan und LTX verlangen Vielfache von 32, der Rest 16
	step := 16
	if family == adapters.VideoFamilyHunyuan || family == adapters.VideoFamilyLTX {
		step = 32
	}
	params.Width = roundTo(params.Width, step)
	params.Height = roundTo(params.Height, step)

	if params.NumFrames <= 0 {
		params.NumFrames = videoFrameDefaults[family]
	}
	// CogVideoX akzeptiert nur Frame-Anzahlen der Form 8k+1
	if family == adapters.VideoFamilyCogVideoX {
		params.NumFrames = roundTo(params.NumFrames-1, 8) + 1
	}

	if params.NumInferenceSteps <= 0 {
		params.NumInferenceSteps = 30
	}
	if params.GuidanceScale <= 0 {
		params.GuidanceScale = 5.0
	}
	// Rapid-Destillate sind auf wenige Schritte ohne Guidance trainiert,
	// andere Werte produzieren Rauschen
	if family == adapters.VideoFamilyWanRapid {
		params.NumInferenceSteps = 4
		params.GuidanceScale = 1.0
	}
}

// HandleVideo fuehrt einen Video-Task aus
func (h *Handlers) HandleVideo(ctx context.Context, task *api.Task, report func(float64)) (json.RawMessage, error) {
	var params api.VideoParams
	if len(task.Params) > 0 {
		if err := json.Unmarshal(task.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid video params: %w", err)
		}
	}
	if params.Prompt == "" && params.ImageBase64 == "" {
		return nil, errors.New("prompt or image_base64 is required")
	}

	modelID := params.Model
	if modelID == "" {
		modelID = envconfig.VideoModel()
	}

	family := adapters.DetectVideoFamily(modelID)
	normalizeVideoParams(family, &params)
	slog.Debug("video params normalized", "model", modelID, "family", family,
		"width", params.Width, "height", params.Height, "frames", params.NumFrames)
	report(10)

	req := videoGenRequest{VideoParams: params, FPS: adapters.FPSForFamily(family)}
	result, err := h.generate(ctx, modelID, api.ModelTypeVideo, req, report)
	if err != nil {
		return nil, err
	}
	report(90)
	return result, nil
}
