// video.go - Adapter fuer Text-zu-Video
//
// Diese Datei enthaelt:
// - VideoAdapter: Video-Runtime mit Familien-Erkennung
// - DetectVideoFamily: Architektur-Familie aus der Model-ID ableiten
// - Familien-Tabellen fuer Speicherschaetzung und Framerate
//
// Video-Modelle unterscheiden sich stark in Parametern und Defaults,
// die Familie steuert deshalb Schaetzung, Framerate und Parameter-
// Normalisierung in den Task-Handlern.
package adapters

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

// VideoFamily ist die erkannte Architektur-Familie eines Video-Modells
type VideoFamily string

const (
	VideoFamilyCogVideoX VideoFamily = "cogvideox"
	VideoFamilyHunyuan   VideoFamily = "hunyuan"
	VideoFamilyWan       VideoFamily = "wan"
	VideoFamilyWanRapid  VideoFamily = "wan_rapid"
	VideoFamilyLTX       VideoFamily = "ltx"
	VideoFamilyUnknown   VideoFamily = "unknown"
)

// videoMemoryEstimates sind MB-Schaetzungen pro Familie
var videoMemoryEstimates = map[VideoFamily]uint64{
	VideoFamilyCogVideoX: 24_000,
	VideoFamilyHunyuan:   60_000,
	VideoFamilyWan:       48_000,
	VideoFamilyWanRapid:  8_000,
	VideoFamilyLTX:       16_000,
	VideoFamilyUnknown:   24_000,
}

// videoFPS ist die Standard-Framerate pro Familie
var videoFPS = map[VideoFamily]int{
	VideoFamilyCogVideoX: 8,
	VideoFamilyHunyuan:   30,
	VideoFamilyWan:       24,
	VideoFamilyWanRapid:  24,
	VideoFamilyLTX:       30,
	VideoFamilyUnknown:   24,
}

// DetectVideoFamily leitet die Familie aus der Model-ID ab.
// Rapid-Destillate muessen vor dem generischen wan-Marker geprueft
// werden, ihre IDs enthalten beide Marker.
func DetectVideoFamily(modelID string) VideoFamily {
	id := strings.ToLower(modelID)
	switch {
	case strings.Contains(id, "cogvideo"), strings.Contains(id, "thudm"):
		return VideoFamilyCogVideoX
	case strings.Contains(id, "hunyuan"), strings.Contains(id, "tencent"):
		return VideoFamilyHunyuan
	case strings.Contains(id, "rapid"), strings.Contains(id, "phr00t"):
		return VideoFamilyWanRapid
	case strings.Contains(id, "wan"):
		return VideoFamilyWan
	case strings.Contains(id, "ltx"), strings.Contains(id, "lightricks"):
		return VideoFamilyLTX
	}
	return VideoFamilyUnknown
}

// FPSForFamily gibt die Standard-Framerate einer Familie zurueck
func FPSForFamily(family VideoFamily) int {
	if fps, ok := videoFPS[family]; ok {
		return fps
	}
	return videoFPS[VideoFamilyUnknown]
}

// VideoAdapter implementiert Adapter fuer Text-zu-Video-Modelle
type VideoAdapter struct{}

// NewVideoAdapter erstellt den Video-Adapter
func NewVideoAdapter() *VideoAdapter {
	return &VideoAdapter{}
}

func (a *VideoAdapter) Estimate(modelID string) uint64 {
	family := DetectVideoFamily(modelID)
	if family == VideoFamilyUnknown {
		slog.Warn("unknown video family, using default estimate", "model", modelID, "default_mb", videoMemoryEstimates[VideoFamilyUnknown])
	}
	return videoMemoryEstimates[family]
}

// Load startet die Video-Runtime und merkt sich die Familie im Handle
func (a *VideoAdapter) Load(ctx context.Context, modelID string) (*Instance, error) {
	family := DetectVideoFamily(modelID)

	runner, err := startRunner("video", modelID, []string{"--video-family", string(family)}, 1)
	if err != nil {
		return nil, err
	}

	memoryMB, err := runner.WaitUntilRunning(ctx)
	if err != nil {
		killProcessTree(runner.Pid(), nil)
		return nil, err
	}
	if memoryMB == 0 {
		memoryMB = videoMemoryEstimates[family]
	}
	slog.Info("video runtime ready", "model", modelID, "family", family, "memory_mb", memoryMB)

	return &Instance{
		ModelID:  modelID,
		MemoryMB: memoryMB,
		Metadata: map[string]string{"video_family": string(family)},
		runner:   runner,
	}, nil
}

// Unload faehrt die Video-Runtime herunter
func (a *VideoAdapter) Unload(ctx context.Context, inst *Instance) (uint64, error) {
	if err := inst.runner.Shutdown(ctx); err != nil {
		slog.Warn("graceful runner shutdown failed, killing process", "model", inst.ModelID, "error", err)
		killProcessTree(inst.runner.Pid(), nil)
	}
	slog.Info("video runtime unloaded", "model", inst.ModelID, "freed_mb", inst.MemoryMB)
	return inst.MemoryMB, nil
}

// Generate fuehrt eine Videogenerierung aus
func (a *VideoAdapter) Generate(ctx context.Context, inst *Instance, params any) (json.RawMessage, error) {
	return inst.runner.Generate(ctx, params)
}
