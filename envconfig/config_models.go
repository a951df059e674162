// config_models.go - Model-Defaults, Feature-Flags und Runtime-Hints
//
// Dieses Modul enthaelt:
// - ModelIDs: Standard-LLMs die beim Start vorgeladen werden
// - ImageModel/Image2ImageModel/VideoModel: Defaults pro Model-Typ
// - EnableImage/EnableImage2Image/EnableVideo: Feature-Flags
// - TensorParallelSize/GpuMemoryUtilization/MaxModelLen: LLM-Runtime-Hints
// - GpuTotalMemory: Gesamtspeicher fuer die Probe-Fallback-Strategie
package envconfig

import "strings"

// ModelIDs gibt die beim Start vorzuladenden LLM-Model-IDs zurueck
// Konfigurierbar via MODEL_IDS (kommasepariert)
func ModelIDs() []string {
	s := Var("MODEL_IDS")
	if s == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// =============================================================================
// Model-Defaults pro Typ
// =============================================================================

var (
	// ImageModel ist das Default-Model fuer Bildgenerierung
	ImageModel = StringWithDefault("IMAGE_MODEL", "Tongyi-MAI/Z-Image-Turbo")

	// Image2ImageModel ist das Default-Model fuer Bild-zu-Bild
	Image2ImageModel = StringWithDefault("IMAGE2IMAGE_MODEL", "stabilityai/stable-diffusion-xl-refiner-1.0")

	// VideoModel ist das Default-Model fuer Videogenerierung
	VideoModel = StringWithDefault("VIDEO_MODEL", "FX-FeiHou/wan2.2-Remix")
)

// =============================================================================
// Feature-Flags
// =============================================================================

var (
	// EnableImage aktiviert die Bildgenerierungs-Routen
	EnableImage = BoolWithDefault("ENABLE_IMAGE")

	// EnableImage2Image aktiviert die Bild-zu-Bild-Routen
	EnableImage2Image = BoolWithDefault("ENABLE_IMAGE2IMAGE")

	// EnableVideo aktiviert die Videogenerierungs-Routen
	EnableVideo = BoolWithDefault("ENABLE_VIDEO")
)

// =============================================================================
// LLM-Runtime-Hints
// =============================================================================

var (
	// TensorParallelSize ist die Anzahl paralleler Tensor-Shards
	TensorParallelSize = Uint("TENSOR_PARALLEL_SIZE", 1)

	// MaxModelLen begrenzt die Kontextlaenge der LLM-Runtime
	MaxModelLen = Uint("MAX_MODEL_LEN", 8192)
)

// GpuMemoryUtilization ist der VRAM-Anteil den die LLM-Runtime belegen darf
// Konfigurierbar via GPU_MEMORY_UTILIZATION
// Default: 0.95
func GpuMemoryUtilization() float64 {
	return Float("GPU_MEMORY_UTILIZATION", 0.95)()
}

// GpuTotalMemory gibt den Gesamtspeicher des Accelerators in MB zurueck.
// Wird nur von der Fallback-Strategie der Memory-Probe benutzt wenn
// kein Treiber-Query moeglich ist.
// Konfigurierbar via GPUGATE_GPU_TOTAL_MB
var GpuTotalMemory = Uint64("GPUGATE_GPU_TOTAL_MB", 0)
