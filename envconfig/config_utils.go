// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - Var: Environment-Variable lesen (getrimmt, ohne Quotes)
// - BoolWithDefault: Boolean-Getter mit Default-Wert
// - String/StringWithDefault: String-Getter
// - Uint/Uint64/Float: Zahlen-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// =============================================================================
// Boolean-Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// =============================================================================
// String-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// StringWithDefault gibt eine Funktion zurueck, die einen String mit Default liest
func StringWithDefault(k, defaultValue string) func() string {
	return func() string {
		if s := Var(k); s != "" {
			return s
		}
		return defaultValue
	}
}

// =============================================================================
// Zahlen-Getter
// =============================================================================

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// Uint64 gibt eine Funktion zurueck, die einen uint64 mit Default-Wert liest
func Uint64(key string, defaultValue uint64) func() uint64 {
	return func() uint64 {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return n
			}
		}
		return defaultValue
	}
}

// Float gibt eine Funktion zurueck, die einen float64 mit Default-Wert liest
func Float(key string, defaultValue float64) func() float64 {
	return func() float64 {
		if s := Var(key); s != "" {
			if f, err := strconv.ParseFloat(s, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return f
			}
		}
		return defaultValue
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"GPUGATE_DEBUG":          {"GPUGATE_DEBUG", LogLevel(), "Show additional debug information (e.g. GPUGATE_DEBUG=1)"},
		"GPUGATE_HOST":           {"GPUGATE_HOST", Host(), "IP address for the gateway (default 127.0.0.1:8000)"},
		"GPUGATE_ORIGINS":        {"GPUGATE_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"GPUGATE_LOAD_TIMEOUT":   {"GPUGATE_LOAD_TIMEOUT", LoadTimeout(), "How long to allow model loads to stall before giving up (default \"5m\")"},
		"GPUGATE_GPU_TOTAL_MB":   {"GPUGATE_GPU_TOTAL_MB", GpuTotalMemory(), "Total accelerator memory in MB for the probe fallback"},
		"MODEL_IDS":              {"MODEL_IDS", ModelIDs(), "Comma separated LLM ids preloaded at startup"},
		"TENSOR_PARALLEL_SIZE":   {"TENSOR_PARALLEL_SIZE", TensorParallelSize(), "Number of tensor parallel shards for the LLM runtime"},
		"GPU_MEMORY_UTILIZATION": {"GPU_MEMORY_UTILIZATION", GpuMemoryUtilization(), "Fraction of VRAM the LLM runtime may claim (default 0.95)"},
		"MAX_MODEL_LEN":          {"MAX_MODEL_LEN", MaxModelLen(), "Context length limit for the LLM runtime (default 8192)"},
		"IMAGE_MODEL":            {"IMAGE_MODEL", ImageModel(), "Default image generation model"},
		"IMAGE2IMAGE_MODEL":      {"IMAGE2IMAGE_MODEL", Image2ImageModel(), "Default image to image model"},
		"VIDEO_MODEL":            {"VIDEO_MODEL", VideoModel(), "Default video generation model"},
		"ENABLE_IMAGE":           {"ENABLE_IMAGE", EnableImage(true), "Enable image generation routes"},
		"ENABLE_IMAGE2IMAGE":     {"ENABLE_IMAGE2IMAGE", EnableImage2Image(true), "Enable image to image routes"},
		"ENABLE_VIDEO":           {"ENABLE_VIDEO", EnableVideo(true), "Enable video generation routes"},
		"REDIS_URL":              {"REDIS_URL", RedisURL(), "Address of the task store (default redis://localhost:6379/0)"},
		"TASK_TTL_HOURS":         {"TASK_TTL_HOURS", TaskTTL(), "Task record lifetime (default 24h)"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
