// config_test.go - Unit Tests fuer die Gateway-Konfiguration
package envconfig

import (
	"testing"
	"time"
)

// TestHost testet die Host-Ermittlung aus GPUGATE_HOST
func TestHost(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"Default ohne Variable", "", "127.0.0.1:8000"},
		{"Nur Port", "0.0.0.0:9000", "0.0.0.0:9000"},
		{"Nur Host", "0.0.0.0", "0.0.0.0:8000"},
		{"Mit Scheme", "http://10.0.0.1:8080", "10.0.0.1:8080"},
		{"Quotes werden entfernt", "\"1.2.3.4:5000\"", "1.2.3.4:5000"},
		{"Ungueltiger Port faellt auf Default zurueck", "example.com:70000", "example.com:8000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GPUGATE_HOST", tt.value)
			if got := Host().Host; got != tt.want {
				t.Errorf("Host() = %q, erwartet %q", got, tt.want)
			}
		})
	}
}

// TestTaskTTL testet die TTL-Konfiguration
func TestTaskTTL(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"Default 24 Stunden", "", 24 * time.Hour},
		{"Eine Stunde", "1", time.Hour},
		{"Ungueltig faellt auf Default zurueck", "abc", 24 * time.Hour},
		{"Null faellt auf Default zurueck", "0", 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TASK_TTL_HOURS", tt.value)
			if got := TaskTTL(); got != tt.want {
				t.Errorf("TaskTTL() = %v, erwartet %v", got, tt.want)
			}
		})
	}
}

// TestModelIDs testet das Parsen der Preload-Liste
func TestModelIDs(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"Leer ergibt nil", "", 0},
		{"Einzelnes Model", "meta-llama/Llama-3.2-3B", 1},
		{"Mehrere Models mit Leerzeichen", "a/b, c/d ,e/f", 3},
		{"Leere Eintraege werden verworfen", "a/b,,c/d,", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MODEL_IDS", tt.value)
			if got := ModelIDs(); len(got) != tt.want {
				t.Errorf("ModelIDs() = %v, erwartet %d Eintraege", got, tt.want)
			}
		})
	}
}

// TestFeatureFlags testet die Bool-Getter mit Default
func TestFeatureFlags(t *testing.T) {
	t.Setenv("ENABLE_VIDEO", "")
	if !EnableVideo(true) {
		t.Error("EnableVideo sollte per Default aktiviert sein")
	}
	t.Setenv("ENABLE_VIDEO", "false")
	if EnableVideo(true) {
		t.Error("ENABLE_VIDEO=false sollte das Flag deaktivieren")
	}
	t.Setenv("ENABLE_VIDEO", "garbage")
	if !EnableVideo(false) {
		t.Error("nicht parsebare Werte gelten als aktiviert")
	}
}

// TestGpuMemoryUtilization testet den Float-Getter
func TestGpuMemoryUtilization(t *testing.T) {
	t.Setenv("GPU_MEMORY_UTILIZATION", "")
	if got := GpuMemoryUtilization(); got != 0.95 {
		t.Errorf("Default = %v, erwartet 0.95", got)
	}
	t.Setenv("GPU_MEMORY_UTILIZATION", "0.8")
	if got := GpuMemoryUtilization(); got != 0.8 {
		t.Errorf("GpuMemoryUtilization() = %v, erwartet 0.8", got)
	}
}
