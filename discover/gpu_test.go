// gpu_test.go - Unit Tests fuer die Memory-Probe
package discover

import (
	"testing"

	"github.com/7blacky7/gpugate/api"
)

// TestParseSMIOutput testet das Parsen der nvidia-smi Ausgabe
func TestParseSMIOutput(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    api.GPUStatus
		wantErr bool
	}{
		{
			name: "Einzelne GPU",
			out:  "81920, 12345, 69575\n",
			want: api.GPUStatus{TotalMB: 81920, UsedMB: 12345, FreeMB: 69575},
		},
		{
			name: "Mehrere GPUs nutzen nur die erste Zeile",
			out:  "24576, 1000, 23576\n24576, 2000, 22576\n",
			want: api.GPUStatus{TotalMB: 24576, UsedMB: 1000, FreeMB: 23576},
		},
		{
			name:    "Zu wenige Felder",
			out:     "81920, 12345",
			wantErr: true,
		},
		{
			name:    "Keine Zahl",
			out:     "a, b, c",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSMIOutput(tt.out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSMIOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseSMIOutput() = %+v, erwartet %+v", got, tt.want)
			}
		})
	}
}

// TestRuntimeStatus testet den Fallback ueber die registrierte Runtime-Statistik
func TestRuntimeStatus(t *testing.T) {
	t.Setenv("GPUGATE_GPU_TOTAL_MB", "")
	SetRuntimeStatsFn(func() (uint64, uint64) { return 10000, 4000 })
	defer SetRuntimeStatsFn(nil)

	got := runtimeStatus()
	want := api.GPUStatus{TotalMB: 10000, UsedMB: 4000, FreeMB: 6000}
	if got != want {
		t.Errorf("runtimeStatus() = %+v, erwartet %+v", got, want)
	}

	// Konfigurierter Gesamtspeicher hat Vorrang vor der Runtime-Angabe
	t.Setenv("GPUGATE_GPU_TOTAL_MB", "20000")
	got = runtimeStatus()
	want = api.GPUStatus{TotalMB: 20000, UsedMB: 4000, FreeMB: 16000}
	if got != want {
		t.Errorf("runtimeStatus() = %+v, erwartet %+v", got, want)
	}

	// Used wird auf Total gekappt
	SetRuntimeStatsFn(func() (uint64, uint64) { return 10000, 30000 })
	got = runtimeStatus()
	if got.FreeMB != 0 || got.UsedMB != 20000 {
		t.Errorf("runtimeStatus() = %+v, used sollte gekappt sein", got)
	}
}
