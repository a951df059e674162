// Package discover - Memory-Probe fuer den Accelerator
//
// Diese Datei enthaelt:
// - GPUStatus: Speicherzustand abfragen (Treiber bevorzugt, Runtime-Fallback)
// - SetRuntimeStatsFn: Fallback-Quelle registrieren
// - parseSMIOutput: nvidia-smi Ausgabe parsen
//
// Die Treiber-Abfrage sieht auch Allokationen von Runner-Subprozessen,
// der Runtime-Fallback nur die im Prozess bekannten Residenten.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/envconfig"
)

var (
	smiOnce sync.Once
	smiPath string
)

// smiArgs fragt Gesamtspeicher, belegten und freien Speicher in MB ab
var smiArgs = []string{
	"--query-gpu=memory.total,memory.used,memory.free",
	"--format=csv,noheader,nounits",
}

// runtimeStatsMu schuetzt runtimeStatsFn
var runtimeStatsMu sync.Mutex

// runtimeStatsFn liefert (total_mb, used_mb) aus Sicht der Runtime.
// Wird vom Orchestrator mit seiner Residency-Buchhaltung registriert.
var runtimeStatsFn func() (totalMB, usedMB uint64)

// SetRuntimeStatsFn registriert die Fallback-Quelle fuer Speicherdaten
func SetRuntimeStatsFn(fn func() (totalMB, usedMB uint64)) {
	runtimeStatsMu.Lock()
	defer runtimeStatsMu.Unlock()
	runtimeStatsFn = fn
}

// lookupSMI sucht nvidia-smi einmalig im PATH
func lookupSMI() string {
	smiOnce.Do(func() {
		p, err := exec.LookPath("nvidia-smi")
		if err != nil {
			slog.Debug("nvidia-smi not found, falling back to runtime stats")
			return
		}
		smiPath = p
	})
	return smiPath
}

// GPUStatus tastet den Speicherzustand des Accelerators ab.
// Strategie 1: Treiber-Abfrage via nvidia-smi.
// Strategie 2: registrierte Runtime-Statistik.
func GPUStatus(ctx context.Context) api.GPUStatus {
	if p := lookupSMI(); p != "" {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		out, err := exec.CommandContext(ctx, p, smiArgs...).Output()
		if err == nil {
			if status, err := parseSMIOutput(string(out)); err == nil {
				return status
			} else {
				slog.Warn("failed to parse nvidia-smi output", "error", err)
			}
		} else {
			slog.Warn("nvidia-smi query failed", "error", err)
		}
	}

	return runtimeStatus()
}

// runtimeStatus bildet den Status aus der registrierten Runtime-Statistik
func runtimeStatus() api.GPUStatus {
	runtimeStatsMu.Lock()
	fn := runtimeStatsFn
	runtimeStatsMu.Unlock()

	total := envconfig.GpuTotalMemory()
	var used uint64
	if fn != nil {
		t, u := fn()
		if total == 0 {
			total = t
		}
		used = u
	}
	if used > total {
		used = total
	}
	return api.GPUStatus{TotalMB: total, UsedMB: used, FreeMB: total - used}
}

// parseSMIOutput parst die erste Zeile der nvidia-smi CSV-Ausgabe.
// Mehrere GPUs werden nicht aggregiert, es zaehlt nur Device 0.
func parseSMIOutput(out string) (api.GPUStatus, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return api.GPUStatus{}, fmt.Errorf("unexpected nvidia-smi output %q", line)
	}

	vals := make([]uint64, 3)
	for i, f := range fields {
		n, err := strconv.ParseUint(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return api.GPUStatus{}, fmt.Errorf("unexpected nvidia-smi field %q: %w", f, err)
		}
		vals[i] = n
	}

	return api.GPUStatus{TotalMB: vals[0], UsedMB: vals[1], FreeMB: vals[2]}, nil
}
