// runner_proc.go - Prozess-Aufraeumarbeiten beim Unload
//
// Diese Datei enthaelt:
// - childPids: Worker-Subprozesse eines Runners einsammeln
// - killProcessTree: Prozessgruppe samt Nachzueglern beenden
//
// Einige Runtimes starten Worker-Subprozesse (z.B. Tensor-Parallel-Shards)
// deren Speicher der In-Prozess-Allokator nicht sieht. Beim Unload muessen
// diese Pids explizit beendet werden, sonst bleibt VRAM belegt.
package adapters

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// childPids liest die Kindprozesse einer Pid aus /proc.
// Rekursiv, damit auch Enkel (Worker der Worker) gefunden werden.
func childPids(pid int) []int {
	var pids []int
	taskDirs, err := filepath.Glob(fmt.Sprintf("/proc/%d/task/*/children", pid))
	if err != nil {
		return nil
	}
	for _, f := range taskDirs {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		for _, field := range strings.Fields(string(data)) {
			child, err := strconv.Atoi(field)
			if err != nil {
				continue
			}
			pids = append(pids, child)
			pids = append(pids, childPids(child)...)
		}
	}
	return pids
}

// killProcessTree beendet die Prozessgruppe des Runners und alle
// vorher eingesammelten Worker-Pids. SIGKILL, kein zweiter Versuch.
func killProcessTree(pid int, workers []int) {
	if pid <= 0 {
		return
	}

	// Prozessgruppe zuerst (Setpgid beim Start gesetzt)
	if pgid, err := unix.Getpgid(pid); err == nil {
		if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && err != unix.ESRCH {
			slog.Warn("failed to kill runner process group", "pgid", pgid, "error", err)
		}
	} else if err := unix.Kill(pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		slog.Warn("failed to kill runner process", "pid", pid, "error", err)
	}

	// Worker die sich aus der Gruppe geloest haben
	for _, worker := range workers {
		if err := unix.Kill(worker, unix.SIGKILL); err != nil && err != unix.ESRCH {
			slog.Warn("failed to kill lingering runtime worker", "pid", worker, "error", err)
		}
	}
}
