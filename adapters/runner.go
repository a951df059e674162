// runner.go - Runner-Subprozess-Verwaltung
//
// Diese Datei enthaelt:
// - Runner: Handle auf einen Runtime-Subprozess mit HTTP-Schnittstelle
// - startRunner: Prozess starten und Port zuweisen
// - WaitUntilRunning: Auf Bereitschaft warten
// - Ping/getStatus: Health-Checks
// - Generate/Stream: Generierungs-Requests
// - Shutdown: Graceful beenden
//
// Die Runner-Binary kapselt die eigentliche Inferenz-Runtime (vLLM,
// Diffusers). Kommunikation laeuft ueber Loopback-HTTP.
package adapters

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/7blacky7/gpugate/envconfig"
	"github.com/7blacky7/gpugate/logutil"
)

// runnerBin gibt die Runner-Binary zurueck
// Konfigurierbar via GPUGATE_RUNNER
func runnerBin() string {
	if s := envconfig.Var("GPUGATE_RUNNER"); s != "" {
		return s
	}
	return "gpugate-runner"
}

// Runner ist ein laufender Runtime-Subprozess
type Runner struct {
	port    int
	cmd     *exec.Cmd
	done    chan error // Channel signalisiert wenn Prozess beendet
	modelID string

	lastErr string // Letzte Fehlerzeile aus stderr

	sem *semaphore.Weighted
}

// runnerStatus ist die Antwort des Health-Endpoints
type runnerStatus struct {
	Status   string  `json:"status"` // loading | ready | error
	Progress float64 `json:"progress"`
	MemoryMB uint64  `json:"memory_mb"`
	Error    string  `json:"error,omitempty"`
}

// freePort reserviert einen freien Loopback-Port
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// startRunner startet die Runner-Binary fuer ein Model.
// numSlots begrenzt parallele Generate-Aufrufe pro Instanz.
func startRunner(family, modelID string, extraArgs []string, numSlots int64) (*Runner, error) {
	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("no free port for runner: %w", err)
	}

	args := []string{
		"--family", family,
		"--model", modelID,
		"--port", fmt.Sprintf("%d", port),
	}
	args = append(args, extraArgs...)

	cmd := exec.Command(runnerBin(), args...)
	cmd.Env = os.Environ()
	// Eigene Prozessgruppe damit Worker-Subprozesse der Runtime
	// beim Unload mit abgeraeumt werden koennen
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	r := &Runner{
		port:    port,
		cmd:     cmd,
		done:    make(chan error, 1),
		modelID: modelID,
		sem:     semaphore.NewWeighted(numSlots),
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting runner for %s: %w", modelID, err)
	}
	slog.Info("runner started", "model", modelID, "pid", cmd.Process.Pid, "port", port)

	go r.forwardOutput(stdout, false)
	go r.forwardOutput(stderr, true)

	go func() {
		r.done <- cmd.Wait()
	}()

	return r, nil
}

// forwardOutput leitet Runner-Ausgaben ins Log weiter
func (r *Runner) forwardOutput(pipe io.Reader, isErr bool) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		if isErr {
			r.lastErr = line
		}
		logutil.Trace("runner output", "model", r.modelID, "line", line)
	}
}

// getStatus fragt den Health-Endpoint des Runners ab
func (r *Runner) getStatus(ctx context.Context) (runnerStatus, error) {
	// Schneller Fehler wenn Prozess beendet
	if r.HasExited() {
		return runnerStatus{Status: "error"}, fmt.Errorf("runner process no longer running: %d %s", r.cmd.ProcessState.ExitCode(), r.lastErr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/health", r.port), nil)
	if err != nil {
		return runnerStatus{}, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "connection refused") {
			return runnerStatus{Status: "loading"}, nil
		}
		return runnerStatus{}, fmt.Errorf("runner health: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return runnerStatus{}, fmt.Errorf("read runner health: %w", err)
	}

	var status runnerStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return runnerStatus{}, fmt.Errorf("unmarshal runner health: %w", err)
	}
	return status, nil
}

// Ping prueft ob der Runner erreichbar ist
func (r *Runner) Ping(ctx context.Context) error {
	status, err := r.getStatus(ctx)
	if err != nil {
		slog.Debug("runner unhealthy", "model", r.modelID, "error", err)
		return err
	}
	if status.Status == "error" {
		return fmt.Errorf("runner error: %s", status.Error)
	}
	return nil
}

// WaitUntilRunning wartet bis das Model vollstaendig geladen ist.
// Gibt den vom Runner gemessenen Speicherbedarf in MB zurueck.
func (r *Runner) WaitUntilRunning(ctx context.Context) (uint64, error) {
	stallDuration := envconfig.LoadTimeout()
	stallTimer := time.Now().Add(stallDuration)

	slog.Info("waiting for runner to start responding", "model", r.modelID)
	priorProgress := -1.0

	for {
		select {
		case <-ctx.Done():
			slog.Warn("context done before runner finished loading, aborting load", "model", r.modelID)
			return 0, fmt.Errorf("waiting for runner to start: %w", ctx.Err())
		case err := <-r.done:
			return 0, fmt.Errorf("runner process has terminated: %v %s", err, r.lastErr)
		default:
		}

		if time.Now().After(stallTimer) {
			return 0, fmt.Errorf("timed out waiting for runner to start - progress %0.2f - %s", priorProgress, r.lastErr)
		}

		statusCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		status, err := r.getStatus(statusCtx)
		cancel()
		if err != nil {
			return 0, err
		}

		switch status.Status {
		case "ready":
			return status.MemoryMB, nil
		case "error":
			return 0, fmt.Errorf("runner failed to load %s: %s", r.modelID, status.Error)
		default:
			if status.Progress != priorProgress {
				slog.Debug("model load progress", "model", r.modelID, "progress", status.Progress)
				priorProgress = status.Progress
				stallTimer = time.Now().Add(stallDuration)
			}
			time.Sleep(250 * time.Millisecond)
		}
	}
}

// Generate schickt einen synchronen Generate-Request an den Runner
func (r *Runner) Generate(ctx context.Context, params any) (json.RawMessage, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("http://127.0.0.1:%d/generate", r.port), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runner generate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runner generate failed: %s", strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Stream schickt einen Generate-Request und liefert zeilenweise
// JSON-Chunks an fn. Bricht ab wenn fn einen Fehler zurueckgibt.
func (r *Runner) Stream(ctx context.Context, params any, fn func(line []byte) error) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)

	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal stream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("http://127.0.0.1:%d/generate", r.port), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("runner stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("runner stream failed: %s", strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Shutdown versucht den Runner graceful zu beenden
func (r *Runner) Shutdown(ctx context.Context) error {
	if r.HasExited() {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("http://127.0.0.1:%d/shutdown", r.port), nil)
	if err != nil {
		return err
	}
	if resp, err := http.DefaultClient.Do(req); err == nil {
		resp.Body.Close()
	}

	select {
	case <-r.done:
		return nil
	case <-time.After(5 * time.Second):
		return errors.New("runner did not exit after shutdown request")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pid gibt die Prozess-ID des Runners zurueck
func (r *Runner) Pid() int {
	if r.cmd != nil && r.cmd.Process != nil {
		return r.cmd.Process.Pid
	}
	return -1
}

// HasExited prueft ob der Runner-Prozess beendet wurde
func (r *Runner) HasExited() bool {
	return r.cmd != nil && r.cmd.ProcessState != nil
}
