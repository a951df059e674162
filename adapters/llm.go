// llm.go - Adapter fuer die LLM-Familie
//
// Diese Datei enthaelt:
// - LLMAdapter: Estimate/Load/Unload/Generate fuer LLM-Runtimes
// - Completion: Streaming-Generierung fuer Chat und Vergleich
// - estimateLLMMemory: Schaetzung ueber Parameteranzahl im Namen
//
// Die LLM-Runtime startet Worker-Subprozesse deren Speicher der
// Allokator im Hauptprozess nicht sieht. Unload beendet deshalb die
// gesamte Prozessgruppe und misst Freigabe ueber die Treiber-Probe.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/discover"
	"github.com/7blacky7/gpugate/envconfig"
)

// llmMemoryEstimates sind MB-Schaetzungen nach Parameteranzahl in Milliarden
var llmMemoryEstimates = map[float64]uint64{
	0.5: 1_500,
	1:   3_000,
	3:   7_000,
	7:   14_000,
	8:   16_000,
	13:  26_000,
	14:  28_000,
	32:  64_000,
	70:  140_000,
	72:  144_000,
}

// defaultLLMEstimate wenn keine Parameteranzahl erkennbar ist
const defaultLLMEstimate uint64 = 14_000

// paramCountPatterns erkennen "7b", "7.5b", "7-b", "7_b" im Model-Namen
var paramCountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+\.?\d*)b`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)-b`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)_b`),
}

// estimateLLMMemory schaetzt den Speicherbedarf eines LLMs aus der Model-ID
func estimateLLMMemory(modelID string) uint64 {
	for _, pattern := range paramCountPatterns {
		match := pattern.FindStringSubmatch(modelID)
		if match == nil {
			continue
		}
		params, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}

		// Naechstliegenden Tabelleneintrag waehlen
		bestDist := math.Inf(1)
		var best uint64
		for key, mb := range llmMemoryEstimates {
			if d := math.Abs(key - params); d < bestDist {
				bestDist = d
				best = mb
			}
		}
		return best
	}

	slog.Warn("could not estimate memory from model name, using default", "model", modelID, "default_mb", defaultLLMEstimate)
	return defaultLLMEstimate
}

// CompletionRequest ist ein Generierungs-Request an eine LLM-Instanz
type CompletionRequest struct {
	Messages    []api.Message `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	TopK        int           `json:"top_k,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// CompletionResponse ist ein Streaming-Chunk der LLM-Runtime
type CompletionResponse struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// LLMAdapter implementiert Adapter fuer die LLM-Familie
type LLMAdapter struct{}

// NewLLMAdapter erstellt den LLM-Adapter
func NewLLMAdapter() *LLMAdapter {
	return &LLMAdapter{}
}

func (a *LLMAdapter) Estimate(modelID string) uint64 {
	return estimateLLMMemory(modelID)
}

// Load startet die LLM-Runtime mit den konfigurierten Hints
func (a *LLMAdapter) Load(ctx context.Context, modelID string) (*Instance, error) {
	args := []string{
		"--tensor-parallel-size", fmt.Sprintf("%d", envconfig.TensorParallelSize()),
		"--gpu-memory-utilization", fmt.Sprintf("%g", envconfig.GpuMemoryUtilization()),
		"--max-model-len", fmt.Sprintf("%d", envconfig.MaxModelLen()),
	}

	runner, err := startRunner("llm", modelID, args, 8)
	if err != nil {
		return nil, err
	}

	memoryMB, err := runner.WaitUntilRunning(ctx)
	if err != nil {
		killProcessTree(runner.Pid(), childPids(runner.Pid()))
		return nil, err
	}
	if memoryMB == 0 {
		memoryMB = estimateLLMMemory(modelID)
	}

	inst := &Instance{
		ModelID:  modelID,
		MemoryMB: memoryMB,
		Metadata: map[string]string{},
		runner:   runner,
	}
	// Worker-Pids direkt nach dem Laden einsammeln, spaeter koennen
	// sie sich von der Prozessgruppe geloest haben
	inst.workerPids = childPids(runner.Pid())
	slog.Info("llm runtime ready", "model", modelID, "memory_mb", memoryMB, "workers", len(inst.workerPids))

	return inst, nil
}

// Unload beendet die LLM-Runtime inklusive aller Worker-Subprozesse.
// Freigegebener Speicher wird ueber die Treiber-Probe gemessen, nicht
// ueber die Allokator-Sicht der Runtime.
func (a *LLMAdapter) Unload(ctx context.Context, inst *Instance) (uint64, error) {
	before := discover.GPUStatus(ctx)

	if err := inst.runner.Shutdown(ctx); err != nil {
		slog.Warn("graceful runner shutdown failed", "model", inst.ModelID, "error", err)
	}

	workers := append(childPids(inst.runner.Pid()), inst.workerPids...)
	killProcessTree(inst.runner.Pid(), workers)

	// Kurz warten bis der Treiber die Mappings zurueckgefordert hat
	time.Sleep(500 * time.Millisecond)

	after := discover.GPUStatus(ctx)
	freed := inst.MemoryMB
	if after.TotalMB > 0 && after.FreeMB > before.FreeMB {
		freed = after.FreeMB - before.FreeMB
	}
	slog.Info("llm runtime unloaded", "model", inst.ModelID, "freed_mb", freed)
	return freed, nil
}

// Generate sammelt eine komplette Antwort ueber Completion ein
func (a *LLMAdapter) Generate(ctx context.Context, inst *Instance, params any) (json.RawMessage, error) {
	req, ok := params.(CompletionRequest)
	if !ok {
		return nil, fmt.Errorf("llm adapter: unexpected params type %T", params)
	}

	var content string
	if err := a.Completion(ctx, inst, req, func(resp CompletionResponse) {
		content += resp.Content
	}); err != nil {
		return nil, err
	}

	return json.Marshal(map[string]string{"content": content})
}

// Completion streamt eine Generierung und ruft fn pro Chunk auf
func (a *LLMAdapter) Completion(ctx context.Context, inst *Instance, req CompletionRequest, fn func(CompletionResponse)) error {
	req.Stream = true
	return inst.runner.Stream(ctx, req, func(line []byte) error {
		var resp CompletionResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return fmt.Errorf("unmarshal completion chunk: %w", err)
		}
		fn(resp)
		return nil
	})
}
