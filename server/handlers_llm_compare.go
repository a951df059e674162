// Package server - Task-Handler fuer den LLM-Vergleich
//
// Diese Datei enthaelt:
// - HandleLlmCompare: gleicher Prompt nacheinander durch mehrere LLMs
// - resolveCompareModel: Nutzer-Namen auf konfigurierte IDs aufloesen
//
// Die Models laufen sequenziell, bei Speicherdruck verdraengt der
// Orchestrator zwischen den Durchlaeufen. Fehler einzelner Models
// landen als Eintrag im Ergebnis statt den Task scheitern zu lassen.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/7blacky7/gpugate/adapters"
	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/envconfig"
)

// resolveCompareModel loest einen Nutzer-Namen gegen die bekannten
// Model-IDs auf. Reihenfolge: exakte ID, exakter Kurzname, eindeutiger
// Teilstring. Ohne konfigurierte Liste gilt der Name unveraendert.
func resolveCompareModel(name string, known []string) (string, error) {
	if len(known) == 0 {
		return name, nil
	}
	for _, id := range known {
		if id == name {
			return id, nil
		}
	}
	for _, id := range known {
		if api.ShortName(id) == name {
			return id, nil
		}
	}

	var matches []string
	lower := strings.ToLower(name)
	for _, id := range known {
		if strings.Contains(strings.ToLower(id), lower) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("unknown model %q", name)
	default:
		return "", fmt.Errorf("model name %q is ambiguous: matches %s", name, strings.Join(matches, ", "))
	}
}

// HandleLlmCompare fuehrt einen Vergleichs-Task aus
func (h *Handlers) HandleLlmCompare(ctx context.Context, task *api.Task, report func(float64)) (json.RawMessage, error) {
	var params api.LlmCompareParams
	if len(task.Params) > 0 {
		if err := json.Unmarshal(task.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid compare params: %w", err)
		}
	}
	if len(params.Models) == 0 {
		return nil, errors.New("at least one model is required")
	}
	if len(params.Messages) == 0 {
		return nil, errors.New("messages are required")
	}
	report(10)

	known := envconfig.ModelIDs()
	result := api.CompareResult{Responses: make(map[string]api.CompareEntry, len(params.Models))}

	for i, name := range params.Models {
		entry := h.compareOne(ctx, name, known, params)
		result.Responses[name] = entry

		// Fortschritt gleichmaessig ueber die Models verteilen
		report(10 + 80*float64(i+1)/float64(len(params.Models)))
	}

	return json.Marshal(result)
}

// compareOne laesst ein einzelnes Model antworten
func (h *Handlers) compareOne(ctx context.Context, name string, known []string, params api.LlmCompareParams) api.CompareEntry {
	modelID, err := resolveCompareModel(name, known)
	if err != nil {
		return api.CompareEntry{Error: err.Error()}
	}

	if err := h.orch.EnsureLoaded(ctx, modelID, api.ModelTypeLLM); err != nil {
		slog.Warn("compare model failed to load", "model", modelID, "error", err)
		return api.CompareEntry{Error: err.Error()}
	}
	inst, err := h.orch.Acquire(modelID)
	if err != nil {
		return api.CompareEntry{Error: err.Error()}
	}
	adapter, err := adapters.ForType(api.ModelTypeLLM)
	if err != nil {
		return api.CompareEntry{Error: err.Error()}
	}

	req := adapters.CompletionRequest{
		Messages:    params.Messages,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
		MaxTokens:   params.MaxTokens,
	}
	raw, err := adapter.Generate(ctx, inst, req)
	if err != nil {
		return api.CompareEntry{Error: err.Error()}
	}

	var resp struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return api.CompareEntry{Error: fmt.Sprintf("unexpected runner response: %v", err)}
	}
	return api.CompareEntry{Content: resp.Content}
}
