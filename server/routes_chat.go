// Package server - Chat-Route mit Streaming
//
// Diese Datei enthaelt:
// - ChatHandler: zeilenweises JSON-Streaming einer LLM-Antwort
//
// Ohne Model-Angabe wird das einzige residente LLM benutzt, sonst
// wird der Name gegen die residenten Models aufgeloest. Nicht
// residente Models werden vor der Antwort geladen.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/7blacky7/gpugate/adapters"
	"github.com/7blacky7/gpugate/api"
)

// ChatHandler streamt eine Chat-Antwort als zeilenweises JSON
func (s *Server) ChatHandler(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	modelID := req.Model
	if modelID == "" {
		var err error
		modelID, _, err = s.orch.AcquireByType(api.ModelTypeLLM)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		if resolved, err := s.orch.ResolveModel(modelID); err == nil {
			modelID = resolved
		}
		if err := s.orch.EnsureLoaded(ctx, modelID, api.ModelTypeLLM); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	inst, err := s.orch.Acquire(modelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	adapter, err := adapters.ForType(api.ModelTypeLLM)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	llm, ok := adapter.(*adapters.LLMAdapter)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "llm adapter does not support streaming"})
		return
	}

	completion := adapters.CompletionRequest{
		Messages:    req.Messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		MaxTokens:   req.MaxTokens,
	}

	c.Header("Content-Type", "application/x-ndjson")
	flusher, _ := c.Writer.(http.Flusher)
	enc := json.NewEncoder(c.Writer)

	err = llm.Completion(ctx, inst, completion, func(chunk adapters.CompletionResponse) {
		enc.Encode(api.ChatResponse{Model: modelID, Content: chunk.Content, Done: chunk.Done})
		if flusher != nil {
			flusher.Flush()
		}
	})
	if err != nil {
		// Header sind schon raus, Fehler nur noch als letzte Zeile
		enc.Encode(gin.H{"error": err.Error()})
	}
}
