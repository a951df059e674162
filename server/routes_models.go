// Package server - Routen fuer Model-Verwaltung
//
// Diese Datei enthaelt:
// - ListModelsHandler: alle bekannten Models mit Status
// - LoadModelHandler/UnloadModelHandler: explizite Residency-Steuerung
// - ModelStatusHandler: Status eines einzelnen Models
// - GpuStatusHandler: Speicherzustand des Accelerators
package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/7blacky7/gpugate/api"
)

// ListModelsHandler listet alle bekannten Models
func (s *Server) ListModelsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": s.orch.ListModels()})
}

// LoadModelHandler laedt ein Model explizit. Blockiert bis das Model
// bereit ist, bei Speicherdruck wird vorher verdraengt.
func (s *Server) LoadModelHandler(c *gin.Context) {
	var req api.LoadModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	modelType := api.ModelTypeLLM
	if req.ModelType != "" {
		var err error
		modelType, err = api.ParseModelType(req.ModelType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	resp, err := s.orch.Load(c.Request.Context(), req.Model, modelType, req.Force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UnloadModelHandler entlaedt ein Model. Nicht residente Models sind
// kein Fehler.
func (s *Server) UnloadModelHandler(c *gin.Context) {
	var req api.UnloadModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.orch.Unload(c.Request.Context(), req.Model)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ModelStatusHandler liefert den Status eines Models.
// Model-IDs enthalten Slashes, deshalb Wildcard-Parameter.
func (s *Server) ModelStatusHandler(c *gin.Context) {
	modelID := strings.TrimPrefix(c.Param("model"), "/")
	c.JSON(http.StatusOK, s.orch.Status(modelID))
}

// GpuStatusHandler liefert den aktuellen Speicherzustand
func (s *Server) GpuStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.GpuStatus(c.Request.Context()))
}
