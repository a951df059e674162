// Package server - Dedizierte Generierungs-Routen
//
// Diese Datei enthaelt:
// - GenerateImageHandler: Bild synchron oder per async_mode als Task
// - GenerateImage2ImageHandler: Bild-zu-Bild, synchron oder als Task
// - GenerateVideoHandler: Video, wegen der Laufzeit immer als Task
//
// Der synchrone Pfad nutzt denselben Handler wie der Worker, nur
// ohne Queue und ohne Fortschritts-Persistenz. Der asynchrone Pfad
// reiht einen Task ein wie POST /api/tasks.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/7blacky7/gpugate/api"
	"github.com/7blacky7/gpugate/envconfig"
)

// generateImageRequest sind ImageParams plus Routen-Steuerung
type generateImageRequest struct {
	api.ImageParams
	AsyncMode bool   `json:"async_mode"`
	UserID    string `json:"user_id"`
}

// generateImage2ImageRequest sind Image2ImageParams plus Routen-Steuerung
type generateImage2ImageRequest struct {
	api.Image2ImageParams
	AsyncMode bool   `json:"async_mode"`
	UserID    string `json:"user_id"`
}

// generateVideoRequest sind VideoParams plus Routen-Steuerung
type generateVideoRequest struct {
	api.VideoParams
	UserID string `json:"user_id"`
}

// enqueueGenerateTask reiht einen Generierungs-Task ein und
// antwortet wie POST /api/tasks mit 202 und der Task-ID
func (s *Server) enqueueGenerateTask(c *gin.Context, taskType api.TaskType, params any, userID string) {
	raw, err := json.Marshal(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if userID == "" {
		userID = c.GetHeader("X-User-Id")
	}

	task, err := s.store.Create(c.Request.Context(), taskType, raw, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, api.CreateTaskResponse{TaskID: task.ID, Status: task.Status})
}

// generateSync fuehrt den Task-Handler direkt im Request aus
func (s *Server) generateSync(c *gin.Context, taskType api.TaskType, handler TaskHandler, params any) {
	raw, err := json.Marshal(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task := &api.Task{Type: taskType, Params: raw}
	result, err := handler(c.Request.Context(), task, func(float64) {})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", result)
}

// GenerateImageHandler generiert ein Bild, synchron oder per
// async_mode als eingereihter Task
func (s *Server) GenerateImageHandler(c *gin.Context) {
	if !envconfig.EnableImage(true) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image generation is disabled"})
		return
	}

	var req generateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.AsyncMode {
		s.enqueueGenerateTask(c, api.TaskTypeImage, req.ImageParams, req.UserID)
		return
	}
	s.generateSync(c, api.TaskTypeImage, NewHandlers(s.orch).HandleImage, req.ImageParams)
}

// GenerateImage2ImageHandler transformiert ein Bild, synchron oder
// per async_mode als eingereihter Task
func (s *Server) GenerateImage2ImageHandler(c *gin.Context) {
	if !envconfig.EnableImage2Image(true) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image2image generation is disabled"})
		return
	}

	var req generateImage2ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.AsyncMode {
		s.enqueueGenerateTask(c, api.TaskTypeImage2Image, req.Image2ImageParams, req.UserID)
		return
	}
	s.generateSync(c, api.TaskTypeImage2Image, NewHandlers(s.orch).HandleImage2Image, req.Image2ImageParams)
}

// GenerateVideoHandler generiert ein Video. Videogenerierung dauert
// Minuten, deshalb laeuft sie immer als Task
func (s *Server) GenerateVideoHandler(c *gin.Context) {
	if !envconfig.EnableVideo(true) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "video generation is disabled"})
		return
	}

	var req generateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.enqueueGenerateTask(c, api.TaskTypeVideo, req.VideoParams, req.UserID)
}
