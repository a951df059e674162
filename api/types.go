// types.go - Core API Types (Model-Typen, Status, GPU, Errors)
// Enthaelt: ModelType, ModelStatus, ModelStatusInfo, ModelInfo, GPUStatus, StatusError
package api

import (
	"fmt"
	"strings"
	"time"
)

// ModelType beschreibt die Model-Familie
type ModelType string

const (
	ModelTypeLLM         ModelType = "llm"
	ModelTypeImage       ModelType = "image"
	ModelTypeImage2Image ModelType = "image2image"
	ModelTypeVideo       ModelType = "video"
)

// ParseModelType parst einen Model-Typ aus einem String
func ParseModelType(s string) (ModelType, error) {
	switch ModelType(strings.ToLower(strings.TrimSpace(s))) {
	case ModelTypeLLM:
		return ModelTypeLLM, nil
	case ModelTypeImage:
		return ModelTypeImage, nil
	case ModelTypeImage2Image:
		return ModelTypeImage2Image, nil
	case ModelTypeVideo:
		return ModelTypeVideo, nil
	default:
		return "", fmt.Errorf("unknown model type %q", s)
	}
}

// ModelStatus beschreibt den Lebenszyklus-Zustand eines Models
type ModelStatus string

const (
	ModelStatusNotLoaded ModelStatus = "not_loaded"
	ModelStatusLoading   ModelStatus = "loading"
	ModelStatusLoaded    ModelStatus = "loaded"
	ModelStatusUnloading ModelStatus = "unloading"
	ModelStatusError     ModelStatus = "error"
)

// ModelStatusInfo ist der Operator-sichtbare Status eines Models.
// Bleibt auch nach Entladen oder Fehlern erhalten.
type ModelStatusInfo struct {
	Type     ModelType   `json:"type"`
	Status   ModelStatus `json:"status"`
	Error    string      `json:"error,omitempty"`
	LoadedAt *time.Time  `json:"loaded_at,omitempty"`
}

// ModelInfo beschreibt ein Model fuer die List-Route
type ModelInfo struct {
	ModelID   string      `json:"model_id"`
	ModelType ModelType   `json:"model_type"`
	Status    ModelStatus `json:"status"`
	Name      string      `json:"name"`
	MemoryMB  uint64      `json:"memory_usage_mb,omitempty"`
	LoadedAt  *time.Time  `json:"loaded_at,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ShortName extrahiert den Kurznamen aus einer Model-ID
func ShortName(modelID string) string {
	if idx := strings.LastIndex(modelID, "/"); idx >= 0 {
		return modelID[idx+1:]
	}
	return modelID
}

// GPUStatus ist der abgetastete Speicherzustand des Accelerators in MB
type GPUStatus struct {
	TotalMB uint64 `json:"total_mb"`
	UsedMB  uint64 `json:"used_mb"`
	FreeMB  uint64 `json:"free_mb"`
}

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the gateway logs for details"
	}
}

// LoadModelRequest ist der Request-Body zum Laden eines Models
type LoadModelRequest struct {
	Model     string `json:"model" binding:"required"`
	ModelType string `json:"model_type"`
	Force     bool   `json:"force"`
}

// UnloadModelRequest ist der Request-Body zum Entladen eines Models
type UnloadModelRequest struct {
	Model string `json:"model" binding:"required"`
}

// LoadModelResponse meldet das Ergebnis einer Load-Operation
type LoadModelResponse struct {
	Model    string      `json:"model"`
	Status   ModelStatus `json:"status"`
	MemoryMB uint64      `json:"memory_mb"`
	Message  string      `json:"message,omitempty"`
}

// UnloadModelResponse meldet den freigegebenen Speicher
type UnloadModelResponse struct {
	Model   string `json:"model"`
	FreedMB uint64 `json:"freed_mb"`
}
