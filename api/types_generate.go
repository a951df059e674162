// types_generate.go - Parameter- und Result-Typen fuer Generierung
// Enthaelt: Message, ChatRequest/ChatResponse, ImageParams, Image2ImageParams,
// VideoParams, LlmCompareParams sowie die Result-Payloads der Task-Handler
package api

// Message ist eine Chat-Nachricht
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest ist der Request-Body fuer Chat-Streaming
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages" binding:"required"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	TopK        int       `json:"top_k"`
	MaxTokens   int       `json:"max_tokens"`
}

// ChatResponse ist ein Streaming-Chunk der Chat-Route
type ChatResponse struct {
	Model   string `json:"model"`
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// ImageParams sind die Parameter eines Image-Tasks
type ImageParams struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	Width             int     `json:"width,omitempty"`
	Height            int     `json:"height,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps,omitempty"`
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
	Seed              *int64  `json:"seed,omitempty"`
	Model             string  `json:"model,omitempty"`
}

// Image2ImageParams sind die Parameter eines Image2Image-Tasks
type Image2ImageParams struct {
	Prompt            string  `json:"prompt"`
	ImageBase64       string  `json:"image_base64"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	Strength          float64 `json:"strength,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps,omitempty"`
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
	Seed              *int64  `json:"seed,omitempty"`
	Model             string  `json:"model,omitempty"`
}

// VideoParams sind die Parameter eines Video-Tasks
type VideoParams struct {
	Prompt            string  `json:"prompt"`
	ImageBase64       string  `json:"image_base64"`
	Width             int     `json:"width,omitempty"`
	Height            int     `json:"height,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps,omitempty"`
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
	NumFrames         int     `json:"num_frames,omitempty"`
	Seed              *int64  `json:"seed,omitempty"`
	Model             string  `json:"model,omitempty"`
}

// LlmCompareParams sind die Parameter eines LLM-Vergleichs
type LlmCompareParams struct {
	Models      []string  `json:"models"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	TopK        int       `json:"top_k,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ImageResult ist die Result-Payload eines Image- oder Image2Image-Tasks
type ImageResult struct {
	ImageBase64 string `json:"image_base64"`
	Seed        int64  `json:"seed"`
}

// VideoResult ist die Result-Payload eines Video-Tasks
type VideoResult struct {
	VideoBase64 string `json:"video_base64"`
	Seed        int64  `json:"seed"`
}

// CompareEntry ist das Ergebnis eines einzelnen Models im Vergleich.
// Entweder Content oder Error ist gesetzt.
type CompareEntry struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CompareResult ist die Result-Payload eines LLM-Vergleichs
type CompareResult struct {
	Responses map[string]CompareEntry `json:"responses"`
}
