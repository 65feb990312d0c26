package model

import "time"

// GenerationRequest carries the parameters of a single generation job.
// A nil Seed means the dispatcher (or, for the turbo backend, the backend
// itself) picks a random one.
type GenerationRequest struct {
	Model         string   `json:"model"`
	Prompt        string   `json:"prompt"`
	AspectRatio   string   `json:"aspect_ratio"`
	Seed          *int64   `json:"seed,omitempty"`
	EnableHD      bool     `json:"enable_hd"`
	Steps         int      `json:"steps,omitempty"`
	GuidanceScale *float64 `json:"guidance_scale,omitempty"`
}

// GeneratedImage is the normalized artifact record produced by any backend.
// Mutations (upscale, blur toggle) are reconciled against history by ID.
type GeneratedImage struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Model         string    `json:"model"`
	Prompt        string    `json:"prompt"`
	AspectRatio   string    `json:"aspectRatio"`
	Timestamp     time.Time `json:"timestamp"`
	Seed          int64     `json:"seed"`
	Steps         int       `json:"steps"`
	Duration      float64   `json:"duration,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	GuidanceScale float64   `json:"guidanceScale,omitempty"`
	IsUpscaled    bool      `json:"isUpscaled,omitempty"`
	IsBlurred     bool      `json:"isBlurred,omitempty"`
}
