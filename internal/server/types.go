// Package server provides the HTTP server for the snapreel API.
// It includes handlers, middleware, routes, and DTOs separated from
// domain types.
package server

// CreateVideoForm is the multipart form accompanying a video request.
// The image itself arrives as the "image" file part.
type CreateVideoForm struct {
	// TemplateID selects the preset.
	TemplateID string `validate:"required"`
	// Text is the optional title overlay.
	Text string `validate:"omitempty,max=120"`
	// IncludeText enables the title overlay.
	IncludeText bool
}

// CreateVideoResponse is the HTTP response after a successful generation.
type CreateVideoResponse struct {
	// RunID identifies the generation run.
	RunID string `json:"run_id"`
	// VideoURL is the published location of the clip.
	VideoURL string `json:"video_url"`
	// VideoBase64 carries the clip inline when the storage backend has
	// no publicly reachable URL (local development).
	VideoBase64 string `json:"video_base64,omitempty"`
}

// TemplateResponse describes one preset in the templates listing.
type TemplateResponse struct {
	ID              string `json:"id"`
	Style           string `json:"style"`
	DurationSeconds int    `json:"duration_seconds"`
}

// TemplatesResponse is the HTTP response for the templates listing.
type TemplatesResponse struct {
	Templates []TemplateResponse `json:"templates"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
