package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/snapreel/snapreel-api/internal/encoder"
	"github.com/snapreel/snapreel-api/internal/pipeline"
	"github.com/snapreel/snapreel-api/internal/storage"
	"github.com/snapreel/snapreel-api/internal/template"
)

// maxUploadBytes caps the multipart form size.
const maxUploadBytes = 32 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *pipeline.Service
	registry  *template.Registry
	store     storage.Storage
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *pipeline.Service, registry *template.Registry, store storage.Storage, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		registry:  registry,
		store:     store,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ListTemplates handles GET /templates requests.
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates := h.registry.List()
	resp := TemplatesResponse{Templates: make([]TemplateResponse, 0, len(templates))}
	for _, t := range templates {
		resp.Templates = append(resp.Templates, TemplateResponse{
			ID:              t.ID,
			Style:           string(t.Style),
			DurationSeconds: t.DurationSeconds,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateVideo handles POST /videos requests. The image upload is stored
// first, then the pipeline runs synchronously to completion.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.logger.Warn("failed to parse multipart form",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return
	}

	form := CreateVideoForm{
		TemplateID:  r.FormValue("template_id"),
		Text:        r.FormValue("text"),
		IncludeText: parseBool(r.FormValue("include_text")),
	}
	if err := h.validator.Struct(form); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	// Reject bad requests before the upload touches storage.
	if _, err := h.registry.Lookup(form.TemplateID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_TEMPLATE")
		return
	}
	if form.IncludeText && strings.TrimSpace(form.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required when include_text is set", "VALIDATION_ERROR")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required", "MISSING_IMAGE")
		return
	}
	defer func() { _ = file.Close() }()

	imageKey, err := h.storeUpload(r, file, header)
	if err != nil {
		h.logger.Error("failed to store upload",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to store upload", "STORAGE_ERROR")
		return
	}
	// The staged upload is only needed for the duration of the run.
	defer func() {
		if err := h.store.Delete(r.Context(), imageKey); err != nil {
			h.logger.Warn("failed to remove staged upload",
				slog.String("key", imageKey),
				slog.String("error", err.Error()),
			)
		}
	}()

	result, err := h.service.Generate(r.Context(), pipeline.Request{
		ImageKey:    imageKey,
		TemplateID:  form.TemplateID,
		OverlayText: form.Text,
		IncludeText: form.IncludeText,
	})
	if err != nil {
		h.writeGenerateError(w, err)
		return
	}

	h.logger.Info("video created",
		slog.String("run_id", result.RunID),
		slog.String("template_id", form.TemplateID),
	)

	resp := CreateVideoResponse{
		RunID:    result.RunID,
		VideoURL: result.VideoURL,
	}
	// Local storage URLs are not reachable by clients; inline the clip.
	if strings.HasPrefix(result.VideoURL, "file://") {
		resp.VideoBase64 = base64.StdEncoding.EncodeToString(result.VideoBytes)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// storeUpload saves the multipart image under a unique upload key.
func (h *Handlers) storeUpload(r *http.Request, file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".png"
	}
	key := "uploads/" + uuid.NewString() + ext

	contentType := header.Header.Get("Content-Type")
	if _, err := h.store.Put(r.Context(), key, file, contentType); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return key, nil
}

// writeGenerateError maps the pipeline failure taxonomy to HTTP status
// codes and stable error codes.
func (h *Handlers) writeGenerateError(w http.ResponseWriter, err error) {
	h.logger.Error("video generation failed",
		slog.String("error", err.Error()),
	)

	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	case errors.Is(err, encoder.ErrEncoderUnavailable):
		writeError(w, http.StatusServiceUnavailable, "video encoder is not available", "ENCODER_UNAVAILABLE")
	case errors.Is(err, pipeline.ErrUpstream):
		writeError(w, http.StatusBadGateway, "storage operation failed", "STORAGE_ERROR")
	case errors.Is(err, pipeline.ErrRender):
		writeError(w, http.StatusUnprocessableEntity, "could not render the uploaded image", "RENDER_FAILED")
	case errors.Is(err, pipeline.ErrEncode):
		writeError(w, http.StatusInternalServerError, "video encoding failed", "ENCODE_FAILED")
	default:
		writeError(w, http.StatusInternalServerError, "video generation failed", "INTERNAL_ERROR")
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
