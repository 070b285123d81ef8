// Package pipeline orchestrates one video generation run: download the
// uploaded image, render animation frames, drive the encoder and publish
// the result. A run is strictly sequential, run-scoped on disk, and
// cleans up its artifacts on every exit path.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/snapreel/snapreel-api/internal/anim"
	"github.com/snapreel/snapreel-api/internal/encoder"
	"github.com/snapreel/snapreel-api/internal/overlay"
	"github.com/snapreel/snapreel-api/internal/render"
	"github.com/snapreel/snapreel-api/internal/storage"
	"github.com/snapreel/snapreel-api/internal/template"
)

// Static errors forming the failure taxonomy of a generation run.
var (
	// ErrInvalidInput covers missing image, unknown template and empty
	// overlay text; rejected before any processing begins.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream covers storage get/put failures. The underlying cause
	// is preserved in the chain; retry policy belongs to the storage
	// collaborator, not here.
	ErrUpstream = errors.New("storage operation failed")
	// ErrRender covers image decoding and frame synthesis failures.
	ErrRender = errors.New("render failed")
	// ErrEncode covers encoder process failures. No partial output is
	// ever returned.
	ErrEncode = errors.New("encode failed")
)

// overlayAnchorYPercent places the title baseline near the bottom of
// the canvas.
const overlayAnchorYPercent = 82

// Request is one generation invocation. The image has already been
// stored by the boundary layer; the pipeline downloads it by key.
type Request struct {
	// ImageKey locates the uploaded source image in object storage.
	ImageKey string
	// TemplateID selects the preset.
	TemplateID string
	// OverlayText is the optional title. Required non-blank when
	// IncludeText is set.
	OverlayText string
	// IncludeText enables the title overlay.
	IncludeText bool
}

// Result is the outcome of a successful run.
type Result struct {
	// RunID uniquely identifies the run.
	RunID string
	// VideoBytes is the final MP4 payload.
	VideoBytes []byte
	// VideoURL is the public URL the video was published under.
	VideoURL string
}

// State tracks the phase of a generation run.
type State string

const (
	StateIdle        State = "IDLE"
	StateDownloading State = "DOWNLOADING"
	StateRendering   State = "RENDERING"
	StateEncoding    State = "ENCODING"
	StateUploading   State = "UPLOADING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// validTransitions defines the strictly sequential run lifecycle; every
// working state may fall to StateFailed.
var validTransitions = map[State][]State{
	StateIdle:        {StateDownloading, StateFailed},
	StateDownloading: {StateRendering, StateFailed},
	StateRendering:   {StateEncoding, StateFailed},
	StateEncoding:    {StateUploading, StateFailed},
	StateUploading:   {StateDone, StateFailed},
	StateDone:        {},
	StateFailed:      {},
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Service runs the generation pipeline. Safe for concurrent use: runs
// share nothing but the temp root, and each run works in its own
// uuid-named directory beneath it.
type Service struct {
	registry  *template.Registry
	store     storage.Storage
	invoker   encoder.Invoker
	logger    *slog.Logger
	tempRoot  string
	assetsDir string
	workers   int

	// encoderCheck verifies an encoder binary is available. It runs
	// before the image download so a missing encoder fails fast.
	encoderCheck func() error
}

// Option configures a Service.
type Option func(*Service)

// WithEncoderCheck sets the pre-run encoder availability check.
func WithEncoderCheck(check func() error) Option {
	return func(s *Service) { s.encoderCheck = check }
}

// WithRenderWorkers bounds the parallel zoom frame rendering.
func WithRenderWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithAssetsDir sets the directory bundled music tracks are read from.
func WithAssetsDir(dir string) Option {
	return func(s *Service) { s.assetsDir = dir }
}

// NewService creates a pipeline service.
func NewService(registry *template.Registry, store storage.Storage, invoker encoder.Invoker, tempRoot string, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		registry:     registry,
		store:        store,
		invoker:      invoker,
		logger:       logger,
		tempRoot:     tempRoot,
		assetsDir:    "assets",
		workers:      4,
		encoderCheck: func() error { return nil },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run carries the per-invocation state machine.
type run struct {
	id     string
	state  State
	logger *slog.Logger
}

// to advances the run state, logging the transition. Invalid
// transitions indicate a pipeline bug and are reported as errors.
func (r *run) to(next State) {
	if !canTransition(r.state, next) {
		r.logger.Error("invalid run state transition",
			slog.String("from", string(r.state)),
			slog.String("to", string(next)),
		)
	}
	r.logger.Debug("run state",
		slog.String("from", string(r.state)),
		slog.String("to", string(next)),
	)
	r.state = next
}

// fail moves the run to the terminal failed state and returns err.
func (r *run) fail(err error) error {
	r.to(StateFailed)
	r.logger.Error("run failed",
		slog.String("state", string(r.state)),
		slog.String("error", err.Error()),
	)
	return err
}

// Generate executes one full pipeline run and returns the final video.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	r := &run{id: uuid.NewString(), state: StateIdle}
	r.logger = s.logger.With(slog.String("run_id", r.id))

	// Input validation happens before any processing.
	tpl, err := s.validate(req)
	if err != nil {
		return nil, r.fail(err)
	}

	// A missing encoder fails fast, before the image is downloaded and
	// before any frame is synthesized.
	if err := s.encoderCheck(); err != nil {
		return nil, r.fail(fmt.Errorf("encoder preflight: %w", err))
	}

	// Run-scoped workspace; removed unconditionally when the run ends.
	runDir := filepath.Join(s.tempRoot, "run-"+r.id)
	if err := os.MkdirAll(runDir, 0750); err != nil {
		return nil, r.fail(fmt.Errorf("create run directory: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			r.logger.Warn("run directory cleanup failed",
				slog.String("dir", runDir),
				slog.String("error", err.Error()),
			)
		}
	}()

	r.to(StateDownloading)
	img, err := s.downloadImage(ctx, req.ImageKey)
	if err != nil {
		return nil, r.fail(err)
	}

	r.to(StateRendering)
	job, err := s.renderVideoSource(ctx, r, img, tpl, req, runDir)
	if err != nil {
		return nil, r.fail(err)
	}

	r.to(StateEncoding)
	job.AudioPath = filepath.Join(s.assetsDir, tpl.MusicFile)
	job.DurationSeconds = tpl.DurationSeconds
	job.OutputPath = filepath.Join(runDir, "output.mp4")
	if req.IncludeText {
		job.Title = overlay.Escape(req.OverlayText)
	}
	if err := s.invoker.Encode(ctx, *job); err != nil {
		return nil, r.fail(fmt.Errorf("%w: %w", ErrEncode, err))
	}

	r.to(StateUploading)
	videoBytes, err := os.ReadFile(job.OutputPath) // #nosec G304 - path is inside the run dir
	if err != nil {
		return nil, r.fail(fmt.Errorf("read encoded video: %w", err))
	}
	key := "videos/" + r.id + ".mp4"
	url, err := s.store.Put(ctx, key, bytes.NewReader(videoBytes), "video/mp4")
	if err != nil {
		return nil, r.fail(fmt.Errorf("%w: publish video: %w", ErrUpstream, err))
	}

	r.to(StateDone)
	r.logger.Info("video generated",
		slog.String("template", tpl.ID),
		slog.Int("duration_seconds", tpl.DurationSeconds),
		slog.Int("bytes", len(videoBytes)),
		slog.String("url", url),
	)

	return &Result{
		RunID:      r.id,
		VideoBytes: videoBytes,
		VideoURL:   url,
	}, nil
}

// validate rejects bad requests before any work happens.
func (s *Service) validate(req Request) (template.Template, error) {
	if req.ImageKey == "" {
		return template.Template{}, fmt.Errorf("%w: no image provided", ErrInvalidInput)
	}
	tpl, err := s.registry.Lookup(req.TemplateID)
	if err != nil {
		return template.Template{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if req.IncludeText && strings.TrimSpace(req.OverlayText) == "" {
		return template.Template{}, fmt.Errorf("%w: overlay text requested but empty", ErrInvalidInput)
	}
	return tpl, nil
}

// downloadImage fetches the uploaded source image from object storage.
func (s *Service) downloadImage(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: download image %s: %w", ErrUpstream, key, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read image %s: %w", ErrUpstream, key, err)
	}
	return data, nil
}

// renderVideoSource synthesizes the encoder's video input: a numbered
// frame sequence for the zoom style, or a single composited image plus
// a declarative pan filter for the slide style.
func (s *Service) renderVideoSource(ctx context.Context, r *run, imageBytes []byte, tpl template.Template, req Request, runDir string) (*encoder.EncodeJob, error) {
	src, err := render.Decode(imageBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	switch tpl.Style {
	case template.StyleSlide:
		layer := s.overlayLayer(r, req, src.Bounds().Dx(), src.Bounds().Dy())
		still := filepath.Join(runDir, "slide.png")
		if err := render.WriteSlideImage(src, layer, still); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		return &encoder.EncodeJob{
			StillImage: still,
			Filter:     anim.SlideFilter(tpl.DurationSeconds),
		}, nil

	default: // template.StyleZoom
		layer := s.overlayLayer(r, req, anim.OutputWidth, anim.OutputHeight)
		total := anim.FrameCount(tpl.DurationSeconds)
		pattern, err := render.WriteZoomFrames(ctx, src, total, layer, runDir, s.workers)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		return &encoder.EncodeJob{FramePattern: pattern}, nil
	}
}

// overlayLayer renders the optional title layer. The overlay is
// cosmetic, so a failure here degrades to a video without text instead
// of failing the run; geometry and encoding failures stay fatal.
func (s *Service) overlayLayer(r *run, req Request, w, h int) *image.RGBA {
	if !req.IncludeText {
		return nil
	}
	layer, err := overlay.Render(req.OverlayText, w, h, overlayAnchorYPercent)
	if err != nil {
		r.logger.Warn("overlay rendering failed, continuing without text",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return layer
}
