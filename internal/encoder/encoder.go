// Package encoder owns all interaction with the external video encoder.
// The encoder is modeled as a capability behind the Invoker interface so
// the pipeline can run against a stub in tests without ffmpeg installed.
package encoder

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
)

// Static errors for encoder operations.
var (
	// ErrEncoderUnavailable is returned when no usable encoder binary
	// can be located on any resolution strategy.
	ErrEncoderUnavailable = errors.New("no usable ffmpeg binary found")
	// ErrNoVideoSource is returned when a job declares neither a frame
	// pattern nor a still image.
	ErrNoVideoSource = errors.New("encode job has no video source")
	// ErrInvalidDuration is returned when the output duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
)

// minAudioFileSize is the threshold below which an audio asset is
// treated as an empty placeholder rather than a real track. This is a
// size heuristic, not a content check: bundled stubs are zero or a few
// bytes, real tracks are tens of kilobytes at minimum.
const minAudioFileSize = 1024

// audioSampleRate is the sample rate of the generated silent track.
const audioSampleRate = 44100

// EncodeJob describes one encoder invocation. Exactly one of
// FramePattern and StillImage must be set.
type EncodeJob struct {
	// FramePattern is a printf-style pattern of numbered frame files
	// consumed at the fixed frame rate (zoom style).
	FramePattern string
	// StillImage is a single image looped for the whole clip (slide
	// style), with Filter applying the per-frame pan.
	StillImage string
	// Filter is an optional ffmpeg filter expression applied to the
	// video stream.
	Filter string
	// AudioPath is the candidate music track. When the file is missing
	// or smaller than the placeholder threshold, generated silence is
	// used instead.
	AudioPath string
	// Title, when set, is embedded as the container title metadata.
	// Callers must escape user-supplied titles first.
	Title string
	// DurationSeconds is the exact output clip length.
	DurationSeconds int
	// OutputPath is where the MP4 is written.
	OutputPath string
}

func (j EncodeJob) validate() error {
	if j.FramePattern == "" && j.StillImage == "" {
		return ErrNoVideoSource
	}
	if j.DurationSeconds <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// Invoker drives an external encoder to produce the final MP4.
type Invoker interface {
	// Encode runs one encode job to completion. A non-zero encoder exit
	// is a hard failure; no partial output is produced.
	Encode(ctx context.Context, job EncodeJob) error
}

// Resolve returns the first candidate for which exists reports true.
// Empty candidates are skipped. It is a pure function of its inputs so
// binary resolution is testable without touching the filesystem.
func Resolve(candidates []string, exists func(string) bool) (string, bool) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if exists(c) {
			return c, true
		}
	}
	return "", false
}

// ResolveBinary locates the ffmpeg binary, checking the override path,
// the bundled location next to the working directory, then PATH. It is
// called before any image work so a missing encoder fails fast.
func ResolveBinary(override string) (string, error) {
	candidates := []string{override, filepath.Join("bin", "ffmpeg")}
	if path, ok := Resolve(candidates, fileExists); ok {
		return path, nil
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path, nil
	}
	return "", ErrEncoderUnavailable
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// audioIsReal reports whether path points to a usable audio asset. See
// minAudioFileSize for why this is a size check.
func audioIsReal(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() >= minAudioFileSize
}
