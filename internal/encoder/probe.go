package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrFFprobeExecution is returned when the ffprobe command fails.
var ErrFFprobeExecution = errors.New("ffprobe execution failed")

// ProbePath derives the ffprobe location from a resolved ffmpeg path,
// preferring the sibling binary so both tools come from the same
// install. Falls back to a bare PATH lookup name.
func ProbePath(ffmpegPath string) string {
	return probePath(ffmpegPath, fileExists)
}

func probePath(ffmpegPath string, exists func(string) bool) string {
	if ffmpegPath != "" {
		sibling := filepath.Join(filepath.Dir(ffmpegPath), "ffprobe")
		if exists(sibling) {
			return sibling
		}
	}
	return "ffprobe"
}

// ProbeDuration returns the duration in seconds of a media file, using
// ffprobe to read the container metadata. Use ProbePath to locate the
// binary next to the resolved encoder.
func ProbeDuration(ctx context.Context, ffprobePath, path string) (float64, error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	// #nosec G204 - paths are provided by trusted internal code
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}
