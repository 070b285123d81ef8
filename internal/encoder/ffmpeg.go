package encoder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
)

// FFmpegInvoker implements Invoker using the ffmpeg CLI.
type FFmpegInvoker struct {
	// ffmpegPath is the resolved path to the ffmpeg binary.
	ffmpegPath string
	logger     *slog.Logger
}

// NewFFmpegInvoker creates an FFmpegInvoker for an already resolved
// binary path. Use ResolveBinary to locate one.
func NewFFmpegInvoker(ffmpegPath string, logger *slog.Logger) *FFmpegInvoker {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegInvoker{ffmpegPath: ffmpegPath, logger: logger}
}

// Encode runs one encode job. The output is an H.264/AAC MP4 of exactly
// the requested duration: the duration cap plus shortest-stream
// truncation keep looped or generated audio from extending the clip.
func (p *FFmpegInvoker) Encode(ctx context.Context, job EncodeJob) error {
	if err := job.validate(); err != nil {
		return err
	}

	args := buildArgs(job)
	return p.runFFmpeg(ctx, args)
}

// buildArgs assembles the full ffmpeg argument list for a job.
func buildArgs(job EncodeJob) []string {
	args := []string{"-y"}

	// Video input: numbered frame sequence or a looped still image.
	if job.FramePattern != "" {
		args = append(args, "-framerate", "25", "-i", job.FramePattern)
	} else {
		args = append(args, "-loop", "1", "-i", job.StillImage)
	}

	// Audio input: the real track (looped so short songs cover the full
	// clip) or generated silent stereo.
	if audioIsReal(job.AudioPath) {
		args = append(args, "-stream_loop", "-1", "-i", job.AudioPath)
	} else {
		silence := fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", audioSampleRate)
		args = append(args, "-f", "lavfi", "-i", silence)
	}

	if job.Filter != "" {
		args = append(args, "-vf", job.Filter)
	}

	if job.Title != "" {
		args = append(args, "-metadata", "title="+job.Title)
	}

	args = append(args,
		"-t", strconv.Itoa(job.DurationSeconds),
		"-r", "25",
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		job.OutputPath,
	)

	return args
}

// runFFmpeg executes ffmpeg with the given arguments. Diagnostic output
// on stderr is logged as a warning on success and attached to the error
// on failure.
func (p *FFmpegInvoker) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	if stderr.Len() > 0 {
		p.logger.Warn("ffmpeg diagnostics",
			slog.String("stderr", stderr.String()),
		)
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the
// stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
