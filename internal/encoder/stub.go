package encoder

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// StubInvoker is an Invoker that writes a fixed-size stub file instead
// of running an encoder. It lets the pipeline be exercised end to end
// without ffmpeg installed; pipeline and handler tests depend on it.
type StubInvoker struct {
	// Err, when set, is returned from Encode instead of writing output.
	Err error
	// Payload is the stub file content. Defaults to a small fixed
	// marker when empty.
	Payload []byte

	mu   sync.Mutex
	jobs []EncodeJob
}

// Encode records the job and writes the stub payload to the output path.
func (s *StubInvoker) Encode(_ context.Context, job EncodeJob) error {
	if err := job.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}

	payload := s.Payload
	if len(payload) == 0 {
		payload = []byte("stub-mp4-payload")
	}
	if err := os.WriteFile(job.OutputPath, payload, 0600); err != nil {
		return fmt.Errorf("write stub output: %w", err)
	}
	return nil
}

// Jobs returns a copy of every job Encode has seen.
func (s *StubInvoker) Jobs() []EncodeJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EncodeJob, len(s.jobs))
	copy(out, s.jobs)
	return out
}
