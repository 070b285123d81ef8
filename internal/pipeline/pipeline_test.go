package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/snapreel/snapreel-api/internal/encoder"
	"github.com/snapreel/snapreel-api/internal/storage"
	"github.com/snapreel/snapreel-api/internal/template"
)

// mockStorage implements storage.Storage for testing.
type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Put(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// testImagePNG returns PNG bytes of a solid-color image.
func testImagePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 90, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageReader(t *testing.T, w, h int) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(testImagePNG(t, w, h)))
}

func newTestService(t *testing.T, store storage.Storage, inv encoder.Invoker, opts ...Option) *Service {
	t.Helper()
	return NewService(template.NewRegistry(), store, inv, t.TempDir(), nil, opts...)
}

func TestGenerate_ZoomRoundTrip(t *testing.T) {
	store := &mockStorage{}
	store.On("Get", mock.Anything, "uploads/img-1.png").
		Return(imageReader(t, 1280, 720), nil)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, "video/mp4").
		Return("https://cdn.example.com/v.mp4", nil)

	stub := &encoder.StubInvoker{}
	svc := newTestService(t, store, stub)

	res, err := svc.Generate(context.Background(), Request{
		ImageKey:   "uploads/img-1.png",
		TemplateID: "zoom-ambient",
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, res.RunID)
	assert.NotEmpty(t, res.VideoBytes)
	assert.Equal(t, "https://cdn.example.com/v.mp4", res.VideoURL)

	jobs := stub.Jobs()
	require.Len(t, jobs, 1)
	job := jobs[0]

	// 6s at 25fps: frames 0..149 exist for the encoder pattern.
	assert.Equal(t, 6, job.DurationSeconds)
	assert.NotEmpty(t, job.FramePattern)
	assert.Empty(t, job.StillImage)
	assert.Empty(t, job.Title)

	store.AssertExpectations(t)
}

func TestGenerate_SlideWithMetacharacterText(t *testing.T) {
	store := &mockStorage{}
	store.On("Get", mock.Anything, "uploads/img-2.png").
		Return(imageReader(t, 2200, 800), nil)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, "video/mp4").
		Return("https://cdn.example.com/v.mp4", nil)

	stub := &encoder.StubInvoker{}
	svc := newTestService(t, store, stub)

	_, err := svc.Generate(context.Background(), Request{
		ImageKey:    "uploads/img-2.png",
		TemplateID:  "slide-funky",
		OverlayText: "A&B<Test>",
		IncludeText: true,
	})
	require.NoError(t, err)

	jobs := stub.Jobs()
	require.Len(t, jobs, 1)
	job := jobs[0]

	assert.NotEmpty(t, job.StillImage)
	assert.NotEmpty(t, job.Filter)
	assert.Equal(t, 8, job.DurationSeconds)

	// The raw title never reaches an embedding context unescaped.
	assert.Equal(t, "A&amp;B&lt;Test&gt;", job.Title)
	assert.NotContains(t, job.Filter, "A&B<Test>")
}

func TestGenerate_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"missing image key", Request{TemplateID: "zoom-ambient"}},
		{"unknown template", Request{ImageKey: "uploads/x.png", TemplateID: "nope"}},
		{"empty overlay text", Request{
			ImageKey:    "uploads/x.png",
			TemplateID:  "zoom-ambient",
			OverlayText: "   ",
			IncludeText: true,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStorage{}
			svc := newTestService(t, store, &encoder.StubInvoker{})

			_, err := svc.Generate(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)

			// Rejected before any storage call.
			store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		})
	}
}

func TestGenerate_UnknownTemplateWrapsCause(t *testing.T) {
	svc := newTestService(t, &mockStorage{}, &encoder.StubInvoker{})

	_, err := svc.Generate(context.Background(), Request{
		ImageKey:   "uploads/x.png",
		TemplateID: "vhs-grunge",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, template.ErrTemplateNotFound)
}

func TestGenerate_EncoderUnavailableBeforeStorageGet(t *testing.T) {
	store := &mockStorage{}
	svc := newTestService(t, store, &encoder.StubInvoker{},
		WithEncoderCheck(func() error { return encoder.ErrEncoderUnavailable }),
	)

	_, err := svc.Generate(context.Background(), Request{
		ImageKey:   "uploads/img.png",
		TemplateID: "zoom-ambient",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, encoder.ErrEncoderUnavailable)

	// Fails fast: storage is never touched.
	store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestGenerate_StorageGetFailure(t *testing.T) {
	store := &mockStorage{}
	store.On("Get", mock.Anything, "uploads/gone.png").
		Return(nil, storage.ErrObjectNotFound)

	stub := &encoder.StubInvoker{}
	tempRoot := t.TempDir()
	svc := NewService(template.NewRegistry(), store, stub, tempRoot, nil)

	_, err := svc.Generate(context.Background(), Request{
		ImageKey:   "uploads/gone.png",
		TemplateID: "zoom-ambient",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	// No encoder invocation and no leftover run artifacts.
	assert.Empty(t, stub.Jobs())
	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerate_UnreadableImageBytes(t *testing.T) {
	store := &mockStorage{}
	store.On("Get", mock.Anything, "uploads/bad.png").
		Return(io.NopCloser(bytes.NewReader([]byte("not an image"))), nil)

	stub := &encoder.StubInvoker{}
	svc := newTestService(t, store, stub)

	_, err := svc.Generate(context.Background(), Request{
		ImageKey:   "uploads/bad.png",
		TemplateID: "zoom-ambient",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRender)
	assert.Empty(t, stub.Jobs())
}

func TestGenerate_EncodeFailure(t *testing.T) {
	store := &mockStorage{}
	store.On("Get", mock.Anything, "uploads/img.png").
		Return(imageReader(t, 640, 480), nil)

	stub := &encoder.StubInvoker{Err: assert.AnError}
	tempRoot := t.TempDir()
	svc := NewService(template.NewRegistry(), store, stub, tempRoot, nil)

	_, err := svc.Generate(context.Background(), Request{
		ImageKey:   "uploads/img.png",
		TemplateID: "slide-chill",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncode)

	// No partial output is published and artifacts are cleaned up.
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerate_StoragePutFailure(t *testing.T) {
	store := &mockStorage{}
	store.On("Get", mock.Anything, "uploads/img.png").
		Return(imageReader(t, 640, 480), nil)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, "video/mp4").
		Return("", assert.AnError)

	svc := newTestService(t, store, &encoder.StubInvoker{})

	_, err := svc.Generate(context.Background(), Request{
		ImageKey:   "uploads/img.png",
		TemplateID: "slide-chill",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestGenerate_ConcurrentRunsDoNotCollide(t *testing.T) {
	const runs = 4

	store := &mockStorage{}
	// Each call consumes its reader, so register one expectation per run.
	for i := 0; i < runs; i++ {
		store.On("Get", mock.Anything, "uploads/img.png").
			Return(imageReader(t, 640, 480), nil).
			Once()
	}
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, "video/mp4").
		Return("https://cdn.example.com/v.mp4", nil)

	stub := &encoder.StubInvoker{}
	tempRoot := t.TempDir()
	svc := NewService(template.NewRegistry(), store, stub, tempRoot, nil)
	var wg sync.WaitGroup
	results := make([]*Result, runs)
	errs := make([]error, runs)

	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Generate(context.Background(), Request{
				ImageKey:   "uploads/img.png",
				TemplateID: "zoom-ambient",
			})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, runs)
	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i], "run %d", i)
		assert.False(t, seen[results[i].RunID], "duplicate run ID %s", results[i].RunID)
		seen[results[i].RunID] = true
	}

	// Every run-scoped directory was removed.
	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// skipIfNoFFmpeg skips the test if ffmpeg is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

func TestGenerate_RealEncoderDuration(t *testing.T) {
	skipIfNoFFmpeg(t)

	tempRoot := t.TempDir()
	local, err := storage.NewLocalStorage(tempRoot)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = local.Put(ctx, "uploads/src.png", bytes.NewReader(testImagePNG(t, 1280, 720)), "image/png")
	require.NoError(t, err)

	path, err := encoder.ResolveBinary("")
	require.NoError(t, err)

	svc := NewService(
		template.NewRegistry(),
		local,
		encoder.NewFFmpegInvoker(path, nil),
		tempRoot,
		nil,
		WithEncoderCheck(func() error {
			_, err := encoder.ResolveBinary("")
			return err
		}),
	)

	res, err := svc.Generate(ctx, Request{
		ImageKey:   "uploads/src.png",
		TemplateID: "zoom-ambient",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.VideoBytes)

	out := filepath.Join(t.TempDir(), "check.mp4")
	require.NoError(t, os.WriteFile(out, res.VideoBytes, 0600))

	duration, err := encoder.ProbeDuration(ctx, encoder.ProbePath(path), out)
	require.NoError(t, err)

	// 6s clip, tolerance of one frame interval at 25fps.
	assert.InDelta(t, 6.0, duration, 1.0/25+0.001)
}
