package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapreel/snapreel-api/internal/anim"
	"github.com/snapreel/snapreel-api/internal/overlay"
)

// testImage creates a solid-color source image.
func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	t.Run("valid png", func(t *testing.T) {
		img, err := Decode(pngBytes(t, testImage(32, 16)))
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
		assert.Equal(t, 16, img.Bounds().Dy())
	})

	t.Run("garbage bytes", func(t *testing.T) {
		_, err := Decode([]byte("not an image"))
		require.Error(t, err)
	})

	t.Run("empty bytes", func(t *testing.T) {
		_, err := Decode(nil)
		require.Error(t, err)
	})
}

func TestWriteZoomFrames(t *testing.T) {
	dir := t.TempDir()
	src := testImage(1920, 1080)

	const total = 10
	pattern, err := WriteZoomFrames(context.Background(), src, total, nil, dir, 4)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FramePattern), pattern)

	for i := 0; i < total; i++ {
		path := filepath.Join(dir, fmt.Sprintf(FramePattern, i))
		f, err := os.Open(path)
		require.NoError(t, err, "frame %d missing", i)

		img, err := png.Decode(f)
		require.NoError(t, f.Close())
		require.NoError(t, err)

		assert.Equal(t, anim.OutputWidth, img.Bounds().Dx(), "frame %d width", i)
		assert.Equal(t, anim.OutputHeight, img.Bounds().Dy(), "frame %d height", i)
	}
}

func TestWriteZoomFrames_SmallSourceStillCoversCanvas(t *testing.T) {
	dir := t.TempDir()
	src := testImage(320, 240)

	_, err := WriteZoomFrames(context.Background(), src, 3, nil, dir, 2)
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, fmt.Sprintf(FramePattern, 0)))
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, anim.OutputWidth, img.Bounds().Dx())
	assert.Equal(t, anim.OutputHeight, img.Bounds().Dy())
}

func TestWriteZoomFrames_WithOverlay(t *testing.T) {
	dir := t.TempDir()
	src := testImage(1920, 1080)

	layer, err := overlay.Render("Fresh Coffee", anim.OutputWidth, anim.OutputHeight, 80)
	require.NoError(t, err)
	require.NotNil(t, layer)

	_, err = WriteZoomFrames(context.Background(), src, 2, layer, dir, 1)
	require.NoError(t, err)

	// A frame with overlay differs from the same frame without it.
	withOverlay, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf(FramePattern, 0)))
	require.NoError(t, err)

	plainDir := t.TempDir()
	_, err = WriteZoomFrames(context.Background(), src, 2, nil, plainDir, 1)
	require.NoError(t, err)
	plain, err := os.ReadFile(filepath.Join(plainDir, fmt.Sprintf(FramePattern, 0)))
	require.NoError(t, err)

	assert.NotEqual(t, plain, withOverlay)
}

func TestWriteZoomFrames_ParallelismDoesNotChangeBytes(t *testing.T) {
	src := testImage(800, 600)

	serialDir := t.TempDir()
	parallelDir := t.TempDir()

	_, err := WriteZoomFrames(context.Background(), src, 6, nil, serialDir, 1)
	require.NoError(t, err)
	_, err = WriteZoomFrames(context.Background(), src, 6, nil, parallelDir, 4)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		name := fmt.Sprintf(FramePattern, i)
		a, err := os.ReadFile(filepath.Join(serialDir, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(parallelDir, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, "frame %d differs between serial and parallel render", i)
	}
}

func TestWriteZoomFrames_InvalidCount(t *testing.T) {
	_, err := WriteZoomFrames(context.Background(), testImage(100, 100), 0, nil, t.TempDir(), 1)
	require.Error(t, err)
}

func TestWriteZoomFrames_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WriteZoomFrames(ctx, testImage(1920, 1080), 50, nil, t.TempDir(), 2)
	require.Error(t, err)
}

func TestWriteSlideImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slide.png")
	src := testImage(2400, 720)

	layer, err := overlay.Render("Summer Sale", 2400, 720, 85)
	require.NoError(t, err)

	require.NoError(t, WriteSlideImage(src, layer, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)

	// Slide keeps the full-resolution source; the pan happens in the encoder.
	assert.Equal(t, 2400, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())
}
