// Package render turns frame geometry into rasters on disk. It decodes
// the uploaded source image, applies the per-frame crop window with a
// high-quality resampling kernel, composites the optional title layer
// and writes numbered PNG frames for the encoder to consume.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/snapreel/snapreel-api/internal/anim"

	_ "image/gif"  // register GIF decoding
	_ "image/jpeg" // register JPEG decoding
)

// FramePattern is the printf-style filename pattern for zoom frames.
const FramePattern = "frame_%04d.png"

// Decode parses uploaded image bytes into an image. JPEG, PNG and GIF
// sources are accepted.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// WriteZoomFrames renders every frame of a zoom clip into dir and
// returns the encoder input pattern. Frames are independent of each
// other, so they are rendered in parallel bounded by workers; the
// output bytes do not depend on the degree of parallelism.
func WriteZoomFrames(ctx context.Context, src image.Image, total int, layer *image.RGBA, dir string, workers int) (string, error) {
	if total <= 0 {
		return "", fmt.Errorf("render: frame count must be positive, got %d", total)
	}
	if workers < 1 {
		workers = 1
	}

	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < total; i++ {
		spec := anim.ZoomFrameSpec(srcW, srcH, i, total)
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			frame := renderFrame(src, spec, layer)
			path := filepath.Join(dir, fmt.Sprintf(FramePattern, spec.Index))
			if err := writePNG(path, frame); err != nil {
				return fmt.Errorf("render frame %d: %w", spec.Index, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	return filepath.Join(dir, FramePattern), nil
}

// WriteSlideImage composites the optional title layer onto the
// full-resolution source and writes a single PNG. The pan itself is
// deferred to the encoder's filter expression, so this runs once per
// clip rather than once per frame.
func WriteSlideImage(src image.Image, layer *image.RGBA, path string) error {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)

	if layer != nil {
		draw.Draw(out, out.Bounds(), layer, layer.Bounds().Min, draw.Over)
	}

	if err := writePNG(path, out); err != nil {
		return fmt.Errorf("render slide image: %w", err)
	}
	return nil
}

// renderFrame scales the source to the spec's dimensions with a
// Catmull-Rom kernel, extracts the centered crop window and composites
// the title layer on top.
func renderFrame(src image.Image, spec anim.FrameSpec, layer *image.RGBA) *image.RGBA {
	scaled := image.NewRGBA(image.Rect(0, 0, spec.ScaledWidth, spec.ScaledHeight))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)

	crop := image.Rect(
		spec.Crop.Left,
		spec.Crop.Top,
		spec.Crop.Left+spec.Crop.Width,
		spec.Crop.Top+spec.Crop.Height,
	)

	frame := image.NewRGBA(image.Rect(0, 0, spec.Crop.Width, spec.Crop.Height))
	draw.Draw(frame, frame.Bounds(), scaled, crop.Min, draw.Src)

	if layer != nil {
		draw.Draw(frame, frame.Bounds(), layer, layer.Bounds().Min, draw.Over)
	}

	return frame
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path) // #nosec G304 - path is inside the run-scoped temp dir
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}

	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close frame file: %w", err)
	}
	return nil
}
