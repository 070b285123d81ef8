// Package overlay renders the optional title layer composited on top of
// generated frames. The layer is a transparent raster with a drop-shadow
// pass beneath a solid white title pass, both horizontally centered.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// shadowOffsetY is the vertical offset of the drop-shadow pass in pixels.
const shadowOffsetY = 3

var shadowColor = color.RGBA{0, 0, 0, 180}

// Escape replaces the five XML metacharacters in user-supplied titles.
// Titles come from arbitrary product names and must be escaped before
// being embedded into any markup or metadata context; skipping this is
// a correctness bug, not an optimization.
func Escape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

// FontSize returns the title font size for a canvas, scaled to the
// smaller canvas dimension with a floor of 28.
func FontSize(canvasW, canvasH int) float64 {
	size := float64(min(canvasW, canvasH)) / 24
	if size < 28 {
		size = 28
	}
	return size
}

// Render draws text onto a transparent canvasW x canvasH layer. The
// title baseline sits at anchorYPercent of the canvas height. The
// returned layer is nil when text is empty, so callers pay no canvas
// cost for runs without an overlay.
func Render(text string, canvasW, canvasH int, anchorYPercent float64) (*image.RGBA, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if canvasW <= 0 || canvasH <= 0 {
		return nil, fmt.Errorf("overlay: invalid canvas %dx%d", canvasW, canvasH)
	}

	face, err := newFace(FontSize(canvasW, canvasH))
	if err != nil {
		return nil, fmt.Errorf("overlay: load font: %w", err)
	}
	defer face.Close()

	layer := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))

	drawer := &font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(color.White),
		Face: face,
	}

	bounds, _ := drawer.BoundString(text)
	textW := (bounds.Max.X - bounds.Min.X).Ceil()

	x := (canvasW - textW) / 2
	if x < 0 {
		x = 0
	}
	y := int(float64(canvasH) * anchorYPercent / 100)

	shadow := &font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(shadowColor),
		Face: face,
		Dot:  fixed.P(x, y+shadowOffsetY),
	}
	shadow.DrawString(text)

	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(text)

	return layer, nil
}

// newFace builds a font face from the embedded Go Regular font.
func newFace(size float64) (font.Face, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
