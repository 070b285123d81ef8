package anim

import (
	"fmt"
	"math"
)

// Output canvas and timing constants shared by both animation styles.
const (
	// OutputWidth and OutputHeight define the output canvas.
	OutputWidth  = 1280
	OutputHeight = 720
	// FPS is the constant output frame rate.
	FPS = 25
	// MaxZoomDelta is the additional scale applied at full progress:
	// 0.6 means the frame at t=1 is zoomed 60% beyond the base scale.
	MaxZoomDelta = 0.6
)

// FrameCount returns the number of frames for a clip of the given
// duration at the fixed frame rate.
func FrameCount(durationSeconds int) int {
	return durationSeconds * FPS
}

// CropWindow is the rectangular region of the scaled source selected as
// one output frame, in scaled pixel space.
type CropWindow struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// FrameSpec describes the geometry of a single zoom frame. It is a pure
// function of the frame index and never mutated after creation.
type FrameSpec struct {
	// Index is the frame number in [0, total).
	Index int
	// Progress is linear time i/(N-1).
	Progress float64
	// EasedProgress is Ease(Progress).
	EasedProgress float64
	// ScaleFactor is the factor applied to the source dimensions,
	// floored so the scaled image always covers the output canvas.
	ScaleFactor float64
	// ScaledWidth and ScaledHeight are the rounded scaled source
	// dimensions the crop window is taken from.
	ScaledWidth  int
	ScaledHeight int
	// Crop is the centered output window.
	Crop CropWindow
}

// ZoomFrameSpec computes the geometry for frame index of a zoom clip
// with total frames, for a source of srcW x srcH pixels.
//
// The scale factor grows from 1 to 1+MaxZoomDelta under the eased curve
// and is clamped to the minimum factor that fully covers the output
// canvas, so the crop window never selects out-of-bounds pixels even
// for sources smaller than the canvas.
func ZoomFrameSpec(srcW, srcH, index, total int) FrameSpec {
	t := 1.0
	if total > 1 {
		t = float64(index) / float64(total-1)
	}
	et := Ease(t)

	factor := 1 + MaxZoomDelta*et
	minFactor := math.Max(
		float64(OutputWidth)/float64(srcW),
		float64(OutputHeight)/float64(srcH),
	)
	factor = math.Max(factor, minFactor)

	// Scaled dimensions stay in floating point until the pixel window
	// is computed, so rounding error does not compound along the curve.
	scaledWf := float64(srcW) * factor
	scaledHf := float64(srcH) * factor
	scaledW := int(math.Round(scaledWf))
	scaledH := int(math.Round(scaledHf))

	cropW := min(OutputWidth, scaledW)
	cropH := min(OutputHeight, scaledH)
	left := max(0, int(math.Round((scaledWf-OutputWidth)/2)))
	top := max(0, int(math.Round((scaledHf-OutputHeight)/2)))

	// Keep the window inside the scaled bounds after rounding.
	if left+cropW > scaledW {
		left = scaledW - cropW
	}
	if top+cropH > scaledH {
		top = scaledH - cropH
	}

	return FrameSpec{
		Index:         index,
		Progress:      t,
		EasedProgress: et,
		ScaleFactor:   factor,
		ScaledWidth:   scaledW,
		ScaledHeight:  scaledH,
		Crop: CropWindow{
			Left:   left,
			Top:    top,
			Width:  cropW,
			Height: cropH,
		},
	}
}

// ZoomFrameSpecs computes the full frame series for a zoom clip.
func ZoomFrameSpecs(srcW, srcH, total int) []FrameSpec {
	specs := make([]FrameSpec, total)
	for i := 0; i < total; i++ {
		specs[i] = ZoomFrameSpec(srcW, srcH, i, total)
	}
	return specs
}

// SlideFilter builds the declarative ffmpeg filter expression for the
// slide style: a fixed-height scale followed by a time-parameterized
// crop that pans left to right across the clip. The pan origin is
// clamped so the window never leaves the source bounds, and the crop
// width is bounded by the scaled width for narrow sources.
func SlideFilter(durationSeconds int) string {
	x := fmt.Sprintf("'min(max((iw-%d)*t/%d,0),max(iw-%d,0))'",
		OutputWidth, durationSeconds, OutputWidth)
	return fmt.Sprintf("scale=-2:%d,crop=w='min(iw,%d)':h=%d:x=%s:y=0",
		OutputHeight, OutputWidth, OutputHeight, x)
}
