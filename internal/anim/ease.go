// Package anim provides the easing and frame geometry math for the
// zoom and slide animation styles.
package anim

import "math"

// Ease maps normalized time t in [0,1] to eased progress using a
// sine-based ease-in-out curve. Ease(0)=0, Ease(1)=1, monotonic
// non-decreasing and symmetric around t=0.5.
func Ease(t float64) float64 {
	return (1 - math.Cos(math.Pi*t)) / 2
}
