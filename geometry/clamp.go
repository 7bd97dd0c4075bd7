package geometry

import (
	"math"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
)

// Constraints are the pixel-space bounds a crop rectangle must satisfy,
// expressed in the display coordinate space of the transformed image.
type Constraints struct {
	MaxSize      core.Dimensions
	MinWidth     float64
	MinHeight    float64
	MaxWidth     float64
	MaxHeight    float64
	StaticWidth  float64
	StaticHeight float64
}

// Clamp re-fits pos against the constraints without re-applying any
// aspect-ratio defaults: the size is clamped into [min, max] around the
// rectangle's centre, then the rectangle is shifted back inside the bounds.
// A configured static size takes precedence and fixes the size outright,
// capped at the container.
func Clamp(pos core.CropperPosition, c Constraints) core.CropperPosition {
	if c.MaxSize.Width <= 0 || c.MaxSize.Height <= 0 {
		return pos
	}

	if c.StaticWidth > 0 && c.StaticHeight > 0 {
		w := math.Min(c.StaticWidth, c.MaxSize.Width)
		h := math.Min(c.StaticHeight, c.MaxSize.Height)
		x1 := clampFloat(pos.X1, 0, c.MaxSize.Width-w)
		y1 := clampFloat(pos.Y1, 0, c.MaxSize.Height-h)
		return core.CropperPosition{X1: x1, Y1: y1, X2: x1 + w, Y2: y1 + h}
	}

	w := clampFloat(pos.Width(), c.MinWidth, math.Max(c.MinWidth, c.MaxWidth))
	h := clampFloat(pos.Height(), c.MinHeight, math.Max(c.MinHeight, c.MaxHeight))
	// The container is an absolute ceiling regardless of configured sizes.
	w = math.Min(w, c.MaxSize.Width)
	h = math.Min(h, c.MaxSize.Height)

	cx := (pos.X1 + pos.X2) / 2
	cy := (pos.Y1 + pos.Y2) / 2
	x1 := clampFloat(cx-w/2, 0, c.MaxSize.Width-w)
	y1 := clampFloat(cy-h/2, 0, c.MaxSize.Height-h)
	return core.CropperPosition{X1: x1, Y1: y1, X2: x1 + w, Y2: y1 + h}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
