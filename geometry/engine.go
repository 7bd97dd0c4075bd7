// Package geometry owns the crop rectangle and its derived pixel-space
// constraints, reconciling option updates, container resizes, and image
// changes into a rectangle that is never inverted, zero-area, or
// out-of-bounds.
package geometry

import (
	"math"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/config"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
)

// minCropperSize is the hard minimum usable handle size in display pixels,
// regardless of configuration.
const minCropperSize = 20.0

// Engine is the cropper state machine.  It starts Empty (no image, zero
// maxSize) and becomes Ready once an image is loaded and the hosting renderer
// has seeded the display size via SetMaxSize.
//
// An Engine serves a single logical thread of control; callers serialize
// access.  The position cell itself is safe to read from observers.
type Engine struct {
	options   config.Options
	maxSize   core.Dimensions
	loaded    *core.LoadedImage
	transform core.ImageTransform
	position  *Cell[core.CropperPosition]

	scaledMinWidth  float64
	scaledMinHeight float64
	scaledMaxWidth  float64
	scaledMaxHeight float64

	// initialized flips when the first SetMaxSize after a load seeds the
	// full-frame position.
	initialized bool
}

// NewEngine returns an Empty engine with the given options applied.
func NewEngine(opts config.Options) (*Engine, error) {
	if err := config.Validate(opts); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "geometry.new", err)
	}
	e := &Engine{
		options:         opts,
		position:        NewCell(core.CropperPosition{}),
		scaledMinWidth:  minCropperSize,
		scaledMinHeight: minCropperSize,
	}
	return e, nil
}

// Options returns the current option set.
func (e *Engine) Options() config.Options { return e.options }

// Position returns the observable crop rectangle cell.
func (e *Engine) Position() *Cell[core.CropperPosition] { return e.position }

// MaxSize returns the display-space size of the transformed image.
func (e *Engine) MaxSize() core.Dimensions { return e.maxSize }

// ScaledMinSize returns the crop rectangle's minimum size in display pixels.
func (e *Engine) ScaledMinSize() core.Dimensions {
	return core.Dimensions{Width: e.scaledMinWidth, Height: e.scaledMinHeight}
}

// ScaledMaxSize returns the crop rectangle's maximum size in display pixels.
func (e *Engine) ScaledMaxSize() core.Dimensions {
	return core.Dimensions{Width: e.scaledMaxWidth, Height: e.scaledMaxHeight}
}

// LoadedImage returns the image currently owned by the engine, or nil.
func (e *Engine) LoadedImage() *core.LoadedImage { return e.loaded }

// SetTransform stores the user-controlled display transform carried into
// snapshots.
func (e *Engine) SetTransform(t core.ImageTransform) { e.transform = t }

// Transform returns the current user-controlled display transform.
func (e *Engine) Transform() core.ImageTransform { return e.transform }

// Load hands a freshly loaded image to the engine.  The previous image's
// resource handles are released, except variants shared with the new image
// (a retransform keeps the original variant alive).  The hosting renderer is
// expected to call SetMaxSize next, which seeds the initial full-frame
// position.
func (e *Engine) Load(loaded *core.LoadedImage) {
	old := e.loaded
	if old != nil && old != loaded {
		releaseUnshared(old, loaded)
	}
	e.loaded = loaded
	e.initialized = false
	e.recomputeScaledMinSize()
	e.recomputeScaledMaxSize()
}

// releaseUnshared releases old's variants that the new image does not alias.
func releaseUnshared(old, next *core.LoadedImage) {
	shared := func(v *core.ImageVariant) bool {
		return next != nil && (v == next.Original || v == next.Transformed)
	}
	if old.Transformed != nil && !shared(old.Transformed) {
		old.Transformed.ReleaseResource()
	}
	if old.Original != nil && !shared(old.Original) {
		old.Original.ReleaseResource()
	}
}

// SetMaxSize replaces the display-space size and recomputes the scaled
// constraints.  The first call after a load seeds the full-frame position;
// later calls rescale the current rectangle proportionally per axis so the
// relative crop location is preserved.
func (e *Engine) SetMaxSize(width, height float64) {
	old := e.maxSize
	e.maxSize = core.Dimensions{Width: width, Height: height}
	e.recomputeScaledMinSize()
	e.recomputeScaledMaxSize()

	if e.loaded == nil {
		return
	}
	if !e.initialized {
		e.resetPosition()
		e.initialized = true
		return
	}
	if old.Width <= 0 || old.Height <= 0 {
		return
	}
	cur := e.position.Get()
	e.position.Set(core.CropperPosition{
		X1: cur.X1 * width / old.Width,
		Y1: cur.Y1 * height / old.Height,
		X2: cur.X2 * width / old.Width,
		Y2: cur.Y2 * height / old.Height,
	})
}

// SetOptions merges a partial update over the current options (shallow field
// replacement) and reconciles the crop rectangle with the new constraints.
// A configuration error is raised before any state mutation, leaving prior
// state intact.
func (e *Engine) SetOptions(p config.Partial) error {
	merged := config.Merge(e.options, p)
	if err := config.Validate(merged); err != nil {
		return apperrors.Wrap(apperrors.CategoryConfig, "geometry.set_options", err)
	}

	prev := e.options
	e.options = merged

	// Without an image there is no position work to do.
	if e.loaded == nil {
		return nil
	}

	dirty := false
	didReset := false
	switch {
	case p.TouchesAspect(prev):
		e.recomputeScaledMinSize()
		e.recomputeScaledMaxSize()
		if merged.MaintainAspectRatio &&
			(merged.ResetCropOnAspectRatioChange || !e.aspectRatioCorrect()) {
			e.resetPosition()
			didReset = true
		}
	case p.TouchesMinSize():
		e.recomputeScaledMinSize()
		dirty = true
	case p.TouchesMaxSize():
		e.recomputeScaledMaxSize()
		dirty = true
	case p.TouchesStaticSize():
		dirty = true
	}

	if dirty && !didReset && e.initialized {
		e.clampPosition()
	}
	return nil
}

// Snapshot exports the read-only crop input consumed by the exporter.  It is
// a value copy; the engine keeps ownership of the mutable state.
func (e *Engine) Snapshot() core.CropInput {
	return core.CropInput{
		Position:    e.position.Get(),
		MaxSize:     e.maxSize,
		Transform:   e.transform,
		LoadedImage: e.loaded,
		Options:     e.options,
	}
}

// ResetPosition restores the full-frame rectangle (aspect-corrected when
// aspect-ratio maintenance is on).
func (e *Engine) ResetPosition() { e.resetPosition() }

// aspectRatioCorrect reports whether the current rectangle's ratio exactly
// equals the configured aspect ratio.  No tolerance: any rescale that does
// not preserve it exactly is treated as incorrect.
func (e *Engine) aspectRatioCorrect() bool {
	return e.position.Get().AspectRatio() == e.options.AspectRatio
}

// resetPosition sets the largest rectangle the container admits: the full
// frame, shrunk and centred along one axis when an aspect ratio is enforced,
// or the configured static size when one is set.
func (e *Engine) resetPosition() {
	o := e.options
	if o.CropperStaticWidth > 0 && o.CropperStaticHeight > 0 {
		w := math.Min(o.CropperStaticWidth, e.maxSize.Width)
		h := math.Min(o.CropperStaticHeight, e.maxSize.Height)
		e.position.Set(core.CropperPosition{X2: w, Y2: h})
		return
	}
	if !o.MaintainAspectRatio {
		e.position.Set(core.CropperPosition{X2: e.maxSize.Width, Y2: e.maxSize.Height})
		return
	}

	w := e.maxSize.Width
	h := e.maxSize.Height
	if w/o.AspectRatio < h {
		h = w / o.AspectRatio
	} else {
		w = h * o.AspectRatio
	}
	x1 := (e.maxSize.Width - w) / 2
	y1 := (e.maxSize.Height - h) / 2
	e.position.Set(core.CropperPosition{X1: x1, Y1: y1, X2: x1 + w, Y2: y1 + h})
}

// clampPosition re-fits the rectangle against the current constraints,
// non-destructively: aspect-ratio defaults are not silently re-applied.
func (e *Engine) clampPosition() {
	cur := e.position.Get()
	clamped := Clamp(cur, e.constraints())
	if !clamped.Equal(cur) {
		e.position.Set(clamped)
	}
}

func (e *Engine) constraints() Constraints {
	return Constraints{
		MaxSize:      e.maxSize,
		MinWidth:     e.scaledMinWidth,
		MinHeight:    e.scaledMinHeight,
		MaxWidth:     e.scaledMaxWidth,
		MaxHeight:    e.scaledMaxHeight,
		StaticWidth:  e.options.CropperStaticWidth,
		StaticHeight: e.options.CropperStaticHeight,
	}
}

// recomputeScaledMinSize derives the minimum crop size in display pixels
// from configuration expressed in natural-image pixels.  When aspect-ratio
// maintenance is on, the minimum height follows the width: the ratio takes
// precedence over an independently configured minimum height.
func (e *Engine) recomputeScaledMinSize() {
	ratio, ok := e.displayRatio()
	if !ok {
		e.scaledMinWidth = minCropperSize
		e.scaledMinHeight = minCropperSize
		return
	}

	if e.options.CropperMinWidth > 0 {
		e.scaledMinWidth = math.Max(minCropperSize, e.options.CropperMinWidth/ratio)
	} else {
		e.scaledMinWidth = minCropperSize
	}

	switch {
	case e.options.MaintainAspectRatio:
		e.scaledMinHeight = e.scaledMinWidth / e.options.AspectRatio
	case e.options.CropperMinHeight > 0:
		e.scaledMinHeight = math.Max(minCropperSize, e.options.CropperMinHeight/ratio)
	default:
		e.scaledMinHeight = minCropperSize
	}
}

// recomputeScaledMaxSize derives the maximum crop size in display pixels.
// With aspect-ratio maintenance the wider dimension is clamped down to the
// target ratio; width is the tie-break anchor.
func (e *Engine) recomputeScaledMaxSize() {
	ratio, ok := e.displayRatio()
	if !ok {
		e.scaledMaxWidth = e.maxSize.Width
		e.scaledMaxHeight = e.maxSize.Height
		return
	}

	if e.options.CropperMaxWidth > minCropperSize {
		e.scaledMaxWidth = e.options.CropperMaxWidth / ratio
	} else {
		e.scaledMaxWidth = e.maxSize.Width
	}
	if e.options.CropperMaxHeight > minCropperSize {
		e.scaledMaxHeight = e.options.CropperMaxHeight / ratio
	} else {
		e.scaledMaxHeight = e.maxSize.Height
	}

	if e.options.MaintainAspectRatio {
		if e.scaledMaxWidth > e.scaledMaxHeight*e.options.AspectRatio {
			e.scaledMaxWidth = e.scaledMaxHeight * e.options.AspectRatio
		} else if e.scaledMaxWidth < e.scaledMaxHeight*e.options.AspectRatio {
			e.scaledMaxHeight = e.scaledMaxWidth / e.options.AspectRatio
		}
	}
}

// displayRatio is the natural-to-display pixel scale.  Uniform across axes by
// construction of the renderer, so the width ratio is reused for height.
func (e *Engine) displayRatio() (float64, bool) {
	if e.loaded == nil || e.loaded.Transformed == nil || e.maxSize.Width <= 0 {
		return 0, false
	}
	return e.loaded.Transformed.Size.Width / e.maxSize.Width, true
}
