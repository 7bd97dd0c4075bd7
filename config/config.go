// Package config holds the cropper option set, its default table, and the
// partial-merge semantics used by option updates.
package config

import "errors"

// OutputType selects how exported pixels are returned.
type OutputType string

const (
	OutputBlob   OutputType = "blob"
	OutputBase64 OutputType = "base64"
)

// Align controls horizontal placement of the image inside its container.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Options is the full cropper configuration.  Instances are immutable per
// update: every change goes through Merge, which returns a new value and
// never mutates the previous one.
type Options struct {
	Format   string
	Output   OutputType
	AutoCrop bool

	MaintainAspectRatio          bool
	AspectRatio                  float64
	ResetCropOnAspectRatioChange bool

	ResizeToWidth  float64
	ResizeToHeight float64

	CropperMinWidth     float64
	CropperMinHeight    float64
	CropperMaxWidth     float64
	CropperMaxHeight    float64
	CropperStaticWidth  float64
	CropperStaticHeight float64

	// CanvasRotation is the user-requested rotation in quarter turns; it is
	// combined with the resolved orientation by the transform pipeline.
	CanvasRotation int

	RoundCropper    bool
	OnlyScaleDown   bool
	ImageQuality    int
	BackgroundColor string

	ContainWithinAspectRatio bool
	HideResizeSquares        bool
	AlignImage               Align
	CropperFrameAriaLabel    string
	CheckImageType           bool
}

// Default returns the option table with every documented default applied.
func Default() Options {
	return Options{
		Format:                       "png",
		Output:                       OutputBlob,
		AutoCrop:                     true,
		MaintainAspectRatio:          true,
		AspectRatio:                  1,
		ResetCropOnAspectRatioChange: true,
		ImageQuality:                 92,
		AlignImage:                   AlignCenter,
		CheckImageType:               true,
	}
}

// Validate returns an error if the option set is internally inconsistent.
func Validate(o Options) error {
	if o.MaintainAspectRatio && o.AspectRatio <= 0 {
		return errors.New("config: AspectRatio must be positive when MaintainAspectRatio is set")
	}
	if o.ImageQuality < 0 || o.ImageQuality > 100 {
		return errors.New("config: ImageQuality must be between 0 and 100")
	}
	return nil
}

// Partial carries an option update.  Nil fields are left untouched by Merge;
// set fields replace the current value wholesale (shallow field replacement).
type Partial struct {
	Format   *string
	Output   *OutputType
	AutoCrop *bool

	MaintainAspectRatio          *bool
	AspectRatio                  *float64
	ResetCropOnAspectRatioChange *bool

	ResizeToWidth  *float64
	ResizeToHeight *float64

	CropperMinWidth     *float64
	CropperMinHeight    *float64
	CropperMaxWidth     *float64
	CropperMaxHeight    *float64
	CropperStaticWidth  *float64
	CropperStaticHeight *float64

	CanvasRotation *int

	RoundCropper    *bool
	OnlyScaleDown   *bool
	ImageQuality    *int
	BackgroundColor *string

	ContainWithinAspectRatio *bool
	HideResizeSquares        *bool
	AlignImage               *Align
	CropperFrameAriaLabel    *string
	CheckImageType           *bool
}

// TouchesAspect reports whether the update toggles MaintainAspectRatio
// relative to cur, or sets AspectRatio while aspect-ratio maintenance is in
// effect after the merge.
func (p Partial) TouchesAspect(cur Options) bool {
	if p.MaintainAspectRatio != nil && *p.MaintainAspectRatio != cur.MaintainAspectRatio {
		return true
	}
	maintain := cur.MaintainAspectRatio
	if p.MaintainAspectRatio != nil {
		maintain = *p.MaintainAspectRatio
	}
	return p.AspectRatio != nil && maintain
}

// TouchesMinSize reports whether the update sets a minimum-size option.
func (p Partial) TouchesMinSize() bool {
	return p.CropperMinWidth != nil || p.CropperMinHeight != nil
}

// TouchesMaxSize reports whether the update sets a maximum-size option.
func (p Partial) TouchesMaxSize() bool {
	return p.CropperMaxWidth != nil || p.CropperMaxHeight != nil
}

// TouchesCanvasTransform reports whether the update changes anything that
// feeds the canvas transform, requiring the transformed variant to be
// re-rendered from the original.
func (p Partial) TouchesCanvasTransform(cur Options) bool {
	if p.CanvasRotation != nil && *p.CanvasRotation != cur.CanvasRotation {
		return true
	}
	if p.ContainWithinAspectRatio != nil && *p.ContainWithinAspectRatio != cur.ContainWithinAspectRatio {
		return true
	}
	contain := cur.ContainWithinAspectRatio
	if p.ContainWithinAspectRatio != nil {
		contain = *p.ContainWithinAspectRatio
	}
	return contain && p.AspectRatio != nil && *p.AspectRatio != cur.AspectRatio
}

// TouchesStaticSize reports whether the update sets a static-size option.
func (p Partial) TouchesStaticSize() bool {
	return p.CropperStaticWidth != nil || p.CropperStaticHeight != nil
}

// Merge applies p over cur and returns the result as a new value.
func Merge(cur Options, p Partial) Options {
	out := cur
	if p.Format != nil {
		out.Format = *p.Format
	}
	if p.Output != nil {
		out.Output = *p.Output
	}
	if p.AutoCrop != nil {
		out.AutoCrop = *p.AutoCrop
	}
	if p.MaintainAspectRatio != nil {
		out.MaintainAspectRatio = *p.MaintainAspectRatio
	}
	if p.AspectRatio != nil {
		out.AspectRatio = *p.AspectRatio
	}
	if p.ResetCropOnAspectRatioChange != nil {
		out.ResetCropOnAspectRatioChange = *p.ResetCropOnAspectRatioChange
	}
	if p.ResizeToWidth != nil {
		out.ResizeToWidth = *p.ResizeToWidth
	}
	if p.ResizeToHeight != nil {
		out.ResizeToHeight = *p.ResizeToHeight
	}
	if p.CropperMinWidth != nil {
		out.CropperMinWidth = *p.CropperMinWidth
	}
	if p.CropperMinHeight != nil {
		out.CropperMinHeight = *p.CropperMinHeight
	}
	if p.CropperMaxWidth != nil {
		out.CropperMaxWidth = *p.CropperMaxWidth
	}
	if p.CropperMaxHeight != nil {
		out.CropperMaxHeight = *p.CropperMaxHeight
	}
	if p.CropperStaticWidth != nil {
		out.CropperStaticWidth = *p.CropperStaticWidth
	}
	if p.CropperStaticHeight != nil {
		out.CropperStaticHeight = *p.CropperStaticHeight
	}
	if p.CanvasRotation != nil {
		out.CanvasRotation = *p.CanvasRotation
	}
	if p.RoundCropper != nil {
		out.RoundCropper = *p.RoundCropper
	}
	if p.OnlyScaleDown != nil {
		out.OnlyScaleDown = *p.OnlyScaleDown
	}
	if p.ImageQuality != nil {
		out.ImageQuality = *p.ImageQuality
	}
	if p.BackgroundColor != nil {
		out.BackgroundColor = *p.BackgroundColor
	}
	if p.ContainWithinAspectRatio != nil {
		out.ContainWithinAspectRatio = *p.ContainWithinAspectRatio
	}
	if p.HideResizeSquares != nil {
		out.HideResizeSquares = *p.HideResizeSquares
	}
	if p.AlignImage != nil {
		out.AlignImage = *p.AlignImage
	}
	if p.CropperFrameAriaLabel != nil {
		out.CropperFrameAriaLabel = *p.CropperFrameAriaLabel
	}
	if p.CheckImageType != nil {
		out.CheckImageType = *p.CheckImageType
	}
	return out
}

// Pointer helpers for building Partial literals.

func String(v string) *string { return &v }
func Bool(v bool) *bool { return &v }
func Float(v float64) *float64 { return &v }
func Int(v int) *int { return &v }
func Output(v OutputType) *OutputType { return &v }
func AlignP(v Align) *Align { return &v }
