package core

import (
	"image"
	"math"
	"strings"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/config"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatSVG     Format = "svg"
	FormatICO     Format = "ico"
	FormatUnknown Format = "unknown"
)

// acceptedMIMEPrefixes lists the MIME types the loader accepts when the
// CheckImageType option is enabled.  Matching is prefix-based and
// case-insensitive, so "image/svg+xml" matches "image/svg".
var acceptedMIMEPrefixes = []string{
	"image/png",
	"image/jpg",
	"image/jpeg",
	"image/heic",
	"image/bmp",
	"image/gif",
	"image/tiff",
	"image/svg",
	"image/webp",
	"image/x-icon",
	"image/vnd.microsoft.icon",
}

// IsAcceptedType reports whether the declared MIME type is one the loader
// accepts.  The check runs before any decode attempt.
func IsAcceptedType(mimeType string) bool {
	mt := strings.ToLower(mimeType)
	for _, prefix := range acceptedMIMEPrefixes {
		if strings.HasPrefix(mt, prefix) {
			return true
		}
	}
	return false
}

// MIMEToFormat maps a declared MIME type to a Format value.
func MIMEToFormat(mimeType string) Format {
	switch mt := strings.ToLower(mimeType); {
	case strings.HasPrefix(mt, "image/jpeg"), strings.HasPrefix(mt, "image/jpg"):
		return FormatJPEG
	case strings.HasPrefix(mt, "image/png"):
		return FormatPNG
	case strings.HasPrefix(mt, "image/gif"):
		return FormatGIF
	case strings.HasPrefix(mt, "image/webp"):
		return FormatWebP
	case strings.HasPrefix(mt, "image/bmp"):
		return FormatBMP
	case strings.HasPrefix(mt, "image/tiff"):
		return FormatTIFF
	case strings.HasPrefix(mt, "image/svg"):
		return FormatSVG
	case strings.HasPrefix(mt, "image/x-icon"), strings.HasPrefix(mt, "image/vnd.microsoft.icon"):
		return FormatICO
	}
	return FormatUnknown
}

// FormatFromName maps an option format name ("png", "jpeg", "jpg", ...) to a
// Format value.  Empty defaults to PNG.
func FormatFromName(name string) Format {
	switch strings.ToLower(name) {
	case "jpg", "jpeg":
		return FormatJPEG
	case "webp":
		return FormatWebP
	case "bmp":
		return FormatBMP
	case "png", "":
		return FormatPNG
	}
	return Format(strings.ToLower(name))
}

// Dimensions holds non-negative pixel extents.  Float64 because display-space
// sizes and "contain" canvas math are fractional; renderers round when
// allocating actual bitmaps.
type Dimensions struct {
	Width  float64
	Height float64
}

// Swapped returns the dimensions with the axes exchanged.
func (d Dimensions) Swapped() Dimensions { return Dimensions{Width: d.Height, Height: d.Width} }

// OrientationTransform is the canonical normalized orientation: Rotate counts
// quarter turns (taken modulo 4) and Flip is a horizontal mirror applied
// before the rotation.
type OrientationTransform struct {
	Rotate int
	Flip   bool
}

// Normalize reduces Rotate into [0,3].
func (o OrientationTransform) Normalize() OrientationTransform {
	o.Rotate = ((o.Rotate % 4) + 4) % 4
	return o
}

// IsIdentity reports whether the transform leaves pixels untouched.
func (o OrientationTransform) IsIdentity() bool {
	return o.Normalize().Rotate == 0 && !o.Flip
}

// SwapsAxes reports whether the rotation exchanges width and height.
func (o OrientationTransform) SwapsAxes() bool { return o.Normalize().Rotate%2 == 1 }

// ImageVariant is one concrete rendered form of an image: either the
// untouched decode or the transformed render.
type ImageVariant struct {
	// Bitmap is the decoded pixel buffer.
	Bitmap image.Image

	// Data holds the encoded bytes backing this variant.
	Data []byte

	// Resource is the revocable handle backing Data (an object-URL
	// equivalent).  Nil for variants that own no scoped resource.
	Resource *Resource

	Size Dimensions
}

// ReleaseResource releases the variant's scoped resource, if any.  Safe to
// call more than once.
func (v *ImageVariant) ReleaseResource() {
	if v != nil && v.Resource != nil {
		v.Resource.Release()
	}
}

// LoadedImage is the result of a completed load: the original decode, the
// transformed render, and the orientation resolved from metadata.
// Transformed is always non-nil once loading completes; it aliases Original
// when no transform was required.
type LoadedImage struct {
	Original    *ImageVariant
	Transformed *ImageVariant
	Orientation OrientationTransform
}

// Release frees both variants' resource handles.  Original and Transformed
// may reference distinct resources, so both are released; aliasing is safe
// because Resource.Release is idempotent.
func (l *LoadedImage) Release() {
	if l == nil {
		return
	}
	l.Original.ReleaseResource()
	l.Transformed.ReleaseResource()
}

// CropperPosition is a rectangle in the transformed image's display
// coordinate space.  After initialization 0 <= X1 < X2 <= maxSize.Width and
// 0 <= Y1 < Y2 <= maxSize.Height hold at all times.
type CropperPosition struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

func (p CropperPosition) Width() float64  { return p.X2 - p.X1 }
func (p CropperPosition) Height() float64 { return p.Y2 - p.Y1 }

// AspectRatio returns width/height.  Comparison against a configured ratio is
// exact; any rescale that does not preserve it exactly counts as incorrect.
func (p CropperPosition) AspectRatio() float64 { return p.Width() / p.Height() }

// Equal reports coordinate equality to three decimal places, tolerating
// floating-point drift from proportional rescaling.
func (p CropperPosition) Equal(q CropperPosition) bool {
	return round3(p.X1) == round3(q.X1) &&
		round3(p.Y1) == round3(q.Y1) &&
		round3(p.X2) == round3(q.X2) &&
		round3(p.Y2) == round3(q.Y2)
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// ImageTransform is the user-controlled display transform, applied on top of
// the resolved orientation by the renderer and honoured by the exporter.
// TranslateH/TranslateV are percentages of the image extent unless
// TranslateUnit is "px".
type ImageTransform struct {
	Scale         float64
	Rotate        float64
	FlipH         bool
	FlipV         bool
	TranslateH    float64
	TranslateV    float64
	TranslateUnit string
}

// CropInput is the read-only snapshot handed to the exporter.  It is a value
// copy; the engine retains ownership of the underlying mutable state.
type CropInput struct {
	Position    CropperPosition
	MaxSize     Dimensions
	Transform   ImageTransform
	LoadedImage *LoadedImage
	Options     config.Options
}
