// Package exporter produces the final cropped output from an engine snapshot.
// It maps the display-space cropper rectangle back into the transformed
// image's pixel space, applies the user display transform, and re-encodes.
package exporter

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/config"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
)

// Exporter renders crop results.  It is stateless apart from the codec
// registry and safe for concurrent use.
type Exporter struct {
	registry core.Registry
}

// New creates an Exporter backed by the given codec registry.
func New(reg core.Registry) *Exporter { return &Exporter{registry: reg} }

// Result is one completed export.
type Result struct {
	// Data holds the encoded bytes.  Always populated.
	Data []byte

	// Base64 holds a data URI when the Output option is base64, else "".
	Base64 string

	// Bitmap is the final rendered pixel buffer.
	Bitmap image.Image

	Width  int
	Height int

	// CropperPosition is the display-space rectangle the export used.
	CropperPosition core.CropperPosition

	// ImagePosition is the same rectangle in transformed-image pixels.
	ImagePosition core.CropperPosition
}

// Crop renders the snapshot's cropper rectangle to an encoded image.
func (e *Exporter) Crop(ctx context.Context, in core.CropInput) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "crop", err)
	}
	if in.LoadedImage == nil || in.LoadedImage.Transformed == nil || in.LoadedImage.Transformed.Bitmap == nil {
		return nil, apperrors.New(apperrors.CategoryRender, "crop", apperrors.ErrNoLoadedImage)
	}

	src := in.LoadedImage.Transformed.Bitmap
	size := in.LoadedImage.Transformed.Size
	imagePos := imagePosition(in.Position, size, in.MaxSize)

	cw := int(math.Round(imagePos.Width()))
	ch := int(math.Round(imagePos.Height()))
	if cw <= 0 || ch <= 0 {
		return nil, apperrors.New(apperrors.CategoryRender, "crop", apperrors.ErrInvalidDimensions)
	}

	canvas := applyDisplayTransform(src, in.Transform)

	rect := image.Rect(
		int(math.Round(imagePos.X1)), int(math.Round(imagePos.Y1)),
		int(math.Round(imagePos.X2)), int(math.Round(imagePos.Y2)),
	)
	out := imaging.Crop(canvas, rect)

	if ratio := resizeRatio(float64(cw), float64(ch), in.Options); ratio != 1 {
		out = imaging.Resize(out,
			int(math.Round(float64(cw)*ratio)),
			int(math.Round(float64(ch)*ratio)),
			imaging.Lanczos)
	}

	if in.Options.RoundCropper {
		maskEllipse(out)
	}
	if in.Options.BackgroundColor != "" {
		bg, err := parseColor(in.Options.BackgroundColor)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryConfig, "crop.background", err)
		}
		out = flattenOnto(out, bg)
	}

	format := core.FormatFromName(in.Options.Format)
	enc, ok := e.registry.EncoderFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryRender, "crop.encode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}
	encoded, err := enc.Encode(ctx, out, core.EncodeOptions{Quality: in.Options.ImageQuality})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "crop.encode", err)
	}
	if len(encoded) == 0 {
		return nil, apperrors.New(apperrors.CategoryRender, "crop.encode", apperrors.ErrEmptyRender)
	}

	res := &Result{
		Data:            encoded,
		Bitmap:          out,
		Width:           out.Bounds().Dx(),
		Height:          out.Bounds().Dy(),
		CropperPosition: in.Position,
		ImagePosition:   imagePos,
	}
	if in.Options.Output == config.OutputBase64 {
		res.Base64 = "data:image/" + string(format) + ";base64," +
			base64.StdEncoding.EncodeToString(encoded)
	}
	return res, nil
}

// imagePosition converts the display-space cropper rectangle to pixel
// coordinates on the transformed image and clamps it inside the image.
func imagePosition(pos core.CropperPosition, imageSize, maxSize core.Dimensions) core.CropperPosition {
	ratio := 1.0
	if maxSize.Width > 0 {
		ratio = imageSize.Width / maxSize.Width
	}
	out := core.CropperPosition{
		X1: math.Round(pos.X1 * ratio),
		Y1: math.Round(pos.Y1 * ratio),
		X2: math.Round(pos.X2 * ratio),
		Y2: math.Round(pos.Y2 * ratio),
	}
	out.X1 = math.Max(out.X1, 0)
	out.Y1 = math.Max(out.Y1, 0)
	out.X2 = math.Min(out.X2, imageSize.Width)
	out.Y2 = math.Min(out.Y2, imageSize.Height)
	return out
}

// applyDisplayTransform bakes the user display transform into a bitmap whose
// bounds match the source, so crop coordinates stay valid.  Flips mirror in
// place; scale grows or shrinks the image about its center; translate shifts
// by a percentage of the image extent; rotate turns about the center with the
// overflow clipped away.
func applyDisplayTransform(src image.Image, t core.ImageTransform) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	out := imaging.Clone(src)
	if t.FlipH {
		out = imaging.FlipH(out)
	}
	if t.FlipV {
		out = imaging.FlipV(out)
	}
	if t.Rotate != 0 {
		rotated := imaging.Rotate(out, -t.Rotate, color.Transparent)
		out = imaging.CropCenter(rotated, w, h)
	}
	if t.Scale != 0 && t.Scale != 1 {
		sw := int(math.Round(float64(w) * t.Scale))
		sh := int(math.Round(float64(h) * t.Scale))
		if sw > 0 && sh > 0 {
			scaled := imaging.Resize(out, sw, sh, imaging.Lanczos)
			canvas := imaging.New(w, h, color.Transparent)
			out = imaging.PasteCenter(canvas, scaled)
		}
	}
	if t.TranslateH != 0 || t.TranslateV != 0 {
		dx, dy := t.TranslateH, t.TranslateV
		if t.TranslateUnit != "px" {
			dx = dx / 100 * float64(w)
			dy = dy / 100 * float64(h)
		}
		canvas := imaging.New(w, h, color.Transparent)
		out = imaging.Paste(canvas, out, image.Pt(int(math.Round(dx)), int(math.Round(dy))))
	}
	return out
}

// resizeRatio derives the output scale from ResizeToWidth/ResizeToHeight.
// When both are set the smaller ratio wins so neither bound is exceeded, and
// OnlyScaleDown caps the ratio at 1.
func resizeRatio(width, height float64, opts config.Options) float64 {
	ratioWidth := 1000000.0
	ratioHeight := 1000000.0
	if opts.ResizeToWidth > 0 {
		ratioWidth = opts.ResizeToWidth / width
	}
	if opts.ResizeToHeight > 0 {
		ratioHeight = opts.ResizeToHeight / height
	}
	ratio := math.Min(ratioWidth, ratioHeight)
	if ratio == 1000000.0 {
		return 1
	}
	if opts.OnlyScaleDown {
		return math.Min(ratio, 1)
	}
	return ratio
}

// maskEllipse zeroes the alpha of every pixel outside the inscribed ellipse.
func maskEllipse(img *image.NRGBA) {
	b := img.Bounds()
	cx := float64(b.Dx()) / 2
	cy := float64(b.Dy()) / 2
	if cx == 0 || cy == 0 {
		return
	}
	for y := 0; y < b.Dy(); y++ {
		fy := (float64(y) + 0.5 - cy) / cy
		for x := 0; x < b.Dx(); x++ {
			fx := (float64(x) + 0.5 - cx) / cx
			if fx*fx+fy*fy > 1 {
				img.Pix[y*img.Stride+x*4+3] = 0
			}
		}
	}
}

// flattenOnto composites the image over a solid background, discarding alpha.
func flattenOnto(img *image.NRGBA, bg color.Color) *image.NRGBA {
	canvas := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), bg)
	return imaging.OverlayCenter(canvas, img, 1.0)
}

// parseColor understands #rgb, #rrggbb and #rrggbbaa hex notations plus a few
// common CSS keywords.
func parseColor(s string) (color.Color, error) {
	switch s {
	case "white":
		return color.NRGBA{255, 255, 255, 255}, nil
	case "black":
		return color.NRGBA{0, 0, 0, 255}, nil
	case "transparent":
		return color.NRGBA{}, nil
	}
	if len(s) == 0 || s[0] != '#' {
		return nil, fmt.Errorf("unsupported background color %q", s)
	}
	hex := s[1:]
	var c color.NRGBA
	c.A = 255
	switch len(hex) {
	case 3:
		_, err := fmt.Sscanf(hex, "%1x%1x%1x", &c.R, &c.G, &c.B)
		if err != nil {
			return nil, fmt.Errorf("unsupported background color %q", s)
		}
		c.R *= 17
		c.G *= 17
		c.B *= 17
	case 6:
		if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
			return nil, fmt.Errorf("unsupported background color %q", s)
		}
	case 8:
		if _, err := fmt.Sscanf(hex, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A); err != nil {
			return nil, fmt.Errorf("unsupported background color %q", s)
		}
	default:
		return nil, fmt.Errorf("unsupported background color %q", s)
	}
	return c, nil
}
