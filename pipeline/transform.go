package pipeline

import (
	"context"
	"fmt"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/config"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/orientation"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/sizer"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/utils"
)

// Load decodes raw bytes into a LoadedImage: the untouched original variant
// plus a transformed variant reflecting the resolved orientation, the
// user-requested canvas rotation, and the contain-within-aspect-ratio mode.
// The transformed variant aliases the original when no transform is required.
func (p *Pipeline) Load(ctx context.Context, data []byte, mimeType string, opts config.Options) (*core.LoadedImage, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "load", apperrors.ErrEmptyInput)
	}

	if err := p.runStage(ctx, "check_type", func() error {
		if !opts.CheckImageType || mimeType == "" {
			return nil
		}
		if !core.IsAcceptedType(mimeType) {
			return apperrors.New(apperrors.CategoryInput, "check_type",
				fmt.Errorf("%w: %s", apperrors.ErrInvalidImageType, mimeType))
		}
		return nil
	}); err != nil {
		return nil, err
	}

	format := core.MIMEToFormat(mimeType)
	if format == core.FormatUnknown {
		format = core.Format(utils.DetectFormat(data))
	}

	var (
		bmp image.Image
		dec core.Decoder
	)
	if err := p.runStage(ctx, "decode", func() error {
		var ok bool
		dec, ok = p.registry.DecoderFor(format)
		if !ok {
			return apperrors.New(apperrors.CategoryDecode, "decode",
				fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
		}
		var err error
		bmp, err = dec.Decode(ctx, utils.BytesReader(data))
		return apperrors.Wrap(apperrors.CategoryDecode, "decode", err)
	}); err != nil {
		return nil, err
	}

	var orient core.OrientationTransform
	if err := p.runStage(ctx, "orient", func() error {
		applied := false
		if oa, ok := dec.(core.OrientationApplier); ok {
			applied = oa.AppliesOrientation()
		}
		orient = orientation.Resolve(data, applied)
		return nil
	}); err != nil {
		return nil, err
	}

	var sizeRes sizer.Result
	if err := p.runStage(ctx, "resolve_size", func() error {
		var err error
		sizeRes, err = sizer.Resolve(data, mimeType)
		return err
	}); err != nil {
		return nil, err
	}

	bounds := bmp.Bounds()
	natural := core.Dimensions{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())}
	if sizeRes.Override {
		natural = sizeRes.Size
	}

	original := &core.ImageVariant{
		Bitmap: bmp,
		Data:   data,
		Size:   natural,
	}
	original.Resource = core.NewResource(func() {
		original.Bitmap = nil
		original.Data = nil
	})

	loaded := &core.LoadedImage{Original: original, Orientation: orient.Normalize()}

	if err := p.runStage(ctx, "transform", func() error {
		transformed, err := p.transform(ctx, loaded, opts)
		loaded.Transformed = transformed
		return err
	}); err != nil {
		original.ReleaseResource()
		return nil, err
	}
	return loaded, nil
}

// Retransform re-renders the transformed variant of an already loaded image
// under new options.  The original variant and orientation carry over
// unchanged; only the transform work reruns.  The returned LoadedImage shares
// the original variant with the input, so release only the superseded
// transformed variant when swapping results.
func (p *Pipeline) Retransform(ctx context.Context, loaded *core.LoadedImage, opts config.Options) (*core.LoadedImage, error) {
	if loaded == nil || loaded.Original == nil {
		return nil, apperrors.New(apperrors.CategoryRender, "retransform", apperrors.ErrNoLoadedImage)
	}
	out := &core.LoadedImage{Original: loaded.Original, Orientation: loaded.Orientation}
	if err := p.runStage(ctx, "transform", func() error {
		transformed, err := p.transform(ctx, out, opts)
		out.Transformed = transformed
		return err
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// transform decides between aliasing the original and performing a real
// render, and carries the render out.
func (p *Pipeline) transform(ctx context.Context, loaded *core.LoadedImage, opts config.Options) (*core.ImageVariant, error) {
	orient := loaded.Orientation.Normalize()
	effRotation := normalizeQuarterTurns(opts.CanvasRotation + orient.Rotate)
	target := TransformedSize(loaded.Original.Size, effRotation, opts)

	// The original bitmap can be reused unchanged only when nothing alters
	// pixels or canvas geometry.
	if !sizeOverridden(loaded.Original) && effRotation == 0 && !orient.Flip && !opts.ContainWithinAspectRatio {
		return loaded.Original, nil
	}
	return p.render(ctx, loaded.Original, target, effRotation, orient.Flip, opts)
}

// render allocates a canvas of the target size, draws the original through
// the composed affine transform, and re-encodes it in the requested output
// format.
func (p *Pipeline) render(ctx context.Context, original *core.ImageVariant, target core.Dimensions, rotation int, flip bool, opts config.Options) (*core.ImageVariant, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "render", err)
	}
	src := original.Bitmap
	if src == nil {
		return nil, apperrors.New(apperrors.CategoryRender, "render", apperrors.ErrEmptyInput)
	}
	cw := int(math.Round(target.Width))
	ch := int(math.Round(target.Height))
	if cw <= 0 || ch <= 0 {
		return nil, apperrors.New(apperrors.CategoryRender, "render", apperrors.ErrInvalidDimensions)
	}

	dst := image.NewRGBA(image.Rect(0, 0, cw, ch))
	m := DrawMatrix(target, original.Size, src.Bounds(), rotation, flip)
	xdraw.BiLinear.Transform(dst, m.Aff3(), src, src.Bounds(), xdraw.Over, nil)

	format := core.FormatFromName(opts.Format)
	enc, ok := p.registry.EncoderFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryRender, "render.encode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}
	encoded, err := enc.Encode(ctx, dst, core.EncodeOptions{Quality: opts.ImageQuality})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "render.encode", err)
	}
	if len(encoded) == 0 {
		return nil, apperrors.New(apperrors.CategoryRender, "render.encode", apperrors.ErrEmptyRender)
	}

	variant := &core.ImageVariant{
		Bitmap: dst,
		Data:   encoded,
		Size:   target,
	}
	variant.Resource = core.NewResource(func() {
		variant.Bitmap = nil
		variant.Data = nil
	})
	return variant, nil
}

// TransformedSize computes the target canvas size for the given original
// dimensions, effective rotation (quarter turns), and options.  An odd
// rotation swaps the axes for the containment math.  In contain mode the
// canvas is expanded (never cropped) so the post-rotation box matches the
// requested aspect ratio while fully containing the image.
func TransformedSize(original core.Dimensions, rotation int, opts config.Options) core.Dimensions {
	w, h := original.Width, original.Height
	odd := normalizeQuarterTurns(rotation)%2 == 1

	if opts.ContainWithinAspectRatio {
		ratio := opts.AspectRatio
		if odd {
			return core.Dimensions{
				Width:  math.Max(h, w*ratio),
				Height: math.Max(w, h/ratio),
			}
		}
		return core.Dimensions{
			Width:  math.Max(w, h*ratio),
			Height: math.Max(h, w/ratio),
		}
	}
	if odd {
		return original.Swapped()
	}
	return original
}

// DrawMatrix composes the affine draw transform: the bitmap is drawn centered
// at the origin, scaled to its natural size when a size override applies,
// mirrored horizontally about the canvas center when flip is set, and rotated
// by the effective rotation about the canvas center.  Mirror-then-rotate in
// that order is required for correctness with EXIF-standard orientation
// codes.
func DrawMatrix(canvas, natural core.Dimensions, srcBounds image.Rectangle, rotation int, flip bool) Affine {
	bw := float64(srcBounds.Dx())
	bh := float64(srcBounds.Dy())

	m := Translate(canvas.Width/2, canvas.Height/2)
	if flip {
		m = m.Multiply(Scale(-1, 1))
	}
	m = m.Multiply(Rotate(float64(normalizeQuarterTurns(rotation)) * math.Pi / 2))
	if bw > 0 && bh > 0 && (natural.Width != bw || natural.Height != bh) {
		m = m.Multiply(Scale(natural.Width/bw, natural.Height/bh))
	}
	return m.Multiply(Translate(-bw/2, -bh/2))
}

// sizeOverridden reports whether the size resolver forced dimensions that
// differ from the decoded bitmap's.
func sizeOverridden(v *core.ImageVariant) bool {
	if v.Bitmap == nil {
		return false
	}
	b := v.Bitmap.Bounds()
	return v.Size.Width != float64(b.Dx()) || v.Size.Height != float64(b.Dy())
}

func normalizeQuarterTurns(n int) int { return ((n % 4) + 4) % 4 }
