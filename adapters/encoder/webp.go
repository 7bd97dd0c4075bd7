package encoder

import (
	"bytes"
	"context"
	"image"

	"github.com/chai2010/webp"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
)

// WebP encodes images to WebP via github.com/chai2010/webp.
type WebP struct {
	DefaultQuality int
}

// NewWebP returns a WebP encoder; defaultQuality <= 0 falls back to 92.
func NewWebP(defaultQuality int) *WebP {
	if defaultQuality <= 0 {
		defaultQuality = 92
	}
	return &WebP{DefaultQuality: defaultQuality}
}

func (w *WebP) CanEncode(format core.Format) bool { return format == core.FormatWebP }

func (w *WebP) Encode(ctx context.Context, img image.Image, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "webp.encode", err)
	}
	if img == nil {
		return nil, apperrors.New(apperrors.CategoryRender, "webp.encode", apperrors.ErrEmptyInput)
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = w.DefaultQuality
	}
	var buf bytes.Buffer
	err := webp.Encode(&buf, img, &webp.Options{
		Lossless: opts.Lossless,
		Quality:  float32(quality),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "webp.encode", err)
	}
	return buf.Bytes(), nil
}
