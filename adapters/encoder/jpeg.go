package encoder

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
)

// JPEG encodes images as JPEG with a configurable default quality.
type JPEG struct {
	DefaultQuality int
}

// NewJPEG returns a JPEG encoder; defaultQuality <= 0 falls back to 92.
func NewJPEG(defaultQuality int) *JPEG {
	if defaultQuality <= 0 {
		defaultQuality = 92
	}
	return &JPEG{DefaultQuality: defaultQuality}
}

func (j *JPEG) CanEncode(format core.Format) bool { return format == core.FormatJPEG }

func (j *JPEG) Encode(ctx context.Context, img image.Image, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "jpeg.encode", err)
	}
	if img == nil {
		return nil, apperrors.New(apperrors.CategoryRender, "jpeg.encode", apperrors.ErrEmptyInput)
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = j.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "jpeg.encode", err)
	}
	return buf.Bytes(), nil
}
