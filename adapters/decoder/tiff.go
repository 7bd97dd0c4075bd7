package decoder

import (
	"context"
	"image"
	"io"

	"golang.org/x/image/tiff"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
)

// TIFF decodes TIFF images via golang.org/x/image/tiff.
type TIFF struct{}

func NewTIFF() *TIFF { return &TIFF{} }

func (t *TIFF) CanDecode(format core.Format) bool { return format == core.FormatTIFF }

func (t *TIFF) Decode(ctx context.Context, r io.Reader) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "tiff.decode", err)
	}
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "tiff.decode", err)
	}
	return img, nil
}
