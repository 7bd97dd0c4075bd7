package decoder

import (
	"context"
	"image"
	"io"

	"golang.org/x/image/bmp"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
)

// BMP decodes Windows bitmap images via golang.org/x/image/bmp.
type BMP struct{}

func NewBMP() *BMP { return &BMP{} }

func (b *BMP) CanDecode(format core.Format) bool { return format == core.FormatBMP }

func (b *BMP) Decode(ctx context.Context, r io.Reader) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "bmp.decode", err)
	}
	img, err := bmp.Decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "bmp.decode", err)
	}
	return img, nil
}
