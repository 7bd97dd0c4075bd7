package encoder

import (
	"bytes"
	"context"
	"image"

	"golang.org/x/image/bmp"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
)

// BMP encodes images as uncompressed Windows bitmaps.
type BMP struct{}

func NewBMP() *BMP { return &BMP{} }

func (b *BMP) CanEncode(format core.Format) bool { return format == core.FormatBMP }

func (b *BMP) Encode(ctx context.Context, img image.Image, _ core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "bmp.encode", err)
	}
	if img == nil {
		return nil, apperrors.New(apperrors.CategoryRender, "bmp.encode", apperrors.ErrEmptyInput)
	}
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "bmp.encode", err)
	}
	return buf.Bytes(), nil
}
