// Package decoder provides format-specific image decoders.
package decoder

import (
	"context"
	"image"
	"image/jpeg"
	"io"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
)

// JPEG decodes JPEG images using the standard library.  It does not apply
// embedded orientation metadata; the pipeline corrects orientation itself.
type JPEG struct{}

// NewJPEG returns an initialised JPEG decoder.
func NewJPEG() *JPEG { return &JPEG{} }

func (j *JPEG) CanDecode(format core.Format) bool {
	return format == core.FormatJPEG || format == core.FormatUnknown
}

// AppliesOrientation reports false: stdlib decode leaves pixels as stored.
func (j *JPEG) AppliesOrientation() bool { return false }

func (j *JPEG) Decode(ctx context.Context, r io.Reader) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.decode", err)
	}
	img, err := jpeg.Decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.decode", err)
	}
	return img, nil
}
