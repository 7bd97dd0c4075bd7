package exporter_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/adapters/encoder"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/config"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/exporter"
)

func newExporter() *exporter.Exporter {
	reg := core.NewRegistry()
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(0))
	return exporter.New(reg)
}

// cropInput builds a snapshot over a solid-color bitmap of the given size,
// displayed at half scale (display ratio 2).
func cropInput(w, h int, pos core.CropperPosition) core.CropInput {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	v := &core.ImageVariant{
		Bitmap: img,
		Size:   core.Dimensions{Width: float64(w), Height: float64(h)},
	}
	return core.CropInput{
		Position:    pos,
		MaxSize:     core.Dimensions{Width: float64(w) / 2, Height: float64(h) / 2},
		LoadedImage: &core.LoadedImage{Original: v, Transformed: v},
		Options:     config.Default(),
	}
}

func TestCrop_ScalesDisplayPositionToPixels(t *testing.T) {
	in := cropInput(400, 300, core.CropperPosition{X1: 10, Y1: 20, X2: 110, Y2: 95})

	res, err := newExporter().Crop(context.Background(), in)
	require.NoError(t, err)

	// Display coordinates times the 2x ratio.
	assert.Equal(t, core.CropperPosition{X1: 20, Y1: 40, X2: 220, Y2: 190}, res.ImagePosition)
	assert.Equal(t, 200, res.Width)
	assert.Equal(t, 150, res.Height)
	assert.NotEmpty(t, res.Data)
	assert.Empty(t, res.Base64, "blob output carries no data URI")
}

func TestCrop_ClampsPositionToImage(t *testing.T) {
	in := cropInput(400, 300, core.CropperPosition{X1: -10, Y1: -10, X2: 500, Y2: 400})

	res, err := newExporter().Crop(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, core.CropperPosition{X2: 400, Y2: 300}, res.ImagePosition)
}

func TestCrop_ResizeToWidth(t *testing.T) {
	in := cropInput(400, 300, core.CropperPosition{X1: 0, Y1: 0, X2: 100, Y2: 100})
	in.Options.ResizeToWidth = 50

	res, err := newExporter().Crop(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Width)
	assert.Equal(t, 50, res.Height, "resize preserves the crop's aspect")
}

func TestCrop_OnlyScaleDownBlocksUpscale(t *testing.T) {
	in := cropInput(400, 300, core.CropperPosition{X1: 0, Y1: 0, X2: 50, Y2: 50})
	in.Options.ResizeToWidth = 1000
	in.Options.OnlyScaleDown = true

	res, err := newExporter().Crop(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Width, "upscaling suppressed")
}

func TestCrop_RoundCropperMasksCorners(t *testing.T) {
	in := cropInput(400, 400, core.CropperPosition{X1: 0, Y1: 0, X2: 100, Y2: 100})
	in.Options.RoundCropper = true

	res, err := newExporter().Crop(context.Background(), in)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	_, _, _, a := decoded.At(0, 0).RGBA()
	assert.Zero(t, a, "corner outside the ellipse is transparent")
	_, _, _, a = decoded.At(100, 100).RGBA()
	assert.NotZero(t, a, "centre stays opaque")
}

func TestCrop_Base64Output(t *testing.T) {
	in := cropInput(200, 200, core.CropperPosition{X1: 0, Y1: 0, X2: 50, Y2: 50})
	in.Options.Output = config.OutputBase64

	res, err := newExporter().Crop(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Base64, "data:image/png;base64,"), res.Base64[:30])
}

func TestCrop_BackgroundColorFlattens(t *testing.T) {
	in := cropInput(200, 200, core.CropperPosition{X1: 0, Y1: 0, X2: 50, Y2: 50})
	in.Options.RoundCropper = true
	in.Options.BackgroundColor = "#ff0000"

	res, err := newExporter().Crop(context.Background(), in)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	r, _, _, a := decoded.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a, "flattened corner is opaque")
	assert.Equal(t, uint32(0xffff), r, "corner shows the background color")
}

func TestCrop_InvalidBackgroundColor(t *testing.T) {
	in := cropInput(200, 200, core.CropperPosition{X1: 0, Y1: 0, X2: 50, Y2: 50})
	in.Options.BackgroundColor = "bogus"

	_, err := newExporter().Crop(context.Background(), in)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestCrop_NoImage(t *testing.T) {
	_, err := newExporter().Crop(context.Background(), core.CropInput{Options: config.Default()})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNoLoadedImage)
}

func TestCrop_ZeroAreaPosition(t *testing.T) {
	in := cropInput(200, 200, core.CropperPosition{X1: 10, Y1: 10, X2: 10, Y2: 10})
	_, err := newExporter().Crop(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidDimensions)
}

func TestCrop_UnknownOutputFormat(t *testing.T) {
	in := cropInput(200, 200, core.CropperPosition{X1: 0, Y1: 0, X2: 50, Y2: 50})
	in.Options.Format = "tga"

	_, err := newExporter().Crop(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}

func TestCrop_FlipTransform(t *testing.T) {
	// Left half red, right half blue; a horizontal flip swaps the halves.
	img := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			c := color.NRGBA{R: 255, A: 255}
			if x >= 100 {
				c = color.NRGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	v := &core.ImageVariant{Bitmap: img, Size: core.Dimensions{Width: 200, Height: 100}}
	in := core.CropInput{
		Position:    core.CropperPosition{X1: 0, Y1: 0, X2: 50, Y2: 50},
		MaxSize:     core.Dimensions{Width: 200, Height: 100},
		Transform:   core.ImageTransform{FlipH: true},
		LoadedImage: &core.LoadedImage{Original: v, Transformed: v},
		Options:     config.Default(),
	}

	res, err := newExporter().Crop(context.Background(), in)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	r, _, b, _ := decoded.At(10, 10).RGBA()
	assert.Zero(t, r>>8, "flipped top-left region comes from the blue half")
	assert.Equal(t, uint32(255), b>>8)
}
