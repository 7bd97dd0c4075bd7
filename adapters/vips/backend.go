// Package vips provides an optional libvips-powered codec backend.  Unlike
// the stdlib decoders it applies embedded orientation metadata during decode,
// which the pipeline's capability check picks up so the orientation correction
// is not applied a second time.
package vips

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool
}

// Backend is a unified libvips-powered Decoder and Encoder.
// Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 92
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources.  Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// ─── Decoder ──────────────────────────────────────────────────────────────────

func (b *Backend) CanDecode(f core.Format) bool {
	switch f {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatGIF,
		core.FormatTIFF, core.FormatUnknown:
		return true
	}
	return false
}

// AppliesOrientation reports true: decode runs libvips autorotate, so pixels
// already reflect the embedded orientation.
func (b *Backend) AppliesOrientation() bool { return true }

func (b *Backend) Decode(ctx context.Context, r io.Reader) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}

	buf, err := utils.DrainReader(ctx, r, 32*1024)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.drain", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	ref, err := govips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.autorotate", err)
	}

	// Hand the pixels over as a stdlib image so the rest of the pipeline is
	// backend-agnostic; PNG round-trip keeps this lossless.
	out, _, err := ref.ExportPng(govips.NewPngExportParams())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.export", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.export", err)
	}
	return img, nil
}

// ─── Encoder ──────────────────────────────────────────────────────────────────

func (b *Backend) CanEncode(f core.Format) bool {
	switch f {
	case core.FormatJPEG, core.FormatWebP:
		return true
	}
	return false
}

func (b *Backend) Encode(ctx context.Context, img image.Image, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "vips.encode", err)
	}
	if img == nil {
		return nil, apperrors.New(apperrors.CategoryRender, "vips.encode", apperrors.ErrEmptyInput)
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "vips.encode", err)
	}
	ref, err := govips.NewImageFromBuffer(pngBuf.Bytes())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRender, "vips.encode", err)
	}
	defer ref.Close()

	quality := opts.Quality
	if quality <= 0 {
		quality = b.cfg.DefaultQuality
	}

	// Format is chosen by the registry slot this backend is registered under;
	// export the one whose registration matched.
	return b.export(ref, quality, opts)
}

func (b *Backend) export(ref *govips.ImageRef, quality int, opts core.EncodeOptions) ([]byte, error) {
	switch {
	case opts.Lossless:
		ep := govips.NewWebpExportParams()
		ep.Lossless = true
		out, _, err := ref.ExportWebp(ep)
		return out, apperrors.Wrap(apperrors.CategoryRender, "vips.encode.webp", err)
	default:
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		out, _, err := ref.ExportJpeg(ep)
		return out, apperrors.Wrap(apperrors.CategoryRender, "vips.encode.jpeg", err)
	}
}

// RegisterBackend replaces the Go stdlib codecs with libvips for the formats
// it supports.
func RegisterBackend(reg core.Registry, b *Backend) {
	for _, f := range []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatGIF, core.FormatTIFF} {
		reg.RegisterDecoder(f, b)
	}
	for _, f := range []core.Format{core.FormatJPEG, core.FormatWebP} {
		reg.RegisterEncoder(f, b)
	}
}

// compile-time interface checks
var (
	_ core.Decoder            = (*Backend)(nil)
	_ core.Encoder            = (*Backend)(nil)
	_ core.OrientationApplier = (*Backend)(nil)
)
