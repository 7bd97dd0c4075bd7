// Package imagecropper crops and normalizes images.  It decodes raw bytes,
// corrects EXIF orientation, applies canvas rotation and containment, manages
// a constrained crop rectangle in display space, and exports the cropped
// region re-encoded in a configurable format.
//
// The Cropper facade wires the pipeline, the geometry engine, and the
// exporter together behind a single mutex; the sub-packages remain usable on
// their own for callers that need finer control.
package imagecropper

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/adapters/decoder"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/adapters/encoder"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/config"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/exporter"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/geometry"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/pipeline"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/utils"
)

// ErrSuperseded is returned by a load whose result was discarded because a
// newer load started while it was running.
var ErrSuperseded = errors.New("load superseded by a newer load")

// Cropper is the high-level entry point.  Safe for concurrent use; loads run
// outside the lock and a generation counter discards superseded results.
type Cropper struct {
	mu       sync.Mutex
	pipe     *pipeline.Pipeline
	exp      *exporter.Exporter
	engine   *geometry.Engine
	maxBytes int64

	// generation increments on every load start; a finishing load whose
	// generation no longer matches releases its result instead of installing it.
	generation uint64
}

// Option configures a Cropper at construction time.
type Option func(*settings)

type settings struct {
	options  config.Options
	registry core.Registry
	logger   core.Logger
	hooks    []core.Hook
	maxBytes int64
}

// WithOptions replaces the default option table.
func WithOptions(o config.Options) Option {
	return func(s *settings) { s.options = o }
}

// WithRegistry replaces the default codec registry.
func WithRegistry(r core.Registry) Option {
	return func(s *settings) { s.registry = r }
}

// WithLogger attaches a structured logger to the pipeline.
func WithLogger(l core.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithHook registers a pipeline observer.
func WithHook(h core.Hook) Option {
	return func(s *settings) { s.hooks = append(s.hooks, h) }
}

// WithMaxInputBytes caps the size of reader-based loads.  Zero means no cap.
func WithMaxInputBytes(n int64) Option {
	return func(s *settings) { s.maxBytes = n }
}

// New constructs a Cropper with the standard codec set registered: JPEG, PNG,
// GIF, WebP, BMP and TIFF decoders; PNG, JPEG, WebP and BMP encoders.
func New(opts ...Option) (*Cropper, error) {
	s := &settings{options: config.Default()}
	for _, opt := range opts {
		opt(s)
	}

	reg := s.registry
	if reg == nil {
		reg = DefaultRegistry()
	}

	engine, err := geometry.NewEngine(s.options)
	if err != nil {
		return nil, err
	}

	pipe := pipeline.New(reg)
	if s.logger != nil {
		pipe.SetLogger(s.logger)
	}
	for _, h := range s.hooks {
		pipe.AddHook(h)
	}

	return &Cropper{
		pipe:     pipe,
		exp:      exporter.New(reg),
		engine:   engine,
		maxBytes: s.maxBytes,
	}, nil
}

// DefaultRegistry returns a registry with the standard codec set registered.
func DefaultRegistry() core.Registry {
	reg := core.NewRegistry()

	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterDecoder(core.FormatGIF, decoder.NewGIF())
	reg.RegisterDecoder(core.FormatWebP, decoder.NewWebP())
	reg.RegisterDecoder(core.FormatBMP, decoder.NewBMP())
	reg.RegisterDecoder(core.FormatTIFF, decoder.NewTIFF())

	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(0))
	reg.RegisterEncoder(core.FormatWebP, encoder.NewWebP(0))
	reg.RegisterEncoder(core.FormatBMP, encoder.NewBMP())
	return reg
}

// Pipeline exposes the underlying pipeline for registering extra hooks or
// codecs after construction.
func (c *Cropper) Pipeline() *pipeline.Pipeline { return c.pipe }

// ── Loading ───────────────────────────────────────────────────────────────────

// LoadImage decodes data and installs it as the current image.  A load that
// finishes after a newer load has started returns ErrSuperseded and its
// resources are released.
func (c *Cropper) LoadImage(ctx context.Context, data []byte, mimeType string) (*core.LoadedImage, error) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	opts := c.engine.Options()
	c.mu.Unlock()

	loaded, err := c.pipe.Load(ctx, data, mimeType, opts)
	if err != nil {
		return nil, err
	}
	return c.install(gen, loaded)
}

// LoadImageFromReader reads r to completion (honouring the configured input
// cap) and loads the result.
func (c *Cropper) LoadImageFromReader(ctx context.Context, r io.Reader, mimeType string) (*core.LoadedImage, error) {
	if c.maxBytes > 0 {
		r = &utils.LimitedReader{R: r, Max: c.maxBytes}
	}
	buf, err := utils.DrainReader(ctx, r, 0)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "load.read", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)
	return c.LoadImage(ctx, data, mimeType)
}

// LoadImageFromFile reads the file at path, deriving the MIME type from the
// file extension.
func (c *Cropper) LoadImageFromFile(ctx context.Context, path string) (*core.LoadedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "load.file", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	return c.LoadImage(ctx, data, mimeType)
}

// LoadImageFromBase64 loads a data URI of the form
// "data:image/png;base64,....".  A bare base64 payload without the data:
// prefix is accepted too; the MIME type is then sniffed from the bytes.
func (c *Cropper) LoadImageFromBase64(ctx context.Context, dataURI string) (*core.LoadedImage, error) {
	mimeType := ""
	payload := dataURI
	if strings.HasPrefix(dataURI, "data:") {
		rest := dataURI[len("data:"):]
		semi := strings.Index(rest, ";base64,")
		if semi < 0 {
			return nil, apperrors.New(apperrors.CategoryInput, "load.base64",
				fmt.Errorf("%w: missing base64 marker", apperrors.ErrInvalidImageType))
		}
		mimeType = rest[:semi]
		payload = rest[semi+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "load.base64", err)
	}
	return c.LoadImage(ctx, data, mimeType)
}

// install hands a load result to the engine, unless a newer load superseded it.
func (c *Cropper) install(gen uint64, loaded *core.LoadedImage) (*core.LoadedImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		loaded.Release()
		return nil, ErrSuperseded
	}
	maxSize := c.engine.MaxSize()
	c.engine.Load(loaded)
	if maxSize.Width > 0 && maxSize.Height > 0 {
		c.engine.SetMaxSize(maxSize.Width, maxSize.Height)
	}
	return loaded, nil
}

// ── State ─────────────────────────────────────────────────────────────────────

// SetMaxSize tells the cropper the display-space size of the transformed
// image.  The first call after a load seeds the initial crop rectangle; later
// calls rescale it proportionally.
func (c *Cropper) SetMaxSize(width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.SetMaxSize(width, height)
}

// SetOptions merges a partial option update.  Updates that change the canvas
// transform re-render the transformed variant from the retained original.
func (c *Cropper) SetOptions(ctx context.Context, p config.Partial) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.engine.Options()
	if err := c.engine.SetOptions(p); err != nil {
		return err
	}
	if !p.TouchesCanvasTransform(prev) || c.engine.LoadedImage() == nil {
		return nil
	}

	retransformed, err := c.pipe.Retransform(ctx, c.engine.LoadedImage(), c.engine.Options())
	if err != nil {
		return err
	}
	maxSize := c.engine.MaxSize()
	c.engine.Load(retransformed)
	if maxSize.Width > 0 && maxSize.Height > 0 {
		c.engine.SetMaxSize(maxSize.Width, maxSize.Height)
	}
	return nil
}

// SetTransform stores the user display transform (scale, flips, rotation,
// translation) applied at export time.
func (c *Cropper) SetTransform(t core.ImageTransform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.SetTransform(t)
}

// SetPosition moves the crop rectangle, clamped against the current
// constraints.
func (c *Cropper) SetPosition(pos core.CropperPosition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.Position().Set(geometry.Clamp(pos, geometry.Constraints{
		MaxSize:      c.engine.MaxSize(),
		MinWidth:     c.engine.ScaledMinSize().Width,
		MinHeight:    c.engine.ScaledMinSize().Height,
		MaxWidth:     c.engine.ScaledMaxSize().Width,
		MaxHeight:    c.engine.ScaledMaxSize().Height,
		StaticWidth:  c.engine.Options().CropperStaticWidth,
		StaticHeight: c.engine.Options().CropperStaticHeight,
	}))
}

// Position returns the current crop rectangle.
func (c *Cropper) Position() core.CropperPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Position().Get()
}

// SubscribePosition registers an observer for crop rectangle changes and
// returns an unsubscribe func.  Observers run synchronously while the
// cropper's internal lock is held: calling any Cropper method from inside
// one deadlocks.  Hand work that needs the cropper off to another goroutine.
func (c *Cropper) SubscribePosition(fn func(core.CropperPosition)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Position().Subscribe(fn)
}

// ResetPosition restores the full-frame (or static-size) rectangle.
func (c *Cropper) ResetPosition() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.ResetPosition()
}

// Options returns the current option set.
func (c *Cropper) Options() config.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Options()
}

// LoadedImage returns the currently installed image, or nil.
func (c *Cropper) LoadedImage() *core.LoadedImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.LoadedImage()
}

// Snapshot returns the read-only crop input the exporter would consume.
func (c *Cropper) Snapshot() core.CropInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Snapshot()
}

// Crop exports the current crop rectangle.
func (c *Cropper) Crop(ctx context.Context) (*exporter.Result, error) {
	c.mu.Lock()
	in := c.engine.Snapshot()
	c.mu.Unlock()
	return c.exp.Crop(ctx, in)
}

// Close releases the current image's resources.  The Cropper must not be used
// after Close.
func (c *Cropper) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if loaded := c.engine.LoadedImage(); loaded != nil {
		loaded.Release()
	}
	return nil
}
