package pipeline_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/adapters/decoder"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/adapters/encoder"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/config"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
	"github.com/FlepTheFlabbergasted/ngx-image-cropper/pipeline"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func newTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func newTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func newPipeline() *pipeline.Pipeline {
	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(0))
	return pipeline.New(reg)
}

// ── TransformedSize ───────────────────────────────────────────────────────────

func TestTransformedSize(t *testing.T) {
	tests := []struct {
		name     string
		original core.Dimensions
		rotation int
		opts     config.Options
		want     core.Dimensions
	}{
		{
			name:     "no transform",
			original: core.Dimensions{Width: 100, Height: 200},
			want:     core.Dimensions{Width: 100, Height: 200},
		},
		{
			name:     "quarter turn swaps axes",
			original: core.Dimensions{Width: 100, Height: 200},
			rotation: 1,
			want:     core.Dimensions{Width: 200, Height: 100},
		},
		{
			name:     "half turn keeps axes",
			original: core.Dimensions{Width: 100, Height: 200},
			rotation: 2,
			want:     core.Dimensions{Width: 100, Height: 200},
		},
		{
			name:     "contain square expands the short side",
			original: core.Dimensions{Width: 100, Height: 200},
			opts:     config.Options{ContainWithinAspectRatio: true, AspectRatio: 1},
			want:     core.Dimensions{Width: 200, Height: 200},
		},
		{
			name:     "contain wide ratio",
			original: core.Dimensions{Width: 400, Height: 300},
			opts:     config.Options{ContainWithinAspectRatio: true, AspectRatio: 2},
			want:     core.Dimensions{Width: 600, Height: 300},
		},
		{
			name:     "contain after quarter turn uses swapped axes",
			original: core.Dimensions{Width: 100, Height: 200},
			rotation: 1,
			opts:     config.Options{ContainWithinAspectRatio: true, AspectRatio: 1},
			want:     core.Dimensions{Width: 200, Height: 200},
		},
		{
			name:     "negative rotation normalizes",
			original: core.Dimensions{Width: 100, Height: 200},
			rotation: -1,
			want:     core.Dimensions{Width: 200, Height: 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pipeline.TransformedSize(tt.original, tt.rotation, tt.opts)
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

// ── DrawMatrix ────────────────────────────────────────────────────────────────

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDrawMatrix_QuarterTurnCornerMapping(t *testing.T) {
	src := image.Rect(0, 0, 100, 200)
	natural := core.Dimensions{Width: 100, Height: 200}
	canvas := core.Dimensions{Width: 200, Height: 100}

	m := pipeline.DrawMatrix(canvas, natural, src, 1, false)

	// Top-left of the source lands on the top-right corner of the canvas.
	x, y := m.TransformPoint(0, 0)
	if !almostEqual(x, 200) || !almostEqual(y, 0) {
		t.Fatalf("corner (0,0) mapped to (%.2f, %.2f), want (200, 0)", x, y)
	}
	x, y = m.TransformPoint(100, 200)
	if !almostEqual(x, 0) || !almostEqual(y, 100) {
		t.Fatalf("corner (100,200) mapped to (%.2f, %.2f), want (0, 100)", x, y)
	}
}

func TestDrawMatrix_FlipMirrorsHorizontally(t *testing.T) {
	src := image.Rect(0, 0, 100, 200)
	natural := core.Dimensions{Width: 100, Height: 200}
	canvas := core.Dimensions{Width: 100, Height: 200}

	m := pipeline.DrawMatrix(canvas, natural, src, 0, true)

	x, y := m.TransformPoint(0, 0)
	if !almostEqual(x, 100) || !almostEqual(y, 0) {
		t.Fatalf("corner (0,0) mapped to (%.2f, %.2f), want (100, 0)", x, y)
	}
}

func TestDrawMatrix_SizeOverrideScales(t *testing.T) {
	src := image.Rect(0, 0, 50, 50)
	natural := core.Dimensions{Width: 200, Height: 100}
	canvas := core.Dimensions{Width: 200, Height: 100}

	m := pipeline.DrawMatrix(canvas, natural, src, 0, false)

	x, y := m.TransformPoint(50, 50)
	if !almostEqual(x, 200) || !almostEqual(y, 100) {
		t.Fatalf("corner (50,50) mapped to (%.2f, %.2f), want (200, 100)", x, y)
	}
}

// ── Load / Retransform ────────────────────────────────────────────────────────

func TestLoad_NoTransformAliasesOriginal(t *testing.T) {
	p := newPipeline()
	loaded, err := p.Load(context.Background(), newTestPNG(t, 64, 48), "image/png", config.Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Transformed != loaded.Original {
		t.Fatal("transformed variant must alias the original when nothing changes pixels")
	}
	if !loaded.Orientation.IsIdentity() {
		t.Fatalf("orientation: got %+v, want identity", loaded.Orientation)
	}
}

func TestLoad_CanvasRotationRenders(t *testing.T) {
	p := newPipeline()
	opts := config.Default()
	opts.CanvasRotation = 1

	loaded, err := p.Load(context.Background(), newTestPNG(t, 64, 48), "image/png", opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Transformed == loaded.Original {
		t.Fatal("rotation requires a real render")
	}
	if loaded.Transformed.Size.Width != 48 || loaded.Transformed.Size.Height != 64 {
		t.Fatalf("transformed size: got %+v, want 48x64", loaded.Transformed.Size)
	}
	if len(loaded.Transformed.Data) == 0 {
		t.Fatal("transformed variant must carry encoded bytes")
	}
}

func TestLoad_ContainExpandsCanvas(t *testing.T) {
	p := newPipeline()
	opts := config.Default()
	opts.ContainWithinAspectRatio = true
	opts.AspectRatio = 1

	loaded, err := p.Load(context.Background(), newTestPNG(t, 64, 48), "image/png", opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Transformed.Size.Width != 64 || loaded.Transformed.Size.Height != 64 {
		t.Fatalf("contain canvas: got %+v, want 64x64", loaded.Transformed.Size)
	}
}

func TestLoad_RejectsUnacceptedMIME(t *testing.T) {
	p := newPipeline()
	_, err := p.Load(context.Background(), newTestPNG(t, 8, 8), "application/pdf", config.Default())
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !apperrors.IsInvalidImageType(err) {
		t.Fatalf("want input-category error, got %v", err)
	}
}

func TestLoad_TypeCheckDisabled(t *testing.T) {
	p := newPipeline()
	opts := config.Default()
	opts.CheckImageType = false

	// The declared type is ignored and the real format sniffed from bytes.
	loaded, err := p.Load(context.Background(), newTestPNG(t, 8, 8), "", opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Original.Size.Width != 8 {
		t.Fatalf("size: got %+v", loaded.Original.Size)
	}
}

func TestLoad_EmptyInput(t *testing.T) {
	p := newPipeline()
	if _, err := p.Load(context.Background(), nil, "image/png", config.Default()); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestLoad_UndecodableBytes(t *testing.T) {
	p := newPipeline()
	_, err := p.Load(context.Background(), []byte("definitely not an image"), "image/png", config.Default())
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !apperrors.IsDecode(err) {
		t.Fatalf("want decode-category error, got %v", err)
	}
}

func TestRetransform_SharesOriginal(t *testing.T) {
	p := newPipeline()
	loaded, err := p.Load(context.Background(), newTestJPEG(t, 60, 40), "image/jpeg", config.Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	opts := config.Default()
	opts.CanvasRotation = 2
	out, err := p.Retransform(context.Background(), loaded, opts)
	if err != nil {
		t.Fatalf("Retransform: %v", err)
	}
	if out.Original != loaded.Original {
		t.Fatal("retransform must share the original variant")
	}
	if out.Transformed == out.Original {
		t.Fatal("half turn requires a real render")
	}
	if out.Transformed.Size.Width != 60 || out.Transformed.Size.Height != 40 {
		t.Fatalf("half turn keeps dimensions, got %+v", out.Transformed.Size)
	}
}

func TestRetransform_NilImage(t *testing.T) {
	p := newPipeline()
	if _, err := p.Retransform(context.Background(), nil, config.Default()); err == nil {
		t.Fatal("expected error for nil image")
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	p := newPipeline()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Load(ctx, newTestPNG(t, 8, 8), "image/png", config.Default()); err == nil {
		t.Fatal("expected context error")
	}
}

// ── Hooks ─────────────────────────────────────────────────────────────────────

type recordingHook struct {
	before []string
	after  []string
}

func (h *recordingHook) BeforeStage(_ context.Context, stage string) {
	h.before = append(h.before, stage)
}

func (h *recordingHook) AfterStage(_ context.Context, stage string, _ time.Duration, _ error) {
	h.after = append(h.after, stage)
}

func TestLoad_HooksObserveStages(t *testing.T) {
	p := newPipeline()
	hook := &recordingHook{}
	p.AddHook(hook)

	if _, err := p.Load(context.Background(), newTestPNG(t, 8, 8), "image/png", config.Default()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{"check_type", "decode", "orient", "resolve_size", "transform"}
	if len(hook.before) != len(want) {
		t.Fatalf("before stages: got %v, want %v", hook.before, want)
	}
	for i, stage := range want {
		if hook.before[i] != stage || hook.after[i] != stage {
			t.Fatalf("stage %d: before=%s after=%s, want %s", i, hook.before[i], hook.after[i], stage)
		}
	}
}
