// Package pipeline implements the image normalization pipeline: decode,
// orientation-correct, canvas-transform, re-encode.
package pipeline

import (
	"context"
	"time"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
)

// Pipeline turns raw image bytes into a LoadedImage using the codecs in its
// registry.  Safe for concurrent use; each Load is independent.
type Pipeline struct {
	registry core.Registry
	hooks    []core.Hook
	logger   core.Logger
}

// New returns a Pipeline backed by the given codec registry.
func New(reg core.Registry) *Pipeline {
	return &Pipeline{registry: reg}
}

// AddHook registers an observer.  Returns the same Pipeline for chaining.
func (p *Pipeline) AddHook(h core.Hook) *Pipeline {
	p.hooks = append(p.hooks, h)
	return p
}

// SetLogger attaches a structured logger.
func (p *Pipeline) SetLogger(l core.Logger) { p.logger = l }

// Registry returns the underlying codec registry so callers can register
// additional encoders/decoders after construction.
func (p *Pipeline) Registry() core.Registry { return p.registry }

// runStage executes one named pipeline stage, calling hooks around it.
func (p *Pipeline) runStage(ctx context.Context, stage string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryDecode, stage, err)
	}
	for _, h := range p.hooks {
		h.BeforeStage(ctx, stage)
	}
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	for _, h := range p.hooks {
		h.AfterStage(ctx, stage, elapsed, err)
	}
	if err != nil && p.logger != nil {
		p.logger.Error("pipeline.stage.error", "stage", stage, "error", err.Error())
	}
	return err
}
