package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryInput  Category = "input"
	CategorySize   Category = "size"
	CategoryDecode Category = "decode"
	CategoryRender Category = "render"
	CategoryConfig Category = "config"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.  Returns nil for a nil err.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// Convenience predicates for the five failure classes of the load path.

// IsInvalidImageType reports a rejected MIME type (before any decode).
func IsInvalidImageType(err error) bool { return IsCategory(err, CategoryInput) }

// IsSizeResolution reports a vector image whose natural size could not be
// determined.
func IsSizeResolution(err error) bool { return IsCategory(err, CategorySize) }

// IsDecode reports a bitmap that failed to load from its byte buffer.
func IsDecode(err error) bool { return IsCategory(err, CategoryDecode) }

// IsRender reports a canvas transform or encode failure.
func IsRender(err error) bool { return IsCategory(err, CategoryRender) }

// IsConfiguration reports an option set rejected before any state mutation.
func IsConfiguration(err error) bool { return IsCategory(err, CategoryConfig) }

// Sentinel errors for common failure modes.
var (
	ErrInvalidImageType  = errors.New("invalid image type")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrEmptyInput        = errors.New("empty input")
	ErrNoLoadedImage     = errors.New("no image loaded")
	ErrNoViewBox         = errors.New("vector image has neither explicit size nor view-box")
	ErrEmptyRender       = errors.New("canvas encode produced no output")
	ErrInvalidDimensions = errors.New("invalid dimensions")
)
