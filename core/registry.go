package core

import "sync"

// CodecRegistry is the standard Registry implementation: a mutable codec
// table keyed by Format.  Registration and lookup may run concurrently, so
// hosts can swap codecs (the libvips backend registers itself over the
// stdlib slots this way) while loads are in flight.
type CodecRegistry struct {
	mu       sync.RWMutex
	decoders map[Format]Decoder
	encoders map[Format]Encoder
}

// NewRegistry returns an empty codec registry.  The zero value is not
// usable; always construct through here.
func NewRegistry() *CodecRegistry {
	return &CodecRegistry{
		decoders: make(map[Format]Decoder),
		encoders: make(map[Format]Encoder),
	}
}

// RegisterDecoder installs d for the given format, replacing any earlier
// registration for that slot.
func (r *CodecRegistry) RegisterDecoder(format Format, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[format] = d
}

// RegisterEncoder installs e for the given format, replacing any earlier
// registration for that slot.
func (r *CodecRegistry) RegisterEncoder(format Format, e Encoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[format] = e
}

// DecoderFor looks up the decoder registered for format.
func (r *CodecRegistry) DecoderFor(format Format) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[format]
	return d, ok
}

// EncoderFor looks up the encoder registered for format.
func (r *CodecRegistry) EncoderFor(format Format) (Encoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.encoders[format]
	return e, ok
}

var _ Registry = (*CodecRegistry)(nil)
