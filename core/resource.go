package core

import "sync"

// Resource is a scoped handle backing an ImageVariant's encoded bytes, the
// Go analogue of a revocable object URL.  It must be released exactly once
// per logical owner; Release is a no-op on subsequent calls, which guards the
// supersede race where an old load's variants are torn down while a newer
// load already aliases one of them.
type Resource struct {
	once    sync.Once
	release func()
}

// NewResource wraps a release function into an idempotent handle.  A nil
// release function is allowed and yields a handle whose Release does nothing.
func NewResource(release func()) *Resource {
	return &Resource{release: release}
}

// Release frees the underlying resource.  Safe to call any number of times
// from any goroutine; only the first call runs the release function.
func (r *Resource) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
}
