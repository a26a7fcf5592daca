package oracle

import "sync/atomic"

// rotation holds the index of the provider the next uncached call starts
// from. start reads the index and stores its successor as two separate
// steps, so concurrent callers may start from the same provider. Ordering
// is best effort; the index always stays within the provider list.
type rotation struct {
	next atomic.Uint32
}

// start returns the current index modulo n and advances it.
func (r *rotation) start(n int) int {
	if n <= 0 {
		return 0
	}
	cur := int(r.next.Load() % uint32(n))
	r.next.Store(uint32((cur + 1) % n))
	return cur
}
