// Package arena implements the guest heap: a monotonic bump arena with a
// malloc/free front-end on top.
//
// The arena ("more core") only ever grows. The front-end recycles freed
// blocks through per-size free lists but never returns memory to the arena,
// so a long-lived, high-fragmentation workload will exhaust the heap. That
// is an accepted property of short-lived sandbox invocations: the whole
// region is discarded when the sandbox is reset.
package arena

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory is returned when a growth request exceeds the
	// footprint limit.
	ErrOutOfMemory = errors.New("guest heap exhausted")

	// ErrNegativeGrowth is returned for a negative growth request. The
	// front-end is configured with trim disabled, so one can only come
	// from a corrupted caller.
	ErrNegativeGrowth = errors.New("negative heap growth request")
)

// Arena is the monotonically advancing cursor into the fixed heap region.
type Arena struct {
	buf    []byte
	cursor uint64
	limit  uint64
}

// New wraps the heap region. The footprint limit is the region size; it is
// fixed for the lifetime of the sandbox.
func New(buf []byte) *Arena {
	return &Arena{buf: buf, limit: uint64(len(buf))}
}

// MoreCore services a growth request of n bytes and returns the offset of
// the new block within the region. n == 0 returns the current cursor
// without advancing. n < 0 must never happen; it reports ErrNegativeGrowth
// and the caller is expected to abort.
func (a *Arena) MoreCore(n int64) (uint64, error) {
	switch {
	case n > 0:
		if a.cursor+uint64(n) > a.limit {
			return 0, fmt.Errorf("%w: %d requested, %d of %d in use", ErrOutOfMemory, n, a.cursor, a.limit)
		}
		off := a.cursor
		a.cursor += uint64(n)
		return off, nil
	case n < 0:
		return 0, ErrNegativeGrowth
	default:
		return a.cursor, nil
	}
}

// Allocated returns the number of arena bytes handed out so far.
func (a *Arena) Allocated() uint64 { return a.cursor }

// Limit returns the footprint limit.
func (a *Arena) Limit() uint64 { return a.limit }

// Bytes resolves an offset+length pair inside the region.
func (a *Arena) Bytes(off, n uint64) ([]byte, error) {
	end := off + n
	if end < off || end > uint64(len(a.buf)) {
		return nil, fmt.Errorf("arena access [%#x, %#x) outside region of %#x bytes", off, end, len(a.buf))
	}
	return a.buf[off:end:end], nil
}
