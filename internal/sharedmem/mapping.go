// Package sharedmem implements the fixed memory contract between a sandbox
// host and its guest: one flat mapping addressed by byte offsets, the
// Process Environment Block (PEB) record inside it, and the two LIFO frame
// stacks used for request/response traffic.
//
// A "guest-physical address" is a byte offset into the mapping. Every
// pointer field in the PEB is such an offset; both sides resolve them
// against the same mapping, so the record is bit-identical for host and
// guest.
package sharedmem

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned when a pointer+size window does not lie inside
// the mapping.
var ErrOutOfBounds = errors.New("region outside shared mapping")

// Mapping is the flat shared-memory region backing a sandbox.
type Mapping struct {
	buf []byte
}

// NewMapping wraps an existing memory region. The region is shared: both
// host and guest hold the same backing slice.
func NewMapping(buf []byte) *Mapping {
	return &Mapping{buf: buf}
}

// Size returns the mapping size in bytes.
func (m *Mapping) Size() uint64 {
	return uint64(len(m.buf))
}

// Window resolves a guest-physical pointer+size pair to a slice of the
// mapping, validating bounds. The returned slice aliases the mapping.
func (m *Mapping) Window(off, size uint64) ([]byte, error) {
	end := off + size
	if end < off || end > uint64(len(m.buf)) {
		return nil, fmt.Errorf("%w: [%#x, %#x) in mapping of %#x bytes", ErrOutOfBounds, off, end, len(m.buf))
	}
	return m.buf[off:end:end], nil
}

// Bytes exposes the whole mapping. Intended for the host-side layout code;
// guest code goes through PEB windows.
func (m *Mapping) Bytes() []byte {
	return m.buf
}
