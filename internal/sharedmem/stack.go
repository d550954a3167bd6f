package sharedmem

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Shared-buffer stack layout. Bytes 0..7 of the region hold the relative
// stack pointer sp: the offset of the next free byte. An empty stack has
// sp == 8. Each frame is stored as
//
//	[payload bytes][8-byte back-pointer to the frame's start offset]
//
// and the payload itself begins with a 4-byte little-endian size prefix, so
// a pop can recover the payload length from the frame start alone.
const (
	// stackHeaderBytes is the sp word at the front of the region.
	stackHeaderBytes = 8

	// backPointerBytes trails every frame.
	backPointerBytes = 8

	// minPopSP is the lowest sp Pop accepts before reading a back-pointer:
	// header plus one back-pointer. A real frame also carries its 4-byte
	// size prefix, so a non-empty stack has sp of at least 20.
	minPopSP = stackHeaderBytes + backPointerBytes
)

var (
	// ErrNotEnoughSpace is returned when a frame does not fit.
	ErrNotEnoughSpace = errors.New("not enough space")

	// ErrStackEmpty is returned by Pop on an empty stack.
	ErrStackEmpty = errors.New("shared buffer stack is empty")

	// ErrStackCorrupt is returned when sp or a frame header fails
	// validation. The owner must treat the buffer as lost.
	ErrStackCorrupt = errors.New("shared buffer stack corrupt")
)

// BufferStack is a LIFO of length-prefixed frames on a fixed shared region.
// Ownership alternates between host and guest at the run/halt boundary;
// the stack itself takes no locks.
type BufferStack struct {
	buf []byte
}

// OpenStack wraps a shared region as a frame stack. The region must at
// least hold the sp word and one back-pointer.
func OpenStack(window []byte) (*BufferStack, error) {
	if len(window) < minPopSP {
		return nil, fmt.Errorf("open stack: region of %d bytes is too small", len(window))
	}
	return &BufferStack{buf: window}, nil
}

// Reset zeroes the region and marks the stack empty.
func (s *BufferStack) Reset() {
	clear(s.buf)
	s.setSP(stackHeaderBytes)
}

func (s *BufferStack) sp() uint64 {
	return binary.LittleEndian.Uint64(s.buf)
}

func (s *BufferStack) setSP(v uint64) {
	binary.LittleEndian.PutUint64(s.buf, v)
}

// Empty reports whether the stack holds no frames.
func (s *BufferStack) Empty() bool {
	return s.sp() <= stackHeaderBytes
}

// Push appends one frame. The frame must be a complete size-prefixed
// payload; Push adds the trailing back-pointer.
func (s *BufferStack) Push(frame []byte) error {
	sp := s.sp()
	size := uint64(len(s.buf))
	if sp < stackHeaderBytes || sp > size {
		return fmt.Errorf("%w: sp %#x outside region of %#x bytes", ErrStackCorrupt, sp, size)
	}
	need := sp + uint64(len(frame)) + backPointerBytes
	if need < sp || need > size {
		return fmt.Errorf("%w: frame of %d bytes at sp %#x in region of %#x bytes", ErrNotEnoughSpace, len(frame), sp, size)
	}
	copy(s.buf[sp:], frame)
	binary.LittleEndian.PutUint64(s.buf[sp+uint64(len(frame)):], sp)
	s.setSP(need)
	return nil
}

// Pop removes the most recent frame and returns a copy of its payload,
// size prefix included. A copy is required: subsequent pushes reuse the
// region.
//
// The popped region is zeroed so stale frame bytes can never be replayed.
func (s *BufferStack) Pop() ([]byte, error) {
	sp := s.sp()
	size := uint64(len(s.buf))
	if sp == stackHeaderBytes {
		return nil, ErrStackEmpty
	}
	if sp < minPopSP || sp > size {
		return nil, fmt.Errorf("%w: sp %#x outside region of %#x bytes", ErrStackCorrupt, sp, size)
	}
	frameStart := binary.LittleEndian.Uint64(s.buf[sp-backPointerBytes:])
	if frameStart < stackHeaderBytes || frameStart+4 > sp-backPointerBytes {
		return nil, fmt.Errorf("%w: back-pointer %#x at sp %#x", ErrStackCorrupt, frameStart, sp)
	}
	n := uint64(binary.LittleEndian.Uint32(s.buf[frameStart:]))
	if frameStart+4+n != sp-backPointerBytes {
		return nil, fmt.Errorf("%w: frame at %#x claims %d payload bytes but sp is %#x", ErrStackCorrupt, frameStart, n, sp)
	}
	payload := make([]byte, 4+n)
	copy(payload, s.buf[frameStart:frameStart+4+n])
	clear(s.buf[frameStart:sp])
	s.setSP(frameStart)
	return payload, nil
}
