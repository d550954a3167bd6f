package sharedmem

import (
	"encoding/binary"
	"fmt"
)

// PEB field offsets. The record layout is part of the host/guest contract;
// all fields are little-endian and 8-byte aligned.
const (
	offSecurityCookieSeed = 0x00
	offDispatchPtr        = 0x08
	offHostFuncSize       = 0x10
	offHostFuncPtr        = 0x18
	offHostExceptionSize  = 0x20
	offHostExceptionPtr   = 0x28
	offGuestErrorPtr      = 0x30
	offGuestErrorSize     = 0x38
	offCodePtr            = 0x40
	offOutbPtr            = 0x48
	offOutbContext        = 0x50
	offInputSize          = 0x58
	offInputPtr           = 0x60
	offOutputSize         = 0x68
	offOutputPtr          = 0x70
	offPanicContextSize   = 0x78
	offPanicContextPtr    = 0x80
	offHeapSize           = 0x88
	offHeapPtr            = 0x90
	offMinStackAddr       = 0x98

	// PEBSize is the size of the whole record.
	PEBSize = 0xA0
)

// PEB is a view over the Process Environment Block record inside a mapping.
// It holds no state of its own; every accessor reads or writes the shared
// bytes directly.
type PEB struct {
	mem  *Mapping
	base uint64
	b    []byte
}

// OpenPEB resolves the PEB record at the given guest-physical base.
func OpenPEB(mem *Mapping, base uint64) (*PEB, error) {
	b, err := mem.Window(base, PEBSize)
	if err != nil {
		return nil, fmt.Errorf("open PEB: %w", err)
	}
	return &PEB{mem: mem, base: base, b: b}, nil
}

// Base returns the guest-physical address of the record.
func (p *PEB) Base() uint64 { return p.base }

// Mapping returns the mapping the record lives in.
func (p *PEB) Mapping() *Mapping { return p.mem }

func (p *PEB) get(off int) uint64     { return binary.LittleEndian.Uint64(p.b[off:]) }
func (p *PEB) set(off int, v uint64)  { binary.LittleEndian.PutUint64(p.b[off:], v) }

// SecurityCookieSeed is the only entropy the host hands the guest.
func (p *PEB) SecurityCookieSeed() uint64     { return p.get(offSecurityCookieSeed) }
func (p *PEB) SetSecurityCookieSeed(v uint64) { p.set(offSecurityCookieSeed, v) }

// DispatchPtr is written by the guest during initialization; the host reads
// it to find the dispatcher.
func (p *PEB) DispatchPtr() uint64     { return p.get(offDispatchPtr) }
func (p *PEB) SetDispatchPtr(v uint64) { p.set(offDispatchPtr, v) }

func (p *PEB) HostFunctionsPtr() uint64   { return p.get(offHostFuncPtr) }
func (p *PEB) HostFunctionsSize() uint64  { return p.get(offHostFuncSize) }
func (p *PEB) SetHostFunctions(ptr, size uint64) {
	p.set(offHostFuncPtr, ptr)
	p.set(offHostFuncSize, size)
}

func (p *PEB) HostExceptionPtr() uint64  { return p.get(offHostExceptionPtr) }
func (p *PEB) HostExceptionSize() uint64 { return p.get(offHostExceptionSize) }
func (p *PEB) SetHostException(ptr, size uint64) {
	p.set(offHostExceptionPtr, ptr)
	p.set(offHostExceptionSize, size)
}

func (p *PEB) GuestErrorPtr() uint64  { return p.get(offGuestErrorPtr) }
func (p *PEB) GuestErrorSize() uint64 { return p.get(offGuestErrorSize) }
func (p *PEB) SetGuestError(ptr, size uint64) {
	p.set(offGuestErrorPtr, ptr)
	p.set(offGuestErrorSize, size)
}

// CodePtr points at the loaded guest image header.
func (p *PEB) CodePtr() uint64     { return p.get(offCodePtr) }
func (p *PEB) SetCodePtr(v uint64) { p.set(offCodePtr, v) }

// OutbPtr is nonzero when the sandbox runs in-process rather than in a
// hardware partition.
func (p *PEB) OutbPtr() uint64         { return p.get(offOutbPtr) }
func (p *PEB) SetOutbPtr(v uint64)     { p.set(offOutbPtr, v) }
func (p *PEB) OutbContext() uint64     { return p.get(offOutbContext) }
func (p *PEB) SetOutbContext(v uint64) { p.set(offOutbContext, v) }

func (p *PEB) InputPtr() uint64  { return p.get(offInputPtr) }
func (p *PEB) InputSize() uint64 { return p.get(offInputSize) }
func (p *PEB) SetInput(ptr, size uint64) {
	p.set(offInputPtr, ptr)
	p.set(offInputSize, size)
}

func (p *PEB) OutputPtr() uint64  { return p.get(offOutputPtr) }
func (p *PEB) OutputSize() uint64 { return p.get(offOutputSize) }
func (p *PEB) SetOutput(ptr, size uint64) {
	p.set(offOutputPtr, ptr)
	p.set(offOutputSize, size)
}

func (p *PEB) PanicContextPtr() uint64  { return p.get(offPanicContextPtr) }
func (p *PEB) PanicContextSize() uint64 { return p.get(offPanicContextSize) }
func (p *PEB) SetPanicContext(ptr, size uint64) {
	p.set(offPanicContextPtr, ptr)
	p.set(offPanicContextSize, size)
}

func (p *PEB) HeapPtr() uint64  { return p.get(offHeapPtr) }
func (p *PEB) HeapSize() uint64 { return p.get(offHeapSize) }
func (p *PEB) SetHeap(ptr, size uint64) {
	p.set(offHeapPtr, ptr)
	p.set(offHeapSize, size)
}

// MinStackAddr is the lowest permitted stack address.
func (p *PEB) MinStackAddr() uint64     { return p.get(offMinStackAddr) }
func (p *PEB) SetMinStackAddr(v uint64) { p.set(offMinStackAddr, v) }

// ============================================================================
// Region Windows
// ============================================================================

// HostFunctionsWindow resolves the host function catalog buffer.
func (p *PEB) HostFunctionsWindow() ([]byte, error) {
	return p.mem.Window(p.HostFunctionsPtr(), p.HostFunctionsSize())
}

// HostExceptionWindow resolves the host exception buffer.
func (p *PEB) HostExceptionWindow() ([]byte, error) {
	return p.mem.Window(p.HostExceptionPtr(), p.HostExceptionSize())
}

// GuestErrorWindow resolves the guest error buffer.
func (p *PEB) GuestErrorWindow() ([]byte, error) {
	return p.mem.Window(p.GuestErrorPtr(), p.GuestErrorSize())
}

// InputWindow resolves the input shared-buffer stack region.
func (p *PEB) InputWindow() ([]byte, error) {
	return p.mem.Window(p.InputPtr(), p.InputSize())
}

// OutputWindow resolves the output shared-buffer stack region.
func (p *PEB) OutputWindow() ([]byte, error) {
	return p.mem.Window(p.OutputPtr(), p.OutputSize())
}

// PanicContextWindow resolves the guest panic context buffer.
func (p *PEB) PanicContextWindow() ([]byte, error) {
	return p.mem.Window(p.PanicContextPtr(), p.PanicContextSize())
}

// HeapWindow resolves the bump-allocator arena.
func (p *PEB) HeapWindow() ([]byte, error) {
	return p.mem.Window(p.HeapPtr(), p.HeapSize())
}
