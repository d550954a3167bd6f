// Package guest implements the guest-side runtime of a micro-VM sandbox.
//
// A guest program embeds this package: it registers functions the host may
// call, and calls functions the host advertises. All traffic crosses one
// flat shared-memory mapping laid out by the host; the only signals are
// OUTB (guest to host, with a port number) and HLT (dispatch complete).
//
// The runtime is strictly single-threaded and cooperative. One request is
// in flight at a time, outbound host calls nest LIFO inside it, and the
// run/halt boundary is the only synchronization with the host.
package guest

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/liangcheng-yu/hyperlight/internal/sharedmem"
	"github.com/liangcheng-yu/hyperlight/internal/wire"
	"github.com/liangcheng-yu/hyperlight/pkg/guest/arena"
)

// OUTB ports. The value byte is zero except for abort, where it carries the
// abort code.
const (
	OutbLog          uint16 = 99
	OutbCallFunction uint16 = 101
	OutbAbort        uint16 = 102
)

// DispatchHandle is the value the runtime publishes into the PEB's dispatch
// pointer once it is ready to serve calls. In a hardware partition this
// would be the dispatcher's entry address; the in-process host only checks
// it is nonzero before invoking Dispatch directly.
const DispatchHandle uint64 = 0x686c_6469_7370_6831

// Surface is the guest's view of its hosting environment: the port-I/O
// signal and the halt instruction. A hardware partition backs these with
// OUT/HLT; an in-process host backs them with ordinary calls.
type Surface interface {
	// Outb signals the host on the given port. The host runs for an
	// unbounded time before it returns.
	Outb(port uint16, value byte)

	// Halt marks the current dispatch complete and returns control to
	// the host.
	Halt()
}

// State is the dispatcher's position in its request cycle.
type State int

const (
	// StateIdle: waiting for the host to trigger a dispatch.
	StateIdle State = iota
	// StateServing: a handler is executing.
	StateServing
	// StateReplyPending: the reply frame is pushed; about to halt.
	StateReplyPending
)

// MainFunc is the user's initialization hook, called once during Start. It
// is where guest functions are registered.
type MainFunc func(rt *Runtime) error

// FallbackDispatcher resolves names the static registry does not know,
// allowing a secondary runtime (an interpreter, say) to expose functions.
// It returns a complete serialized reply frame.
type FallbackDispatcher func(rt *Runtime, call *wire.FunctionCall) ([]byte, error)

// Runtime is the process-wide guest state: created once by Start and
// threaded through every operation.
type Runtime struct {
	mem   *sharedmem.Mapping
	peb   *sharedmem.PEB
	in    *sharedmem.BufferStack
	out   *sharedmem.BufferStack
	alloc *arena.Allocator

	registry *Registry
	fallback FallbackDispatcher
	surface  Surface

	hostFuncs *wire.HostFunctionDetails

	inPartition bool
	cookie      uint64
	pageSize    uint32
	maxLogLevel wire.LogLevel

	state            State
	outboundInFlight bool

	logger        *slog.Logger
	stackBoundary uint64
}

// Option adjusts Start behavior.
type Option func(*Runtime)

// WithSurface supplies the hosting surface. Mandatory for in-process
// sandboxes; a partition loader supplies its own port-I/O surface.
func WithSurface(s Surface) Option {
	return func(rt *Runtime) { rt.surface = s }
}

// WithFallbackDispatcher installs a resolver for names missing from the
// static registry. Without one, unknown names fail with
// GuestFunctionNotFound.
func WithFallbackDispatcher(f FallbackDispatcher) Option {
	return func(rt *Runtime) { rt.fallback = f }
}

// Start is the guest entry point. The host calls it once after loading,
// passing the mapping, the PEB's guest-physical address, the cookie seed,
// the OS page size, and the maximum log verbosity to forward.
//
// Start verifies the PEB and code header, publishes the dispatch handle,
// fixes the allocator footprint, clears the error buffer, runs the user's
// main (registrations happen there), seals the registry, and halts. After
// Start returns the sandbox is ready to serve dispatches.
func Start(mem []byte, pebBase, seed uint64, osPageSize uint32, maxLogLevel wire.LogLevel, main MainFunc, opts ...Option) (*Runtime, error) {
	if pebBase == 0 {
		return nil, errors.New("start: PEB address is zero")
	}
	mapping := sharedmem.NewMapping(mem)
	peb, err := sharedmem.OpenPEB(mapping, pebBase)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	rt := &Runtime{
		mem:         mapping,
		peb:         peb,
		registry:    NewRegistry(),
		cookie:      initCookie(seed),
		pageSize:    osPageSize,
		maxLogLevel: maxLogLevel,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(rt)
	}

	// outb_ptr is nonzero when the host runs the guest in-process rather
	// than in a partition.
	rt.inPartition = peb.OutbPtr() == 0
	if rt.surface == nil {
		return nil, errors.New("start: no hosting surface supplied")
	}

	if err := rt.checkCodeHeader(); err != nil {
		rt.writeGuestError(&wire.GuestError{Code: wire.CodeHeaderNotSet, Message: err.Error()})
		return nil, err
	}

	inWin, err := peb.InputWindow()
	if err != nil {
		return nil, fmt.Errorf("start: input buffer: %w", err)
	}
	if rt.in, err = sharedmem.OpenStack(inWin); err != nil {
		return nil, fmt.Errorf("start: input buffer: %w", err)
	}
	outWin, err := peb.OutputWindow()
	if err != nil {
		return nil, fmt.Errorf("start: output buffer: %w", err)
	}
	if rt.out, err = sharedmem.OpenStack(outWin); err != nil {
		return nil, fmt.Errorf("start: output buffer: %w", err)
	}

	heap, err := peb.HeapWindow()
	if err != nil {
		return nil, fmt.Errorf("start: heap: %w", err)
	}
	rt.alloc = arena.NewAllocator(arena.New(heap), seed)

	peb.SetDispatchPtr(DispatchHandle)
	rt.clearGuestError()

	if main != nil {
		if err := main(rt); err != nil {
			return nil, fmt.Errorf("start: guest main: %w", err)
		}
	}
	if err := rt.registry.Seal(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	rt.halt()
	return rt, nil
}

// checkCodeHeader sanity-checks the loaded image magic the host wrote at
// the code pointer.
func (rt *Runtime) checkCodeHeader() error {
	win, err := rt.mem.Window(rt.peb.CodePtr(), sharedmem.CodeHeaderBytes)
	if err != nil {
		return fmt.Errorf("code header: %w", err)
	}
	if !sharedmem.ValidCodeHeader(win) {
		return errors.New("code header magic mismatch")
	}
	return nil
}

// initCookie derives the stack-protector cookie from the host seed, the
// guest's only entropy source.
func initCookie(seed uint64) uint64 {
	cookie := seed ^ 0x2B992DDFA23249D6
	if cookie == 0 {
		cookie = 0x2B992DDFA23249D6
	}
	return cookie
}

// StackGuard returns the stack-protector cookie.
func (rt *Runtime) StackGuard() uint64 { return rt.cookie }

// CheckStackGuard validates a cookie readback. A mismatch is a smashed
// stack: the error record is written and the sandbox aborted.
func (rt *Runtime) CheckStackGuard(v uint64) {
	if v != rt.cookie {
		rt.writeGuestError(&wire.GuestError{Code: wire.GsCheckFailed})
		rt.Abort(0)
	}
}

// State returns the dispatcher state. Intended for instrumentation.
func (rt *Runtime) State() State { return rt.state }

// PageSize returns the OS page size the host passed at entry.
func (rt *Runtime) PageSize() uint32 { return rt.pageSize }

// InPartition reports whether the guest runs in a hardware partition
// rather than in-process.
func (rt *Runtime) InPartition() bool { return rt.inPartition }

// Allocator exposes the guest heap front-end.
func (rt *Runtime) Allocator() *arena.Allocator { return rt.alloc }

// Registry exposes the guest function table.
func (rt *Runtime) Registry() *Registry { return rt.registry }

// halt ends the current dispatch and returns control to the host.
func (rt *Runtime) halt() {
	rt.state = StateIdle
	rt.surface.Halt()
}
