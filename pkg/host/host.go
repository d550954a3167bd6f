// Package host implements the in-process hosting side of a sandbox: it
// owns the shared memory mapping, lays out the PEB and buffers, advertises
// host functions, services OUTB signals, and drives guest dispatches.
//
// In-process hosting runs the guest in the same address space instead of a
// hardware partition. It is the mode the guest detects through a nonzero
// outb pointer in the PEB, and it is how every end-to-end property of the
// runtime is exercised in tests and in the simulator.
package host

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/liangcheng-yu/hyperlight/internal/sharedmem"
	"github.com/liangcheng-yu/hyperlight/internal/wire"
	"github.com/liangcheng-yu/hyperlight/pkg/guest"
	"github.com/liangcheng-yu/hyperlight/pkg/metrics"
)

// Config sizes the sandbox regions. Region sizes are rounded up to whole
// pages during layout.
type Config struct {
	InputSize         uint64
	OutputSize        uint64
	HeapSize          uint64
	GuestErrorSize    uint64
	PanicContextSize  uint64
	HostFunctionsSize uint64
	HostExceptionSize uint64

	// Writer receives HostPrint output. Defaults to os.Stdout.
	Writer io.Writer

	// MaxLogLevel is the most verbose guest log level forwarded to the
	// host logger.
	MaxLogLevel wire.LogLevel

	// Metrics receives dispatch observations. Nil disables metrics.
	Metrics *metrics.DispatchMetrics
}

// DefaultConfig returns a sandbox sized for small workloads.
func DefaultConfig() Config {
	return Config{
		InputSize:         64 << 10,
		OutputSize:        64 << 10,
		HeapSize:          1 << 20,
		GuestErrorSize:    4 << 10,
		PanicContextSize:  4 << 10,
		HostFunctionsSize: 16 << 10,
		HostExceptionSize: 4 << 10,
		Writer:            os.Stdout,
		MaxLogLevel:       wire.LogInformation,
	}
}

// HostFunc is the implementation of one advertised host function. It
// receives validated arguments and returns the result to hand back to the
// guest.
type HostFunc func(args []wire.Value) (wire.FunctionCallResult, error)

type hostFunction struct {
	def  wire.HostFunctionDefinition
	impl HostFunc
}

// Sandbox is one in-process sandbox instance.
type Sandbox struct {
	id  uuid.UUID
	cfg Config

	mem     *sharedmem.Mapping
	release func() error
	peb     *sharedmem.PEB
	in      *sharedmem.BufferStack
	out     *sharedmem.BufferStack

	functions map[string]*hostFunction
	rt        *guest.Runtime
	started   bool
	startedAt time.Time

	aborted      bool
	abortCode    byte
	panicMessage string
}

// NewSandbox allocates and lays out the shared memory region and installs
// the builtin host functions.
func NewSandbox(cfg Config) (*Sandbox, error) {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	s := &Sandbox{
		id:        uuid.New(),
		cfg:       cfg,
		functions: make(map[string]*hostFunction),
		startedAt: time.Now(),
	}
	if err := s.layout(); err != nil {
		return nil, fmt.Errorf("sandbox layout: %w", err)
	}
	s.registerBuiltins()
	return s, nil
}

// ID returns the sandbox identifier.
func (s *Sandbox) ID() uuid.UUID { return s.id }

// Close releases the shared memory region.
func (s *Sandbox) Close() error {
	if s.release != nil {
		err := s.release()
		s.release = nil
		return err
	}
	return nil
}

// RegisterHostFunction advertises a function to the guest. All
// registrations must happen before Start; the serialized catalog is
// written once.
func (s *Sandbox) RegisterHostFunction(name string, params []wire.ParameterType, ret wire.ReturnType, impl HostFunc) error {
	if s.started {
		return errors.New("register host function: sandbox already started")
	}
	if name == "" || impl == nil {
		return errors.New("register host function: name and implementation required")
	}
	if _, dup := s.functions[name]; dup {
		return fmt.Errorf("register host function: %s registered twice", name)
	}
	s.functions[name] = &hostFunction{
		def: wire.HostFunctionDefinition{
			Name:           name,
			ParameterTypes: params,
			ReturnType:     ret,
		},
		impl: impl,
	}
	return nil
}

// Start serializes the host function catalog, seeds the PEB, and runs the
// guest entry point. The guest's main hook registers its functions during
// the call; when Start returns the sandbox is ready for Call.
func (s *Sandbox) Start(main guest.MainFunc, opts ...guest.Option) error {
	if s.started {
		return errors.New("sandbox already started")
	}
	if err := s.writeHostFunctionCatalog(); err != nil {
		return err
	}

	var seedBytes [8]byte
	if _, err := rand.Read(seedBytes[:]); err != nil {
		return fmt.Errorf("seed sandbox: %w", err)
	}
	seed := binary.LittleEndian.Uint64(seedBytes[:])
	s.peb.SetSecurityCookieSeed(seed)

	opts = append([]guest.Option{guest.WithSurface(s)}, opts...)
	rt, err := guest.Start(
		s.mem.Bytes(),
		s.peb.Base(),
		seed,
		uint32(os.Getpagesize()),
		s.cfg.MaxLogLevel,
		main,
		opts...,
	)
	if err != nil {
		return fmt.Errorf("guest entry: %w", err)
	}
	if s.peb.DispatchPtr() == 0 {
		return &wire.GuestError{Code: wire.DispatchFunctionPointerNotSet}
	}
	s.rt = rt
	s.started = true
	return nil
}

// Runtime exposes the guest runtime once started. Intended for tests.
func (s *Sandbox) Runtime() *guest.Runtime { return s.rt }

// HostFunctions returns the advertised catalog in sorted order.
func (s *Sandbox) HostFunctions() []wire.HostFunctionDefinition {
	details := s.catalog()
	return details.Functions
}

func (s *Sandbox) catalog() *wire.HostFunctionDetails {
	details := &wire.HostFunctionDetails{}
	for _, fn := range s.functions {
		details.Functions = append(details.Functions, fn.def)
	}
	details.Sort()
	return details
}

func (s *Sandbox) writeHostFunctionCatalog() error {
	frame, err := s.catalog().Encode()
	if err != nil {
		return fmt.Errorf("encode host function catalog: %w", err)
	}
	win, err := s.peb.HostFunctionsWindow()
	if err != nil {
		return err
	}
	if len(frame) > len(win) {
		return fmt.Errorf("host function catalog of %d bytes exceeds buffer of %d", len(frame), len(win))
	}
	clear(win)
	copy(win, frame)
	return nil
}
