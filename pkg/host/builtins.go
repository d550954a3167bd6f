package host

import (
	"fmt"
	"os"
	"time"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
	"github.com/liangcheng-yu/hyperlight/pkg/guest"
)

// registerBuiltins installs the host functions every sandbox advertises.
// Printing goes through HostPrint; the remaining exports exist for guest
// library code (allocator tick counts, stack boundary queries).
func (s *Sandbox) registerBuiltins() {
	must := func(err error) {
		if err != nil {
			// Builtins register into an empty table; a failure here is a
			// programming error in this package.
			panic(fmt.Sprintf("register builtin: %v", err))
		}
	}

	must(s.RegisterHostFunction(guest.HostPrintFunction,
		[]wire.ParameterType{wire.ParamString}, wire.ReturnInt32,
		func(args []wire.Value) (wire.FunctionCallResult, error) {
			n, err := fmt.Fprint(s.cfg.Writer, args[0].Str)
			if err != nil {
				return wire.FunctionCallResult{}, fmt.Errorf("host print: %w", err)
			}
			return wire.Int32Result(int32(n)), nil
		}))

	must(s.RegisterHostFunction(guest.GetTickCountFunction,
		nil, wire.ReturnInt64,
		func([]wire.Value) (wire.FunctionCallResult, error) {
			return wire.Int64Result(time.Since(s.startedAt).Milliseconds()), nil
		}))

	must(s.RegisterHostFunction(guest.GetOSPageSizeFunction,
		nil, wire.ReturnUInt32,
		func([]wire.Value) (wire.FunctionCallResult, error) {
			return wire.UInt32Result(uint32(os.Getpagesize())), nil
		}))

	must(s.RegisterHostFunction(guest.GetStackBoundaryFunction,
		nil, wire.ReturnUInt64,
		func([]wire.Value) (wire.FunctionCallResult, error) {
			return wire.UInt64Result(s.peb.MinStackAddr()), nil
		}))

	must(s.RegisterHostFunction(guest.GetTimeSinceBootMicrosecond,
		nil, wire.ReturnInt64,
		func([]wire.Value) (wire.FunctionCallResult, error) {
			return wire.Int64Result(time.Since(s.startedAt).Microseconds()), nil
		}))
}
