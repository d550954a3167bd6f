package guest

import (
	"errors"
	"fmt"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
	"github.com/liangcheng-yu/hyperlight/pkg/guest/arena"
)

// Dispatch serves exactly one host-initiated function call: pop the request
// from the input buffer, validate, invoke, push the reply, halt.
//
// The host sees exactly one of: a well-formed reply frame on the output
// buffer, a well-formed error record in the guest error buffer with no
// reply, or an abort signal. A panic in a handler is catastrophic and
// takes the abort path.
func (rt *Runtime) Dispatch() {
	defer func() {
		if r := recover(); r != nil {
			rt.AbortWithMessage(0, fmt.Sprintf("panic in dispatch: %v", r))
		}
	}()

	rt.state = StateServing
	if err := rt.serveOne(); err != nil {
		rt.writeGuestError(asGuestError(err))
	}
	rt.halt()
}

// asGuestError normalizes any failure to the fixed error vocabulary.
func asGuestError(err error) *wire.GuestError {
	var ge *wire.GuestError
	if errors.As(err, &ge) {
		return ge
	}
	return &wire.GuestError{Code: wire.UnknownError, Message: err.Error()}
}

func (rt *Runtime) serveOne() error {
	rt.clearGuestError()

	frame, err := rt.in.Pop()
	if err != nil {
		return Errorf(wire.GuestErrorCode, "input buffer: %v", err)
	}
	call, err := wire.DecodeFunctionCall(frame)
	if err != nil {
		if errors.Is(err, wire.ErrUnsupportedTag) {
			return Errorf(wire.UnsupportedParameterType, "%v", err)
		}
		return Errorf(wire.GuestErrorCode, "%v", err)
	}

	if call.CallType != wire.CallTypeGuest {
		return Errorf(wire.GuestErrorCode, "Invalid Function Call Type")
	}
	if call.Name == "" {
		return Errorf(wire.GuestFunctionNameNotProvided, "")
	}

	params, frees, err := rt.decodeParameters(call)
	defer rt.freeAll(frees)
	if err != nil {
		return err
	}
	call.Params = params

	reply, err := rt.invoke(call)
	if err != nil {
		return err
	}
	if err := rt.out.Push(reply); err != nil {
		return Errorf(wire.GuestErrorCode, "output buffer: %v", err)
	}
	rt.state = StateReplyPending
	return nil
}

// decodeParameters walks the raw argument list, enforcing the pairing rule
// that every vec_bytes parameter is immediately followed by the int32
// carrying its byte length. Byte payloads are copied into guest-heap
// allocations so handlers get stable storage inside the sandbox region;
// the offsets are freed once the handler returns.
func (rt *Runtime) decodeParameters(call *wire.FunctionCall) ([]wire.Value, []uint64, error) {
	params := make([]wire.Value, len(call.Params))
	var frees []uint64

	nextParamIsLength := false
	for i, p := range call.Params {
		if nextParamIsLength {
			if p.Kind != wire.ParamInt32 {
				return params, frees, Errorf(wire.ArrayLengthParameterMissing, "Parameter %d", i)
			}
			params[i] = p
			nextParamIsLength = false
			continue
		}
		switch p.Kind {
		case wire.ParamInt32, wire.ParamInt64, wire.ParamString, wire.ParamBool:
			params[i] = p
		case wire.ParamVecBytes:
			off, buf, err := rt.alloc.Calloc(uint64(len(p.Bytes)))
			if err != nil {
				if errors.Is(err, arena.ErrNegativeGrowth) {
					rt.AllocatorFailure(err.Error())
					return params, frees, Errorf(wire.FailureInAllocator, "%v", err)
				}
				return params, frees, Errorf(wire.MallocFailed, "")
			}
			copy(buf, p.Bytes)
			frees = append(frees, off)
			params[i] = wire.ByteArray(buf)
			nextParamIsLength = true
		default:
			return params, frees, Errorf(wire.UnsupportedParameterType, "Parameter %d", i)
		}
	}
	if nextParamIsLength {
		return params, frees, Errorf(wire.ArrayLengthParameterMissing, "Last parameter should be the length of the array")
	}
	return params, frees, nil
}

func (rt *Runtime) freeAll(offs []uint64) {
	for _, off := range offs {
		// A failed free here means heap corruption: take the allocator
		// abort path.
		if err := rt.alloc.Free(off); err != nil {
			rt.AllocatorFailure(err.Error())
			return
		}
	}
}

// invoke resolves the call against the registry and runs the handler.
// Registry misses go to the fallback dispatcher so an embedded secondary
// runtime can resolve names of its own.
func (rt *Runtime) invoke(call *wire.FunctionCall) ([]byte, error) {
	def, ok := rt.registry.Lookup(call.Name)
	if !ok {
		if rt.fallback != nil {
			return rt.fallback(rt, call)
		}
		return nil, Errorf(wire.GuestFunctionNotFound, "%s", call.Name)
	}

	if len(call.Params) != len(def.ParameterTypes) {
		return nil, Errorf(wire.GuestFunctionIncorrectNumberOfParameters,
			"Called function %s with %d parameters but it takes %d.",
			call.Name, len(call.Params), len(def.ParameterTypes))
	}
	for i, p := range call.Params {
		if p.Kind != def.ParameterTypes[i] {
			return nil, Errorf(wire.GuestFunctionParameterTypeMismatch,
				"Function %s parameter %d.", call.Name, i)
		}
	}

	reply, err := def.Handler(call.Params)
	if err != nil {
		return nil, err
	}
	if _, err := wire.StripSizePrefix(reply); err != nil {
		return nil, Errorf(wire.GuestErrorCode, "function %s produced a malformed reply: %v", call.Name, err)
	}
	return reply, nil
}
