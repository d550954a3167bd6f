package guest

import (
	"encoding/binary"
	"errors"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
)

// hostFunctions parses the host-advertised catalog out of the PEB on first
// use. The catalog is written once by the host before entry, so the parse
// is cached for the sandbox lifetime.
func (rt *Runtime) hostFunctions() (*wire.HostFunctionDetails, error) {
	if rt.hostFuncs != nil {
		return rt.hostFuncs, nil
	}
	win, err := rt.peb.HostFunctionsWindow()
	if err != nil {
		return nil, Errorf(wire.GuestErrorCode, "host function catalog: %v", err)
	}
	if len(win) < wire.SizePrefixBytes {
		return nil, Errorf(wire.GuestErrorCode, "host function catalog buffer too small")
	}
	n := int(binary.LittleEndian.Uint32(win))
	if wire.SizePrefixBytes+n > len(win) {
		return nil, Errorf(wire.GuestErrorCode, "host function catalog overruns its buffer")
	}
	details, err := wire.DecodeHostFunctionDetails(win[:wire.SizePrefixBytes+n])
	if err != nil {
		return nil, Errorf(wire.GuestErrorCode, "host function catalog: %v", err)
	}
	rt.hostFuncs = details
	return details, nil
}

// HostFunctionDetails returns the parsed host function catalog.
func (rt *Runtime) HostFunctionDetails() (*wire.HostFunctionDetails, error) {
	return rt.hostFunctions()
}

// callHost performs one outbound call: validate the arguments against the
// host catalog, push the request frame, signal OUTB, then collect the
// reply. Outbound calls nest strictly LIFO; the reply is popped before the
// wrapper returns.
func (rt *Runtime) callHost(name string, expected wire.ReturnType, args []wire.Value) (*wire.FunctionCallResult, error) {
	if rt.outboundInFlight {
		return nil, Errorf(wire.GuestErrorCode, "host call %s started while another is in flight", name)
	}

	details, err := rt.hostFunctions()
	if err != nil {
		return nil, err
	}
	def, ok := details.Lookup(name)
	if !ok {
		return nil, Errorf(wire.GuestErrorCode, "host function %s not found", name)
	}
	if len(args) != len(def.ParameterTypes) {
		return nil, Errorf(wire.GuestErrorCode,
			"host function %s takes %d parameters, called with %d", name, len(def.ParameterTypes), len(args))
	}
	for i, a := range args {
		if a.Kind != def.ParameterTypes[i] {
			return nil, Errorf(wire.GuestErrorCode,
				"host function %s parameter %d is %s, got %s", name, i, def.ParameterTypes[i], a.Kind)
		}
	}

	fc := &wire.FunctionCall{
		Name:       name,
		CallType:   wire.CallTypeHost,
		ReturnType: expected,
		Params:     args,
	}
	frame, err := fc.Encode()
	if err != nil {
		return nil, Errorf(wire.GuestErrorCode, "host call %s: %v", name, err)
	}
	if err := rt.out.Push(frame); err != nil {
		return nil, Errorf(wire.GuestErrorCode, "host call %s: %v", name, err)
	}

	rt.outboundInFlight = true
	rt.surface.Outb(OutbCallFunction, 0)
	rt.outboundInFlight = false

	// The host mirrors exceptions thrown during the call into the guest
	// error buffer; one found here unwinds the in-flight request.
	if ge := rt.checkForHostError(); ge != nil {
		return nil, ge
	}

	reply, err := rt.in.Pop()
	if err != nil {
		return nil, Errorf(wire.GuestErrorCode, "host call %s reply: %v", name, err)
	}
	res, err := wire.DecodeFunctionCallResult(reply)
	if err != nil {
		if errors.Is(err, wire.ErrUnsupportedTag) {
			return nil, Errorf(wire.UnsupportedParameterType, "host call %s reply: %v", name, err)
		}
		return nil, Errorf(wire.GuestErrorCode, "host call %s reply: %v", name, err)
	}
	if res.Kind != expected {
		return nil, Errorf(wire.GuestErrorCode,
			"host function %s returned %s, expected %s", name, res.Kind, expected)
	}
	return res, nil
}

// CallHostInt32 invokes a host function returning int32.
func (rt *Runtime) CallHostInt32(name string, args ...wire.Value) (int32, error) {
	res, err := rt.callHost(name, wire.ReturnInt32, args)
	if err != nil {
		return 0, err
	}
	return res.I32, nil
}

// CallHostInt64 invokes a host function returning int64.
func (rt *Runtime) CallHostInt64(name string, args ...wire.Value) (int64, error) {
	res, err := rt.callHost(name, wire.ReturnInt64, args)
	if err != nil {
		return 0, err
	}
	return res.I64, nil
}

// CallHostUInt32 invokes a host function returning uint32.
func (rt *Runtime) CallHostUInt32(name string, args ...wire.Value) (uint32, error) {
	res, err := rt.callHost(name, wire.ReturnUInt32, args)
	if err != nil {
		return 0, err
	}
	return res.U32, nil
}

// CallHostUInt64 invokes a host function returning uint64.
func (rt *Runtime) CallHostUInt64(name string, args ...wire.Value) (uint64, error) {
	res, err := rt.callHost(name, wire.ReturnUInt64, args)
	if err != nil {
		return 0, err
	}
	return res.U64, nil
}

// CallHostString invokes a host function returning a string.
func (rt *Runtime) CallHostString(name string, args ...wire.Value) (string, error) {
	res, err := rt.callHost(name, wire.ReturnString, args)
	if err != nil {
		return "", err
	}
	return res.Str, nil
}

// CallHostVoid invokes a host function with no return value.
func (rt *Runtime) CallHostVoid(name string, args ...wire.Value) error {
	_, err := rt.callHost(name, wire.ReturnVoid, args)
	return err
}
