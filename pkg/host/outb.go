package host

import (
	"encoding/binary"
	"fmt"

	"github.com/liangcheng-yu/hyperlight/internal/logger"
	"github.com/liangcheng-yu/hyperlight/internal/wire"
	"github.com/liangcheng-yu/hyperlight/pkg/guest"
)

// Outb services one guest signal. While the guest is running the host
// pops frames from the output buffer, pushes replies on the input buffer,
// writes the host-exception and guest-error buffers when a host call
// fails, and reads the panic buffer on abort; the run/halt boundary is the
// only lock.
func (s *Sandbox) Outb(port uint16, value byte) {
	switch port {
	case guest.OutbLog:
		s.serviceLog()
	case guest.OutbCallFunction:
		s.serviceHostCall()
	case guest.OutbAbort:
		s.recordAbort(value)
	default:
		logger.Warn("guest signalled unknown port", "sandbox", s.id, "port", port)
	}
}

// Halt completes a dispatch. In-process there is no partition to exit;
// control returns to the Call that invoked the dispatcher.
func (s *Sandbox) Halt() {}

func (s *Sandbox) serviceLog() {
	frame, err := s.out.Pop()
	if err != nil {
		logger.Warn("log signal with no frame", "sandbox", s.id, "error", err)
		return
	}
	rec, err := wire.DecodeLogRecord(frame)
	if err != nil {
		logger.Warn("malformed guest log frame", "sandbox", s.id, "error", err)
		return
	}
	fields := []any{
		"sandbox", s.id,
		"source", rec.Source,
		"caller", rec.Caller,
		"file", fmt.Sprintf("%s:%d", rec.SourceFile, rec.Line),
	}
	switch rec.Level {
	case wire.LogTrace, wire.LogDebug:
		logger.Debug(rec.Message, fields...)
	case wire.LogInformation:
		logger.Info(rec.Message, fields...)
	case wire.LogWarning:
		logger.Warn(rec.Message, fields...)
	default:
		logger.Error(rec.Message, fields...)
	}
}

// serviceHostCall runs one outbound call: pop the request the guest
// pushed, invoke the implementation, push the reply on the input buffer.
// Failures are mirrored into the guest error buffer so the guest's
// post-OUTB check unwinds its in-flight request.
func (s *Sandbox) serviceHostCall() {
	frame, err := s.out.Pop()
	if err != nil {
		s.mirrorHostError(wire.OutbError, fmt.Sprintf("host call signal with no frame: %v", err))
		return
	}
	call, err := wire.DecodeFunctionCall(frame)
	if err != nil {
		s.mirrorHostError(wire.OutbError, fmt.Sprintf("malformed host call frame: %v", err))
		return
	}
	if call.CallType != wire.CallTypeHost {
		s.mirrorHostError(wire.OutbError, "Invalid Function Call Type")
		return
	}
	fn, ok := s.functions[call.Name]
	if !ok {
		s.mirrorHostError(wire.OutbError, fmt.Sprintf("host function %s not found", call.Name))
		return
	}
	s.cfg.Metrics.ObserveHostCall(call.Name)

	res, err := s.invokeHostFunction(fn, call)
	if err != nil {
		s.writeHostException(err)
		s.mirrorHostError(wire.OutbError, err.Error())
		return
	}
	reply, err := res.Encode()
	if err != nil {
		s.mirrorHostError(wire.OutbError, fmt.Sprintf("encode host reply: %v", err))
		return
	}
	if err := s.in.Push(reply); err != nil {
		s.mirrorHostError(wire.OutbError, fmt.Sprintf("push host reply: %v", err))
	}
}

// invokeHostFunction type-checks and runs one implementation, converting a
// panic into an ordinary error so a broken host function cannot take the
// host process down with the guest mid-call.
func (s *Sandbox) invokeHostFunction(fn *hostFunction, call *wire.FunctionCall) (res wire.FunctionCallResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host function %s panicked: %v", call.Name, r)
		}
	}()

	if len(call.Params) != len(fn.def.ParameterTypes) {
		return res, fmt.Errorf("host function %s takes %d parameters, called with %d",
			call.Name, len(fn.def.ParameterTypes), len(call.Params))
	}
	for i, p := range call.Params {
		if p.Kind != fn.def.ParameterTypes[i] {
			return res, fmt.Errorf("host function %s parameter %d is %s, got %s",
				call.Name, i, fn.def.ParameterTypes[i], p.Kind)
		}
	}
	res, err = fn.impl(call.Params)
	if err != nil {
		return res, err
	}
	if res.Kind != fn.def.ReturnType {
		return res, fmt.Errorf("host function %s implementation returned %s, advertised %s",
			call.Name, res.Kind, fn.def.ReturnType)
	}
	return res, nil
}

// mirrorHostError writes an error record into the guest error buffer, the
// channel the guest inspects after every OUTB.
func (s *Sandbox) mirrorHostError(code wire.ErrorCode, msg string) {
	win, err := s.peb.GuestErrorWindow()
	if err != nil {
		return
	}
	frame, err := (&wire.GuestError{Code: code, Message: msg}).EncodeToFit(len(win))
	if err != nil {
		return
	}
	clear(win)
	copy(win, frame)
}

// writeHostException records the failure detail in the host exception
// buffer as a size-prefixed string.
func (s *Sandbox) writeHostException(cause error) {
	win, err := s.peb.HostExceptionWindow()
	if err != nil || len(win) < wire.SizePrefixBytes {
		return
	}
	msg := cause.Error()
	if room := len(win) - wire.SizePrefixBytes; len(msg) > room {
		msg = msg[:room]
	}
	clear(win)
	binary.LittleEndian.PutUint32(win, uint32(len(msg)))
	copy(win[wire.SizePrefixBytes:], msg)
}

func (s *Sandbox) recordAbort(code byte) {
	s.aborted = true
	s.abortCode = code
	s.panicMessage = s.readPanicContext()
	s.cfg.Metrics.ObserveAbort()
	logger.Error("guest aborted", "sandbox", s.id, "code", code, "message", s.panicMessage)
}

func (s *Sandbox) readPanicContext() string {
	win, err := s.peb.PanicContextWindow()
	if err != nil || len(win) < wire.SizePrefixBytes {
		return ""
	}
	n := binary.LittleEndian.Uint32(win)
	if n == 0 || uint64(n)+wire.SizePrefixBytes > uint64(len(win)) {
		return ""
	}
	return string(win[wire.SizePrefixBytes : wire.SizePrefixBytes+int(n)])
}

// readGuestError decodes the guest error buffer after a halt. Nil means
// the guest reported NoError.
func (s *Sandbox) readGuestError() *wire.GuestError {
	win, err := s.peb.GuestErrorWindow()
	if err != nil || len(win) < wire.SizePrefixBytes {
		return nil
	}
	n := binary.LittleEndian.Uint32(win)
	if n == 0 || uint64(n)+wire.SizePrefixBytes > uint64(len(win)) {
		return nil
	}
	ge, err := wire.DecodeGuestError(win[:wire.SizePrefixBytes+int(n)])
	if err != nil || ge.Code == wire.NoError {
		return nil
	}
	return ge
}
