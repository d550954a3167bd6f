package host

import (
	"errors"
	"fmt"
	"time"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
	"github.com/liangcheng-yu/hyperlight/pkg/metrics"
)

// AbortError reports an unstructured guest abort: the sandbox is dead and
// must be torn down.
type AbortError struct {
	Code    byte
	Message string
}

func (e *AbortError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("guest aborted with code %d", e.Code)
	}
	return fmt.Sprintf("guest aborted with code %d: %s", e.Code, e.Message)
}

// ErrSandboxDead is returned for calls after an abort.
var ErrSandboxDead = errors.New("sandbox is dead after abort")

// Call dispatches one guest function and returns its decoded result.
//
// Exactly one of three things comes back: the reply, a *wire.GuestError
// (the structured failure the guest wrote before halting), or an
// *AbortError (the guest signalled the abort port and the sandbox is
// gone).
func (s *Sandbox) Call(name string, expected wire.ReturnType, args ...wire.Value) (*wire.FunctionCallResult, error) {
	if !s.started {
		return nil, errors.New("sandbox not started")
	}
	if s.aborted {
		return nil, ErrSandboxDead
	}
	if s.peb.DispatchPtr() == 0 {
		return nil, &wire.GuestError{Code: wire.DispatchFunctionPointerNotSet}
	}

	call := &wire.FunctionCall{
		Name:       name,
		CallType:   wire.CallTypeGuest,
		ReturnType: expected,
		Params:     args,
	}
	frame, err := call.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode guest call: %w", err)
	}
	if err := s.in.Push(frame); err != nil {
		return nil, fmt.Errorf("push guest call: %w", err)
	}

	start := time.Now()
	s.rt.Dispatch()

	switch {
	case s.aborted:
		s.cfg.Metrics.ObserveDispatch(name, metrics.OutcomeAbort, time.Since(start))
		return nil, &AbortError{Code: s.abortCode, Message: s.panicMessage}
	default:
		if ge := s.readGuestError(); ge != nil {
			s.cfg.Metrics.ObserveDispatch(name, metrics.OutcomeError, time.Since(start))
			return nil, ge
		}
	}

	reply, err := s.out.Pop()
	if err != nil {
		return nil, fmt.Errorf("pop guest reply: %w", err)
	}
	res, err := wire.DecodeFunctionCallResult(reply)
	if err != nil {
		return nil, fmt.Errorf("decode guest reply: %w", err)
	}
	s.cfg.Metrics.ObserveDispatch(name, metrics.OutcomeOK, time.Since(start))
	return res, nil
}
