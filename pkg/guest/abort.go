package guest

import (
	"encoding/binary"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
)

// Abort terminates the sandbox unconditionally via the abort port. In a
// hardware partition the host tears the partition down and nothing on the
// guest side runs afterwards. An in-process host records the abort and
// returns, so guest code after Abort still runs, but the host reports the
// abort ahead of any reply or error record. Abort returns no error.
func (rt *Runtime) Abort(code byte) {
	rt.surface.Outb(OutbAbort, code)
}

// AbortWithMessage copies a panic message into the guest panic context
// buffer, truncated to fit, then aborts. The message travels as a
// size-prefixed string so the host can tell an empty buffer from an empty
// message.
func (rt *Runtime) AbortWithMessage(code byte, msg string) {
	if win, err := rt.peb.PanicContextWindow(); err == nil {
		writePanicContext(win, msg)
	}
	rt.Abort(code)
}

func writePanicContext(win []byte, msg string) {
	clear(win)
	if len(win) < wire.SizePrefixBytes {
		return
	}
	if room := len(win) - wire.SizePrefixBytes; len(msg) > room {
		msg = msg[:room]
	}
	binary.LittleEndian.PutUint32(win, uint32(len(msg)))
	copy(win[wire.SizePrefixBytes:], msg)
}

// AllocatorFailure is the abort path the dispatcher takes when the heap's
// invariants break (a negative growth request, a corrupt free). It logs
// nothing: the panic context and the FailureInAllocator record are all the
// host gets.
func (rt *Runtime) AllocatorFailure(detail string) {
	rt.writeGuestError(&wire.GuestError{Code: wire.FailureInAllocator, Message: detail})
	rt.AbortWithMessage(0, detail)
}
