package guest

import (
	"encoding/binary"
	"fmt"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
)

// Errorf builds a *wire.GuestError carrying one of the fixed error codes.
// Returning one from a handler makes the dispatcher surface exactly that
// code to the host instead of wrapping the failure as UnknownError.
func Errorf(code wire.ErrorCode, format string, args ...any) *wire.GuestError {
	return &wire.GuestError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// writeGuestError serializes an error record into the guest error buffer,
// truncating the message to fit. This is the write half of the structured
// exit: the host reads the buffer back after the next halt.
func (rt *Runtime) writeGuestError(ge *wire.GuestError) {
	win, err := rt.peb.GuestErrorWindow()
	if err != nil {
		// No error buffer means no structured path; all that is left is
		// the abort signal.
		rt.Abort(0)
		return
	}
	code := ge.Code
	if !code.Known() {
		code = wire.UnknownError
	}
	frame, err := (&wire.GuestError{Code: code, Message: ge.Message}).EncodeToFit(len(win))
	if err != nil {
		rt.Abort(0)
		return
	}
	clear(win)
	copy(win, frame)
}

// clearGuestError resets the buffer to an explicit NoError record.
func (rt *Runtime) clearGuestError() {
	rt.writeGuestError(&wire.GuestError{Code: wire.NoError})
}

// readGuestError decodes the buffer. It returns nil when the buffer is
// empty or holds NoError.
func (rt *Runtime) readGuestError() *wire.GuestError {
	win, err := rt.peb.GuestErrorWindow()
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

// checkForHostError inspects the error buffer after an OUTB returns. The
// host mirrors exceptions thrown while servicing an outbound call into the
// buffer; finding one unwinds the in-flight request.
func (rt *Runtime) checkForHostError() *wire.GuestError {
	return rt.readGuestError()
}
