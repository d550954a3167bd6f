package wire

import (
	"bytes"
	"fmt"
)

// GuestError is the record a guest writes into its error buffer on abnormal
// termination. The host reads it back after the guest halts.
//
// Payload layout:
//
//	[code:u64][message:string]
type GuestError struct {
	Code    ErrorCode
	Message string
}

// Error makes *GuestError usable as a Go error on the guest side.
func (e *GuestError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// encodedOverhead is the fixed cost of a guest-error frame: size prefix,
// code, and message length.
const encodedOverhead = SizePrefixBytes + 8 + 4

// Encode serializes the record as a complete size-prefixed frame.
func (e *GuestError) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := WriteUint64(buf, uint64(e.Code)); err != nil {
		return nil, fmt.Errorf("encode error code: %w", err)
	}
	if err := WriteString(buf, e.Message); err != nil {
		return nil, fmt.Errorf("encode error message: %w", err)
	}
	return FinishSizePrefixed(buf.Bytes())
}

// EncodeToFit serializes the record into at most max bytes, truncating the
// message if needed. The error buffer has a fixed size; a long message must
// never prevent the code from being written.
func (e *GuestError) EncodeToFit(max int) ([]byte, error) {
	if max < encodedOverhead {
		return nil, fmt.Errorf("error buffer of %d bytes cannot hold a guest error", max)
	}
	msg := e.Message
	if room := max - encodedOverhead; len(msg) > room {
		msg = msg[:room]
	}
	trunc := &GuestError{Code: e.Code, Message: msg}
	return trunc.Encode()
}

// DecodeGuestError parses a size-prefixed guest-error frame.
func DecodeGuestError(frame []byte) (*GuestError, error) {
	payload, err := StripSizePrefix(frame)
	if err != nil {
		return nil, fmt.Errorf("decode guest error: %w", err)
	}
	r := bytes.NewReader(payload)

	code, err := ReadUint64(r)
	if err != nil {
		return nil, fmt.Errorf("decode error code: %w", err)
	}
	msg, err := ReadString(r)
	if err != nil {
		return nil, fmt.Errorf("decode error message: %w", err)
	}
	if err := expectDrained(r, "guest error"); err != nil {
		return nil, err
	}
	return &GuestError{Code: ErrorCode(code), Message: msg}, nil
}
