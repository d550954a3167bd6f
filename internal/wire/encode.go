package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// ============================================================================
// Encoding Helpers - Go Types → Wire Format
// ============================================================================

// WriteUint32 encodes a 32-bit unsigned integer in little-endian order.
func WriteUint32(buf *bytes.Buffer, v uint32) error {
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("write uint32: %w", err)
	}
	return nil
}

// WriteUint64 encodes a 64-bit unsigned integer in little-endian order.
func WriteUint64(buf *bytes.Buffer, v uint64) error {
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("write uint64: %w", err)
	}
	return nil
}

// WriteInt32 encodes a 32-bit signed integer in little-endian order.
func WriteInt32(buf *bytes.Buffer, v int32) error {
	return WriteUint32(buf, uint32(v))
}

// WriteInt64 encodes a 64-bit signed integer in little-endian order.
func WriteInt64(buf *bytes.Buffer, v int64) error {
	return WriteUint64(buf, uint64(v))
}

// WriteBool encodes a bool as a single byte, 0 or 1.
func WriteBool(buf *bytes.Buffer, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	if err := buf.WriteByte(b); err != nil {
		return fmt.Errorf("write bool: %w", err)
	}
	return nil
}

// WriteBytes encodes a byte vector: 4-byte length followed by the data.
func WriteBytes(buf *bytes.Buffer, data []byte) error {
	if len(data) > math.MaxUint32 {
		return fmt.Errorf("byte vector length %d exceeds uint32", len(data))
	}
	if err := WriteUint32(buf, uint32(len(data))); err != nil {
		return fmt.Errorf("write vector length: %w", err)
	}
	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("write vector data: %w", err)
	}
	return nil
}

// WriteString encodes a string with the same framing as a byte vector.
func WriteString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint32 {
		return fmt.Errorf("string length %d exceeds uint32", len(s))
	}
	if err := WriteUint32(buf, uint32(len(s))); err != nil {
		return fmt.Errorf("write string length: %w", err)
	}
	if _, err := buf.WriteString(s); err != nil {
		return fmt.Errorf("write string data: %w", err)
	}
	return nil
}

// WriteTag writes the uint32 discriminant of a tagged union.
func WriteTag(buf *bytes.Buffer, tag uint32) error {
	return WriteUint32(buf, tag)
}

// WriteValue encodes one tagged parameter value: discriminant then arm.
func WriteValue(buf *bytes.Buffer, v Value) error {
	if err := WriteTag(buf, uint32(v.Kind)); err != nil {
		return err
	}
	switch v.Kind {
	case ParamInt32:
		return WriteInt32(buf, v.I32)
	case ParamInt64:
		return WriteInt64(buf, v.I64)
	case ParamString:
		return WriteString(buf, v.Str)
	case ParamBool:
		return WriteBool(buf, v.Bool)
	case ParamVecBytes:
		return WriteBytes(buf, v.Bytes)
	default:
		return fmt.Errorf("encode value: %w: tag %d", ErrUnsupportedTag, uint32(v.Kind))
	}
}

// ============================================================================
// Size-Prefix Framing
// ============================================================================

// SizePrefixBytes is the width of the frame size prefix.
const SizePrefixBytes = 4

// FinishSizePrefixed prepends the 4-byte little-endian size prefix to an
// encoded payload, producing a complete frame.
func FinishSizePrefixed(payload []byte) ([]byte, error) {
	if len(payload) > math.MaxUint32 {
		return nil, fmt.Errorf("payload length %d exceeds uint32", len(payload))
	}
	frame := make([]byte, SizePrefixBytes+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[SizePrefixBytes:], payload)
	return frame, nil
}

// StripSizePrefix validates a frame's size prefix and returns the payload.
func StripSizePrefix(frame []byte) ([]byte, error) {
	if len(frame) < SizePrefixBytes {
		return nil, fmt.Errorf("frame of %d bytes is shorter than its size prefix", len(frame))
	}
	n := binary.LittleEndian.Uint32(frame)
	if uint64(n) != uint64(len(frame)-SizePrefixBytes) {
		return nil, fmt.Errorf("size prefix %d does not match payload length %d", n, len(frame)-SizePrefixBytes)
	}
	return frame[SizePrefixBytes : SizePrefixBytes+int(n)], nil
}
