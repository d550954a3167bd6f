package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ============================================================================
// Decoding Helpers - Wire Format → Go Types
// ============================================================================

// ErrUnsupportedTag is returned when a tagged union carries a discriminant
// neither side of the boundary knows about.
var ErrUnsupportedTag = errors.New("unsupported union tag")

// ReadUint32 decodes a little-endian 32-bit unsigned integer.
func ReadUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("read uint32: %w", err)
	}
	return v, nil
}

// ReadUint64 decodes a little-endian 64-bit unsigned integer.
func ReadUint64(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("read uint64: %w", err)
	}
	return v, nil
}

// ReadInt32 decodes a little-endian 32-bit signed integer.
func ReadInt32(r io.Reader) (int32, error) {
	v, err := ReadUint32(r)
	return int32(v), err
}

// ReadInt64 decodes a little-endian 64-bit signed integer.
func ReadInt64(r io.Reader) (int64, error) {
	v, err := ReadUint64(r)
	return int64(v), err
}

// ReadBool decodes a single-byte bool. Any nonzero byte is true.
func ReadBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, fmt.Errorf("read bool: %w", err)
	}
	return b[0] != 0, nil
}

// maxVectorLength bounds decoded vectors and strings. Shared buffers are a
// few pages; anything larger than this is corruption, not data.
const maxVectorLength = 64 << 20

// ReadBytes decodes a length-prefixed byte vector.
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read vector length: %w", err)
	}
	if n > maxVectorLength {
		return nil, fmt.Errorf("vector length %d exceeds maximum %d", n, maxVectorLength)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read vector data: %w", err)
	}
	return data, nil
}

// ReadString decodes a length-prefixed string.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadTag reads the uint32 discriminant of a tagged union.
func ReadTag(r io.Reader) (uint32, error) {
	return ReadUint32(r)
}

// ReadValue decodes one tagged parameter value.
func ReadValue(r io.Reader) (Value, error) {
	tag, err := ReadTag(r)
	if err != nil {
		return Value{}, fmt.Errorf("read value tag: %w", err)
	}
	switch ParameterType(tag) {
	case ParamInt32:
		v, err := ReadInt32(r)
		return Int32(v), err
	case ParamInt64:
		v, err := ReadInt64(r)
		return Int64(v), err
	case ParamString:
		v, err := ReadString(r)
		return Str(v), err
	case ParamBool:
		v, err := ReadBool(r)
		return BoolVal(v), err
	case ParamVecBytes:
		v, err := ReadBytes(r)
		return ByteArray(v), err
	default:
		return Value{}, fmt.Errorf("decode value: %w: tag %d", ErrUnsupportedTag, tag)
	}
}

// expectDrained returns an error if a record decode left trailing bytes.
func expectDrained(r *bytes.Reader, what string) error {
	if r.Len() != 0 {
		return fmt.Errorf("decode %s: %d trailing bytes", what, r.Len())
	}
	return nil
}
