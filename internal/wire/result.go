package wire

import (
	"bytes"
	"fmt"
)

// FunctionCallResult is one reply frame: a tagged union over the return
// kinds. Only the field selected by Kind is meaningful.
//
// Payload layout:
//
//	[return_type:u32][arm bytes]
type FunctionCallResult struct {
	Kind  ReturnType
	I32   int32
	I64   int64
	U32   uint32
	U64   uint64
	Bool  bool
	Str   string
	Bytes []byte
}

// VoidResult builds an empty reply.
func VoidResult() FunctionCallResult { return FunctionCallResult{Kind: ReturnVoid} }

// Int32Result builds an int32 reply.
func Int32Result(v int32) FunctionCallResult { return FunctionCallResult{Kind: ReturnInt32, I32: v} }

// Int64Result builds an int64 reply.
func Int64Result(v int64) FunctionCallResult { return FunctionCallResult{Kind: ReturnInt64, I64: v} }

// UInt32Result builds a uint32 reply.
func UInt32Result(v uint32) FunctionCallResult { return FunctionCallResult{Kind: ReturnUInt32, U32: v} }

// UInt64Result builds a uint64 reply.
func UInt64Result(v uint64) FunctionCallResult { return FunctionCallResult{Kind: ReturnUInt64, U64: v} }

// BoolResult builds a bool reply.
func BoolResult(v bool) FunctionCallResult { return FunctionCallResult{Kind: ReturnBool, Bool: v} }

// StringResult builds a string reply.
func StringResult(s string) FunctionCallResult { return FunctionCallResult{Kind: ReturnString, Str: s} }

// BytesResult builds a vec_bytes reply.
func BytesResult(b []byte) FunctionCallResult { return FunctionCallResult{Kind: ReturnVecBytes, Bytes: b} }

// BufferResult builds a size_prefixed_buffer reply carrying an opaque
// already-framed payload.
func BufferResult(b []byte) FunctionCallResult {
	return FunctionCallResult{Kind: ReturnSizePrefixedBuffer, Bytes: b}
}

// Encode serializes the result as a complete size-prefixed frame.
func (res *FunctionCallResult) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := WriteTag(buf, uint32(res.Kind)); err != nil {
		return nil, fmt.Errorf("encode result tag: %w", err)
	}
	var err error
	switch res.Kind {
	case ReturnVoid:
	case ReturnInt32:
		err = WriteInt32(buf, res.I32)
	case ReturnInt64:
		err = WriteInt64(buf, res.I64)
	case ReturnUInt32:
		err = WriteUint32(buf, res.U32)
	case ReturnUInt64:
		err = WriteUint64(buf, res.U64)
	case ReturnBool:
		err = WriteBool(buf, res.Bool)
	case ReturnString:
		err = WriteString(buf, res.Str)
	case ReturnVecBytes, ReturnSizePrefixedBuffer:
		err = WriteBytes(buf, res.Bytes)
	default:
		err = fmt.Errorf("%w: tag %d", ErrUnsupportedTag, uint32(res.Kind))
	}
	if err != nil {
		return nil, fmt.Errorf("encode result arm: %w", err)
	}
	return FinishSizePrefixed(buf.Bytes())
}

// DecodeFunctionCallResult parses a size-prefixed function-call-result frame.
func DecodeFunctionCallResult(frame []byte) (*FunctionCallResult, error) {
	payload, err := StripSizePrefix(frame)
	if err != nil {
		return nil, fmt.Errorf("decode function call result: %w", err)
	}
	r := bytes.NewReader(payload)

	tag, err := ReadTag(r)
	if err != nil {
		return nil, fmt.Errorf("decode result tag: %w", err)
	}
	res := &FunctionCallResult{Kind: ReturnType(tag)}
	switch res.Kind {
	case ReturnVoid:
	case ReturnInt32:
		res.I32, err = ReadInt32(r)
	case ReturnInt64:
		res.I64, err = ReadInt64(r)
	case ReturnUInt32:
		res.U32, err = ReadUint32(r)
	case ReturnUInt64:
		res.U64, err = ReadUint64(r)
	case ReturnBool:
		res.Bool, err = ReadBool(r)
	case ReturnString:
		res.Str, err = ReadString(r)
	case ReturnVecBytes, ReturnSizePrefixedBuffer:
		res.Bytes, err = ReadBytes(r)
	default:
		return nil, fmt.Errorf("decode result: %w: tag %d", ErrUnsupportedTag, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("decode result arm: %w", err)
	}
	if err := expectDrained(r, "function call result"); err != nil {
		return nil, err
	}
	return res, nil
}
