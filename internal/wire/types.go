// Package wire implements the serialized message format shared by the host
// and guest sides of a sandbox.
//
// Every record travelling across the shared-memory boundary is encoded the
// same way: a 4-byte little-endian size prefix followed by a self-describing
// payload built from inline scalars, length-prefixed strings and byte
// vectors, and tagged unions (a uint32 discriminant before the union arm).
//
// Key characteristics:
//   - Little-endian byte order for all multi-byte integers
//   - Variable-length data is preceded by a 4-byte length
//   - Union discriminants are uint32
//   - Unknown discriminants are a decode error, never a silent skip
//
// This package contains only the vocabulary and codec. It has no dependency
// on the memory layout or the dispatcher; both sides of the boundary use it
// to agree on what the bytes mean.
package wire

import "fmt"

// ParameterType identifies the kind of a function-call parameter.
type ParameterType uint32

const (
	ParamInt32 ParameterType = iota
	ParamInt64
	ParamString
	ParamBool
	ParamVecBytes
)

func (t ParameterType) String() string {
	switch t {
	case ParamInt32:
		return "int32"
	case ParamInt64:
		return "int64"
	case ParamString:
		return "string"
	case ParamBool:
		return "bool"
	case ParamVecBytes:
		return "vec_bytes"
	default:
		return fmt.Sprintf("ParameterType(%d)", uint32(t))
	}
}

// ReturnType identifies the kind of a function-call result. It is a superset
// of ParameterType: void and size-prefixed buffers can be returned but not
// passed, and unsigned widths exist only on the return path.
type ReturnType uint32

const (
	ReturnVoid ReturnType = iota
	ReturnInt32
	ReturnInt64
	ReturnUInt32
	ReturnUInt64
	ReturnBool
	ReturnString
	ReturnVecBytes
	ReturnSizePrefixedBuffer
)

func (t ReturnType) String() string {
	switch t {
	case ReturnVoid:
		return "void"
	case ReturnInt32:
		return "int32"
	case ReturnInt64:
		return "int64"
	case ReturnUInt32:
		return "uint32"
	case ReturnUInt64:
		return "uint64"
	case ReturnBool:
		return "bool"
	case ReturnString:
		return "string"
	case ReturnVecBytes:
		return "vec_bytes"
	case ReturnSizePrefixedBuffer:
		return "size_prefixed_buffer"
	default:
		return fmt.Sprintf("ReturnType(%d)", uint32(t))
	}
}

// CallType distinguishes calls the host makes into the guest from calls the
// guest makes back into the host.
type CallType uint32

const (
	CallTypeGuest CallType = iota
	CallTypeHost
)

func (t CallType) String() string {
	switch t {
	case CallTypeGuest:
		return "guest"
	case CallTypeHost:
		return "host"
	default:
		return fmt.Sprintf("CallType(%d)", uint32(t))
	}
}

// Value is a tagged union over the five parameter kinds. Only the field
// selected by Kind is meaningful; the constructors below are the supported
// way to build one.
type Value struct {
	Kind  ParameterType
	I32   int32
	I64   int64
	Str   string
	Bool  bool
	Bytes []byte
}

// Int32 builds an int32 parameter value.
func Int32(v int32) Value { return Value{Kind: ParamInt32, I32: v} }

// Int64 builds an int64 parameter value.
func Int64(v int64) Value { return Value{Kind: ParamInt64, I64: v} }

// Str builds a string parameter value.
func Str(s string) Value { return Value{Kind: ParamString, Str: s} }

// BoolVal builds a bool parameter value.
func BoolVal(b bool) Value { return Value{Kind: ParamBool, Bool: b} }

// ByteArray builds a vec_bytes parameter value. On the wire a vec_bytes
// parameter must be immediately followed by an int32 parameter carrying its
// length; callers pass both explicitly.
func ByteArray(b []byte) Value { return Value{Kind: ParamVecBytes, Bytes: b} }

// LogLevel mirrors the level field of log records forwarded to the host.
type LogLevel uint32

const (
	LogTrace LogLevel = iota
	LogDebug
	LogInformation
	LogWarning
	LogError
	LogCritical
	LogNone
)

func (l LogLevel) String() string {
	switch l {
	case LogTrace:
		return "TRACE"
	case LogDebug:
		return "DEBUG"
	case LogInformation:
		return "INFO"
	case LogWarning:
		return "WARN"
	case LogError:
		return "ERROR"
	case LogCritical:
		return "CRITICAL"
	case LogNone:
		return "NONE"
	default:
		return fmt.Sprintf("LogLevel(%d)", uint32(l))
	}
}
