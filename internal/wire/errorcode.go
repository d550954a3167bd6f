package wire

import "fmt"

// ErrorCode enumerates the fixed error codes a guest can report to its host.
// The numeric values are part of the host/guest contract and must not be
// reordered.
type ErrorCode uint64

const (
	NoError ErrorCode = iota
	CodeHeaderNotSet
	UnsupportedParameterType
	GuestFunctionNameNotProvided
	GuestFunctionNotFound
	GuestFunctionIncorrectNumberOfParameters
	DispatchFunctionPointerNotSet
	OutbError
	UnknownError
	StackOverflow
	GsCheckFailed
	TooManyGuestFunctions
	FailureInAllocator
	MallocFailed
	GuestFunctionParameterTypeMismatch
	GuestErrorCode
	ArrayLengthParameterMissing
)

// maxKnownErrorCode bounds the values writeGuestError will accept verbatim;
// anything above it is reported as UnknownError.
const maxKnownErrorCode = ArrayLengthParameterMissing

// Known reports whether c is one of the fixed enum values.
func (c ErrorCode) Known() bool { return c <= maxKnownErrorCode }

func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "NoError"
	case CodeHeaderNotSet:
		return "CodeHeaderNotSet"
	case UnsupportedParameterType:
		return "UnsupportedParameterType"
	case GuestFunctionNameNotProvided:
		return "GuestFunctionNameNotProvided"
	case GuestFunctionNotFound:
		return "GuestFunctionNotFound"
	case GuestFunctionIncorrectNumberOfParameters:
		return "GuestFunctionIncorrectNumberOfParameters"
	case DispatchFunctionPointerNotSet:
		return "DispatchFunctionPointerNotSet"
	case OutbError:
		return "OutbError"
	case UnknownError:
		return "UnknownError"
	case StackOverflow:
		return "StackOverflow"
	case GsCheckFailed:
		return "GsCheckFailed"
	case TooManyGuestFunctions:
		return "TooManyGuestFunctions"
	case FailureInAllocator:
		return "FailureInAllocator"
	case MallocFailed:
		return "MallocFailed"
	case GuestFunctionParameterTypeMismatch:
		return "GuestFunctionParameterTypeMismatch"
	case GuestErrorCode:
		return "GuestError"
	case ArrayLengthParameterMissing:
		return "ArrayLengthParameterMissing"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint64(c))
	}
}
