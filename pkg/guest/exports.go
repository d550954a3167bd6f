package guest

import "github.com/liangcheng-yu/hyperlight/internal/wire"

// Names of the host functions every host is expected to provide. Printing
// goes through HostPrint rather than a dedicated port.
const (
	HostPrintFunction           = "HostPrint"
	GetTickCountFunction        = "GetTickCount"
	GetOSPageSizeFunction       = "GetOSPageSize"
	GetStackBoundaryFunction    = "GetStackBoundary"
	GetTimeSinceBootMicrosecond = "GetTimeSinceBootMicrosecond"
)

// Print sends a message to the host console and returns the number of
// bytes the host accepted.
func (rt *Runtime) Print(message string) (int32, error) {
	return rt.CallHostInt32(HostPrintFunction, wire.Str(message))
}

// TickCount asks the host for its millisecond tick counter.
func (rt *Runtime) TickCount() (int64, error) {
	return rt.CallHostInt64(GetTickCountFunction)
}

// OSPageSize asks the host for the OS page size.
func (rt *Runtime) OSPageSize() (uint32, error) {
	return rt.CallHostUInt32(GetOSPageSizeFunction)
}

// TimeSinceBootMicroseconds asks the host how long it has been up.
func (rt *Runtime) TimeSinceBootMicroseconds() (int64, error) {
	return rt.CallHostInt64(GetTimeSinceBootMicrosecond)
}

// StackBoundary returns the lowest valid stack address. In a partition the
// value comes from the PEB; in-process the host answers, once, and the
// result is cached.
func (rt *Runtime) StackBoundary() (uint64, error) {
	if rt.stackBoundary != 0 {
		return rt.stackBoundary, nil
	}
	if rt.inPartition {
		rt.stackBoundary = rt.peb.MinStackAddr()
		return rt.stackBoundary, nil
	}
	v, err := rt.CallHostUInt64(GetStackBoundaryFunction)
	if err != nil {
		return 0, err
	}
	rt.stackBoundary = v
	return v, nil
}
