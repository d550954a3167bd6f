package wire

import (
	"bytes"
	"fmt"
	"sort"
)

// HostFunctionDefinition describes one function the host advertises to the
// guest. FunctionPointer is opaque to the guest; the host uses it to find
// its own implementation.
type HostFunctionDefinition struct {
	Name            string
	ParameterTypes  []ParameterType
	ReturnType      ReturnType
	FunctionPointer uint64
}

// HostFunctionDetails is the host-advertised catalog, kept sorted by name so
// the guest can binary-search it on every outbound call.
//
// Payload layout:
//
//	[count:u64][definition...]
//	definition: [name:string][param count:u32][param:u32...][return:u32][fnptr:u64]
type HostFunctionDetails struct {
	Functions []HostFunctionDefinition
}

// Sort orders the catalog by name. Hosts call it once before serializing.
func (d *HostFunctionDetails) Sort() {
	sort.Slice(d.Functions, func(i, j int) bool {
		return d.Functions[i].Name < d.Functions[j].Name
	})
}

// Lookup binary-searches the catalog for an exact, case-sensitive name.
func (d *HostFunctionDetails) Lookup(name string) (*HostFunctionDefinition, bool) {
	i := sort.Search(len(d.Functions), func(i int) bool {
		return d.Functions[i].Name >= name
	})
	if i < len(d.Functions) && d.Functions[i].Name == name {
		return &d.Functions[i], true
	}
	return nil, false
}

// Encode serializes the catalog as a complete size-prefixed frame.
func (d *HostFunctionDetails) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := WriteUint64(buf, uint64(len(d.Functions))); err != nil {
		return nil, fmt.Errorf("encode function count: %w", err)
	}
	for _, fn := range d.Functions {
		if err := WriteString(buf, fn.Name); err != nil {
			return nil, fmt.Errorf("encode function %q name: %w", fn.Name, err)
		}
		if err := WriteUint32(buf, uint32(len(fn.ParameterTypes))); err != nil {
			return nil, fmt.Errorf("encode function %q parameter count: %w", fn.Name, err)
		}
		for _, pt := range fn.ParameterTypes {
			if err := WriteUint32(buf, uint32(pt)); err != nil {
				return nil, fmt.Errorf("encode function %q parameter type: %w", fn.Name, err)
			}
		}
		if err := WriteUint32(buf, uint32(fn.ReturnType)); err != nil {
			return nil, fmt.Errorf("encode function %q return type: %w", fn.Name, err)
		}
		if err := WriteUint64(buf, fn.FunctionPointer); err != nil {
			return nil, fmt.Errorf("encode function %q pointer: %w", fn.Name, err)
		}
	}
	return FinishSizePrefixed(buf.Bytes())
}

// DecodeHostFunctionDetails parses a size-prefixed host function catalog.
func DecodeHostFunctionDetails(frame []byte) (*HostFunctionDetails, error) {
	payload, err := StripSizePrefix(frame)
	if err != nil {
		return nil, fmt.Errorf("decode host function details: %w", err)
	}
	r := bytes.NewReader(payload)

	count, err := ReadUint64(r)
	if err != nil {
		return nil, fmt.Errorf("decode function count: %w", err)
	}
	if count > maxHostFunctions {
		return nil, fmt.Errorf("host function count %d exceeds maximum %d", count, maxHostFunctions)
	}
	d := &HostFunctionDetails{Functions: make([]HostFunctionDefinition, 0, count)}
	for i := uint64(0); i < count; i++ {
		var fn HostFunctionDefinition
		if fn.Name, err = ReadString(r); err != nil {
			return nil, fmt.Errorf("decode function %d name: %w", i, err)
		}
		pc, err := ReadUint32(r)
		if err != nil {
			return nil, fmt.Errorf("decode function %q parameter count: %w", fn.Name, err)
		}
		if pc > maxParameters {
			return nil, fmt.Errorf("function %q parameter count %d exceeds maximum %d", fn.Name, pc, maxParameters)
		}
		if pc > 0 {
			fn.ParameterTypes = make([]ParameterType, 0, pc)
		}
		for j := uint32(0); j < pc; j++ {
			pt, err := ReadUint32(r)
			if err != nil {
				return nil, fmt.Errorf("decode function %q parameter type: %w", fn.Name, err)
			}
			fn.ParameterTypes = append(fn.ParameterTypes, ParameterType(pt))
		}
		rt, err := ReadUint32(r)
		if err != nil {
			return nil, fmt.Errorf("decode function %q return type: %w", fn.Name, err)
		}
		fn.ReturnType = ReturnType(rt)
		if fn.FunctionPointer, err = ReadUint64(r); err != nil {
			return nil, fmt.Errorf("decode function %q pointer: %w", fn.Name, err)
		}
		d.Functions = append(d.Functions, fn)
	}
	if err := expectDrained(r, "host function details"); err != nil {
		return nil, err
	}
	return d, nil
}

// maxHostFunctions bounds the advertised catalog.
const maxHostFunctions = 4096
