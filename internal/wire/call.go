package wire

import (
	"bytes"
	"fmt"
)

// FunctionCall is one request frame: the function to invoke, which side it
// lives on, the return type the caller expects back, and the argument list.
//
// Payload layout:
//
//	[name:string][call_type:u32][return_type:u32][count:u32][value...]
type FunctionCall struct {
	Name       string
	CallType   CallType
	ReturnType ReturnType
	Params     []Value
}

// Encode serializes the call as a complete size-prefixed frame.
func (c *FunctionCall) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := WriteString(buf, c.Name); err != nil {
		return nil, fmt.Errorf("encode call name: %w", err)
	}
	if err := WriteUint32(buf, uint32(c.CallType)); err != nil {
		return nil, fmt.Errorf("encode call type: %w", err)
	}
	if err := WriteUint32(buf, uint32(c.ReturnType)); err != nil {
		return nil, fmt.Errorf("encode return type: %w", err)
	}
	if err := WriteUint32(buf, uint32(len(c.Params))); err != nil {
		return nil, fmt.Errorf("encode parameter count: %w", err)
	}
	for i, p := range c.Params {
		if err := WriteValue(buf, p); err != nil {
			return nil, fmt.Errorf("encode parameter %d: %w", i, err)
		}
	}
	return FinishSizePrefixed(buf.Bytes())
}

// DecodeFunctionCall parses a size-prefixed function-call frame.
func DecodeFunctionCall(frame []byte) (*FunctionCall, error) {
	payload, err := StripSizePrefix(frame)
	if err != nil {
		return nil, fmt.Errorf("decode function call: %w", err)
	}
	r := bytes.NewReader(payload)

	c := &FunctionCall{}
	if c.Name, err = ReadString(r); err != nil {
		return nil, fmt.Errorf("decode call name: %w", err)
	}
	ct, err := ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode call type: %w", err)
	}
	c.CallType = CallType(ct)
	rt, err := ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode return type: %w", err)
	}
	c.ReturnType = ReturnType(rt)

	count, err := ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode parameter count: %w", err)
	}
	if count > maxParameters {
		return nil, fmt.Errorf("parameter count %d exceeds maximum %d", count, maxParameters)
	}
	c.Params = make([]Value, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := ReadValue(r)
		if err != nil {
			return nil, fmt.Errorf("decode parameter %d: %w", i, err)
		}
		c.Params = append(c.Params, v)
	}
	if err := expectDrained(r, "function call"); err != nil {
		return nil, err
	}
	return c, nil
}

// maxParameters bounds the argument list of a single call frame.
const maxParameters = 1024
