package guest

import (
	"fmt"
	"reflect"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
)

// RegisterTyped adapts a strongly-typed Go function to the uniform
// dispatcher signature and registers it. The parameter and return types
// are derived from the function signature:
//
//	parameters: int32, int64, string, bool, []byte
//	returns:    none, or one of int32, int64, uint32, uint64, bool,
//	            string, []byte — optionally followed by error
//
// A []byte parameter must be followed by an int32 parameter carrying its
// byte length; that is the wire contract, and registration rejects
// signatures that omit it.
//
//	rt.RegisterTyped("Echo", func(s string) (string, error) { return s, nil })
func (rt *Runtime) RegisterTyped(name string, fn any) error {
	def, err := NewTypedFunction(name, fn)
	if err != nil {
		return err
	}
	return rt.Register(def)
}

var (
	typInt32  = reflect.TypeOf(int32(0))
	typInt64  = reflect.TypeOf(int64(0))
	typUint32 = reflect.TypeOf(uint32(0))
	typUint64 = reflect.TypeOf(uint64(0))
	typString = reflect.TypeOf("")
	typBool   = reflect.TypeOf(false)
	typBytes  = reflect.TypeOf([]byte(nil))
	typError  = reflect.TypeOf((*error)(nil)).Elem()
)

// NewTypedFunction builds a Definition from a strongly-typed Go function.
func NewTypedFunction(name string, fn any) (Definition, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func || t.IsVariadic() {
		return Definition{}, fmt.Errorf("function %s: not a non-variadic func", name)
	}

	params := make([]wire.ParameterType, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		pt, ok := paramTypeOf(t.In(i))
		if !ok {
			return Definition{}, fmt.Errorf("function %s: unsupported parameter type %s", name, t.In(i))
		}
		params[i] = pt
	}

	retKind, hasErr, err := returnKindOf(name, t)
	if err != nil {
		return Definition{}, err
	}

	handler := func(args []wire.Value) ([]byte, error) {
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			in[i] = argValue(a)
		}
		outs := v.Call(in)
		if hasErr {
			if e := outs[len(outs)-1]; !e.IsNil() {
				return nil, e.Interface().(error)
			}
			outs = outs[:len(outs)-1]
		}
		return encodeReturn(retKind, outs)
	}

	return Definition{
		Name:           name,
		ParameterTypes: params,
		ReturnType:     retKind,
		Handler:        handler,
	}, nil
}

func paramTypeOf(t reflect.Type) (wire.ParameterType, bool) {
	switch t {
	case typInt32:
		return wire.ParamInt32, true
	case typInt64:
		return wire.ParamInt64, true
	case typString:
		return wire.ParamString, true
	case typBool:
		return wire.ParamBool, true
	case typBytes:
		return wire.ParamVecBytes, true
	default:
		return 0, false
	}
}

func returnKindOf(name string, t reflect.Type) (wire.ReturnType, bool, error) {
	numOut := t.NumOut()
	hasErr := numOut > 0 && t.Out(numOut-1) == typError
	if hasErr {
		numOut--
	}
	switch numOut {
	case 0:
		return wire.ReturnVoid, hasErr, nil
	case 1:
		switch t.Out(0) {
		case typInt32:
			return wire.ReturnInt32, hasErr, nil
		case typInt64:
			return wire.ReturnInt64, hasErr, nil
		case typUint32:
			return wire.ReturnUInt32, hasErr, nil
		case typUint64:
			return wire.ReturnUInt64, hasErr, nil
		case typBool:
			return wire.ReturnBool, hasErr, nil
		case typString:
			return wire.ReturnString, hasErr, nil
		case typBytes:
			return wire.ReturnVecBytes, hasErr, nil
		}
		return 0, false, fmt.Errorf("function %s: unsupported return type %s", name, t.Out(0))
	default:
		return 0, false, fmt.Errorf("function %s: too many return values", name)
	}
}

func argValue(a wire.Value) reflect.Value {
	switch a.Kind {
	case wire.ParamInt32:
		return reflect.ValueOf(a.I32)
	case wire.ParamInt64:
		return reflect.ValueOf(a.I64)
	case wire.ParamString:
		return reflect.ValueOf(a.Str)
	case wire.ParamBool:
		return reflect.ValueOf(a.Bool)
	default:
		return reflect.ValueOf(a.Bytes)
	}
}

func encodeReturn(kind wire.ReturnType, outs []reflect.Value) ([]byte, error) {
	switch kind {
	case wire.ReturnVoid:
		return VoidReply()
	case wire.ReturnInt32:
		return Int32Reply(int32(outs[0].Int()))
	case wire.ReturnInt64:
		return Int64Reply(outs[0].Int())
	case wire.ReturnUInt32:
		return UInt32Reply(uint32(outs[0].Uint()))
	case wire.ReturnUInt64:
		return UInt64Reply(outs[0].Uint())
	case wire.ReturnBool:
		return BoolReply(outs[0].Bool())
	case wire.ReturnString:
		return StringReply(outs[0].String())
	case wire.ReturnVecBytes:
		return BytesReply(outs[0].Bytes())
	default:
		return nil, fmt.Errorf("unsupported return kind %s", kind)
	}
}
