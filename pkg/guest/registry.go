package guest

import (
	"fmt"
	"sort"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
)

// maxGuestFunctions bounds the registry.
const maxGuestFunctions = 4096

// HandlerFunc is the uniform dispatcher signature: decoded, validated
// parameters in, a complete serialized reply frame out. User code normally
// goes through the typed constructors rather than writing one by hand.
type HandlerFunc func(params []wire.Value) ([]byte, error)

// Definition describes one registered guest function.
type Definition struct {
	Name           string
	ParameterTypes []wire.ParameterType
	ReturnType     wire.ReturnType
	Handler        HandlerFunc
}

// Registry holds the guest function table. Registration order is
// arbitrary; Seal sorts by name once and freezes the table so every
// dispatch can binary-search without allocation.
type Registry struct {
	defs   []Definition
	sealed bool
}

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a definition. It fails after Seal.
func (r *Registry) Register(def Definition) error {
	if r.sealed {
		return Errorf(wire.GuestErrorCode, "registry is sealed")
	}
	if def.Name == "" {
		return Errorf(wire.GuestFunctionNameNotProvided, "")
	}
	if def.Handler == nil {
		return Errorf(wire.GuestErrorCode, "function %s has no handler", def.Name)
	}
	if len(r.defs) >= maxGuestFunctions {
		return Errorf(wire.TooManyGuestFunctions, "Function Table Limit is %d.", maxGuestFunctions)
	}
	r.defs = append(r.defs, def)
	return nil
}

// Seal sorts the table by name and freezes it. Duplicate names are
// rejected here rather than silently shadowed.
func (r *Registry) Seal() error {
	sort.SliceStable(r.defs, func(i, j int) bool {
		return r.defs[i].Name < r.defs[j].Name
	})
	for i := 1; i < len(r.defs); i++ {
		if r.defs[i].Name == r.defs[i-1].Name {
			return Errorf(wire.GuestErrorCode, "function %s registered twice", r.defs[i].Name)
		}
	}
	r.sealed = true
	return nil
}

// Sealed reports whether the table is frozen.
func (r *Registry) Sealed() bool { return r.sealed }

// Len returns the number of registered functions.
func (r *Registry) Len() int { return len(r.defs) }

// Definitions returns the table in sorted order. Callers must not mutate.
func (r *Registry) Definitions() []Definition { return r.defs }

// Lookup binary-searches a sealed registry for an exact, case-sensitive
// name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	if !r.sealed {
		return nil, false
	}
	i := sort.Search(len(r.defs), func(i int) bool {
		return r.defs[i].Name >= name
	})
	if i < len(r.defs) && r.defs[i].Name == name {
		return &r.defs[i], true
	}
	return nil, false
}

// Register adds a guest function with an explicit signature. Most callers
// use RegisterTyped instead.
func (rt *Runtime) Register(def Definition) error {
	if err := validateSignature(def.Name, def.ParameterTypes); err != nil {
		return err
	}
	return rt.registry.Register(def)
}

// validateSignature enforces the registration-time half of the vec_bytes
// pairing rule: a vec_bytes parameter must be followed by the int32
// carrying its byte length.
func validateSignature(name string, params []wire.ParameterType) error {
	for i, pt := range params {
		switch pt {
		case wire.ParamInt32, wire.ParamInt64, wire.ParamString, wire.ParamBool:
		case wire.ParamVecBytes:
			if i+1 >= len(params) || params[i+1] != wire.ParamInt32 {
				return Errorf(wire.ArrayLengthParameterMissing,
					"function %s: vec_bytes parameter %d must be followed by an int32 length", name, i)
			}
		default:
			return fmt.Errorf("function %s: %w: parameter %d", name, wire.ErrUnsupportedTag, i)
		}
	}
	return nil
}
