package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
)

// Scenario is a scripted sequence of guest calls.
type Scenario struct {
	Calls []ScenarioCall `yaml:"calls"`
}

// ScenarioCall is one guest dispatch.
type ScenarioCall struct {
	Function string          `yaml:"function"`
	Return   string          `yaml:"return"`
	Params   []ScenarioParam `yaml:"params"`
}

// ScenarioParam is one argument; exactly one field must be set.
type ScenarioParam struct {
	Int32  *int32  `yaml:"int32"`
	Int64  *int64  `yaml:"int64"`
	String *string `yaml:"string"`
	Bool   *bool   `yaml:"bool"`
	Bytes  *string `yaml:"bytes"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %q: %w", path, err)
	}
	if len(sc.Calls) == 0 {
		return nil, fmt.Errorf("scenario %q has no calls", path)
	}
	return &sc, nil
}

// wireReturn maps a scenario return name to the wire enum.
func wireReturn(name string) (wire.ReturnType, error) {
	switch name {
	case "", "void":
		return wire.ReturnVoid, nil
	case "int32":
		return wire.ReturnInt32, nil
	case "int64":
		return wire.ReturnInt64, nil
	case "uint32":
		return wire.ReturnUInt32, nil
	case "uint64":
		return wire.ReturnUInt64, nil
	case "bool":
		return wire.ReturnBool, nil
	case "string":
		return wire.ReturnString, nil
	case "bytes":
		return wire.ReturnVecBytes, nil
	default:
		return 0, fmt.Errorf("unknown return type %q", name)
	}
}

// wireArgs converts scenario parameters to wire values. A bytes parameter
// expands into the vec_bytes plus its int32 length companion, matching the
// call frame contract.
func wireArgs(params []ScenarioParam) ([]wire.Value, error) {
	var args []wire.Value
	for i, p := range params {
		switch {
		case p.Int32 != nil:
			args = append(args, wire.Int32(*p.Int32))
		case p.Int64 != nil:
			args = append(args, wire.Int64(*p.Int64))
		case p.String != nil:
			args = append(args, wire.Str(*p.String))
		case p.Bool != nil:
			args = append(args, wire.BoolVal(*p.Bool))
		case p.Bytes != nil:
			b := []byte(*p.Bytes)
			args = append(args, wire.ByteArray(b), wire.Int32(int32(len(b))))
		default:
			return nil, fmt.Errorf("parameter %d sets no value", i)
		}
	}
	return args, nil
}

// formatResult renders a decoded result for the console.
func formatResult(res *wire.FunctionCallResult) string {
	switch res.Kind {
	case wire.ReturnVoid:
		return "void"
	case wire.ReturnInt32:
		return fmt.Sprintf("int32(%d)", res.I32)
	case wire.ReturnInt64:
		return fmt.Sprintf("int64(%d)", res.I64)
	case wire.ReturnUInt32:
		return fmt.Sprintf("uint32(%d)", res.U32)
	case wire.ReturnUInt64:
		return fmt.Sprintf("uint64(%d)", res.U64)
	case wire.ReturnBool:
		return fmt.Sprintf("bool(%t)", res.Bool)
	case wire.ReturnString:
		return fmt.Sprintf("string(%q)", res.Str)
	case wire.ReturnVecBytes, wire.ReturnSizePrefixedBuffer:
		return fmt.Sprintf("bytes(%d bytes)", len(res.Bytes))
	default:
		return res.Kind.String()
	}
}
