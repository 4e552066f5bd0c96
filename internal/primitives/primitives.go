package primitives

import (
	"fmt"

	"github.com/roach88/bassline/internal/engine"
	"github.com/roach88/bassline/internal/ir"
)

// Standard primitive names.
const (
	Add      = "add"
	Subtract = "subtract"
	Multiply = "multiply"
	Max      = "max"
	Min      = "min"
	Concat   = "concat"
	Gate     = "gate"
	Identity = "identity"
)

// All returns every standard primitive, in name order.
func All() []engine.Primitive {
	return []engine.Primitive{
		AddPrimitive(),
		ConcatPrimitive(),
		GatePrimitive(),
		IdentityPrimitive(),
		MaxPrimitive(),
		MinPrimitive(),
		MultiplyPrimitive(),
		SubtractPrimitive(),
	}
}

// Register adds every standard primitive to reg.
func Register(reg *engine.Registry) error {
	for _, p := range All() {
		if err := reg.Register(p); err != nil {
			return fmt.Errorf("register %s: %w", p.Name, err)
		}
	}
	return nil
}

// AddPrimitive computes sum = a + b.
func AddPrimitive() engine.Primitive {
	return binaryInt(Add, "sum", func(a, b int64) int64 { return a + b })
}

// SubtractPrimitive computes difference = a - b.
func SubtractPrimitive() engine.Primitive {
	return binaryInt(Subtract, "difference", func(a, b int64) int64 { return a - b })
}

// MultiplyPrimitive computes product = a * b.
func MultiplyPrimitive() engine.Primitive {
	return binaryInt(Multiply, "product", func(a, b int64) int64 { return a * b })
}

// MaxPrimitive computes result = max(a, b).
func MaxPrimitive() engine.Primitive {
	return binaryInt(Max, "result", func(a, b int64) int64 { return max(a, b) })
}

// MinPrimitive computes result = min(a, b).
func MinPrimitive() engine.Primitive {
	return binaryInt(Min, "result", func(a, b int64) int64 { return min(a, b) })
}

func binaryInt(name, output string, op func(a, b int64) int64) engine.Primitive {
	return engine.Primitive{
		Name:    name,
		Inputs:  []string{"a", "b"},
		Outputs: []string{output},
		Execute: func(in ir.IRObject) (ir.IRObject, error) {
			a, err := intInput(in, "a")
			if err != nil {
				return nil, err
			}
			b, err := intInput(in, "b")
			if err != nil {
				return nil, err
			}
			return ir.IRObject{output: ir.IRInt(op(a, b))}, nil
		},
	}
}

// ConcatPrimitive joins two strings: result = a + b.
func ConcatPrimitive() engine.Primitive {
	return engine.Primitive{
		Name:    Concat,
		Inputs:  []string{"a", "b"},
		Outputs: []string{"result"},
		Execute: func(in ir.IRObject) (ir.IRObject, error) {
			a, err := stringInput(in, "a")
			if err != nil {
				return nil, err
			}
			b, err := stringInput(in, "b")
			if err != nil {
				return nil, err
			}
			return ir.IRObject{"result": ir.IRString(a + b)}, nil
		},
	}
}

// GatePrimitive passes value to out while open is true. A closed gate
// never activates, so out keeps its last value.
func GatePrimitive() engine.Primitive {
	return engine.Primitive{
		Name:    Gate,
		Inputs:  []string{"value", "open"},
		Outputs: []string{"out"},
		Activation: func(in ir.IRObject) bool {
			open, ok := in["open"].(ir.IRBool)
			return ok && bool(open)
		},
		Execute: func(in ir.IRObject) (ir.IRObject, error) {
			return ir.IRObject{"out": in["value"]}, nil
		},
	}
}

// IdentityPrimitive copies in to out.
func IdentityPrimitive() engine.Primitive {
	return engine.Primitive{
		Name:    Identity,
		Inputs:  []string{"in"},
		Outputs: []string{"out"},
		Execute: func(in ir.IRObject) (ir.IRObject, error) {
			return ir.IRObject{"out": in["in"]}, nil
		},
	}
}

func intInput(in ir.IRObject, name string) (int64, error) {
	v, ok := in[name].(ir.IRInt)
	if !ok {
		return 0, fmt.Errorf("input %q: want int, got %T", name, in[name])
	}
	return int64(v), nil
}

func stringInput(in ir.IRObject, name string) (string, error) {
	v, ok := in[name].(ir.IRString)
	if !ok {
		return "", fmt.Errorf("input %q: want string, got %T", name, in[name])
	}
	return string(v), nil
}
