package engine

import (
	"slices"
	"sort"

	"github.com/roach88/bassline/internal/ir"
)

// Primitive is the contract of a computation gadget.
//
// A group whose PrimitiveType names a registered Primitive is a gadget
// instance: its boundary contacts, matched by Name, are the primitive's
// inputs and outputs. The engine never calls Execute unless Activation
// returned true for the exact gathered input snapshot.
type Primitive struct {
	Name    string
	Inputs  []string
	Outputs []string

	// Optional lists inputs that may be absent when gathering. All other
	// inputs must hold a value before the primitive is requested.
	Optional []string

	// Activation guards execution. Nil means always activate.
	Activation func(inputs ir.IRObject) bool

	// Execute is synchronous and pure. Returned outputs are written to the
	// boundary contacts of the same names.
	Execute func(inputs ir.IRObject) (ir.IRObject, error)
}

func (p *Primitive) isInput(name string) bool {
	return slices.Contains(p.Inputs, name)
}

func (p *Primitive) isOutput(name string) bool {
	return slices.Contains(p.Outputs, name)
}

func (p *Primitive) isOptional(name string) bool {
	return slices.Contains(p.Optional, name)
}

// Registry maps primitive names to primitives. Lookups fall back to the
// parent registry for nested scopes.
type Registry struct {
	prims  map[string]*Primitive
	parent *Registry
}

// NewRegistry creates an empty registry. parent may be nil.
func NewRegistry(parent *Registry) *Registry {
	return &Registry{prims: make(map[string]*Primitive), parent: parent}
}

// Register adds a primitive. Registering a name twice is an error.
func (r *Registry) Register(p Primitive) error {
	if p.Name == "" {
		return newError(ErrCodeMalformedAction, "", "primitive name is required")
	}
	if p.Execute == nil {
		return newError(ErrCodeMalformedAction, p.Name, "primitive has no execute function")
	}
	if _, exists := r.prims[p.Name]; exists {
		return newError(ErrCodeDuplicatePrimitive, p.Name, "primitive already registered")
	}
	p.Inputs = slices.Clone(p.Inputs)
	p.Outputs = slices.Clone(p.Outputs)
	p.Optional = slices.Clone(p.Optional)
	r.prims[p.Name] = &p
	return nil
}

// Unregister removes a primitive from this registry (never the parent).
func (r *Registry) Unregister(name string) {
	delete(r.prims, name)
}

// Lookup resolves a primitive in this registry, then in its ancestors.
func (r *Registry) Lookup(name string) (*Primitive, bool) {
	for reg := r; reg != nil; reg = reg.parent {
		if p, ok := reg.prims[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// Names returns the names registered directly in this registry, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.prims))
	for name := range r.prims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
