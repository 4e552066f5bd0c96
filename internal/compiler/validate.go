package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/bassline/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrInvalidStructure = "E201" // structural rule broken (ids, references, membership)
	ErrUnknownPrimitive = "E202" // group names a primitive nobody provides
	ErrSelfWire         = "E203" // wire connects a contact to itself
	ErrReadOnlyWire     = "E204" // wire writes a read-only contact from inside its group
	ErrBoundaryName     = "E205" // two boundary contacts of one group share a name
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateNetwork checks a compiled network before it is handed to an
// engine. primitives lists the names the host registers; nil skips the
// primitive check. Returns all errors found (does not fail-fast).
func ValidateNetwork(b ir.Bassline, primitives []string) []ValidationError {
	var errs []ValidationError

	for _, e := range b.Validate() {
		errs = append(errs, ValidationError{Field: e.Field, Message: e.Message, Code: ErrInvalidStructure})
	}

	for _, id := range sortedIDs(b.Wires) {
		w := b.Wires[id]
		if w.FromID == w.ToID {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("wires[%s]", id),
				Message: "a wire cannot connect a contact to itself",
				Code:    ErrSelfWire,
			})
			continue
		}
		if readOnlyInside(b, w.FromID, w.ToID) || (w.Bidirectional && readOnlyInside(b, w.ToID, w.FromID)) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("wires[%s]", id),
				Message: "writes a read-only contact from inside its own group",
				Code:    ErrReadOnlyWire,
			})
		}
	}

	for _, id := range sortedIDs(b.Groups) {
		g := b.Groups[id]
		if g.PrimitiveType != "" && !ir.IsGadgetSentinel(g.PrimitiveType) && primitives != nil &&
			!slices.Contains(primitives, g.PrimitiveType) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("groups[%s].primitive_type", id),
				Message: fmt.Sprintf("unknown primitive %q (known: %s)", g.PrimitiveType, strings.Join(primitives, ", ")),
				Code:    ErrUnknownPrimitive,
			})
		}

		names := make(map[string]string)
		for _, cid := range g.BoundaryContactIDs {
			c, ok := b.Contacts[cid]
			if !ok || c.Name == "" {
				continue
			}
			if prev, dup := names[c.Name]; dup {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("groups[%s].boundary_contact_ids", id),
					Message: fmt.Sprintf("boundary name %q used by %q and %q", c.Name, prev, cid),
					Code:    ErrBoundaryName,
				})
				continue
			}
			names[c.Name] = cid
		}
	}

	return errs
}

func readOnlyInside(b ir.Bassline, fromID, toID string) bool {
	from, okFrom := b.Contacts[fromID]
	to, okTo := b.Contacts[toID]
	return okFrom && okTo && to.Flags.ReadOnlyFromInside && to.GroupID != "" && from.GroupID == to.GroupID
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
