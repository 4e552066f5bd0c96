package ir

import (
	"fmt"
	"slices"
)

// PrimitiveTypeMirror is the sentinel primitive type marking a group as a
// meta-propagation (mirror) gadget instance.
const PrimitiveTypeMirror = "@mirror"

// PrimitiveTypeInject marks a group as a dynamic injection gadget. Its
// "inputs" and "outputs" properties map boundary names to inner contact IDs.
const PrimitiveTypeInject = "@inject"

// IsGadgetSentinel reports whether a primitive type names a built-in
// gadget rather than a registered primitive.
func IsGadgetSentinel(primitiveType string) bool {
	return primitiveType == PrimitiveTypeMirror || primitiveType == PrimitiveTypeInject
}

// PropertiesContactName is the declared name of every group's reserved
// properties contact.
const PropertiesContactName = "properties"

// PropertiesContactID returns the reserved properties contact ID of a group.
func PropertiesContactID(groupID string) string {
	return groupID + ":" + PropertiesContactName
}

// ContactFlags are the boolean properties of a contact.
type ContactFlags struct {
	System             bool
	Boundary           bool
	ReadOnlyFromInside bool
}

// Contact is the reified record of a cell. Content is only populated in
// snapshots taken with values.
type Contact struct {
	ID         string
	GroupID    string
	Name       string
	BlendMode  BlendMode
	Flags      ContactFlags
	Properties IRObject
	Content    IRValue
}

// Wire is a directed propagation edge; bidirectional wires also carry
// updates from ToID back to FromID.
type Wire struct {
	ID            string
	FromID        string
	ToID          string
	Bidirectional bool
	Properties    IRObject
}

// Group is a hierarchical contact container. A group with a PrimitiveType
// is a gadget instance whose boundary contacts are its inputs and outputs.
type Group struct {
	ID                 string
	ParentID           string
	ContactIDs         []string
	BoundaryContactIDs []string
	PrimitiveType      string
	Properties         IRObject
}

// Bassline is the pure structural snapshot of a network: IDs mapped to
// reified records, independent of the live engine.
type Bassline struct {
	Contacts map[string]Contact
	Wires    map[string]Wire
	Groups   map[string]Group
}

// NewBassline returns an empty network.
func NewBassline() Bassline {
	return Bassline{
		Contacts: make(map[string]Contact),
		Wires:    make(map[string]Wire),
		Groups:   make(map[string]Group),
	}
}

// HasMember reports whether contactID is a member of the group.
func (g Group) HasMember(contactID string) bool {
	return slices.Contains(g.ContactIDs, contactID)
}

// HasBoundary reports whether contactID is a boundary contact of the group.
func (g Group) HasBoundary(contactID string) bool {
	return slices.Contains(g.BoundaryContactIDs, contactID)
}

// Clone returns a copy that shares no maps or slices with b.
// Values themselves are immutable and are shared.
func (b Bassline) Clone() Bassline {
	out := NewBassline()
	for id, c := range b.Contacts {
		c.Properties = c.Properties.Clone()
		out.Contacts[id] = c
	}
	for id, w := range b.Wires {
		w.Properties = w.Properties.Clone()
		out.Wires[id] = w
	}
	for id, g := range b.Groups {
		g.ContactIDs = slices.Clone(g.ContactIDs)
		g.BoundaryContactIDs = slices.Clone(g.BoundaryContactIDs)
		g.Properties = g.Properties.Clone()
		out.Groups[id] = g
	}
	return out
}

// WithoutContent returns a clone with every contact's content cleared.
func (b Bassline) WithoutContent() Bassline {
	out := b.Clone()
	for id, c := range out.Contacts {
		c.Content = nil
		out.Contacts[id] = c
	}
	return out
}

// Scope returns the part of the network owned by groupID: the group record,
// contacts whose GroupID is groupID, and wires connecting two such contacts.
// When recursive is set, descendant groups and their contacts are included too.
func (b Bassline) Scope(groupID string, recursive bool) Bassline {
	out := NewBassline()
	root, ok := b.Groups[groupID]
	if !ok {
		return out
	}

	groups := map[string]bool{groupID: true}
	out.Groups[groupID] = root
	if recursive {
		changed := true
		for changed {
			changed = false
			for id, g := range b.Groups {
				if !groups[id] && groups[g.ParentID] {
					groups[id] = true
					out.Groups[id] = g
					changed = true
				}
			}
		}
	}

	for id, c := range b.Contacts {
		if c.GroupID != "" && groups[c.GroupID] {
			out.Contacts[id] = c
		}
	}
	for id, w := range b.Wires {
		_, fromIn := out.Contacts[w.FromID]
		_, toIn := out.Contacts[w.ToID]
		if fromIn && toIn {
			out.Wires[id] = w
		}
	}
	return out.Clone()
}

// StructurallyEqual compares two networks ignoring contact content:
// contact existence, ownership and properties, wire endpoints, group
// membership and boundary sets.
func StructurallyEqual(a, b Bassline) bool {
	ha, errA := StructureHash(a)
	hb, errB := StructureHash(b)
	return errA == nil && errB == nil && ha == hb
}

// Validate checks the referential invariants of a network.
// Returns all errors (not fail-fast) for better diagnostics.
func (b Bassline) Validate() []ValidationError {
	var errs []ValidationError

	seen := make(map[string]string)
	claim := func(kind, id string) {
		if id == "" {
			errs = append(errs, ValidationError{Field: kind, Message: "id is required"})
			return
		}
		if prev, dup := seen[id]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%s]", kind, id),
				Message: fmt.Sprintf("duplicate id (already used by a %s)", prev),
			})
			return
		}
		seen[id] = kind
	}

	for _, id := range sortedKeys(b.Contacts) {
		c := b.Contacts[id]
		claim("contacts", id)
		if c.ID != id {
			errs = append(errs, ValidationError{Field: "contacts[" + id + "].id", Message: fmt.Sprintf("record id %q does not match key", c.ID)})
		}
		if !c.BlendMode.Valid() {
			errs = append(errs, ValidationError{Field: "contacts[" + id + "].blend_mode", Message: fmt.Sprintf("invalid blend mode %q, must be merge or last", c.BlendMode)})
		}
		if c.GroupID != "" {
			g, ok := b.Groups[c.GroupID]
			if !ok {
				errs = append(errs, ValidationError{Field: "contacts[" + id + "].group_id", Message: fmt.Sprintf("unknown group %q", c.GroupID)})
			} else if !g.HasMember(id) {
				errs = append(errs, ValidationError{Field: "contacts[" + id + "].group_id", Message: fmt.Sprintf("group %q does not list contact as member", c.GroupID)})
			}
		}
	}

	for _, id := range sortedKeys(b.Wires) {
		w := b.Wires[id]
		claim("wires", id)
		if _, ok := b.Contacts[w.FromID]; !ok {
			errs = append(errs, ValidationError{Field: "wires[" + id + "].from_id", Message: fmt.Sprintf("unknown contact %q", w.FromID)})
		}
		if _, ok := b.Contacts[w.ToID]; !ok {
			errs = append(errs, ValidationError{Field: "wires[" + id + "].to_id", Message: fmt.Sprintf("unknown contact %q", w.ToID)})
		}
	}

	for _, id := range sortedKeys(b.Groups) {
		g := b.Groups[id]
		claim("groups", id)
		if g.ParentID != "" {
			if _, ok := b.Groups[g.ParentID]; !ok {
				errs = append(errs, ValidationError{Field: "groups[" + id + "].parent_id", Message: fmt.Sprintf("unknown parent group %q", g.ParentID)})
			}
		}
		for _, cid := range g.ContactIDs {
			c, ok := b.Contacts[cid]
			if !ok {
				errs = append(errs, ValidationError{Field: "groups[" + id + "].contact_ids", Message: fmt.Sprintf("unknown contact %q", cid)})
			} else if c.GroupID != id {
				errs = append(errs, ValidationError{Field: "groups[" + id + "].contact_ids", Message: fmt.Sprintf("contact %q is owned by %q", cid, c.GroupID)})
			}
		}
		for _, cid := range g.BoundaryContactIDs {
			if !g.HasMember(cid) {
				errs = append(errs, ValidationError{Field: "groups[" + id + "].boundary_contact_ids", Message: fmt.Sprintf("boundary contact %q is not a member", cid)})
			}
		}
	}

	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
