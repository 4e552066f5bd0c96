package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/bassline/internal/ir"
)

// CompileNetwork parses a CUE network definition into a Bassline.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the network struct itself:
//
//	network: {
//		contacts: x: {blend: "merge", content: 10}
//		contacts: y: {}
//		wires: w: {from: "x", to: "y", bidirectional: false}
//		groups: adder: {
//			primitive: "add"
//			contacts: {a: {}, b: {}, sum: {}}
//		}
//	}
//
// Contacts declared inside a group are owned by it, named after their label
// and get the ID "<group>.<label>". They are boundary contacts unless they
// set boundary: false. Wires default to bidirectional.
func CompileNetwork(v cue.Value) (ir.Bassline, error) {
	if err := v.Err(); err != nil {
		return ir.Bassline{}, formatCUEError(err)
	}

	b := ir.NewBassline()

	contactsVal := v.LookupPath(cue.ParsePath("contacts"))
	if contactsVal.Exists() {
		iter, err := contactsVal.Fields()
		if err != nil {
			return ir.Bassline{}, formatCUEError(err)
		}
		for iter.Next() {
			id := iter.Selector().Unquoted()
			c, err := parseContact(iter.Value(), id, "", false)
			if err != nil {
				return ir.Bassline{}, err
			}
			if err := addContact(&b, c, iter.Value().Pos()); err != nil {
				return ir.Bassline{}, err
			}
		}
	}

	groupsVal := v.LookupPath(cue.ParsePath("groups"))
	if groupsVal.Exists() {
		iter, err := groupsVal.Fields()
		if err != nil {
			return ir.Bassline{}, formatCUEError(err)
		}
		for iter.Next() {
			if err := parseGroup(&b, iter.Value(), iter.Selector().Unquoted()); err != nil {
				return ir.Bassline{}, err
			}
		}
	}

	wiresVal := v.LookupPath(cue.ParsePath("wires"))
	if wiresVal.Exists() {
		iter, err := wiresVal.Fields()
		if err != nil {
			return ir.Bassline{}, formatCUEError(err)
		}
		for iter.Next() {
			w, err := parseWire(iter.Value(), iter.Selector().Unquoted())
			if err != nil {
				return ir.Bassline{}, err
			}
			b.Wires[w.ID] = w
		}
	}

	// Top-level contacts may name their group; register them as members.
	for _, id := range sortedIDs(b.Contacts) {
		c := b.Contacts[id]
		if c.GroupID == "" {
			continue
		}
		g, ok := b.Groups[c.GroupID]
		if !ok {
			continue
		}
		if !g.HasMember(id) {
			g.ContactIDs = append(g.ContactIDs, id)
		}
		if c.Flags.Boundary && !g.HasBoundary(id) {
			g.BoundaryContactIDs = append(g.BoundaryContactIDs, id)
		}
		slices.Sort(g.ContactIDs)
		slices.Sort(g.BoundaryContactIDs)
		b.Groups[g.ID] = g
	}

	return b, nil
}

func addContact(b *ir.Bassline, c ir.Contact, pos token.Pos) error {
	if _, exists := b.Contacts[c.ID]; exists {
		return &CompileError{
			Field:   "contacts." + c.ID,
			Message: "duplicate contact id",
			Pos:     pos,
		}
	}
	b.Contacts[c.ID] = c
	return nil
}

// parseContact reads one contact record. groupID is set for contacts
// declared inside a group.
func parseContact(v cue.Value, id, groupID string, boundaryDefault bool) (ir.Contact, error) {
	field := "contacts." + id
	c := ir.Contact{ID: id, GroupID: groupID, BlendMode: ir.BlendMerge}

	blend, err := optString(v, "blend", field)
	if err != nil {
		return c, err
	}
	if blend != "" {
		c.BlendMode = ir.BlendMode(blend)
		if !c.BlendMode.Valid() {
			return c, &CompileError{
				Field:   field + ".blend",
				Message: fmt.Sprintf("invalid blend mode %q, must be merge or last", blend),
				Pos:     v.LookupPath(cue.ParsePath("blend")).Pos(),
			}
		}
	}

	if groupID == "" {
		if c.GroupID, err = optString(v, "group", field); err != nil {
			return c, err
		}
	}
	if c.Name, err = optString(v, "name", field); err != nil {
		return c, err
	}

	if c.Flags.Boundary, err = optBool(v, "boundary", boundaryDefault, field); err != nil {
		return c, err
	}
	if c.Flags.System, err = optBool(v, "system", false, field); err != nil {
		return c, err
	}
	if c.Flags.ReadOnlyFromInside, err = optBool(v, "read_only_from_inside", false, field); err != nil {
		return c, err
	}

	if c.Properties, err = optObject(v, "properties", field); err != nil {
		return c, err
	}

	contentVal := v.LookupPath(cue.ParsePath("content"))
	if contentVal.Exists() {
		content, err := convertValue(contentVal, field+".content")
		if err != nil {
			return c, err
		}
		c.Content = content
	}
	return c, nil
}

func parseGroup(b *ir.Bassline, v cue.Value, id string) error {
	field := "groups." + id
	g := ir.Group{ID: id}

	var err error
	if g.ParentID, err = optString(v, "parent", field); err != nil {
		return err
	}
	if g.PrimitiveType, err = optString(v, "primitive", field); err != nil {
		return err
	}
	if g.Properties, err = optObject(v, "properties", field); err != nil {
		return err
	}

	membersVal := v.LookupPath(cue.ParsePath("contacts"))
	if membersVal.Exists() {
		iter, err := membersVal.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for iter.Next() {
			name := iter.Selector().Unquoted()
			c, err := parseContact(iter.Value(), id+"."+name, id, true)
			if err != nil {
				return err
			}
			if c.Name == "" {
				c.Name = name
			}
			if err := addContact(b, c, iter.Value().Pos()); err != nil {
				return err
			}
			g.ContactIDs = append(g.ContactIDs, c.ID)
			if c.Flags.Boundary {
				g.BoundaryContactIDs = append(g.BoundaryContactIDs, c.ID)
			}
		}
	}

	slices.Sort(g.ContactIDs)
	slices.Sort(g.BoundaryContactIDs)
	b.Groups[id] = g
	return nil
}

func parseWire(v cue.Value, id string) (ir.Wire, error) {
	field := "wires." + id
	w := ir.Wire{ID: id}

	var err error
	if w.FromID, err = optString(v, "from", field); err != nil {
		return w, err
	}
	if w.ToID, err = optString(v, "to", field); err != nil {
		return w, err
	}
	if w.FromID == "" || w.ToID == "" {
		return w, &CompileError{
			Field:   field,
			Message: "wire requires from and to",
			Pos:     v.Pos(),
		}
	}
	if w.Bidirectional, err = optBool(v, "bidirectional", true, field); err != nil {
		return w, err
	}
	if w.Properties, err = optObject(v, "properties", field); err != nil {
		return w, err
	}
	return w, nil
}

func optString(v cue.Value, key, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field + "." + key, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func optBool(v cue.Value, key string, def bool, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return def, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return def, &CompileError{Field: field + "." + key, Message: "must be a bool", Pos: fv.Pos()}
	}
	return b, nil
}

func optObject(v cue.Value, key, field string) (ir.IRObject, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return nil, nil
	}
	val, err := convertValue(fv, field+"."+key)
	if err != nil {
		return nil, err
	}
	obj, ok := val.(ir.IRObject)
	if !ok {
		return nil, &CompileError{Field: field + "." + key, Message: "must be a struct", Pos: fv.Pos()}
	}
	return obj, nil
}

// convertValue turns a concrete CUE value into an IR value. Single-key
// structs tagged as mergeables ({"$grow_set": [...]}) become mergeables.
// Floats are forbidden.
func convertValue(v cue.Value, field string) (ir.IRValue, error) {
	raw, err := toGo(v, field)
	if err != nil {
		return nil, err
	}
	val, err := ir.FromGo(raw)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return val, nil
}

func toGo(v cue.Value, field string) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: "float values are forbidden, use int instead",
			Pos:     v.Pos(),
		}
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for i := 0; iter.Next(); i++ {
			elem, err := toGo(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			key := iter.Selector().Unquoted()
			elem, err := toGo(iter.Value(), field+"."+key)
			if err != nil {
				return nil, err
			}
			out[key] = elem
		}
		return out, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: "value must be concrete",
			Pos:     v.Pos(),
		}
	}
}
