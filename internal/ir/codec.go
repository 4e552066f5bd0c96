package ir

import (
	"fmt"
	"slices"
)

// fieldReader reads typed fields out of an IRObject, remembering the first
// type mismatch so decoders can check once at the end.
type fieldReader struct {
	obj IRObject
	err error
}

func (r *fieldReader) fail(key, want string, got IRValue) {
	if r.err == nil {
		r.err = ValidationError{Field: key, Message: fmt.Sprintf("expected %s, got %T", want, got)}
	}
}

func (r *fieldReader) str(key string) string {
	v, ok := r.obj[key]
	if !ok || IsAbsent(v) {
		return ""
	}
	s, ok := v.(IRString)
	if !ok {
		r.fail(key, "string", v)
		return ""
	}
	return string(s)
}

func (r *fieldReader) boolean(key string, def bool) bool {
	v, ok := r.obj[key]
	if !ok || IsAbsent(v) {
		return def
	}
	b, ok := v.(IRBool)
	if !ok {
		r.fail(key, "bool", v)
		return def
	}
	return bool(b)
}

func (r *fieldReader) object(key string) IRObject {
	v, ok := r.obj[key]
	if !ok || IsAbsent(v) {
		return nil
	}
	o, ok := v.(IRObject)
	if !ok {
		r.fail(key, "object", v)
		return nil
	}
	return o
}

func (r *fieldReader) strList(key string) []string {
	v, ok := r.obj[key]
	if !ok || IsAbsent(v) {
		return nil
	}
	arr, ok := v.(IRArray)
	if !ok {
		r.fail(key, "array of strings", v)
		return nil
	}
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, elem := range arr {
		s, ok := elem.(IRString)
		if !ok {
			r.fail(key, "array of strings", elem)
			return nil
		}
		out = append(out, string(s))
	}
	return out
}

func (r *fieldReader) value(key string) IRValue {
	v, ok := r.obj[key]
	if !ok || IsAbsent(v) {
		return nil
	}
	return v
}

func orNull(v IRValue) IRValue {
	if v == nil {
		return IRNull{}
	}
	return v
}

func stringList(ids []string) IRArray {
	out := make(IRArray, len(ids))
	for i, id := range ids {
		out[i] = IRString(id)
	}
	return out
}

func sortedStringList(ids []string) IRArray {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return stringList(sorted)
}

// ContactToIR converts a contact into its object form. Content is included
// only when present.
func ContactToIR(c Contact) IRObject {
	obj := contactShape(c)
	obj["id"] = IRString(c.ID)
	if !IsAbsent(c.Content) {
		obj["content"] = c.Content
	}
	return obj
}

func contactShape(c Contact) IRObject {
	mode := c.BlendMode
	if mode == "" {
		mode = BlendMerge
	}
	obj := IRObject{
		"blend_mode": IRString(mode),
		"flags": IRObject{
			"system":                IRBool(c.Flags.System),
			"boundary":              IRBool(c.Flags.Boundary),
			"read_only_from_inside": IRBool(c.Flags.ReadOnlyFromInside),
		},
	}
	if c.GroupID != "" {
		obj["group_id"] = IRString(c.GroupID)
	}
	if c.Name != "" {
		obj["name"] = IRString(c.Name)
	}
	if len(c.Properties) > 0 {
		obj["properties"] = c.Properties
	}
	return obj
}

// ContactFromIR decodes a contact. id is used when the object carries no
// "id" field (map-keyed forms).
func ContactFromIR(id string, obj IRObject) (Contact, error) {
	if obj == nil {
		return Contact{}, ValidationError{Field: "contact", Message: "is required"}
	}
	r := fieldReader{obj: obj}
	c := Contact{
		ID:         r.str("id"),
		GroupID:    r.str("group_id"),
		Name:       r.str("name"),
		BlendMode:  BlendMode(r.str("blend_mode")),
		Properties: r.object("properties"),
		Content:    r.value("content"),
	}
	if flags := r.object("flags"); flags != nil {
		fr := fieldReader{obj: flags}
		c.Flags = ContactFlags{
			System:             fr.boolean("system", false),
			Boundary:           fr.boolean("boundary", false),
			ReadOnlyFromInside: fr.boolean("read_only_from_inside", false),
		}
		if fr.err != nil {
			return Contact{}, fmt.Errorf("flags: %w", fr.err)
		}
	}
	if r.err != nil {
		return Contact{}, r.err
	}
	if c.ID == "" {
		c.ID = id
	}
	if c.BlendMode == "" {
		c.BlendMode = BlendMerge
	}
	return c, nil
}

// WireToIR converts a wire into its object form.
func WireToIR(w Wire) IRObject {
	obj := wireShape(w)
	obj["id"] = IRString(w.ID)
	return obj
}

func wireShape(w Wire) IRObject {
	obj := IRObject{
		"from_id":       IRString(w.FromID),
		"to_id":         IRString(w.ToID),
		"bidirectional": IRBool(w.Bidirectional),
	}
	if len(w.Properties) > 0 {
		obj["properties"] = w.Properties
	}
	return obj
}

// WireFromIR decodes a wire. Bidirectional defaults to true when omitted.
func WireFromIR(id string, obj IRObject) (Wire, error) {
	if obj == nil {
		return Wire{}, ValidationError{Field: "wire", Message: "is required"}
	}
	r := fieldReader{obj: obj}
	w := Wire{
		ID:            r.str("id"),
		FromID:        r.str("from_id"),
		ToID:          r.str("to_id"),
		Bidirectional: r.boolean("bidirectional", true),
		Properties:    r.object("properties"),
	}
	if r.err != nil {
		return Wire{}, r.err
	}
	if w.ID == "" {
		w.ID = id
	}
	return w, nil
}

// GroupToIR converts a group into its object form.
func GroupToIR(g Group) IRObject {
	obj := groupShape(g, stringList)
	obj["id"] = IRString(g.ID)
	return obj
}

func groupShape(g Group, list func([]string) IRArray) IRObject {
	obj := IRObject{
		"contact_ids":          list(g.ContactIDs),
		"boundary_contact_ids": list(g.BoundaryContactIDs),
	}
	if g.ParentID != "" {
		obj["parent_id"] = IRString(g.ParentID)
	}
	if g.PrimitiveType != "" {
		obj["primitive_type"] = IRString(g.PrimitiveType)
	}
	if len(g.Properties) > 0 {
		obj["properties"] = g.Properties
	}
	return obj
}

// GroupFromIR decodes a group.
func GroupFromIR(id string, obj IRObject) (Group, error) {
	if obj == nil {
		return Group{}, ValidationError{Field: "group", Message: "is required"}
	}
	r := fieldReader{obj: obj}
	g := Group{
		ID:                 r.str("id"),
		ParentID:           r.str("parent_id"),
		ContactIDs:         r.strList("contact_ids"),
		BoundaryContactIDs: r.strList("boundary_contact_ids"),
		PrimitiveType:      r.str("primitive_type"),
		Properties:         r.object("properties"),
	}
	if r.err != nil {
		return Group{}, r.err
	}
	if g.ID == "" {
		g.ID = id
	}
	return g, nil
}

// ToIR converts the network into its object form:
// {"contacts": {id: ...}, "wires": {id: ...}, "groups": {id: ...}}.
func (b Bassline) ToIR() IRObject {
	contacts := make(IRObject, len(b.Contacts))
	for id, c := range b.Contacts {
		contacts[id] = ContactToIR(c)
	}
	wires := make(IRObject, len(b.Wires))
	for id, w := range b.Wires {
		wires[id] = WireToIR(w)
	}
	groups := make(IRObject, len(b.Groups))
	for id, g := range b.Groups {
		groups[id] = GroupToIR(g)
	}
	return IRObject{"contacts": contacts, "wires": wires, "groups": groups}
}

// shapeIR is the content-free form hashed by StructureHash. Membership lists
// are sorted so that they compare as sets.
func (b Bassline) shapeIR() IRObject {
	contacts := make(IRObject, len(b.Contacts))
	for id, c := range b.Contacts {
		contacts[id] = contactShape(c)
	}
	wires := make(IRObject, len(b.Wires))
	for id, w := range b.Wires {
		wires[id] = wireShape(w)
	}
	groups := make(IRObject, len(b.Groups))
	for id, g := range b.Groups {
		groups[id] = groupShape(g, sortedStringList)
	}
	return IRObject{"contacts": contacts, "wires": wires, "groups": groups}
}

// BasslineFromIR decodes a network. Records may omit their "id" field, in
// which case the map key is used. Group membership is completed from the
// contacts' group_id and boundary flag, so hand-written networks only need
// to declare ownership on one side.
func BasslineFromIR(v IRValue) (Bassline, error) {
	obj, ok := v.(IRObject)
	if !ok {
		return Bassline{}, fmt.Errorf("bassline must be an object, got %T", v)
	}
	r := fieldReader{obj: obj}
	contacts := r.object("contacts")
	wires := r.object("wires")
	groups := r.object("groups")
	if r.err != nil {
		return Bassline{}, r.err
	}

	b := NewBassline()
	for _, id := range contacts.SortedKeys() {
		rec, _ := contacts[id].(IRObject)
		c, err := ContactFromIR(id, rec)
		if err != nil {
			return Bassline{}, fmt.Errorf("contacts[%s]: %w", id, err)
		}
		b.Contacts[c.ID] = c
	}
	for _, id := range wires.SortedKeys() {
		rec, _ := wires[id].(IRObject)
		w, err := WireFromIR(id, rec)
		if err != nil {
			return Bassline{}, fmt.Errorf("wires[%s]: %w", id, err)
		}
		b.Wires[w.ID] = w
	}
	for _, id := range groups.SortedKeys() {
		rec, _ := groups[id].(IRObject)
		g, err := GroupFromIR(id, rec)
		if err != nil {
			return Bassline{}, fmt.Errorf("groups[%s]: %w", id, err)
		}
		b.Groups[g.ID] = g
	}

	for _, id := range sortedKeys(b.Contacts) {
		c := b.Contacts[id]
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
		b.Groups[g.ID] = g
	}
	return b, nil
}

// MarshalJSON encodes the network as canonical JSON.
func (b Bassline) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(b.ToIR())
}

// UnmarshalJSON decodes the network from its JSON object form.
func (b *Bassline) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	decoded, err := BasslineFromIR(v)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}
