package engine

import (
	"slices"
	"sort"

	"github.com/roach88/bassline/internal/ir"
)

// addedIDs lists what one structural addition inserted, sorted per kind.
type addedIDs struct {
	contacts []string
	wires    []string
	groups   []string
}

func (a addedIDs) all() []string {
	out := make([]string, 0, len(a.contacts)+len(a.wires)+len(a.groups))
	out = append(out, a.groups...)
	out = append(out, a.contacts...)
	out = append(out, a.wires...)
	return out
}

func propertiesContact(g ir.Group) ir.Contact {
	c := ir.Contact{
		ID:        ir.PropertiesContactID(g.ID),
		GroupID:   g.ID,
		Name:      ir.PropertiesContactName,
		BlendMode: ir.BlendMerge,
		Flags:     ir.ContactFlags{System: true, Boundary: true, ReadOnlyFromInside: true},
	}
	if len(g.Properties) > 0 {
		c.Content = g.Properties.Clone()
	}
	return c
}

// kindOf reports which table holds id in the live network.
func (e *Engine) kindOf(id string) string {
	if _, ok := e.network.Contacts[id]; ok {
		return "contact"
	}
	if _, ok := e.network.Wires[id]; ok {
		return "wire"
	}
	if _, ok := e.network.Groups[id]; ok {
		return "group"
	}
	return ""
}

// contactName is the declared name used to match gadget inputs and outputs.
func contactName(c ir.Contact) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// illegalWire reports whether w would write into a read-only-from-inside
// contact from a contact of the same group.
func illegalWire(from, to ir.Contact) bool {
	return to.Flags.ReadOnlyFromInside && to.GroupID != "" && from.GroupID == to.GroupID
}

// addStructure validates b against the live network and inserts it.
// Nothing is inserted when validation fails. Groups in b get a properties
// contact when b does not carry one.
func (e *Engine) addStructure(b ir.Bassline) (addedIDs, error) {
	b = b.Clone()
	for _, gid := range sortedIDs(b.Groups) {
		pid := ir.PropertiesContactID(gid)
		if _, ok := b.Contacts[pid]; !ok && e.kindOf(pid) == "" {
			b.Contacts[pid] = propertiesContact(b.Groups[gid])
		}
	}

	if err := e.checkAddition(b); err != nil {
		return addedIDs{}, err
	}

	added := addedIDs{
		contacts: sortedIDs(b.Contacts),
		wires:    sortedIDs(b.Wires),
		groups:   sortedIDs(b.Groups),
	}

	for _, id := range added.groups {
		g := b.Groups[id]
		g.ContactIDs = nil
		g.BoundaryContactIDs = nil
		g.Properties = g.Properties.Clone()
		e.network.Groups[id] = g
	}

	for _, id := range orderedContacts(b) {
		c := b.Contacts[id]
		if rec, ok := b.Groups[c.GroupID]; ok && rec.HasBoundary(id) {
			c.Flags.Boundary = true
		}
		if c.BlendMode == "" {
			c.BlendMode = ir.BlendMerge
		}
		if !ir.IsAbsent(c.Content) {
			e.values[id] = c.Content
		}
		c.Content = nil
		c.Properties = c.Properties.Clone()
		e.network.Contacts[id] = c

		if c.GroupID != "" {
			g := e.network.Groups[c.GroupID]
			g.ContactIDs = append(g.ContactIDs, id)
			if c.Flags.Boundary {
				g.BoundaryContactIDs = append(g.BoundaryContactIDs, id)
			}
			e.network.Groups[c.GroupID] = g
		}
	}

	for _, id := range added.wires {
		w := b.Wires[id]
		w.Properties = w.Properties.Clone()
		e.network.Wires[id] = w
		e.indexWire(w)
	}

	return added, nil
}

// orderedContacts returns b's contact IDs so that members join their groups
// in the order the group records list them; the rest follow sorted.
func orderedContacts(b ir.Bassline) []string {
	seen := make(map[string]bool, len(b.Contacts))
	out := make([]string, 0, len(b.Contacts))
	for _, gid := range sortedIDs(b.Groups) {
		for _, cid := range b.Groups[gid].ContactIDs {
			if c, ok := b.Contacts[cid]; ok && c.GroupID == gid && !seen[cid] {
				seen[cid] = true
				out = append(out, cid)
			}
		}
	}
	for _, cid := range sortedIDs(b.Contacts) {
		if !seen[cid] {
			out = append(out, cid)
		}
	}
	return out
}

func (e *Engine) checkAddition(b ir.Bassline) error {
	claimed := make(map[string]string)
	claim := func(id, kind string) error {
		if id == "" {
			return newError(ErrCodeMalformedAction, "", "%s id is required", kind)
		}
		if existing := e.kindOf(id); existing != "" {
			return errDuplicateID(id, existing)
		}
		if prev, ok := claimed[id]; ok {
			return errDuplicateID(id, prev)
		}
		claimed[id] = kind
		return nil
	}

	for _, id := range sortedIDs(b.Groups) {
		if err := claim(id, "group"); err != nil {
			return err
		}
	}
	for _, id := range sortedIDs(b.Contacts) {
		if err := claim(id, "contact"); err != nil {
			return err
		}
	}
	for _, id := range sortedIDs(b.Wires) {
		if err := claim(id, "wire"); err != nil {
			return err
		}
	}

	groupExists := func(id string) bool {
		_, live := e.network.Groups[id]
		_, pending := b.Groups[id]
		return live || pending
	}
	contactOf := func(id string) (ir.Contact, bool) {
		if c, ok := b.Contacts[id]; ok {
			return c, true
		}
		c, ok := e.network.Contacts[id]
		return c, ok
	}

	for _, id := range sortedIDs(b.Groups) {
		g := b.Groups[id]
		if g.ParentID == id {
			return newError(ErrCodeMalformedAction, id, "a group cannot be its own parent")
		}
		if g.ParentID != "" && !groupExists(g.ParentID) {
			return newError(ErrCodeMissingReference, id, "parent group %q does not exist", g.ParentID)
		}
	}
	for _, id := range sortedIDs(b.Contacts) {
		c := b.Contacts[id]
		if c.BlendMode != "" && !c.BlendMode.Valid() {
			return newError(ErrCodeMalformedAction, id, "invalid blend mode %q", c.BlendMode)
		}
		if c.GroupID != "" && !groupExists(c.GroupID) {
			return newError(ErrCodeMissingReference, id, "group %q does not exist", c.GroupID)
		}
	}
	for _, id := range sortedIDs(b.Wires) {
		w := b.Wires[id]
		from, ok := contactOf(w.FromID)
		if !ok {
			return newError(ErrCodeMissingReference, id, "wire source %q does not exist", w.FromID)
		}
		to, ok := contactOf(w.ToID)
		if !ok {
			return newError(ErrCodeMissingReference, id, "wire target %q does not exist", w.ToID)
		}
		if w.FromID == w.ToID {
			return newError(ErrCodeIllegalWire, id, "a wire cannot connect a contact to itself")
		}
		if illegalWire(from, to) {
			return newError(ErrCodeIllegalWire, id, "%q is read-only from inside group %q", w.ToID, to.GroupID)
		}
	}
	return nil
}

func (e *Engine) indexWire(w ir.Wire) {
	for _, cid := range []string{w.FromID, w.ToID} {
		set, ok := e.wiresOf[cid]
		if !ok {
			set = make(map[string]struct{})
			e.wiresOf[cid] = set
		}
		set[w.ID] = struct{}{}
	}
	e.sourceCount[w.FromID]++
	if w.Bidirectional {
		e.sourceCount[w.ToID]++
	}
}

func (e *Engine) unindexWire(w ir.Wire) {
	for _, cid := range []string{w.FromID, w.ToID} {
		if set, ok := e.wiresOf[cid]; ok {
			delete(set, w.ID)
			if len(set) == 0 {
				delete(e.wiresOf, cid)
			}
		}
	}
	e.decSource(w.FromID)
	if w.Bidirectional {
		e.decSource(w.ToID)
	}
}

func (e *Engine) decSource(cid string) {
	if e.sourceCount[cid] <= 1 {
		delete(e.sourceCount, cid)
		return
	}
	e.sourceCount[cid]--
}

// isWireSource reports whether any wire propagates outward from contactID.
func (e *Engine) isWireSource(contactID string) bool {
	return e.sourceCount[contactID] > 0
}

// wiresTouching returns the wires with contactID as an endpoint, by ID.
func (e *Engine) wiresTouching(contactID string) []ir.Wire {
	set := e.wiresOf[contactID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]ir.Wire, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.network.Wires[id])
	}
	return out
}

// removeIDs deletes contacts, wires and groups. Unknown IDs are skipped so
// that cascades (a wire removed with its contact) do not fail. Returns every
// ID actually removed, cascades included.
func (e *Engine) removeIDs(ids []string) []string {
	var removed []string
	for _, id := range ids {
		switch e.kindOf(id) {
		case "wire":
			removed = append(removed, e.removeWire(id)...)
		case "contact":
			removed = append(removed, e.removeContact(id)...)
		case "group":
			removed = append(removed, e.removeGroup(id)...)
		}
	}
	return removed
}

func (e *Engine) removeWire(id string) []string {
	w, ok := e.network.Wires[id]
	if !ok {
		return nil
	}
	e.unindexWire(w)
	delete(e.network.Wires, id)
	e.refreshMirrors(w.FromID, w.ToID)
	return []string{id}
}

func (e *Engine) removeContact(id string) []string {
	c, ok := e.network.Contacts[id]
	if !ok {
		return nil
	}
	var removed []string
	for _, w := range e.wiresTouching(id) {
		removed = append(removed, e.removeWire(w.ID)...)
	}
	if g, ok := e.network.Groups[c.GroupID]; ok {
		g.ContactIDs = slices.DeleteFunc(slices.Clone(g.ContactIDs), func(s string) bool { return s == id })
		g.BoundaryContactIDs = slices.DeleteFunc(slices.Clone(g.BoundaryContactIDs), func(s string) bool { return s == id })
		e.network.Groups[c.GroupID] = g
	}
	delete(e.values, id)
	delete(e.network.Contacts, id)
	return append(removed, id)
}

func (e *Engine) removeGroup(id string) []string {
	g, ok := e.network.Groups[id]
	if !ok {
		return nil
	}
	var removed []string
	for _, child := range sortedIDs(e.network.Groups) {
		if e.network.Groups[child].ParentID == id {
			removed = append(removed, e.removeGroup(child)...)
		}
	}
	for _, cid := range slices.Clone(g.ContactIDs) {
		removed = append(removed, e.removeContact(cid)...)
	}
	e.unbindGadget(id)
	delete(e.network.Groups, id)
	return append(removed, id)
}

// bindGadgets binds the built-in gadget of every sentinel-typed group.
func (e *Engine) bindGadgets(groupIDs []string) error {
	if err := e.bindMirrors(groupIDs); err != nil {
		return err
	}
	return e.bindInjectors(groupIDs)
}

// unbindGadget drops any instance-bound primitive (mirror or injector).
func (e *Engine) unbindGadget(groupID string) {
	if m, ok := e.mirrors[groupID]; ok {
		m.unsubscribe()
		delete(e.mirrors, groupID)
	}
	delete(e.inject, groupID)
	if name, ok := e.bindings[groupID]; ok {
		e.registry.Unregister(name)
		delete(e.bindings, groupID)
	}
}

// seedWires queues the current value of each wire's source along it, in
// both directions for bidirectional wires.
func (e *Engine) seedWires(wireIDs []string) {
	for _, id := range wireIDs {
		w, ok := e.network.Wires[id]
		if !ok {
			continue
		}
		if v, ok := e.values[w.FromID]; ok {
			e.enqueue(w, w.FromID, w.ToID, v)
		}
		if w.Bidirectional {
			if v, ok := e.values[w.ToID]; ok {
				e.enqueue(w, w.ToID, w.FromID, v)
			}
		}
	}
}

// groupProperties returns the effective properties of a group: the value of
// its properties contact, else the group record's defaults.
func (e *Engine) groupProperties(groupID string) ir.IRObject {
	if v, ok := e.values[ir.PropertiesContactID(groupID)].(ir.IRObject); ok {
		return v
	}
	if g, ok := e.network.Groups[groupID]; ok {
		return g.Properties
	}
	return nil
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
