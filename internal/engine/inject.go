package engine

import (
	"github.com/roach88/bassline/internal/ir"
)

const injectBassline = "bassline"

// Group properties read by @inject groups.
const (
	PropertyInputs  = "inputs"
	PropertyOutputs = "outputs"
)

// InjectorConfig describes a dynamic injection gadget.
type InjectorConfig struct {
	// InputMapping maps an outer boundary contact name to the ID of the
	// contact inside the injected subnetwork it feeds.
	InputMapping map[string]string

	// OutputMapping maps an outer boundary contact name to the ID of the
	// inner contact it reads from.
	OutputMapping map[string]string

	// Transform optionally rewrites the incoming subnetwork before it is
	// injected. It must be pure.
	Transform func(ir.Bassline) (ir.Bassline, error)
}

// injector tracks one live injection.
type injector struct {
	groupID string
	cfg     InjectorConfig
	outer   map[string]string // boundary name -> outer contact ID

	source  *ir.Bassline      // last injected subnetwork, pre-remap
	remap   map[string]string // subnetwork ID -> live ID
	tracked []string
}

// AttachInjector turns groupID into a dynamic injection gadget.
//
// The group receives a last-mode "bassline" boundary contact plus one
// merge-mode boundary contact per mapped name. Each Bassline value that
// arrives on "bassline" is injected under fresh IDs, replacing the previous
// injection unless the two are structurally equal.
func (e *Engine) AttachInjector(groupID string, cfg InjectorConfig) error {
	e.enter()
	defer e.exit()

	return e.attachInjector(groupID, cfg)
}

func (e *Engine) attachInjector(groupID string, cfg InjectorConfig) error {
	if _, ok := e.network.Groups[groupID]; !ok {
		return errUnknownGroup(groupID)
	}
	if _, bound := e.bindings[groupID]; bound {
		return newError(ErrCodeDuplicatePrimitive, groupID, "group already has a bound primitive")
	}

	inputs := sortedIDs(cfg.InputMapping)
	outputs := sortedIDs(cfg.OutputMapping)

	names := map[string]ir.BlendMode{injectBassline: ir.BlendLast}
	for _, n := range inputs {
		names[n] = ir.BlendMerge
	}
	for _, n := range outputs {
		names[n] = ir.BlendMerge
	}
	outer, err := e.ensureBoundary(groupID, names)
	if err != nil {
		return err
	}

	inj := &injector{groupID: groupID, cfg: cfg, outer: outer}
	name := "@inject/" + groupID
	err = e.registry.Register(Primitive{
		Name:     name,
		Inputs:   append([]string{injectBassline}, inputs...),
		Optional: inputs,
		Outputs:  outputs,
		Activation: func(in ir.IRObject) bool {
			_, ok := in[injectBassline]
			return ok
		},
		Execute: func(in ir.IRObject) (ir.IRObject, error) {
			return e.runInjector(inj, in)
		},
	})
	if err != nil {
		return err
	}
	e.bindings[groupID] = name
	e.inject[groupID] = inj

	if c, ok := e.network.Contacts[outer[injectBassline]]; ok {
		if _, has := e.values[c.ID]; has {
			if err := e.checkGadgetActivation(c); err != nil {
				return err
			}
		}
	}
	return e.processQueue()
}

// bindInjectors attaches an injector to every @inject group in groupIDs
// that does not have one yet, reading the mappings from its properties.
func (e *Engine) bindInjectors(groupIDs []string) error {
	for _, gid := range groupIDs {
		g, ok := e.network.Groups[gid]
		if !ok || g.PrimitiveType != ir.PrimitiveTypeInject {
			continue
		}
		if _, bound := e.inject[gid]; bound {
			continue
		}
		cfg, err := injectorConfigFrom(gid, g.Properties)
		if err != nil {
			return err
		}
		if err := e.attachInjector(gid, cfg); err != nil {
			return err
		}
		e.logger.Debug("injector bound", "group", gid)
	}
	return nil
}

func injectorConfigFrom(groupID string, props ir.IRObject) (InjectorConfig, error) {
	var cfg InjectorConfig
	var err error
	if cfg.InputMapping, err = stringMapping(groupID, props, PropertyInputs); err != nil {
		return cfg, err
	}
	cfg.OutputMapping, err = stringMapping(groupID, props, PropertyOutputs)
	return cfg, err
}

func stringMapping(groupID string, props ir.IRObject, key string) (map[string]string, error) {
	raw, ok := props[key]
	if !ok || ir.IsAbsent(raw) {
		return nil, nil
	}
	obj, ok := raw.(ir.IRObject)
	if !ok {
		return nil, newError(ErrCodeInvalidNetwork, groupID, "property %q must be an object of contact IDs", key)
	}
	out := make(map[string]string, len(obj))
	for name, v := range obj {
		id, ok := v.(ir.IRString)
		if !ok {
			return nil, newError(ErrCodeInvalidNetwork, groupID, "property %s.%s must be a contact ID string", key, name)
		}
		out[name] = string(id)
	}
	return out, nil
}

func (e *Engine) runInjector(inj *injector, in ir.IRObject) (ir.IRObject, error) {
	sub, err := ir.BasslineFromIR(in[injectBassline])
	if err != nil {
		return nil, err
	}
	if inj.cfg.Transform != nil {
		if sub, err = inj.cfg.Transform(sub.Clone()); err != nil {
			return nil, err
		}
	}

	if inj.source != nil && ir.StructurallyEqual(*inj.source, sub) {
		return e.injectorOutputs(inj), nil
	}

	add, remap := e.remapSubnetwork(inj, sub)
	if err := e.applyStructureChanges(StructureChanges{Remove: inj.tracked, Add: add}); err != nil {
		return nil, err
	}

	inj.tracked = append(append(append([]string{}, sortedIDs(add.Groups)...),
		sortedIDs(add.Contacts)...), sortedIDs(add.Wires)...)
	inj.remap = remap
	src := sub.Clone()
	inj.source = &src

	e.logger.Debug("subnetwork injected",
		"group", inj.groupID,
		"contacts", len(add.Contacts),
		"wires", len(add.Wires),
		"groups", len(add.Groups),
	)
	return e.injectorOutputs(inj), nil
}

// remapSubnetwork copies sub under freshly generated IDs and appends the
// boundary mapping wires. Groups and contacts without an owner inside sub
// are adopted by the injector group.
func (e *Engine) remapSubnetwork(inj *injector, sub ir.Bassline) (ir.Bassline, map[string]string) {
	remap := make(map[string]string, len(sub.Contacts)+len(sub.Wires)+len(sub.Groups))
	groupIDs := sortedIDs(sub.Groups)
	for _, id := range groupIDs {
		remap[id] = e.ids.Generate()
	}
	for _, id := range sortedIDs(sub.Contacts) {
		c := sub.Contacts[id]
		if _, owned := sub.Groups[c.GroupID]; owned && id == ir.PropertiesContactID(c.GroupID) {
			remap[id] = ir.PropertiesContactID(remap[c.GroupID])
			continue
		}
		remap[id] = e.ids.Generate()
	}
	for _, id := range sortedIDs(sub.Wires) {
		remap[id] = e.ids.Generate()
	}

	mapList := func(ids []string) []string {
		var out []string
		for _, id := range ids {
			if nid, ok := remap[id]; ok {
				out = append(out, nid)
			}
		}
		return out
	}

	out := ir.NewBassline()
	for _, id := range groupIDs {
		g := sub.Groups[id]
		g.ID = remap[id]
		if parent, ok := remap[g.ParentID]; ok {
			g.ParentID = parent
		} else {
			g.ParentID = inj.groupID
		}
		g.ContactIDs = mapList(g.ContactIDs)
		g.BoundaryContactIDs = mapList(g.BoundaryContactIDs)
		out.Groups[g.ID] = g
	}
	for id, c := range sub.Contacts {
		c.ID = remap[id]
		if _, owned := sub.Groups[c.GroupID]; owned {
			c.GroupID = remap[c.GroupID]
		} else {
			c.GroupID = inj.groupID
			c.Flags.Boundary = false
		}
		out.Contacts[c.ID] = c
	}
	for id, w := range sub.Wires {
		from, okFrom := remap[w.FromID]
		to, okTo := remap[w.ToID]
		if !okFrom || !okTo {
			e.logger.Debug("dropping wire leaving the subnetwork", "wire", id)
			continue
		}
		w.ID, w.FromID, w.ToID = remap[id], from, to
		out.Wires[w.ID] = w
	}

	addMapping := func(from, to string) {
		id := e.ids.Generate()
		out.Wires[id] = ir.Wire{ID: id, FromID: from, ToID: to}
	}
	for _, name := range sortedIDs(inj.cfg.InputMapping) {
		if inner, ok := remap[inj.cfg.InputMapping[name]]; ok {
			addMapping(inj.outer[name], inner)
		}
	}
	for _, name := range sortedIDs(inj.cfg.OutputMapping) {
		if inner, ok := remap[inj.cfg.OutputMapping[name]]; ok {
			addMapping(inner, inj.outer[name])
		}
	}
	return out, remap
}

// injectorOutputs reads the current values of the mapped inner contacts.
func (e *Engine) injectorOutputs(inj *injector) ir.IRObject {
	out := make(ir.IRObject, len(inj.cfg.OutputMapping))
	for _, name := range sortedIDs(inj.cfg.OutputMapping) {
		inner, ok := inj.remap[inj.cfg.OutputMapping[name]]
		if !ok {
			continue
		}
		if v, ok := e.values[inner]; ok {
			out[name] = v
		}
	}
	return out
}
