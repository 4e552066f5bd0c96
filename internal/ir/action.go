package ir

import (
	"fmt"
)

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Action type tags used in the textual form: {"type": "setValue", ...}.
const (
	ActionSetValue         = "setValue"
	ActionCreateContact    = "createContact"
	ActionDeleteContact    = "deleteContact"
	ActionCreateWire       = "createWire"
	ActionDeleteWire       = "deleteWire"
	ActionCreateGroup      = "createGroup"
	ActionDeleteGroup      = "deleteGroup"
	ActionUpdateProperties = "updateProperties"
)

// Action is a data-described mutation of a live network.
// Sealed: only the variants in this file implement it.
type Action interface {
	// ActionType returns the tag of the variant.
	ActionType() string
	// Validate checks the action is well formed, independent of any network.
	Validate() error
	isAction()
}

// ActionSet is an ordered batch of actions. Application stops at the first
// failure; earlier actions stay applied.
type ActionSet []Action

// SetValue writes a value into a contact under its blend mode.
type SetValue struct {
	ContactID string
	Value     IRValue
}

// CreateContact adds a contact. When Contact.GroupID is set the contact
// becomes a member of that group, and a boundary member if Flags.Boundary.
type CreateContact struct {
	Contact Contact
}

// DeleteContact removes a contact, its memberships and every wire touching it.
type DeleteContact struct {
	ContactID string
}

// CreateWire connects two existing contacts.
type CreateWire struct {
	Wire Wire
}

// DeleteWire removes a wire.
type DeleteWire struct {
	WireID string
}

// CreateGroup adds an empty group. Members are added with CreateContact.
type CreateGroup struct {
	Group Group
}

// DeleteGroup removes a group together with its members and descendants.
type DeleteGroup struct {
	GroupID string
}

// UpdateProperties merges Properties into the properties of the contact,
// wire or group named by TargetID.
type UpdateProperties struct {
	TargetID   string
	Properties IRObject
}

func (SetValue) ActionType() string         { return ActionSetValue }
func (CreateContact) ActionType() string    { return ActionCreateContact }
func (DeleteContact) ActionType() string    { return ActionDeleteContact }
func (CreateWire) ActionType() string       { return ActionCreateWire }
func (DeleteWire) ActionType() string       { return ActionDeleteWire }
func (CreateGroup) ActionType() string      { return ActionCreateGroup }
func (DeleteGroup) ActionType() string      { return ActionDeleteGroup }
func (UpdateProperties) ActionType() string { return ActionUpdateProperties }

func (SetValue) isAction()         {}
func (CreateContact) isAction()    {}
func (DeleteContact) isAction()    {}
func (CreateWire) isAction()       {}
func (DeleteWire) isAction()       {}
func (CreateGroup) isAction()      {}
func (DeleteGroup) isAction()      {}
func (UpdateProperties) isAction() {}

func requireID(field, id string) error {
	if id == "" {
		return ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

func (a SetValue) Validate() error {
	return requireID("contact_id", a.ContactID)
}

func (a CreateContact) Validate() error {
	if err := requireID("contact.id", a.Contact.ID); err != nil {
		return err
	}
	if a.Contact.BlendMode != "" && !a.Contact.BlendMode.Valid() {
		return ValidationError{Field: "contact.blend_mode", Message: fmt.Sprintf("invalid blend mode %q, must be merge or last", a.Contact.BlendMode)}
	}
	return nil
}

func (a DeleteContact) Validate() error {
	return requireID("contact_id", a.ContactID)
}

func (a CreateWire) Validate() error {
	if err := requireID("wire.id", a.Wire.ID); err != nil {
		return err
	}
	if err := requireID("wire.from_id", a.Wire.FromID); err != nil {
		return err
	}
	if err := requireID("wire.to_id", a.Wire.ToID); err != nil {
		return err
	}
	if a.Wire.FromID == a.Wire.ToID {
		return ValidationError{Field: "wire", Message: "a wire cannot connect a contact to itself"}
	}
	return nil
}

func (a DeleteWire) Validate() error {
	return requireID("wire_id", a.WireID)
}

func (a CreateGroup) Validate() error {
	if err := requireID("group.id", a.Group.ID); err != nil {
		return err
	}
	if len(a.Group.ContactIDs) > 0 || len(a.Group.BoundaryContactIDs) > 0 {
		return ValidationError{Field: "group.contact_ids", Message: "members are added with createContact"}
	}
	if a.Group.ParentID == a.Group.ID {
		return ValidationError{Field: "group.parent_id", Message: "a group cannot be its own parent"}
	}
	return nil
}

func (a DeleteGroup) Validate() error {
	return requireID("group_id", a.GroupID)
}

func (a UpdateProperties) Validate() error {
	if err := requireID("target_id", a.TargetID); err != nil {
		return err
	}
	if a.Properties == nil {
		return ValidationError{Field: "properties", Message: "is required"}
	}
	return nil
}

// ActionToIR converts an action into its tagged object form.
func ActionToIR(a Action) IRObject {
	obj := IRObject{"type": IRString(a.ActionType())}
	switch act := a.(type) {
	case SetValue:
		obj["contact_id"] = IRString(act.ContactID)
		obj["value"] = orNull(act.Value)
	case CreateContact:
		obj["contact"] = ContactToIR(act.Contact)
	case DeleteContact:
		obj["contact_id"] = IRString(act.ContactID)
	case CreateWire:
		obj["wire"] = WireToIR(act.Wire)
	case DeleteWire:
		obj["wire_id"] = IRString(act.WireID)
	case CreateGroup:
		obj["group"] = GroupToIR(act.Group)
	case DeleteGroup:
		obj["group_id"] = IRString(act.GroupID)
	case UpdateProperties:
		obj["target_id"] = IRString(act.TargetID)
		obj["properties"] = act.Properties
	}
	return obj
}

// ActionsToIR converts an action set into an array of tagged objects.
func ActionsToIR(set ActionSet) IRArray {
	out := make(IRArray, len(set))
	for i, a := range set {
		out[i] = ActionToIR(a)
	}
	return out
}

// ActionFromIR decodes one tagged action object and validates it.
func ActionFromIR(v IRValue) (Action, error) {
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("action must be an object, got %T", v)
	}
	r := fieldReader{obj: obj}
	kind := r.str("type")

	var a Action
	switch kind {
	case ActionSetValue:
		a = SetValue{ContactID: r.str("contact_id"), Value: r.value("value")}
	case ActionCreateContact:
		c, err := ContactFromIR("", r.object("contact"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		a = CreateContact{Contact: c}
	case ActionDeleteContact:
		a = DeleteContact{ContactID: r.str("contact_id")}
	case ActionCreateWire:
		w, err := WireFromIR("", r.object("wire"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		a = CreateWire{Wire: w}
	case ActionDeleteWire:
		a = DeleteWire{WireID: r.str("wire_id")}
	case ActionCreateGroup:
		g, err := GroupFromIR("", r.object("group"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		a = CreateGroup{Group: g}
	case ActionDeleteGroup:
		a = DeleteGroup{GroupID: r.str("group_id")}
	case ActionUpdateProperties:
		a = UpdateProperties{TargetID: r.str("target_id"), Properties: r.object("properties")}
	case "":
		return nil, ValidationError{Field: "type", Message: "is required"}
	default:
		return nil, ValidationError{Field: "type", Message: fmt.Sprintf("unknown action type %q", kind)}
	}

	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", kind, r.err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return a, nil
}

// ActionsFromIR decodes an action set. A single object is accepted as a
// set of one.
func ActionsFromIR(v IRValue) (ActionSet, error) {
	switch val := v.(type) {
	case IRObject:
		a, err := ActionFromIR(val)
		if err != nil {
			return nil, err
		}
		return ActionSet{a}, nil
	case IRArray:
		set := make(ActionSet, 0, len(val))
		for i, elem := range val {
			a, err := ActionFromIR(elem)
			if err != nil {
				return nil, fmt.Errorf("actions[%d]: %w", i, err)
			}
			set = append(set, a)
		}
		return set, nil
	default:
		return nil, fmt.Errorf("action set must be an array or object, got %T", v)
	}
}
