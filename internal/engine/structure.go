package engine

import (
	"github.com/roach88/bassline/internal/ir"
)

// StructureChanges is a bulk edit: Remove is applied first, then Add.
type StructureChanges struct {
	Remove []string
	Add    ir.Bassline
}

func (c StructureChanges) empty() bool {
	return len(c.Remove) == 0 &&
		len(c.Add.Contacts) == 0 && len(c.Add.Wires) == 0 && len(c.Add.Groups) == 0
}

// ApplyStructureChanges removes and adds structure in one step.
//
// Unknown IDs in Remove are ignored. Additions are validated against the
// network as it stands after the removals; on failure nothing is added but
// the removals stay. New wires whose source already holds a value are seeded,
// and new mirror groups get a mirror bound to them.
func (e *Engine) ApplyStructureChanges(changes StructureChanges) error {
	e.enter()
	defer e.exit()
	return e.applyStructureChanges(changes)
}

func (e *Engine) applyStructureChanges(changes StructureChanges) error {
	if changes.empty() {
		return nil
	}

	removed := e.removeIDs(changes.Remove)

	added, err := e.addStructure(changes.Add)
	if err != nil {
		if len(removed) > 0 {
			e.emit(ir.StructureChanged{Removed: removed})
		}
		return err
	}

	if len(removed) > 0 || len(added.all()) > 0 {
		e.emit(ir.StructureChanged{Added: added.all(), Removed: removed})
	}
	e.logger.Debug("structure changed",
		"added", len(added.all()),
		"removed", len(removed),
	)

	e.refreshAllMirrors()
	if err := e.bindGadgets(added.groups); err != nil {
		return err
	}
	e.seedWires(added.wires)
	return e.processQueue()
}
