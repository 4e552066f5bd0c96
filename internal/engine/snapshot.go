package engine

import (
	"github.com/roach88/bassline/internal/ir"
)

// SnapshotOptions selects what GetBassline returns.
type SnapshotOptions struct {
	// IncludeValues copies current contact values into Content.
	IncludeValues bool

	// GroupID limits the snapshot to one group's scope. Empty means the
	// whole network.
	GroupID string

	// Recursive includes descendant groups of GroupID.
	Recursive bool
}

// GetBassline returns a copy of the live network.
func (e *Engine) GetBassline(opts SnapshotOptions) (ir.Bassline, error) {
	if opts.GroupID != "" {
		if _, ok := e.network.Groups[opts.GroupID]; !ok {
			return ir.Bassline{}, errUnknownGroup(opts.GroupID)
		}
	}
	return e.snapshot(opts), nil
}

func (e *Engine) snapshot(opts SnapshotOptions) ir.Bassline {
	b := e.network.Clone()
	if opts.IncludeValues {
		for id, c := range b.Contacts {
			if v, ok := e.values[id]; ok {
				c.Content = v
				b.Contacts[id] = c
			}
		}
	}
	if opts.GroupID == "" {
		return b
	}
	return b.Scope(opts.GroupID, opts.Recursive)
}

// Values returns a copy of the contact value table.
func (e *Engine) Values() map[string]ir.IRValue {
	out := make(map[string]ir.IRValue, len(e.values))
	for id, v := range e.values {
		out[id] = v
	}
	return out
}
