package engine

import (
	"fmt"

	"github.com/roach88/bassline/internal/ir"
)

// Listener receives engine events synchronously, in emission order.
type Listener func(ir.Event)

// ActionListener receives every action applied through the public API,
// after it succeeded. Writes made by gadgets are not reported.
type ActionListener func(ir.Action)

type listenerEntry[F any] struct {
	fn     F
	active bool
}

// listenerList is an ordered subscriber list. Dispatch works on a snapshot
// so listeners may subscribe or unsubscribe while being called.
type listenerList[F any] struct {
	entries []*listenerEntry[F]
}

func (l *listenerList[F]) add(fn F) func() {
	entry := &listenerEntry[F]{fn: fn, active: true}
	l.entries = append(l.entries, entry)
	return func() {
		if !entry.active {
			return
		}
		entry.active = false
		for i, e := range l.entries {
			if e == entry {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				break
			}
		}
	}
}

func (l *listenerList[F]) snapshot() []*listenerEntry[F] {
	out := make([]*listenerEntry[F], len(l.entries))
	copy(out, l.entries)
	return out
}

// OnEvent subscribes a listener to the event stream and returns its
// unsubscribe function. A panicking listener is logged and skipped; it
// never aborts other listeners or the engine.
func (e *Engine) OnEvent(fn Listener) func() {
	return e.listeners.add(fn)
}

// OnAction subscribes to applied actions. Used by the store recorder.
func (e *Engine) OnAction(fn ActionListener) func() {
	return e.actionListeners.add(fn)
}

func (e *Engine) emit(ev ir.Event) {
	for _, entry := range e.listeners.snapshot() {
		if !entry.active {
			continue
		}
		e.dispatch(entry.fn, ev)
	}
}

func (e *Engine) dispatch(fn Listener, ev ir.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("event listener panicked",
				"event", ev.EventType(),
				"panic", fmt.Sprint(r),
			)
		}
	}()
	fn(ev)
}

// record reports a successfully applied action, but only for the outermost
// public call: actions applied by gadgets replay on their own.
func (e *Engine) record(a ir.Action) {
	if e.nesting != 1 {
		return
	}
	for _, entry := range e.actionListeners.snapshot() {
		if !entry.active {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Warn("action listener panicked",
						"action", a.ActionType(),
						"panic", fmt.Sprint(r),
					)
				}
			}()
			entry.fn(a)
		}()
	}
}
