package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/bassline/internal/ir"
)

// Engine is a live propagation network.
//
// It owns the reified structure, the contact value table, one FIFO work
// queue and a primitive registry. Every public method drains the queue
// before returning, so callers always observe a local fixed point.
//
// Thread-safety model: none. Every public call is a whole-network critical
// section; hosts that share an Engine between goroutines must serialize
// access themselves.
//
// INVARIANTS:
//   - IDs are unique across contacts, wires and groups
//   - Wire endpoints exist
//   - A contact's blend mode never changes after creation
//   - A group's boundary set is a subset of its members
//   - Every group owns a properties contact
type Engine struct {
	network ir.Bassline
	values  map[string]ir.IRValue

	// wiresOf indexes wire IDs by endpoint; sourceCount counts the wires
	// along which a contact propagates outward.
	wiresOf     map[string]map[string]struct{}
	sourceCount map[string]int

	queue    *workQueue
	draining bool
	derived  bool // processing a mirror-pushed item

	registry *Registry
	bindings map[string]string // group ID -> instance-bound primitive name
	mirrors  map[string]*mirror
	inject   map[string]*injector

	listeners       listenerList[Listener]
	actionListeners listenerList[ActionListener]
	nesting         int

	clock          *Clock
	ids            IDGenerator
	throwOnMissing bool
	maxSteps       int
	logger         *slog.Logger
	parent         *Engine
	primitives     []Primitive
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithThrowOnMissingContact makes a propagation into a contact that no
// longer exists a hard failure instead of a logged no-op.
func WithThrowOnMissingContact(enabled bool) EngineOption {
	return func(e *Engine) {
		e.throwOnMissing = enabled
	}
}

// WithMaxSteps bounds the queue entries processed by one drain.
//
// Default: 0 (unlimited).
// Use WithMaxSteps(10) for testing quota enforcement.
func WithMaxSteps(maxSteps int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithIDGenerator sets the generator for engine-created IDs.
// Default: UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = gen
	}
}

// WithClock sets the logical clock. Used for replay to resume from a
// specific generation.
func WithClock(clock *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithParent makes primitive lookups fall back to parent's registry.
func WithParent(parent *Engine) EngineOption {
	return func(e *Engine) {
		e.parent = parent
	}
}

// WithPrimitives registers primitives before the initial network loads, so
// gadgets in the initial network can fire during construction.
func WithPrimitives(prims ...Primitive) EngineOption {
	return func(e *Engine) {
		e.primitives = append(e.primitives, prims...)
	}
}

// WithEventListener subscribes fn before the initial network loads, so it
// also observes the events raised by wire seeding during construction.
func WithEventListener(fn Listener) EngineOption {
	return func(e *Engine) {
		e.listeners.add(fn)
	}
}

// New builds an engine from an initial network.
//
// Contents load silently (no events); afterwards every wire whose source
// holds a value is seeded once and the queue is drained. Groups tagged with
// the mirror primitive type get a mirror bound to them.
func New(initial ir.Bassline, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		network:     ir.NewBassline(),
		values:      make(map[string]ir.IRValue),
		wiresOf:     make(map[string]map[string]struct{}),
		sourceCount: make(map[string]int),
		queue:       newWorkQueue(),
		bindings:    make(map[string]string),
		mirrors:     make(map[string]*mirror),
		inject:      make(map[string]*injector),
		clock:       NewClock(),
		ids:         UUIDv7Generator{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	var parentRegistry *Registry
	if e.parent != nil {
		parentRegistry = e.parent.registry
	}
	e.registry = NewRegistry(parentRegistry)
	for _, p := range e.primitives {
		if err := e.registry.Register(p); err != nil {
			return nil, err
		}
	}
	e.primitives = nil

	e.enter()
	defer e.exit()

	if err := e.load(initial); err != nil {
		return nil, err
	}

	e.logger.Info("engine started",
		"contacts", len(e.network.Contacts),
		"wires", len(e.network.Wires),
		"groups", len(e.network.Groups),
	)
	return e, nil
}

// load installs the initial network: structure and contents silently, then
// mirrors, then wire seeding.
func (e *Engine) load(initial ir.Bassline) error {
	b := initial.Clone()
	for id, g := range b.Groups {
		pid := ir.PropertiesContactID(id)
		if _, ok := b.Contacts[pid]; !ok {
			b.Contacts[pid] = propertiesContact(g)
			g.ContactIDs = append(g.ContactIDs, pid)
			g.BoundaryContactIDs = append(g.BoundaryContactIDs, pid)
			b.Groups[id] = g
		}
	}
	if errs := b.Validate(); len(errs) > 0 {
		return &RuntimeError{
			Code:    ErrCodeInvalidNetwork,
			Message: errs[0].Error(),
			Details: map[string]string{"errors": fmt.Sprintf("%d", len(errs))},
		}
	}

	added, err := e.addStructure(b)
	if err != nil {
		return err
	}
	if err := e.bindGadgets(added.groups); err != nil {
		return err
	}
	e.seedWires(added.wires)
	return e.processQueue()
}

// enter and exit bracket every public call; nesting tells record() whether
// an action came from the outermost caller.
func (e *Engine) enter() {
	e.nesting++
}

func (e *Engine) exit() {
	e.nesting--
}

// RegisterPrimitive adds a primitive to the engine's registry.
func (e *Engine) RegisterPrimitive(p Primitive) error {
	return e.registry.Register(p)
}

// Registry returns the engine's primitive registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// GetValue returns a contact's current content.
func (e *Engine) GetValue(contactID string) (ir.IRValue, bool) {
	v, ok := e.values[contactID]
	return v, ok
}

// Contact returns the structural record of a contact (without content).
func (e *Engine) Contact(id string) (ir.Contact, bool) {
	c, ok := e.network.Contacts[id]
	return c, ok
}

// Group returns the structural record of a group.
func (e *Engine) Group(id string) (ir.Group, bool) {
	g, ok := e.network.Groups[id]
	return g, ok
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// QueueLen returns the number of pending queue entries. Outside of a call
// it is always zero.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// MaxSteps returns the configured per-drain step quota (0 = unlimited).
func (e *Engine) MaxSteps() int {
	return e.maxSteps
}

// WaitForConvergence returns once the queue is empty. Draining is eager, so
// this only reports context cancellation; it exists for hosts that treat
// convergence as an explicit suspension point.
func (e *Engine) WaitForConvergence(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.queue.Len() > 0 {
		return e.processQueue()
	}
	return nil
}
