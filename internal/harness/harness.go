package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/bassline/internal/engine"
	"github.com/roach88/bassline/internal/ir"
	"github.com/roach88/bassline/internal/primitives"
	"github.com/roach88/bassline/internal/store"
)

// Option configures a run.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	primitives []engine.Primitive
}

// WithLogger sets the logger handed to the engine. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithPrimitives registers extra primitives alongside the standard set.
func WithPrimitives(prims ...engine.Primitive) Option {
	return func(c *config) {
		c.primitives = append(c.primitives, prims...)
	}
}

// Harness is one scenario execution in progress.
type Harness struct {
	scenario *Scenario
	engine   *engine.Engine
	result   *Result
	step     int
	logger   *slog.Logger
}

// Run executes a scenario against a fresh engine.
//
// An error is returned only when the scenario cannot run at all (the
// network fails to load or the engine rejects it). Failed steps and
// expectations are reported in the Result.
//
// Execution flow:
//  1. Load the network and build a deterministic engine
//  2. Journal into an in-memory store when replay is requested
//  3. Execute steps in order, checking expect_error
//  4. Evaluate expectations against the final values and trace
//  5. Restore the journal and compare values when replay is requested
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	network, err := scenario.LoadNetwork()
	if err != nil {
		return nil, fmt.Errorf("failed to load network: %w", err)
	}

	h := &Harness{
		scenario: scenario,
		result:   NewResult(),
		step:     -1,
		logger:   cfg.logger,
	}

	// The listener must see events raised while the initial network loads,
	// so it is attached through a constructor option.
	engineOpts := append(deterministicOptions(cfg, scenario), observe(h))
	eng, err := engine.New(network, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	h.engine = eng

	ctx := context.Background()
	var (
		st  *store.Store
		rec *store.Recorder
	)
	if scenario.Replay {
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		rec, err = store.Attach(ctx, st, eng, network, store.WithRecorderLogger(cfg.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to attach recorder: %w", err)
		}
		defer rec.Detach()
	}

	for i, step := range scenario.Steps {
		h.step = i
		h.executeStep(i, step)
	}

	h.result.Values = eng.Values()
	for _, msg := range EvaluateExpect(h.result, scenario.Expect) {
		h.result.AddError(msg)
	}

	if scenario.Replay {
		if err := rec.Err(); err != nil {
			h.result.AddError(fmt.Sprintf("journal: %v", err))
		}
		restored, _, err := store.Restore(ctx, st, deterministicOptions(cfg, scenario)...)
		if err != nil {
			h.result.AddError(fmt.Sprintf("replay: %v", err))
		} else {
			for _, msg := range compareValues(h.result.Values, restored.Values()) {
				h.result.AddError("replay: " + msg)
			}
		}
	}

	return h.result, nil
}

func deterministicOptions(cfg config, s *Scenario) []engine.EngineOption {
	return []engine.EngineOption{
		engine.WithLogger(cfg.logger),
		engine.WithIDGenerator(engine.NewSequenceGenerator("gen")),
		engine.WithClock(engine.NewClock()),
		engine.WithMaxSteps(s.MaxSteps),
		engine.WithPrimitives(append(primitives.All(), cfg.primitives...)...),
	}
}

// observe subscribes h to the engine being built. Options run before the
// initial network loads.
func observe(h *Harness) engine.EngineOption {
	return engine.WithEventListener(func(ev ir.Event) {
		h.result.Trace = append(h.result.Trace, TraceEvent{Step: h.step, Event: ev})
	})
}

func (h *Harness) executeStep(i int, step Step) {
	err := h.apply(step)

	switch {
	case step.ExpectError == "" && err != nil:
		h.result.AddError(fmt.Sprintf("steps[%d] (%s): %v", i, step.Kind(), err))
	case step.ExpectError != "" && err == nil:
		h.result.AddError(fmt.Sprintf("steps[%d] (%s): expected error %s, got none", i, step.Kind(), step.ExpectError))
	case step.ExpectError != "" && !engine.IsCode(err, engine.RuntimeErrorCode(step.ExpectError)):
		h.result.AddError(fmt.Sprintf("steps[%d] (%s): expected error %s, got %v", i, step.Kind(), step.ExpectError, err))
	}

	h.logger.Debug("scenario step completed",
		"scenario", h.scenario.Name,
		"step", i,
		"kind", step.Kind(),
		"error", err,
	)
}

func (h *Harness) apply(step Step) error {
	switch {
	case step.Set != nil:
		v, err := ir.FromGo(step.Set.Value)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		return h.engine.SetValue(step.Set.Contact, v)
	case step.Stream != nil:
		v, err := ir.FromGo(step.Stream.Value)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		return h.engine.SendStream(step.Stream.Contact, v)
	default:
		raw, err := ir.FromGo(step.Actions)
		if err != nil {
			return fmt.Errorf("actions: %w", err)
		}
		set, err := ir.ActionsFromIR(raw)
		if err != nil {
			return &engine.RuntimeError{Code: engine.ErrCodeMalformedAction, Message: err.Error()}
		}
		return h.engine.ApplyActions(set)
	}
}
