package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/bassline/internal/engine"
	"github.com/roach88/bassline/internal/ir"
)

// InitialLabel is the snapshot label holding the network a journal starts
// from.
const InitialLabel = "initial"

// Recorder journals an engine's applied actions and, optionally, its
// events.
//
// Engine listeners cannot return errors, so write failures are logged at
// Error level and collected; Err reports them.
type Recorder struct {
	store      *Store
	ctx        context.Context
	logger     *slog.Logger
	lastAction int64
	errs       []error
	detach     []func()
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderConfig)

type recorderConfig struct {
	events bool
	logger *slog.Logger
}

// WithEvents journals every engine event as well as actions.
func WithEvents(enabled bool) RecorderOption {
	return func(c *recorderConfig) {
		c.events = enabled
	}
}

// WithRecorderLogger sets the logger for write failures.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(c *recorderConfig) {
		c.logger = logger
	}
}

// Attach starts journaling e into s. If the journal has no initial
// snapshot yet, initial is saved as one, so the journal can be replayed
// without the original network file.
func Attach(ctx context.Context, s *Store, e *engine.Engine, initial ir.Bassline, opts ...RecorderOption) (*Recorder, error) {
	cfg := recorderConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	last, err := s.LastActionSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("attach recorder: %w", err)
	}
	if _, err := s.LatestSnapshot(ctx, InitialLabel); errors.Is(err, ErrNoSnapshot) {
		if _, err := s.SaveSnapshot(ctx, InitialLabel, 0, initial); err != nil {
			return nil, fmt.Errorf("attach recorder: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("attach recorder: %w", err)
	}

	r := &Recorder{store: s, ctx: ctx, logger: cfg.logger, lastAction: last}
	r.detach = append(r.detach, e.OnAction(r.recordAction))
	if cfg.events {
		r.detach = append(r.detach, e.OnEvent(r.recordEvent))
	}
	return r, nil
}

func (r *Recorder) recordAction(a ir.Action) {
	seq, err := r.store.AppendAction(r.ctx, a)
	if err != nil {
		r.fail(err, "action", a.ActionType())
		return
	}
	r.lastAction = seq
}

func (r *Recorder) recordEvent(ev ir.Event) {
	if _, err := r.store.AppendEvent(r.ctx, r.lastAction, ev); err != nil {
		r.fail(err, "event", ev.EventType())
	}
}

func (r *Recorder) fail(err error, kind, name string) {
	r.logger.Error("journal write failed", "kind", kind, "type", name, "error", err)
	r.errs = append(r.errs, err)
}

// LastAction returns the seq of the last action journaled.
func (r *Recorder) LastAction() int64 {
	return r.lastAction
}

// Snapshot saves the engine's current network (with values) under label.
func (r *Recorder) Snapshot(label string, e *engine.Engine) (string, error) {
	b, err := e.GetBassline(engine.SnapshotOptions{IncludeValues: true})
	if err != nil {
		return "", err
	}
	return r.store.SaveSnapshot(r.ctx, label, r.lastAction, b)
}

// Err returns every write failure seen so far, joined.
func (r *Recorder) Err() error {
	return errors.Join(r.errs...)
}

// Detach stops journaling.
func (r *Recorder) Detach() {
	for _, fn := range r.detach {
		fn()
	}
	r.detach = nil
}
