package store

import (
	"context"
	"fmt"

	"github.com/roach88/bassline/internal/engine"
	"github.com/roach88/bassline/internal/ir"
)

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Applied int   // actions applied
	Failed  int   // actions that returned an error
	LastSeq int64 // seq of the last action read
}

// Replay applies every action journaled after afterSeq to e, in order.
//
// An action that fails is counted and skipped. The recorder journals only
// successful actions, so a failure means the journal is being replayed over
// a different network. The first failure is returned once every action has
// been tried.
func Replay(ctx context.Context, s *Store, e *engine.Engine, afterSeq int64) (ReplayResult, error) {
	records, err := s.ReadActions(ctx, afterSeq)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	var (
		res   = ReplayResult{LastSeq: afterSeq}
		first error
	)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.LastSeq = rec.Seq
		if err := e.ApplyAction(rec.Action); err != nil {
			res.Failed++
			if first == nil {
				first = fmt.Errorf("replay action %d (%s): %w", rec.Seq, rec.Action.ActionType(), err)
			}
			continue
		}
		res.Applied++
	}
	return res, first
}

// Restore builds an engine from a journal: the initial snapshot, then
// every journaled action.
func Restore(ctx context.Context, s *Store, opts ...engine.EngineOption) (*engine.Engine, ReplayResult, error) {
	snap, err := s.LatestSnapshot(ctx, InitialLabel)
	if err != nil {
		return nil, ReplayResult{}, fmt.Errorf("restore: %w", err)
	}
	return RestoreFrom(ctx, s, snap.Bassline, 0, opts...)
}

// RestoreFrom builds an engine from b and replays the actions journaled
// after seq. Used with a labelled snapshot, b and seq come from it.
func RestoreFrom(ctx context.Context, s *Store, b ir.Bassline, seq int64, opts ...engine.EngineOption) (*engine.Engine, ReplayResult, error) {
	e, err := engine.New(b, opts...)
	if err != nil {
		return nil, ReplayResult{}, fmt.Errorf("restore: %w", err)
	}
	res, err := Replay(ctx, s, e, seq)
	return e, res, err
}
