package store

import (
	"context"
	"fmt"

	"github.com/roach88/bassline/internal/ir"
)

// AppendAction journals an applied action and returns its sequence number.
// The action is serialized to canonical JSON per RFC 8785.
func (s *Store) AppendAction(ctx context.Context, a ir.Action) (int64, error) {
	payload, err := marshalPayload(ir.ActionToIR(a))
	if err != nil {
		return 0, fmt.Errorf("append action: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (kind, payload, format_version)
		VALUES (?, ?, ?)
	`,
		a.ActionType(),
		payload,
		ir.FormatVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("append action: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append action: last insert id: %w", err)
	}
	return seq, nil
}

// AppendEvent journals an event emitted after the action afterAction
// (0 when no action was journaled yet) and returns its sequence number.
func (s *Store) AppendEvent(ctx context.Context, afterAction int64, ev ir.Event) (int64, error) {
	payload, err := marshalPayload(ir.EventToIR(ev))
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (after_action, kind, payload)
		VALUES (?, ?, ?)
	`,
		afterAction,
		ev.EventType(),
		payload,
	)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event: last insert id: %w", err)
	}
	return seq, nil
}

// SaveSnapshot stores a labelled Bassline taken after action seq and
// returns its hash. Saving an identical snapshot under the same label
// again is a no-op (ON CONFLICT DO NOTHING).
func (s *Store) SaveSnapshot(ctx context.Context, label string, seq int64, b ir.Bassline) (string, error) {
	hash, err := ir.SnapshotHash(b)
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	payload, err := marshalPayload(b.ToIR())
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (label, seq, hash, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(label, hash) DO NOTHING
	`,
		label,
		seq,
		hash,
		payload,
	)
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return hash, nil
}
