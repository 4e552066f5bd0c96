package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/bassline/internal/ir"
)

// ActionRecord is one journaled action.
type ActionRecord struct {
	Seq    int64
	Action ir.Action
}

// EventRecord is one journaled event.
type EventRecord struct {
	Seq         int64
	AfterAction int64
	Event       ir.Event
}

// Snapshot is a stored Bassline.
type Snapshot struct {
	Label    string
	Seq      int64
	Hash     string
	Bassline ir.Bassline
}

// ErrNoSnapshot is returned when no snapshot carries the requested label.
var ErrNoSnapshot = errors.New("snapshot not found")

// ReadActions returns the actions journaled after afterSeq, ordered by seq.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadActions(ctx context.Context, afterSeq int64) ([]ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, payload
		FROM actions
		WHERE seq > ?
		ORDER BY seq ASC
	`, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	records := []ActionRecord{}
	for rows.Next() {
		var (
			rec     ActionRecord
			payload string
		)
		if err := rows.Scan(&rec.Seq, &payload); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if rec.Action, err = unmarshalAction(payload); err != nil {
			return nil, fmt.Errorf("action %d: %w", rec.Seq, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return records, nil
}

// ReadEvents returns journaled events ordered by seq. An empty kind returns
// every kind.
func (s *Store) ReadEvents(ctx context.Context, kind string) ([]EventRecord, error) {
	query := `
		SELECT seq, after_action, payload
		FROM events
		ORDER BY seq ASC
	`
	args := []any{}
	if kind != "" {
		query = `
			SELECT seq, after_action, payload
			FROM events
			WHERE kind = ?
			ORDER BY seq ASC
		`
		args = append(args, kind)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []EventRecord{}
	for rows.Next() {
		var (
			rec     EventRecord
			payload string
		)
		if err := rows.Scan(&rec.Seq, &rec.AfterAction, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if rec.Event, err = unmarshalEvent(payload); err != nil {
			return nil, fmt.Errorf("event %d: %w", rec.Seq, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

// LastActionSeq returns the highest journaled action seq, 0 for an empty
// journal.
func (s *Store) LastActionSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM actions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last action seq: %w", err)
	}
	return seq.Int64, nil
}

// LatestSnapshot returns the most recently saved snapshot with the label.
// Returns ErrNoSnapshot if none exists.
func (s *Store) LatestSnapshot(ctx context.Context, label string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT label, seq, hash, payload
		FROM snapshots
		WHERE label = ?
		ORDER BY id DESC
		LIMIT 1
	`, label)

	var (
		snap    Snapshot
		payload string
	)
	if err := row.Scan(&snap.Label, &snap.Seq, &snap.Hash, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, fmt.Errorf("%w: %q", ErrNoSnapshot, label)
		}
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	b, err := unmarshalBassline(payload)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %q: %w", label, err)
	}
	snap.Bassline = b
	return snap, nil
}

// Counts reports the number of journaled actions, events and snapshots.
type Counts struct {
	Actions   int
	Events    int
	Snapshots int
}

// Counts returns the size of each journal table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM actions),
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM snapshots)
	`).Scan(&c.Actions, &c.Events, &c.Snapshots)
	if err != nil {
		return Counts{}, fmt.Errorf("counts: %w", err)
	}
	return c, nil
}
