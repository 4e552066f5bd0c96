package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/bassline/internal/engine"
	"github.com/roach88/bassline/internal/ir"
	"github.com/roach88/bassline/internal/primitives"
	"github.com/roach88/bassline/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	DBPath string
}

// ReplayReport is the outcome of replaying a journal.
type ReplayReport struct {
	Actions       int      `json:"actions"`
	Events        int      `json:"events"`
	Snapshots     int      `json:"snapshots"`
	Applied       int      `json:"applied"`
	Failed        int      `json:"failed"`
	LastSeq       int64    `json:"last_seq"`
	Deterministic bool     `json:"deterministic"`
	Hash          string   `json:"hash"`
	MatchesFinal  *bool    `json:"matches_final,omitempty"`
	Mismatches    []string `json:"mismatches,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild a network from its journal",
		Long: `Rebuild a network from the initial snapshot and the journaled actions,
then check the result.

The journal is replayed twice; both runs must produce the same snapshot
hash. If the journal holds a "final" snapshot, every contact value in it
must match the replayed value. Replays draw engine-created IDs from a
sequence, so networks that inject structure only match a final snapshot
recorded with the same generator.

Exit codes:
  0 - Replay is deterministic and matches the final snapshot
  1 - Mismatch, or journaled actions failed to apply
  2 - Command error (database missing, unreadable)

Examples:
  bassline replay --db ./net.db
  bassline replay --db ./net.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "journal database (defaults to store.path from config)")

	return cmd
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions) error {
	out := opts.formatter(cmd)
	cfg, logger, err := opts.Settings(cmd)
	if err != nil {
		return err
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "--db is required")
	}

	s, err := openExisting(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read database", err)
	}
	report := ReplayReport{Actions: counts.Actions, Events: counts.Events, Snapshots: counts.Snapshots}

	// Fresh sequence generators give both runs the same engine-created IDs.
	restore := func() (*engine.Engine, store.ReplayResult, error) {
		return store.Restore(ctx, s, append(cfg.EngineOptions(),
			engine.WithLogger(logger),
			engine.WithPrimitives(primitives.All()...),
			engine.WithIDGenerator(engine.NewSequenceGenerator("replay")),
		)...)
	}

	first, res, err := restore()
	if first == nil {
		return WrapExitError(ExitFailure, "replay failed", err)
	}
	if err != nil {
		logger.Warn("journaled action failed", "error", err)
	}
	report.Applied, report.Failed, report.LastSeq = res.Applied, res.Failed, res.LastSeq

	second, _, _ := restore()
	if second == nil {
		return NewExitError(ExitFailure, "second replay failed")
	}
	report.Hash, err = valueHash(first)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to hash replay", err)
	}
	again, err := valueHash(second)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to hash replay", err)
	}
	report.Deterministic = report.Hash == again

	final, err := s.LatestSnapshot(ctx, FinalLabel)
	switch {
	case err == nil:
		report.Mismatches = compareFinal(final.Bassline, first.Values())
		match := len(report.Mismatches) == 0
		report.MatchesFinal = &match
	case !errors.Is(err, store.ErrNoSnapshot):
		return WrapExitError(ExitCommandError, "failed to read final snapshot", err)
	}

	if err := out.Success(report, func(w io.Writer) { writeReplayReport(w, report) }); err != nil {
		return err
	}

	switch {
	case !report.Deterministic:
		return NewExitError(ExitFailure, "replay is not deterministic")
	case report.MatchesFinal != nil && !*report.MatchesFinal:
		return NewExitError(ExitFailure, "replay does not match final snapshot")
	case report.Failed > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("%d journaled actions failed", report.Failed))
	}
	return nil
}

func valueHash(e *engine.Engine) (string, error) {
	b, err := e.GetBassline(engine.SnapshotOptions{IncludeValues: true})
	if err != nil {
		return "", err
	}
	return ir.SnapshotHash(b)
}

// compareFinal checks every contact content recorded in the final snapshot
// against the replayed values.
func compareFinal(final ir.Bassline, values map[string]ir.IRValue) []string {
	var mismatches []string
	for _, id := range sortedKeys(final.Contacts) {
		want := final.Contacts[id].Content
		got, ok := values[id]
		switch {
		case ir.IsAbsent(want) && !ok:
		case !ok:
			mismatches = append(mismatches, fmt.Sprintf("%s: missing, want %s", id, canonicalText(want)))
		case ir.IsAbsent(want):
			mismatches = append(mismatches, fmt.Sprintf("%s: unexpected value %s", id, canonicalText(got)))
		case !ir.Equal(want, got):
			mismatches = append(mismatches, fmt.Sprintf("%s: got %s, want %s", id, canonicalText(got), canonicalText(want)))
		}
	}
	return mismatches
}

func writeReplayReport(w io.Writer, r ReplayReport) {
	fmt.Fprintf(w, "Journal: %d actions, %d events, %d snapshots\n", r.Actions, r.Events, r.Snapshots)
	fmt.Fprintf(w, "Replayed: %d applied, %d failed (last seq %d)\n", r.Applied, r.Failed, r.LastSeq)
	if r.Deterministic {
		fmt.Fprintln(w, "✓ deterministic")
	} else {
		fmt.Fprintln(w, "✗ replays disagree")
	}
	if r.MatchesFinal != nil {
		if *r.MatchesFinal {
			fmt.Fprintln(w, "✓ matches final snapshot")
		} else {
			fmt.Fprintln(w, "✗ differs from final snapshot")
			for _, m := range r.Mismatches {
				fmt.Fprintf(w, "  %s\n", m)
			}
		}
	}
	fmt.Fprintf(w, "Hash: %s\n", r.Hash)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
