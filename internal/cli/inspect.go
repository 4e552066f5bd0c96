package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/bassline/internal/engine"
	"github.com/roach88/bassline/internal/ir"
	"github.com/roach88/bassline/internal/primitives"
	"github.com/roach88/bassline/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	DBPath    string
	Label     string
	Values    bool
	Group     string
	Recursive bool
}

// InspectResult is the printed snapshot.
type InspectResult struct {
	Bassline      json.RawMessage `json:"bassline"`
	StructureHash string          `json:"structure_hash"`
	SnapshotHash  string          `json:"snapshot_hash"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [network]",
		Short: "Print a network snapshot",
		Long: `Print a network as canonical Bassline JSON with its hashes.

A network file is loaded into an engine first, so wires seeded from initial
contents have settled. With --db the snapshot is read from a journal
instead (the one labelled "final" unless --label says otherwise).

Examples:
  bassline inspect ./adder.cue --values
  bassline inspect ./net.yaml --group adder --recursive
  bassline inspect --db ./net.db --format json`,
		Args:          cobra.RangeArgs(0, 1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runInspect(cmd, opts, path)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "read the snapshot from a journal database")
	cmd.Flags().StringVar(&opts.Label, "label", FinalLabel, "snapshot label to read with --db")
	cmd.Flags().BoolVar(&opts.Values, "values", false, "include current contact values as content")
	cmd.Flags().StringVar(&opts.Group, "group", "", "limit the snapshot to one group")
	cmd.Flags().BoolVar(&opts.Recursive, "recursive", false, "include descendant groups of --group")

	return cmd
}

func runInspect(cmd *cobra.Command, opts *InspectOptions, path string) error {
	out := opts.formatter(cmd)

	var (
		b   ir.Bassline
		err error
	)
	switch {
	case opts.DBPath != "":
		b, err = snapshotFromDB(cmd, opts)
	case path != "":
		b, err = snapshotFromNetwork(cmd, opts, path)
	default:
		return NewExitError(ExitCommandError, "network argument or --db required")
	}
	if err != nil {
		return err
	}

	data, err := ir.MarshalCanonical(b.ToIR())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode snapshot", err)
	}
	structureHash, err := ir.StructureHash(b)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to hash snapshot", err)
	}
	snapshotHash, err := ir.SnapshotHash(b)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to hash snapshot", err)
	}

	result := InspectResult{Bassline: data, StructureHash: structureHash, SnapshotHash: snapshotHash}
	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "Contacts: %d\n", len(b.Contacts))
		for _, id := range sortedKeys(b.Contacts) {
			c := b.Contacts[id]
			line := fmt.Sprintf("  %s (%s)", id, c.BlendMode)
			if !ir.IsAbsent(c.Content) {
				line += " = " + canonicalText(c.Content)
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintf(w, "Wires: %d\n", len(b.Wires))
		for _, id := range sortedKeys(b.Wires) {
			wire := b.Wires[id]
			arrow := "->"
			if wire.Bidirectional {
				arrow = "<->"
			}
			fmt.Fprintf(w, "  %s: %s %s %s\n", id, wire.FromID, arrow, wire.ToID)
		}
		fmt.Fprintf(w, "Groups: %d\n", len(b.Groups))
		for _, id := range sortedKeys(b.Groups) {
			g := b.Groups[id]
			if g.PrimitiveType != "" {
				fmt.Fprintf(w, "  %s [%s]\n", id, g.PrimitiveType)
			} else {
				fmt.Fprintf(w, "  %s\n", id)
			}
		}
		fmt.Fprintf(w, "Structure hash: %s\n", structureHash)
		fmt.Fprintf(w, "Snapshot hash: %s\n", snapshotHash)
	})
}

func snapshotFromNetwork(cmd *cobra.Command, opts *InspectOptions, path string) (ir.Bassline, error) {
	cfg, logger, err := opts.Settings(cmd)
	if err != nil {
		return ir.Bassline{}, err
	}
	b, err := loadNetwork(path)
	if err != nil {
		return ir.Bassline{}, loadFailure(opts.formatter(cmd), err)
	}
	e, err := engine.New(b, append(cfg.EngineOptions(),
		engine.WithLogger(logger),
		engine.WithPrimitives(primitives.All()...),
	)...)
	if err != nil {
		return ir.Bassline{}, WrapExitError(ExitFailure, "failed to build engine", err)
	}
	snap, err := e.GetBassline(engine.SnapshotOptions{
		IncludeValues: opts.Values,
		GroupID:       opts.Group,
		Recursive:     opts.Recursive,
	})
	if err != nil {
		return ir.Bassline{}, WrapExitError(ExitFailure, "failed to snapshot", err)
	}
	return snap, nil
}

func snapshotFromDB(cmd *cobra.Command, opts *InspectOptions) (ir.Bassline, error) {
	s, err := openExisting(opts.DBPath)
	if err != nil {
		return ir.Bassline{}, err
	}
	defer s.Close()

	snap, err := s.LatestSnapshot(cmd.Context(), opts.Label)
	if err != nil {
		return ir.Bassline{}, WrapExitError(ExitFailure, fmt.Sprintf("snapshot %q", opts.Label), err)
	}
	b := snap.Bassline
	if !opts.Values {
		b = b.WithoutContent()
	}
	if opts.Group != "" {
		if _, ok := b.Groups[opts.Group]; !ok {
			return ir.Bassline{}, NewExitError(ExitFailure, fmt.Sprintf("unknown group %q", opts.Group))
		}
		b = b.Scope(opts.Group, opts.Recursive)
	}
	return b, nil
}

// openExisting opens a journal database that must already exist. Opening a
// missing path would create an empty database.
func openExisting(path string) (*store.Store, error) {
	if !fileExists(path) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return s, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
