package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/bassline/internal/config"
	"github.com/roach88/bassline/internal/engine"
	"github.com/roach88/bassline/internal/ir"
	"github.com/roach88/bassline/internal/primitives"
	"github.com/roach88/bassline/internal/store"
)

// FinalLabel names the snapshot saved at the end of every journaled run.
const FinalLabel = "final"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ActionsFile string
	Sets        []string
	Streams     []string
	DBPath      string
	Events      bool

	// IDGenerator overrides the engine's ID source. Tests set a sequence
	// generator so injected IDs are predictable.
	IDGenerator engine.IDGenerator
}

// RunResult is the outcome of a run.
type RunResult struct {
	Values       map[string]any `json:"values"`
	Events       map[string]int `json:"events"`
	Applied      int            `json:"applied"`
	Restored     bool           `json:"restored,omitempty"`
	SnapshotHash string         `json:"snapshot_hash,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [network]",
		Short: "Run a network to quiescence",
		Long: `Load a network, apply value writes and action files, and print the
settled contact values.

With --db every action is journaled to a SQLite database. If the database
already holds a journal the engine is rebuilt from it and the network
argument may be omitted.

Writes are applied in order: every --set, then every --stream, then the
actions file. Values are parsed as JSON; anything else is a string.

Examples:
  bassline run ./adder.cue --set adder.a=2 --set adder.b=3
  bassline run ./net.yaml --actions ./grow.yaml --db ./net.db
  bassline run ./log.yaml --stream log=first --stream log=second
  bassline run --db ./net.db --set x=10`,
		Args:          cobra.RangeArgs(0, 1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runNetwork(cmd.Context(), cmd, opts, path)
		},
	}

	cmd.Flags().StringVar(&opts.ActionsFile, "actions", "", "YAML or JSON file holding an action list")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "write a value to a contact (contact=value, repeatable)")
	cmd.Flags().StringArrayVar(&opts.Streams, "stream", nil, "send a value into a last-mode contact (contact=value, repeatable)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "journal database (defaults to store.path from config)")
	cmd.Flags().BoolVar(&opts.Events, "events", false, "journal events as well as actions")

	return cmd
}

func runNetwork(ctx context.Context, cmd *cobra.Command, opts *RunOptions, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)
	cfg, logger, err := opts.Settings(cmd)
	if err != nil {
		return err
	}

	sets, err := parseAssignments(opts.Sets)
	if err != nil {
		out.Error(ErrCodeBadArgument, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --set", err)
	}
	streams, err := parseAssignments(opts.Streams)
	if err != nil {
		out.Error(ErrCodeBadArgument, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --stream", err)
	}

	var actions ir.ActionSet
	if opts.ActionsFile != "" {
		if actions, err = loadActions(opts.ActionsFile); err != nil {
			return loadFailure(out, err)
		}
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}

	sess, err := openSession(ctx, cmd, opts, cfg, logger, path, dbPath)
	if err != nil {
		return err
	}
	defer sess.close()

	counts := make(map[string]int)
	sess.engine.OnEvent(func(ev ir.Event) { counts[ev.EventType()]++ })

	result := RunResult{Events: counts, Restored: sess.restored}
	for _, a := range sets {
		if err := sess.engine.SetValue(a.ContactID, a.Value); err != nil {
			out.Error(ErrCodeRuntime, err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("set %s failed", a.ContactID), err)
		}
		result.Applied++
	}
	for _, a := range streams {
		if err := sess.engine.SendStream(a.ContactID, a.Value); err != nil {
			out.Error(ErrCodeRuntime, err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("stream %s failed", a.ContactID), err)
		}
		result.Applied++
	}
	if err := sess.engine.ApplyActions(actions); err != nil {
		out.Error(ErrCodeRuntime, err.Error(), nil)
		return WrapExitError(ExitFailure, "actions failed", err)
	}
	result.Applied += len(actions)

	if sess.recorder != nil {
		hash, err := sess.recorder.Snapshot(FinalLabel, sess.engine)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to save snapshot", err)
		}
		if err := sess.recorder.Err(); err != nil {
			return WrapExitError(ExitFailure, "journal write failed", err)
		}
		result.SnapshotHash = hash
	}

	values := sess.engine.Values()
	result.Values = jsonValues(values)
	logger.Debug("run complete", "applied", result.Applied, "contacts", len(values))

	return out.Success(result, func(w io.Writer) {
		if result.Restored {
			fmt.Fprintf(w, "Restored from %s\n", dbPath)
		}
		fmt.Fprintf(w, "Applied %d writes\n", result.Applied)
		fmt.Fprintln(w, "Values:")
		writeValues(indent{w}, values)
		if len(counts) > 0 {
			fmt.Fprintln(w, "Events:")
			writeCounts(w, counts)
		}
		if result.SnapshotHash != "" {
			fmt.Fprintf(w, "Snapshot: %s\n", result.SnapshotHash)
		}
	})
}

// session is an engine, optionally journaled.
type session struct {
	engine   *engine.Engine
	store    *store.Store
	recorder *store.Recorder
	restored bool
}

func (s *session) close() {
	if s.recorder != nil {
		s.recorder.Detach()
	}
	if s.store != nil {
		s.store.Close()
	}
}

func openSession(ctx context.Context, cmd *cobra.Command, opts *RunOptions, cfg config.Config, logger *slog.Logger, path, dbPath string) (*session, error) {
	out := opts.formatter(cmd)
	engineOpts := append(cfg.EngineOptions(),
		engine.WithLogger(logger),
		engine.WithPrimitives(primitives.All()...),
	)
	if opts.IDGenerator != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDGenerator))
	}

	sess := &session{}
	if dbPath != "" {
		s, err := store.Open(dbPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		sess.store = s

		if _, err := s.LatestSnapshot(ctx, store.InitialLabel); err == nil {
			if path != "" {
				logger.Info("journal exists, network argument ignored", "db", dbPath, "network", path)
			}
			e, res, err := store.Restore(ctx, s, engineOpts...)
			if err != nil {
				sess.close()
				return nil, WrapExitError(ExitFailure, "failed to restore journal", err)
			}
			logger.Debug("journal restored", "applied", res.Applied, "last_seq", res.LastSeq)
			sess.engine = e
			sess.restored = true
		} else if !errors.Is(err, store.ErrNoSnapshot) {
			sess.close()
			return nil, WrapExitError(ExitCommandError, "failed to read database", err)
		}
	}

	var initial ir.Bassline
	if sess.engine == nil {
		if path == "" {
			sess.close()
			return nil, NewExitError(ExitCommandError, "network argument required")
		}
		b, err := loadNetwork(path)
		if err != nil {
			sess.close()
			return nil, loadFailure(out, err)
		}
		e, err := engine.New(b, engineOpts...)
		if err != nil {
			sess.close()
			return nil, WrapExitError(ExitFailure, "failed to build engine", err)
		}
		sess.engine = e
		initial = b
	}

	if sess.store != nil {
		rec, err := store.Attach(ctx, sess.store, sess.engine, initial,
			store.WithEvents(opts.Events),
			store.WithRecorderLogger(logger),
		)
		if err != nil {
			sess.close()
			return nil, WrapExitError(ExitFailure, "failed to attach recorder", err)
		}
		sess.recorder = rec
	}
	return sess, nil
}

// loadFailure maps a LoadError to an exit code: a missing file is a command
// error, anything else a failure of the input.
func loadFailure(out *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		out.Error(le.Code, le.Error(), nil)
		if le.Code == ErrCodeNotFound {
			return WrapExitError(ExitCommandError, "failed to load input", err)
		}
	}
	return WrapExitError(ExitFailure, "failed to load input", err)
}

// indent prefixes every write with two spaces. Callers write whole lines.
type indent struct{ w io.Writer }

func (i indent) Write(p []byte) (int, error) {
	if _, err := i.w.Write([]byte("  ")); err != nil {
		return 0, err
	}
	return i.w.Write(p)
}
