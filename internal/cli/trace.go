package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bassline/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	DBPath string
	Kind   string // optional - filter to one event type
}

// TraceEntry is one line of the journal timeline.
type TraceEntry struct {
	Seq         int64           `json:"seq"`
	Kind        string          `json:"kind"` // "action" or "event"
	Type        string          `json:"type"`
	AfterAction int64           `json:"after_action,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// TraceResult holds the timeline and summary counts.
type TraceResult struct {
	Timeline []TraceEntry   `json:"timeline"`
	Stats    map[string]int `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal timeline",
		Long: `Show journaled actions and events in journal order.

An action is journaled once it has been applied, so it follows the events
it raised.

Events are only journaled by runs started with --events. With --kind only
events of that type are listed, and actions are left out.

Examples:
  bassline trace --db ./net.db
  bassline trace --db ./net.db --kind contradiction
  bassline trace --db ./net.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "journal database (defaults to store.path from config)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only list events of this type")

	return cmd
}

func runTrace(cmd *cobra.Command, opts *TraceOptions) error {
	out := opts.formatter(cmd)
	cfg, _, err := opts.Settings(cmd)
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

	result := TraceResult{Timeline: []TraceEntry{}, Stats: map[string]int{}}

	events, err := s.ReadEvents(ctx, opts.Kind)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	var actions []TraceEntry
	if opts.Kind == "" {
		records, err := s.ReadActions(ctx, 0)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read actions", err)
		}
		for _, rec := range records {
			payload, err := ir.MarshalCanonical(ir.ActionToIR(rec.Action))
			if err != nil {
				return WrapExitError(ExitFailure, "failed to encode action", err)
			}
			actions = append(actions, TraceEntry{
				Seq:     rec.Seq,
				Kind:    "action",
				Type:    rec.Action.ActionType(),
				Payload: payload,
			})
			result.Stats["actions"]++
		}
	}

	// An event stamped AfterAction k was journaled after action k and
	// before action k+1.
	next := 0
	for _, rec := range events {
		for next < len(actions) && actions[next].Seq <= rec.AfterAction {
			result.Timeline = append(result.Timeline, actions[next])
			next++
		}
		payload, err := ir.MarshalCanonical(ir.EventToIR(rec.Event))
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode event", err)
		}
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:         rec.Seq,
			Kind:        "event",
			Type:        rec.Event.EventType(),
			AfterAction: rec.AfterAction,
			Payload:     payload,
		})
		result.Stats[rec.Event.EventType()]++
	}
	result.Timeline = append(result.Timeline, actions[next:]...)

	return out.Success(result, func(w io.Writer) {
		if len(result.Timeline) == 0 {
			fmt.Fprintln(w, "Journal is empty.")
			return
		}
		for _, entry := range result.Timeline {
			if entry.Kind == "action" {
				fmt.Fprintf(w, "[%d] %s %s\n", entry.Seq, entry.Type, entry.Payload)
				continue
			}
			fmt.Fprintf(w, "    %s %s\n", entry.Type, entry.Payload)
		}
		fmt.Fprintln(w, "Stats:")
		writeCounts(w, result.Stats)
	})
}
