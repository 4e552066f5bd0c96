package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/bassline/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Resolved by Settings on first use.
	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the bassline CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bassline",
		Short: "Bassline - propagation networks",
		Long: `Build, run and inspect propagation networks.

A network is a set of contacts holding values, wires that carry those values
between contacts, and groups that turn contacts into computation gadgets.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			_, _, err := opts.Settings(cmd)
			return err
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a TOML config file")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// Settings loads the configuration once and builds the logger. Logs go to
// the command's stderr; --verbose forces Debug.
func (o *RootOptions) Settings(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	if o.cfg == nil {
		cfg, err := config.Load(o.ConfigPath)
		if err != nil {
			return config.Config{}, nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		if o.Verbose {
			cfg.Log.Level = slog.LevelDebug
		}
		var w io.Writer = io.Discard
		if cmd != nil {
			w = cmd.ErrOrStderr()
		}
		o.cfg = &cfg
		o.logger = cfg.Logger(w)
	}
	return *o.cfg, o.logger, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
