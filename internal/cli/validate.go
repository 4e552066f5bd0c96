package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bassline/internal/compiler"
	"github.com/roach88/bassline/internal/primitives"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool
}

// ValidateResult is the outcome of validating a network.
type ValidateResult struct {
	Valid    bool                       `json:"valid"`
	Contacts int                        `json:"contacts"`
	Wires    int                        `json:"wires"`
	Groups   int                        `json:"groups"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.LoopWarning     `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <network>",
		Short: "Check a network without running it",
		Long: `Load a network and check its structure: references, group membership,
wire endpoints, boundary names and primitive types.

Rings of last-mode contacts are reported as warnings because they never
settle on their own. With --strict warnings fail validation too.

Examples:
  bassline validate ./adder.cue
  bassline validate ./net.yaml --strict --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat loop warnings as errors")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, path string) error {
	out := opts.formatter(cmd)

	b, err := loadNetwork(path)
	if err != nil {
		return loadFailure(out, err)
	}
	out.VerboseLog("loaded %s", path)

	names := make([]string, 0, len(primitives.All()))
	for _, p := range primitives.All() {
		names = append(names, p.Name)
	}

	result := ValidateResult{
		Contacts: len(b.Contacts),
		Wires:    len(b.Wires),
		Groups:   len(b.Groups),
		Errors:   compiler.ValidateNetwork(b, names),
		Warnings: compiler.AnalyzeLoops(b),
	}
	result.Valid = len(result.Errors) == 0 && (!opts.Strict || len(result.Warnings) == 0)

	if err := out.Success(result, func(w io.Writer) {
		for _, e := range result.Errors {
			fmt.Fprintf(w, "✗ %s\n", e.Error())
		}
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "⚠ %s\n", warn.Message)
		}
		if result.Valid {
			fmt.Fprintf(w, "✓ %s is valid (%d contacts, %d wires, %d groups)\n",
				path, result.Contacts, result.Wires, result.Groups)
		}
	}); err != nil {
		return err
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%s is invalid: %d errors, %d warnings",
			path, len(result.Errors), len(result.Warnings)))
	}
	return nil
}
