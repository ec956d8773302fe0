package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <story>",
		Short: "Report diagnostics without writing anything",
		Long: `Compile a story and report its diagnostics.

Nothing is written. The exit code is 1 when the story has errors, which
--werror extends to warnings.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	c, err := compileStory(f, opts, path, false)
	if err != nil {
		return err
	}
	summary := summarize(c)
	if c.Result.Diagnostics.HasErrors() {
		return outputFailure(f, summary, c)
	}

	if f.Format == "json" {
		return f.Success(summary)
	}
	printDiagnostics(f.Writer, summary.Diagnostics)
	fmt.Fprintf(f.Writer, "%s %s: no errors, %d warning(s)\n", green.Sprint("✓"), path, summary.Warnings)
	return nil
}
