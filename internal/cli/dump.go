package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/goalc/internal/graph"
)

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <story>",
		Short: "Print the compiled graph",
		Long: `Compile a story and print its graph: the text dump by default, the
graph JSON with --format json. Diagnostics go to stderr; the graph is
printed even when the story has errors.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(rootOpts, args[0], cmd)
		},
	}
}

func runDump(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	c, err := compileStory(f, opts, path, false)
	if err != nil {
		return err
	}
	printDiagnostics(f.GetErrWriter(), c.Result.Diagnostics.Entries())

	if f.Format == "json" {
		if err := f.Success(c.Result.Story); err != nil {
			return err
		}
	} else if err := graph.Dump(f.Writer, c.Result.Story); err != nil {
		return commandError(f, ErrCodeWriteFailed, err.Error())
	}
	return failIfErrors(c)
}
