package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/graph"
	"github.com/roach88/goalc/internal/metrics"
	"github.com/roach88/goalc/internal/symdb"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output  string // graph JSON path
	Symbols string // symbol database path
	Metrics string // prometheus textfile path
}

// CompileSummary is the JSON payload of compile and check.
type CompileSummary struct {
	Story       string            `json:"story"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Goals       int               `json:"goals"`
	Functions   int               `json:"functions"`
	Nodes       map[string]int    `json:"nodes"`
	Databases   int               `json:"databases"`
	Adapters    int               `json:"adapters"`
	Errors      int               `json:"errors"`
	Warnings    int               `json:"warnings"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Output      string            `json:"output,omitempty"`
	Build       string            `json:"build,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <story>",
		Short: "Compile a story into an evaluation graph",
		Long: `Compile a story document into an evaluation graph.

The graph is written as JSON with --output once the story compiles
without errors. --symbols stores debug info for the build in a SQLite
symbol database, and --metrics writes the shape of the compilation as a
Prometheus textfile (also on failure).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "graph JSON output path")
	cmd.Flags().StringVar(&opts.Symbols, "symbols", "", "symbol database path")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "prometheus textfile output path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	c, err := compileStory(f, opts.RootOptions, path, opts.Symbols != "")
	if err != nil {
		return err
	}
	res := c.Result
	summary := summarize(c)

	if opts.Metrics != "" {
		m := metrics.New()
		m.Observe(res.Story, res.Diagnostics, c.Elapsed)
		if err := m.WriteTextfile(opts.Metrics); err != nil {
			return commandError(f, ErrCodeWriteFailed, err.Error())
		}
		f.VerboseLog("Wrote metrics to %s", opts.Metrics)
	}

	if res.Diagnostics.HasErrors() {
		return outputFailure(f, summary, c)
	}

	fingerprint, err := graph.Fingerprint(res.Story)
	if err != nil {
		return commandError(f, ErrCodeGeneric, fmt.Sprintf("fingerprint: %v", err))
	}
	summary.Fingerprint = fingerprint

	if opts.Output != "" {
		if err := writeGraph(res.Story, opts.Output); err != nil {
			return commandError(f, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		summary.Output = opts.Output
	}

	if opts.Symbols != "" {
		build, err := writeSymbols(cmd, opts.Symbols, c, fingerprint)
		if err != nil {
			return commandError(f, ErrCodeSymbols, err.Error())
		}
		summary.Build = build.ID
		f.VerboseLog("Stored build %s (#%d) in %s", build.ID, build.Seq, opts.Symbols)
	}

	if f.Format == "json" {
		return f.Success(summary)
	}
	printDiagnostics(f.Writer, summary.Diagnostics)
	fmt.Fprintf(f.Writer, "%s Compiled %s: %d goal(s), %d node(s), %d database(s), %d warning(s)\n",
		green.Sprint("✓"), path, summary.Goals, len(res.Story.Nodes), summary.Databases, summary.Warnings)
	if summary.Output != "" {
		fmt.Fprintf(f.Writer, "Wrote graph to %s\n", summary.Output)
	}
	if summary.Build != "" {
		fmt.Fprintf(f.Writer, "Stored symbols for build %s in %s\n", summary.Build, opts.Symbols)
	}
	return nil
}

func summarize(c *compilation) CompileSummary {
	res := c.Result
	s := CompileSummary{
		Story:       c.Path,
		Goals:       len(res.Story.Goals),
		Functions:   len(res.Story.Functions),
		Nodes:       make(map[string]int),
		Databases:   len(res.Story.Databases),
		Adapters:    len(res.Story.Adapters),
		Errors:      res.Diagnostics.Count(diag.LevelError),
		Warnings:    res.Diagnostics.Count(diag.LevelWarning),
		Diagnostics: res.Diagnostics.Entries(),
	}
	for kind, n := range res.Story.CountByKind() {
		s.Nodes[kind.String()] = n
	}
	if s.Diagnostics == nil {
		s.Diagnostics = []diag.Diagnostic{}
	}
	return s
}

// outputFailure reports a story with compile errors and returns exit code 1.
func outputFailure(f *OutputFormatter, summary CompileSummary, c *compilation) error {
	exitErr := failIfErrors(c)
	if f.Format == "json" {
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   summary,
			Error: &CLIError{
				Code:    firstErrorCode(summary.Diagnostics),
				Message: fmt.Sprintf("compilation failed with %d error(s)", summary.Errors),
			},
		}); err != nil {
			return err
		}
		return exitErr
	}

	printDiagnostics(f.Writer, summary.Diagnostics)
	fmt.Fprintf(f.Writer, "%s Compilation of %s failed: %d error(s), %d warning(s)\n",
		red.Sprint("✗"), c.Path, summary.Errors, summary.Warnings)
	return exitErr
}

// writeGraph writes the story as indented JSON.
func writeGraph(story *graph.Story, path string) error {
	data, err := json.MarshalIndent(story, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling graph: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

func writeSymbols(cmd *cobra.Command, path string, c *compilation, fingerprint string) (symdb.Build, error) {
	db, err := symdb.Open(path)
	if err != nil {
		return symdb.Build{}, err
	}
	defer db.Close()

	return db.WriteInfo(cmd.Context(), c.Result.Debug, symdb.WriteOptions{
		Fingerprint: fingerprint,
		Source:      c.Path,
	})
}
