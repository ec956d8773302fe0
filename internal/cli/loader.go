package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/roach88/goalc/internal/ast"
	"github.com/roach88/goalc/internal/compiler"
	"github.com/roach88/goalc/internal/diag"
)

// compilation is one story compiled by a command.
type compilation struct {
	Path    string
	Result  *compiler.Result
	Elapsed time.Duration
}

// compileStory loads the story at path and compiles it with the options
// the global flags describe. Load and config failures are reported through
// f and returned as command errors.
func compileStory(f *OutputFormatter, opts *RootOptions, path string, debugInfo bool) (*compilation, error) {
	copts, err := compileOptions(opts, f.GetErrWriter())
	if err != nil {
		return nil, commandError(f, ErrCodeBadConfig, err.Error())
	}
	copts.DebugInfo = copts.DebugInfo || debugInfo

	story, err := ast.LoadFile(path)
	if err != nil {
		var loadErr *ast.LoadError
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, commandError(f, ErrCodeNotFound, fmt.Sprintf("story not found: %s", path))
		case errors.As(err, &loadErr):
			return nil, commandError(f, ErrCodeLoadFailed, loadErr.Error())
		default:
			return nil, commandError(f, ErrCodeGeneric, err.Error())
		}
	}
	f.VerboseLog("Loaded %s: %d type(s), %d function(s), %d goal(s)",
		path, len(story.Types), len(story.Functions), len(story.Goals))

	start := time.Now()
	res := compiler.Compile(story, copts)
	return &compilation{Path: path, Result: res, Elapsed: time.Since(start)}, nil
}

// compileOptions layers the config file, then the flags, over the defaults.
func compileOptions(opts *RootOptions, logTo io.Writer) (compiler.Options, error) {
	copts := compiler.DefaultOptions()
	copts.Logger = newLogger(logTo, opts.Verbose)

	if opts.Config != "" {
		cfg, err := compiler.LoadConfig(opts.Config)
		if err != nil {
			return copts, err
		}
		copts = cfg.Apply(copts)
	}

	codes, err := compiler.ParseCodes(opts.Suppress)
	if err != nil {
		return copts, fmt.Errorf("--suppress: %w", err)
	}
	copts.Suppress = append(copts.Suppress, codes...)
	copts.WarningsAsErrors = copts.WarningsAsErrors || opts.Werror
	return copts, nil
}

// commandError reports a command-level failure and returns it with exit code 2.
func commandError(f *OutputFormatter, code, message string) error {
	_ = f.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// printDiagnostics writes one line per diagnostic in text mode.
func printDiagnostics(w io.Writer, entries []diag.Diagnostic) {
	for _, d := range entries {
		label := yellow.Sprint("warning")
		if d.Level == diag.LevelError {
			label = red.Sprint("error")
		}
		if d.Location.IsValid() || d.Location.File != "" {
			fmt.Fprintf(w, "%s: ", dim.Sprint(d.Location.String()))
		}
		fmt.Fprintf(w, "%s [%s] %s\n", label, d.Code, d.Message)
	}
}

// failIfErrors turns compile errors into exit code 1.
func failIfErrors(c *compilation) error {
	n := c.Result.Diagnostics.Count(diag.LevelError)
	if n == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%s: compilation failed with %d error(s)", c.Path, n))
}

// firstErrorCode is the code of the first error-level diagnostic.
func firstErrorCode(entries []diag.Diagnostic) string {
	for _, d := range entries {
		if d.Level == diag.LevelError {
			return string(d.Code)
		}
	}
	return ErrCodeGeneric
}
