package harness

import (
	"fmt"

	"github.com/roach88/goalc/internal/ast"
	"github.com/roach88/goalc/internal/compiler"
	"github.com/roach88/goalc/internal/testutil"
)

// Result is the outcome of one scenario.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool

	// Errors holds one message per failed assertion.
	Errors []string

	// Compile is the full compiler result, for further inspection.
	Compile *compiler.Result
}

// AddError records a failed assertion.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Options returns the compiler options a scenario runs with: default
// naming, a discarding logger and debug info, with the scenario config
// layered on top.
func (s *Scenario) Options() compiler.Options {
	opts := compiler.Options{
		Logger:    testutil.DiscardLogger(),
		Naming:    compiler.DefaultNaming(),
		DebugInfo: true,
	}
	if s.Config != nil {
		opts = s.Config.Apply(opts)
	}
	return opts
}

// Run compiles the scenario's story and evaluates its assertions.
//
// An error is returned only when the story cannot be loaded; compiler
// diagnostics are data the assertions look at.
func Run(scenario *Scenario) (*Result, error) {
	story, err := ast.LoadFile(scenario.Story)
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}

	result := &Result{
		Pass:    true,
		Errors:  []string{},
		Compile: compiler.Compile(story, scenario.Options()),
	}
	for _, msg := range EvaluateAssertions(result.Compile, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}
