package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/goalc/internal/compiler"
	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/graph"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type        string
	Expected    string
	Actual      string
	Diagnostics []diag.Diagnostic // everything reported, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Diagnostics) > 0 {
		fmt.Fprintf(&buf, "\nDiagnostics:\n")
		for i, d := range e.Diagnostics {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, d.Error())
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure. All assertions run; there is no early exit.
func EvaluateAssertions(res *compiler.Result, assertions []Assertion) []string {
	errors := []string{}
	for i, a := range assertions {
		if err := evaluate(res, a); err != nil {
			errors = append(errors, fmt.Sprintf("assertion %d: %s", i, err))
		}
	}
	return errors
}

func evaluate(res *compiler.Result, a Assertion) error {
	switch a.Type {
	case AssertNodeCount:
		return assertNodeCount(res, a)
	case AssertDatabaseCount:
		return expectCount(res, a.Type, fmt.Sprintf("%d databases", *a.Count), len(res.Story.Databases), *a.Count)
	case AssertFunctionNode:
		return assertFunctionNode(res, a)
	case AssertDiagnostic:
		return assertDiagnostic(res, a)
	case AssertNoDiagnostic:
		found := res.Diagnostics.WithCode(code(a.Code))
		if len(found) == 0 {
			return nil
		}
		return &AssertionError{
			Type:        a.Type,
			Expected:    fmt.Sprintf("no %s diagnostics", code(a.Code)),
			Actual:      fmt.Sprintf("%d reported", len(found)),
			Diagnostics: res.Diagnostics.Entries(),
		}
	case AssertErrorCount:
		return expectCount(res, a.Type, fmt.Sprintf("%d errors", *a.Count),
			res.Diagnostics.Count(diag.LevelError), *a.Count)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertNodeCount(res *compiler.Result, a Assertion) error {
	kind, ok := graph.ParseNodeKind(a.Kind)
	if !ok {
		return fmt.Errorf("unknown node kind %q", a.Kind)
	}
	return expectCount(res, a.Type, fmt.Sprintf("%d %s nodes", *a.Count, kind),
		res.Story.CountByKind()[kind], *a.Count)
}

func assertFunctionNode(res *compiler.Result, a Assertion) error {
	name, arity, err := splitFunction(a.Function)
	if err != nil {
		return err
	}
	fn := res.Story.Function(name, arity)
	switch {
	case fn == nil:
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("function %s with a node", a.Function),
			Actual:   "no such function",
		}
	case fn.Node == 0:
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("function %s with a node", a.Function),
			Actual:   fmt.Sprintf("%s function without a node", fn.Kind),
		}
	}
	return nil
}

func assertDiagnostic(res *compiler.Result, a Assertion) error {
	found := len(res.Diagnostics.WithCode(code(a.Code)))
	if a.Count == nil {
		if found > 0 {
			return nil
		}
		return &AssertionError{
			Type:        a.Type,
			Expected:    fmt.Sprintf("at least one %s diagnostic", code(a.Code)),
			Actual:      "none reported",
			Diagnostics: res.Diagnostics.Entries(),
		}
	}
	return expectCount(res, a.Type, fmt.Sprintf("%d %s diagnostics", *a.Count, code(a.Code)), found, *a.Count)
}

func expectCount(res *compiler.Result, typ, expected string, actual, want int) error {
	if actual == want {
		return nil
	}
	return &AssertionError{
		Type:        typ,
		Expected:    expected,
		Actual:      fmt.Sprintf("%d", actual),
		Diagnostics: res.Diagnostics.Entries(),
	}
}

func code(s string) diag.Code {
	return diag.Code(strings.ToUpper(s))
}
