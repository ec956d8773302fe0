package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/goalc/internal/compiler"
	"github.com/roach88/goalc/internal/graph"
)

// Snapshot renders a compilation for golden comparison: the graph dump
// followed by the level and code of every diagnostic in report order.
// Messages are left out so rewording one does not churn golden files.
func Snapshot(res *compiler.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := graph.Dump(&buf, res.Story); err != nil {
		return nil, err
	}
	entries := res.Diagnostics.Entries()
	if len(entries) > 0 {
		buf.WriteString("diagnostics:\n")
		for _, d := range entries {
			fmt.Fprintf(&buf, "  %s %s\n", d.Level, d.Code)
		}
	}
	return buf.Bytes(), nil
}

// RunWithGolden runs a scenario and, when the scenario asks for it,
// compares its snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if !scenario.Golden {
		return result, nil
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(result.Compile)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
	return nil
}
