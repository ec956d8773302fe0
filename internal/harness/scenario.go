package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/goalc/internal/compiler"
	"github.com/roach88/goalc/internal/graph"
)

// Scenario is one conformance case.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Story is the path of the story document.
	Story string `yaml:"story"`

	// Config is layered over the default compiler options.
	Config *compiler.Config `yaml:"config,omitempty"`

	// Golden enables the dump comparison in RunWithGolden.
	Golden bool `yaml:"golden,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// Assertion checks one property of a compilation.
type Assertion struct {
	Type string `yaml:"type"`

	// Kind is a node kind name (node_count).
	Kind string `yaml:"kind,omitempty"`

	// Code is a diagnostic code (diagnostic, no_diagnostic).
	Code string `yaml:"code,omitempty"`

	// Function is "Name/arity" (function_node).
	Function string `yaml:"function,omitempty"`

	// Count is required by node_count, database_count and error_count and
	// optional for diagnostic.
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertNodeCount     = "node_count"
	AssertDatabaseCount = "database_count"
	AssertFunctionNode  = "function_node"
	AssertDiagnostic    = "diagnostic"
	AssertNoDiagnostic  = "no_diagnostic"
	AssertErrorCount    = "error_count"
)

// LoadScenario reads and parses a scenario YAML file, resolving the story
// path against the scenario's directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Story != "" && !filepath.IsAbs(scenario.Story) {
		scenario.Story = filepath.Join(filepath.Dir(path), scenario.Story)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Story == "" {
		return fmt.Errorf("story is required")
	}
	if _, err := os.Stat(s.Story); os.IsNotExist(err) {
		return fmt.Errorf("story file not found: %s", s.Story)
	}
	if len(s.Assertions) == 0 && !s.Golden {
		return fmt.Errorf("assertions list is required unless golden is set")
	}
	if s.Config != nil {
		if _, err := compiler.ParseCodes(s.Config.Suppress); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	needCount := func() error {
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
		return nil
	}
	needCode := func() error {
		if _, err := compiler.ParseCodes([]string{a.Code}); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		return nil
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertNodeCount:
		if _, ok := graph.ParseNodeKind(a.Kind); !ok {
			return fmt.Errorf("assertions[%d]: unknown node kind %q", index, a.Kind)
		}
		return needCount()
	case AssertDatabaseCount, AssertErrorCount:
		return needCount()
	case AssertFunctionNode:
		if _, _, err := splitFunction(a.Function); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertDiagnostic:
		if a.Count != nil && *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
		return needCode()
	case AssertNoDiagnostic:
		return needCode()
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// splitFunction parses "Name/arity".
func splitFunction(s string) (string, int, error) {
	i := strings.LastIndexByte(s, '/')
	if i <= 0 {
		return "", 0, fmt.Errorf("function %q is not Name/arity", s)
	}
	arity, err := strconv.Atoi(s[i+1:])
	if err != nil || arity < 0 {
		return "", 0, fmt.Errorf("function %q is not Name/arity", s)
	}
	return s[:i], arity, nil
}
