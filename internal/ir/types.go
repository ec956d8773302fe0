package ir

import (
	"github.com/roach88/goalc/internal/source"
	"github.com/roach88/goalc/internal/symbols"
)

// Goal is a lowered goal. It owns its facts and rules.
type Goal struct {
	Name      string          `json:"name"`
	InitFacts []Call          `json:"init_facts,omitempty"`
	Rules     []*Rule         `json:"rules,omitempty"`
	ExitFacts []Call          `json:"exit_facts,omitempty"`
	Parents   []string        `json:"parents,omitempty"`
	Location  source.Location `json:"location"`
}

// RuleKind distinguishes plain rules from proc and query definitions.
type RuleKind int

const (
	RuleKindRule RuleKind = iota
	RuleKindProc
	RuleKindQuery
)

func (k RuleKind) String() string {
	switch k {
	case RuleKindProc:
		return "proc"
	case RuleKindQuery:
		return "query"
	default:
		return "rule"
	}
}

// MarshalText renders the kind by name.
func (k RuleKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Rule is IF Conditions THEN Actions. Conditions[0] is the structural root.
type Rule struct {
	Goal       string          `json:"goal"`  // owning goal, by name
	Index      int             `json:"index"` // position within the goal's KB section
	Kind       RuleKind        `json:"kind"`
	Conditions []Condition     `json:"conditions"`
	Actions    []Call          `json:"actions,omitempty"`
	Variables  []*Variable     `json:"variables,omitempty"`
	Location   source.Location `json:"location"`
}

// Variable is a rule-local variable slot.
type Variable struct {
	Index int                `json:"index"`
	Name  string             `json:"name"`
	Type  *symbols.ValueType `json:"type,omitempty"` // nil until inferred

	// Annotation is the first explicit type annotation seen for the variable.
	Annotation string `json:"annotation,omitempty"`

	// Unused variables occur only once in the rule and are excluded from
	// emitted adapters. A leading "_" only silences the singleton warning.
	Unused bool `json:"unused,omitempty"`

	Occurrences int             `json:"occurrences"`
	Location    source.Location `json:"location"`
}

// Call is a fact, an action or a goal-completion sentinel.
type Call struct {
	Func    symbols.NameAndArity `json:"func"`
	Args    []Value              `json:"args,omitempty"`
	Negated bool                 `json:"negated,omitempty"`

	// GoalCompleted calls have no function; Goal names the goal they complete.
	GoalCompleted bool   `json:"goal_completed,omitempty"`
	Goal          string `json:"goal,omitempty"`

	Location source.Location `json:"location"`
}
