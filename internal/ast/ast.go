// Package ast describes the parsed form of a story.
//
// The textual parser is an external collaborator; this package only fixes
// the shapes it hands to the compiler, and loads them from YAML, JSON or CUE
// documents so stories can be compiled without it.
package ast

import "github.com/roach88/goalc/internal/source"

// Story is one compilation unit: header declarations plus goals.
type Story struct {
	Types     []TypeDecl     `json:"types,omitempty" yaml:"types,omitempty"`
	Functions []FunctionDecl `json:"functions,omitempty" yaml:"functions,omitempty"`
	Goals     []Goal         `json:"goals,omitempty" yaml:"goals,omitempty"`
}

// TypeDecl declares an alias of an intrinsic type.
type TypeDecl struct {
	ID        uint32          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Intrinsic uint32          `json:"intrinsic" yaml:"intrinsic"`
	Location  source.Location `json:"location,omitempty" yaml:"location,omitempty"`
}

// FunctionDecl declares a header function (event, query, call, ...).
type FunctionDecl struct {
	Kind     string          `json:"kind" yaml:"kind"`
	Name     string          `json:"name" yaml:"name"`
	Params   []ParamDecl     `json:"params,omitempty" yaml:"params,omitempty"`
	Location source.Location `json:"location,omitempty" yaml:"location,omitempty"`
}

// ParamDecl is one declared parameter.
type ParamDecl struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Type string `json:"type" yaml:"type"`
	Out  bool   `json:"out,omitempty" yaml:"out,omitempty"`
}

// Goal is a named unit with INIT, KB and EXIT sections.
type Goal struct {
	Name     string          `json:"name" yaml:"name"`
	Parents  []string        `json:"parents,omitempty" yaml:"parents,omitempty"`
	Init     []Statement     `json:"init,omitempty" yaml:"init,omitempty"`
	KB       []Rule          `json:"kb,omitempty" yaml:"kb,omitempty"`
	Exit     []Statement     `json:"exit,omitempty" yaml:"exit,omitempty"`
	Location source.Location `json:"location,omitempty" yaml:"location,omitempty"`
}

// Rule kinds as written in documents.
const (
	RuleKindRule  = "rule"
	RuleKindProc  = "proc"
	RuleKindQuery = "query"
)

// Rule is IF conditions THEN actions. An empty Kind means RuleKindRule.
type Rule struct {
	Kind       string          `json:"kind,omitempty" yaml:"kind,omitempty"`
	Conditions []Condition     `json:"conditions" yaml:"conditions"`
	Actions    []Statement     `json:"actions,omitempty" yaml:"actions,omitempty"`
	Location   source.Location `json:"location,omitempty" yaml:"location,omitempty"`
}

// Condition is either a function reference or a relational comparison.
type Condition struct {
	Func     *Call           `json:"func,omitempty" yaml:"func,omitempty"`
	Rel      *Relation       `json:"rel,omitempty" yaml:"rel,omitempty"`
	Location source.Location `json:"location,omitempty" yaml:"location,omitempty"`
}

// Relation compares two values with one of < <= > >= == !=.
type Relation struct {
	LHS Value  `json:"lhs" yaml:"lhs"`
	Op  string `json:"op" yaml:"op"`
	RHS Value  `json:"rhs" yaml:"rhs"`
}

// Statement is a fact or an action: a call, or the goal-completion sentinel.
type Statement struct {
	Call          *Call           `json:"call,omitempty" yaml:"call,omitempty"`
	GoalCompleted *GoalCompleted  `json:"goal_completed,omitempty" yaml:"goal_completed,omitempty"`
	Location      source.Location `json:"location,omitempty" yaml:"location,omitempty"`
}

// Call references a function by name with positional arguments.
type Call struct {
	Name     string          `json:"name" yaml:"name"`
	Args     []Value         `json:"args,omitempty" yaml:"args,omitempty"`
	Not      bool            `json:"not,omitempty" yaml:"not,omitempty"`
	Location source.Location `json:"location,omitempty" yaml:"location,omitempty"`
}

// GoalCompleted marks a goal as complete. An empty Goal means the goal the
// statement belongs to.
type GoalCompleted struct {
	Goal string `json:"goal,omitempty" yaml:"goal,omitempty"`
}

// Value is a variable reference or a literal. Exactly one of Var, Int,
// Float, Str and Guid is set; Type is an optional type annotation.
type Value struct {
	Var      string          `json:"var,omitempty" yaml:"var,omitempty"`
	Int      *int64          `json:"int,omitempty" yaml:"int,omitempty"`
	Float    *float64        `json:"float,omitempty" yaml:"float,omitempty"`
	Str      *string         `json:"str,omitempty" yaml:"str,omitempty"`
	Guid     *string         `json:"guid,omitempty" yaml:"guid,omitempty"`
	Type     string          `json:"type,omitempty" yaml:"type,omitempty"`
	Location source.Location `json:"location,omitempty" yaml:"location,omitempty"`
}

// IsVariable reports whether v references a rule-local variable.
func (v Value) IsVariable() bool {
	return v.Var != ""
}
