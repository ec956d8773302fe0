package ir

import (
	"github.com/roach88/goalc/internal/source"
	"github.com/roach88/goalc/internal/symbols"
)

// Condition is one entry of a rule's IF part.
//
// This is a sealed interface - only *FuncCondition and *BinaryCondition
// implement it. TupleSize is filled in by the emitter: the number of bound
// physical columns flowing out of the node built for the condition.
type Condition interface {
	condition()
	Pos() source.Location
}

// FuncCondition references a function, query, event, proc or database.
type FuncCondition struct {
	Func      symbols.NameAndArity `json:"func"`
	Params    []Value              `json:"params"`
	Negated   bool                 `json:"negated,omitempty"`
	TupleSize int                  `json:"tuple_size"`
	Location  source.Location      `json:"location"`
}

func (*FuncCondition) condition() {}

// Pos returns the condition's source location.
func (c *FuncCondition) Pos() source.Location { return c.Location }

// BinaryCondition compares two values.
type BinaryCondition struct {
	LHS       Value           `json:"lhs"`
	Op        Operator        `json:"op"`
	RHS       Value           `json:"rhs"`
	TupleSize int             `json:"tuple_size"`
	Location  source.Location `json:"location"`
}

func (*BinaryCondition) condition() {}

// Pos returns the condition's source location.
func (c *BinaryCondition) Pos() source.Location { return c.Location }

// Operator is a relational operator.
type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

var operators = map[string]Operator{
	"<": OpLess, "<=": OpLessEqual, ">": OpGreater, ">=": OpGreaterEqual,
	"==": OpEqual, "=": OpEqual, "!=": OpNotEqual, "<>": OpNotEqual,
}

// ParseOperator accepts the canonical operators plus "=" and "<>".
func ParseOperator(s string) (Operator, bool) {
	op, ok := operators[s]
	return op, ok
}

// IsOrdering reports whether op is one of < <= > >=.
func (op Operator) IsOrdering() bool {
	switch op {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}
