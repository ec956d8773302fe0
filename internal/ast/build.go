package ast

// Constructors for building stories in Go code, mostly used by tests.

// Var references a rule-local variable.
func Var(name string) Value { return Value{Var: name} }

// Int is an integer literal.
func Int(n int64) Value { return Value{Int: &n} }

// Float is a real literal.
func Float(f float64) Value { return Value{Float: &f} }

// Str is a string literal.
func Str(s string) Value { return Value{Str: &s} }

// Guid is a bareword literal.
func Guid(s string) Value { return Value{Guid: &s} }

// Typed annotates v with a type name.
func Typed(typeName string, v Value) Value {
	v.Type = typeName
	return v
}

// Fn builds a call.
func Fn(name string, args ...Value) *Call {
	return &Call{Name: name, Args: args}
}

// Not negates a call.
func Not(c *Call) *Call {
	c.Not = true
	return c
}

// If wraps a call as a condition.
func If(c *Call) Condition { return Condition{Func: c} }

// Cmp builds a relational condition.
func Cmp(lhs Value, op string, rhs Value) Condition {
	return Condition{Rel: &Relation{LHS: lhs, Op: op, RHS: rhs}}
}

// Do wraps a call as a statement.
func Do(c *Call) Statement { return Statement{Call: c} }

// Complete is the goal-completion statement; goal may be empty.
func Complete(goal string) Statement {
	return Statement{GoalCompleted: &GoalCompleted{Goal: goal}}
}
