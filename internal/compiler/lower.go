package compiler

import (
	"math"
	"strings"

	"github.com/roach88/goalc/internal/ast"
	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/ir"
	"github.com/roach88/goalc/internal/source"
	"github.com/roach88/goalc/internal/symbols"
)

// lowerer turns AST goals into IR. It only reads the registry (for type
// annotations); functions are resolved later, once every implicit
// declaration is known.
type lowerer struct {
	reg *symbols.Registry
	log *diag.Log
}

// ruleScope binds variable names to slots within one rule.
type ruleScope struct {
	vars   []*ir.Variable
	byName map[string]*ir.Variable
}

func newRuleScope() *ruleScope {
	return &ruleScope{byName: make(map[string]*ir.Variable)}
}

// LowerGoal converts one goal. Problems are logged and the offending fact or
// rule is left out, so the returned goal is always usable.
func LowerGoal(g *ast.Goal, reg *symbols.Registry, log *diag.Log) *ir.Goal {
	l := &lowerer{reg: reg, log: log}
	return l.goal(g)
}

func (l *lowerer) goal(g *ast.Goal) *ir.Goal {
	out := &ir.Goal{
		Name:     g.Name,
		Parents:  append([]string(nil), g.Parents...),
		Location: g.Location,
	}
	out.InitFacts = l.facts(g.Name, g.Init)
	for i := range g.KB {
		if r, ok := l.rule(g.Name, i, &g.KB[i]); ok {
			out.Rules = append(out.Rules, r)
		}
	}
	out.ExitFacts = l.facts(g.Name, g.Exit)
	return out
}

func (l *lowerer) facts(goal string, stmts []ast.Statement) []ir.Call {
	var out []ir.Call
	for i := range stmts {
		if c, ok := l.statement(goal, &stmts[i], nil); ok {
			out = append(out, c)
		}
	}
	return out
}

func (l *lowerer) rule(goal string, index int, r *ast.Rule) (*ir.Rule, bool) {
	out := &ir.Rule{
		Goal:     goal,
		Index:    index,
		Location: r.Location,
	}
	switch strings.ToLower(r.Kind) {
	case "", ast.RuleKindRule:
		out.Kind = ir.RuleKindRule
	case ast.RuleKindProc:
		out.Kind = ir.RuleKindProc
	case ast.RuleKindQuery:
		out.Kind = ir.RuleKindQuery
	default:
		l.log.Error(r.Location, diag.ErrMalformedSyntax, "unknown rule kind %q", r.Kind)
		return nil, false
	}
	if len(r.Conditions) == 0 {
		l.log.Error(r.Location, diag.ErrInvalidRuleRoot, "rule in goal %q has no conditions", goal)
		return nil, false
	}

	scope := newRuleScope()
	ok := true
	for i := range r.Conditions {
		c, cok := l.condition(&r.Conditions[i], scope)
		if !cok {
			ok = false
			continue
		}
		out.Conditions = append(out.Conditions, c)
	}
	for i := range r.Actions {
		c, aok := l.statement(goal, &r.Actions[i], scope)
		if !aok {
			ok = false
			continue
		}
		out.Actions = append(out.Actions, c)
	}
	if !ok {
		return nil, false
	}

	for _, v := range scope.vars {
		v.Unused = v.Occurrences == 1
		if v.Unused && !strings.HasPrefix(v.Name, "_") {
			l.log.Warn(v.Location, diag.WarnSingletonVariable,
				"variable %q is used only once; prefix it with _ if that is intended", v.Name)
		}
	}
	out.Variables = scope.vars
	return out, true
}

func (l *lowerer) condition(c *ast.Condition, scope *ruleScope) (ir.Condition, bool) {
	loc := c.Location
	switch {
	case c.Func != nil && c.Rel == nil:
		fc := &ir.FuncCondition{
			Func:     symbols.NameAndArity{Name: c.Func.Name, Arity: len(c.Func.Args)},
			Negated:  c.Func.Not,
			Location: pick(c.Func.Location, loc),
		}
		for i := range c.Func.Args {
			v, ok := l.value(&c.Func.Args[i], scope)
			if !ok {
				return nil, false
			}
			fc.Params = append(fc.Params, v)
		}
		return fc, true
	case c.Rel != nil && c.Func == nil:
		op, ok := ir.ParseOperator(c.Rel.Op)
		if !ok {
			l.log.Error(loc, diag.ErrMalformedSyntax, "unknown relational operator %q", c.Rel.Op)
			return nil, false
		}
		lhs, lok := l.value(&c.Rel.LHS, scope)
		rhs, rok := l.value(&c.Rel.RHS, scope)
		if !lok || !rok {
			return nil, false
		}
		return &ir.BinaryCondition{LHS: lhs, Op: op, RHS: rhs, Location: loc}, true
	default:
		l.log.Error(loc, diag.ErrMalformedSyntax, "condition must be exactly one of a function reference or a comparison")
		return nil, false
	}
}

// statement lowers a fact (scope == nil) or an action.
func (l *lowerer) statement(goal string, s *ast.Statement, scope *ruleScope) (ir.Call, bool) {
	loc := s.Location
	switch {
	case s.Call != nil && s.GoalCompleted == nil:
		call := ir.Call{
			Func:     symbols.NameAndArity{Name: s.Call.Name, Arity: len(s.Call.Args)},
			Negated:  s.Call.Not,
			Location: pick(s.Call.Location, loc),
		}
		for i := range s.Call.Args {
			arg := &s.Call.Args[i]
			if scope == nil && arg.IsVariable() {
				l.log.Error(pick(arg.Location, call.Location), diag.ErrNonConstantFactValue,
					"fact %s uses variable %q; facts may only contain constants", call.Func, arg.Var)
				return ir.Call{}, false
			}
			v, ok := l.value(arg, scope)
			if !ok {
				return ir.Call{}, false
			}
			call.Args = append(call.Args, v)
		}
		return call, true
	case s.GoalCompleted != nil && s.Call == nil:
		target := s.GoalCompleted.Goal
		if target == "" {
			target = goal
		}
		return ir.Call{GoalCompleted: true, Goal: target, Location: loc}, true
	default:
		l.log.Error(loc, diag.ErrMalformedSyntax, "statement must be exactly one of a call or a goal completion")
		return ir.Call{}, false
	}
}

func (l *lowerer) value(v *ast.Value, scope *ruleScope) (ir.Value, bool) {
	shapes := 0
	for _, set := range []bool{v.Var != "", v.Int != nil, v.Float != nil, v.Str != nil, v.Guid != nil} {
		if set {
			shapes++
		}
	}
	if shapes != 1 {
		l.log.Error(v.Location, diag.ErrMalformedSyntax, "value must be exactly one of var, int, float, str or guid")
		return ir.Value{}, false
	}

	if v.IsVariable() {
		return scope.bind(v, l.log), true
	}

	c := ir.Constant{}
	var shape symbols.TypeID
	switch {
	case v.Int != nil:
		c.Int = *v.Int
		shape = symbols.TypeInteger
		if c.Int < math.MinInt32 || c.Int > math.MaxInt32 {
			shape = symbols.TypeInteger64
		}
	case v.Float != nil:
		c.Real = *v.Float
		shape = symbols.TypeReal
	case v.Str != nil:
		c.Str = *v.Str
		shape = symbols.TypeString
	case v.Guid != nil:
		c.Str = *v.Guid
		shape = symbols.TypeGuidString
	}

	if v.Type == "" {
		c.Type, _ = l.reg.TypeByID(shape)
		return ir.Value{Const: c, Location: v.Location}, true
	}

	c.Annotated = true
	t, ok := l.reg.TypeByName(v.Type)
	if !ok {
		l.log.Error(v.Location, diag.ErrUnresolvedType, "unknown type %q", v.Type)
		return ir.Value{Const: c, Location: v.Location}, true
	}
	if !literalFits(shape, t.Intrinsic) {
		l.log.Error(v.Location, diag.ErrTypeMismatch, "literal %s cannot have type %s", literalText(v), t.Name)
		return ir.Value{Const: c, Location: v.Location}, true
	}
	if t.Intrinsic == symbols.TypeReal && v.Int != nil {
		c.Real, c.Int = float64(c.Int), 0
	}
	c.Type = t
	return ir.Value{Const: c, Location: v.Location}, true
}

// bind returns a reference to the variable slot for v, creating it on first
// occurrence.
func (s *ruleScope) bind(v *ast.Value, log *diag.Log) ir.Value {
	slot, ok := s.byName[v.Var]
	if !ok {
		slot = &ir.Variable{Index: len(s.vars), Name: v.Var, Location: v.Location}
		s.byName[v.Var] = slot
		s.vars = append(s.vars, slot)
	}
	slot.Occurrences++
	if v.Type != "" {
		switch {
		case slot.Annotation == "":
			slot.Annotation = v.Type
		case !strings.EqualFold(slot.Annotation, v.Type):
			log.Error(v.Location, diag.ErrTypeMismatch,
				"variable %q is annotated as %s and %s", v.Var, slot.Annotation, v.Type)
		}
	}
	return ir.Value{IsVar: true, Var: slot.Index, Location: v.Location}
}

// literalFits reports whether a literal of the given shape may carry an
// annotation resolving to intrinsic.
func literalFits(shape, intrinsic symbols.TypeID) bool {
	switch shape {
	case symbols.TypeInteger:
		return intrinsic == symbols.TypeInteger || intrinsic == symbols.TypeInteger64 || intrinsic == symbols.TypeReal
	case symbols.TypeInteger64:
		return intrinsic == symbols.TypeInteger64 || intrinsic == symbols.TypeReal
	default:
		return shape == intrinsic
	}
}

func literalText(v *ast.Value) string {
	switch {
	case v.Int != nil:
		return "integer"
	case v.Float != nil:
		return "real"
	case v.Str != nil:
		return "string"
	default:
		return "guid"
	}
}

func pick(loc, fallback source.Location) source.Location {
	if loc.IsValid() {
		return loc
	}
	return fallback
}
