package compiler

import (
	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/ir"
	"github.com/roach88/goalc/internal/symbols"
)

// validator checks the structure of lowered goals. Everything it rejects is
// removed from the IR so the emitter only ever sees well-formed rules.
//
// Checks (all collected, never fail-fast):
//   - E203: condition references an unknown function
//   - E204: goal completion or parent names an unknown goal
//   - E205: variable read before a positive condition binds it
//   - E301: rule root is not a callable of the right kind
//   - E302: action or fact targets a query or an event
//   - E303: NOT on an action that is not a database
//   - E304: event, proc or call used after the root
//   - W401: ordering comparison on strings or guids
type validator struct {
	reg *symbols.Registry
	log *diag.Log
}

func validateGoals(goals []*ir.Goal, reg *symbols.Registry, log *diag.Log) {
	v := &validator{reg: reg, log: log}
	for _, g := range goals {
		v.goal(g)
	}
}

func (v *validator) goal(g *ir.Goal) {
	g.InitFacts = v.statements(g.InitFacts, true)
	g.ExitFacts = v.statements(g.ExitFacts, true)

	rules := g.Rules[:0]
	for _, r := range g.Rules {
		if v.rule(r) {
			rules = append(rules, r)
		}
	}
	g.Rules = rules

	parents := g.Parents[:0]
	for _, p := range g.Parents {
		def, ok := v.reg.Goal(p)
		if !ok {
			v.log.Error(g.Location, diag.ErrUnresolvedGoal, "goal %q has unknown parent %q", g.Name, p)
			continue
		}
		parents = append(parents, def.Name)
	}
	g.Parents = parents
}

// statements keeps the facts or actions that target something callable.
func (v *validator) statements(calls []ir.Call, facts bool) []ir.Call {
	out := calls[:0]
	for _, c := range calls {
		if v.statement(&c, facts) {
			out = append(out, c)
		}
	}
	return out
}

func (v *validator) statement(c *ir.Call, fact bool) bool {
	if c.GoalCompleted {
		def, ok := v.reg.Goal(c.Goal)
		if !ok {
			v.log.Error(c.Location, diag.ErrUnresolvedGoal, "goal completion references unknown goal %q", c.Goal)
			return false
		}
		c.Goal = def.Name
		return true
	}
	what := "action"
	if fact {
		what = "fact"
	}
	sig, ok := v.reg.Function(c.Func)
	if !ok {
		v.log.Error(c.Location, diag.ErrUnresolvedFunction, "%s references unknown function %s", what, c.Func)
		return false
	}
	switch sig.Kind {
	case symbols.KindDatabase, symbols.KindUserProc, symbols.KindRuntimeCall, symbols.KindAppCall:
	default:
		v.log.Error(c.Location, diag.ErrNotCallable, "%s target %s is a %s and cannot be called", what, c.Func, sig.Kind)
		return false
	}
	if c.Negated && sig.Kind != symbols.KindDatabase {
		v.log.Error(c.Location, diag.ErrNotOnNonDatabase, "NOT can only remove database facts, %s is a %s", c.Func, sig.Kind)
		return false
	}
	return true
}

func (v *validator) rule(r *ir.Rule) bool {
	ok := v.root(r)

	bound := make(map[int]bool)
	for i, cond := range r.Conditions {
		switch cond := cond.(type) {
		case *ir.FuncCondition:
			if i > 0 && !v.joinTarget(cond) {
				ok = false
			}
			if cond.Negated {
				ok = v.requireBound(r, cond.Params, bound) && ok
				continue
			}
			for _, p := range cond.Params {
				if p.IsVar {
					bound[p.Var] = true
				}
			}
		case *ir.BinaryCondition:
			ok = v.requireBound(r, []ir.Value{cond.LHS, cond.RHS}, bound) && ok
			if cond.Op.IsOrdering() {
				for _, t := range []*symbols.ValueType{valueType(cond.LHS, r.Variables), valueType(cond.RHS, r.Variables)} {
					if t != nil && (t.Intrinsic == symbols.TypeString || t.Intrinsic == symbols.TypeGuidString) {
						v.log.Warn(cond.Location, diag.WarnRiskyComparison,
							"operator %s on %s values compares them lexically", cond.Op, t.Name)
						break
					}
				}
			}
		}
	}

	for i := range r.Actions {
		c := &r.Actions[i]
		if !v.statement(c, false) {
			ok = false
			continue
		}
		ok = v.requireBound(r, c.Args, bound) && ok
	}
	return ok
}

// root checks the first condition against the rule kind.
func (v *validator) root(r *ir.Rule) bool {
	root, isFunc := r.Conditions[0].(*ir.FuncCondition)
	if !isFunc {
		v.log.Error(r.Conditions[0].Pos(), diag.ErrInvalidRuleRoot,
			"%s in goal %q must start with a function condition, not a comparison", r.Kind, r.Goal)
		return false
	}
	sig, ok := v.reg.Function(root.Func)
	if !ok {
		v.log.Error(root.Location, diag.ErrUnresolvedFunction, "unknown function %s", root.Func)
		return false
	}
	if root.Negated {
		v.log.Error(root.Location, diag.ErrInvalidRuleRoot, "the first condition of a %s cannot be negated", r.Kind)
		return false
	}
	var valid bool
	switch r.Kind {
	case ir.RuleKindRule:
		valid = sig.Kind == symbols.KindDatabase || sig.Kind == symbols.KindEvent
	case ir.RuleKindProc:
		valid = sig.Kind == symbols.KindUserProc
	case ir.RuleKindQuery:
		valid = sig.Kind == symbols.KindUserQuery
	}
	if !valid {
		v.log.Error(root.Location, diag.ErrInvalidRuleRoot, "%s cannot start with %s %s", r.Kind, sig.Kind, root.Func)
	}
	return valid
}

// joinTarget checks a function condition after the root.
func (v *validator) joinTarget(c *ir.FuncCondition) bool {
	sig, ok := v.reg.Function(c.Func)
	if !ok {
		v.log.Error(c.Location, diag.ErrUnresolvedFunction, "unknown function %s", c.Func)
		return false
	}
	switch sig.Kind {
	case symbols.KindDatabase, symbols.KindRuntimeQuery, symbols.KindAppQuery, symbols.KindUserQuery:
		return true
	}
	v.log.Error(c.Location, diag.ErrInvalidJoinTarget, "%s %s can only be the first condition of a rule", sig.Kind, c.Func)
	return false
}

func (v *validator) requireBound(r *ir.Rule, vals []ir.Value, bound map[int]bool) bool {
	ok := true
	for _, val := range vals {
		if !val.IsVar || bound[val.Var] {
			continue
		}
		vr := r.Variables[val.Var]
		if vr.Unused {
			continue
		}
		v.log.Error(pick(val.Location, r.Location), diag.ErrUnboundVariable,
			"variable %q is used before a condition binds it", vr.Name)
		ok = false
	}
	return ok
}
