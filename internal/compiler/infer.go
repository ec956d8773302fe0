package compiler

import (
	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/ir"
	"github.com/roach88/goalc/internal/symbols"
)

// inferTypes resolves variable annotations, then propagates types between
// variables and untyped signature parameters until nothing changes.
// Parameters that stay untyped are reported with E208.
func inferTypes(goals []*ir.Goal, reg *symbols.Registry, log *diag.Log) {
	for _, g := range goals {
		for _, r := range g.Rules {
			for _, v := range r.Variables {
				if v.Annotation == "" {
					continue
				}
				t, ok := reg.TypeByName(v.Annotation)
				if !ok {
					log.Error(v.Location, diag.ErrUnresolvedType, "unknown type %q for variable %q", v.Annotation, v.Name)
					continue
				}
				v.Type = t
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, g := range goals {
			for _, c := range g.InitFacts {
				changed = unifyCall(reg, c.Func, c.Args, nil) || changed
			}
			for _, c := range g.ExitFacts {
				changed = unifyCall(reg, c.Func, c.Args, nil) || changed
			}
			for _, r := range g.Rules {
				for _, cond := range r.Conditions {
					switch cond := cond.(type) {
					case *ir.FuncCondition:
						changed = unifyCall(reg, cond.Func, cond.Params, r.Variables) || changed
					case *ir.BinaryCondition:
						changed = unifyPair(cond.LHS, cond.RHS, r.Variables) || changed
					}
				}
				for _, c := range r.Actions {
					if !c.GoalCompleted {
						changed = unifyCall(reg, c.Func, c.Args, r.Variables) || changed
					}
				}
			}
		}
	}

	for _, sig := range reg.Functions() {
		if sig.RefreshTyped() {
			continue
		}
		for i, p := range sig.Params {
			if p.Type == nil {
				log.Error(sig.Location, diag.ErrUntypedParameter,
					"cannot infer the type of parameter %d of %s", i+1, sig.NameAndArity())
			}
		}
	}
}

// unifyCall fills untyped variables from typed parameters and untyped
// parameters from typed arguments. It reports whether anything changed.
func unifyCall(reg *symbols.Registry, name symbols.NameAndArity, args []ir.Value, vars []*ir.Variable) bool {
	sig, ok := reg.Function(name)
	if !ok {
		return false
	}
	changed := false
	for i, a := range args {
		p := &sig.Params[i]
		at := valueType(a, vars)
		switch {
		case p.Type == nil && at != nil:
			p.Type = at
			changed = true
		case p.Type != nil && at == nil && a.IsVar:
			vars[a.Var].Type = p.Type
			changed = true
		}
	}
	return changed
}

// unifyPair types an untyped variable from the other side of a comparison.
func unifyPair(lhs, rhs ir.Value, vars []*ir.Variable) bool {
	lt, rt := valueType(lhs, vars), valueType(rhs, vars)
	switch {
	case lt == nil && rt != nil && lhs.IsVar:
		vars[lhs.Var].Type = rt
		return true
	case rt == nil && lt != nil && rhs.IsVar:
		vars[rhs.Var].Type = lt
		return true
	}
	return false
}

func valueType(v ir.Value, vars []*ir.Variable) *symbols.ValueType {
	if v.IsVar {
		if v.Var < len(vars) {
			return vars[v.Var].Type
		}
		return nil
	}
	return v.Const.Type
}

// checkTypes verifies every argument against its parameter and every
// comparison between its operands. Unannotated integer literals widen to
// integer64 and real parameters; the constant is converted in place.
func checkTypes(goals []*ir.Goal, reg *symbols.Registry, log *diag.Log) {
	for _, g := range goals {
		for _, c := range g.InitFacts {
			checkCall(reg, c.Func, c.Args, nil, log)
		}
		for _, c := range g.ExitFacts {
			checkCall(reg, c.Func, c.Args, nil, log)
		}
		for _, r := range g.Rules {
			for _, cond := range r.Conditions {
				switch cond := cond.(type) {
				case *ir.FuncCondition:
					checkCall(reg, cond.Func, cond.Params, r.Variables, log)
				case *ir.BinaryCondition:
					lt, rt := valueType(cond.LHS, r.Variables), valueType(cond.RHS, r.Variables)
					if lt == nil || rt == nil {
						continue
					}
					if lt.Intrinsic != rt.Intrinsic && !(lt.IsNumeric() && rt.IsNumeric()) {
						log.Error(cond.Location, diag.ErrTypeMismatch,
							"cannot compare %s with %s", lt.Name, rt.Name)
					}
				}
			}
			for _, c := range r.Actions {
				if !c.GoalCompleted {
					checkCall(reg, c.Func, c.Args, r.Variables, log)
				}
			}
		}
	}
}

func checkCall(reg *symbols.Registry, name symbols.NameAndArity, args []ir.Value, vars []*ir.Variable, log *diag.Log) {
	sig, ok := reg.Function(name)
	if !ok {
		return
	}
	for i := range args {
		a := &args[i]
		want := sig.Params[i].Type
		got := valueType(*a, vars)
		if want == nil || got == nil {
			continue
		}
		loc := pick(a.Location, sig.Location)
		if got.Intrinsic == want.Intrinsic {
			if want.Intrinsic == symbols.TypeGuidString && got.IsAlias() && want.IsAlias() && got.ID != want.ID {
				log.Warn(loc, diag.WarnGuidAliasMismatch,
					"argument %d of %s is a %s, parameter expects %s", i+1, name, got.Name, want.Name)
			}
			continue
		}
		if !a.IsVar && !a.Const.Annotated && widens(got.Intrinsic, want.Intrinsic) {
			if want.Intrinsic == symbols.TypeReal {
				a.Const.Real, a.Const.Int = float64(a.Const.Int), 0
			}
			a.Const.Type = want
			continue
		}
		log.Error(loc, diag.ErrTypeMismatch,
			"argument %d of %s has type %s, parameter expects %s", i+1, name, got.Name, want.Name)
	}
}

func widens(from, to symbols.TypeID) bool {
	switch from {
	case symbols.TypeInteger:
		return to == symbols.TypeInteger64 || to == symbols.TypeReal
	case symbols.TypeInteger64:
		return to == symbols.TypeReal
	}
	return false
}
