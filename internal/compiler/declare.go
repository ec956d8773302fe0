package compiler

import (
	"strings"

	"github.com/roach88/goalc/internal/ast"
	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/ir"
	"github.com/roach88/goalc/internal/source"
	"github.com/roach88/goalc/internal/symbols"
)

// declareHeader registers the types and functions of the story header.
// A function with a parameter of unknown type is still registered, with
// that parameter left untyped, so later references resolve.
func declareHeader(story *ast.Story, reg *symbols.Registry, log *diag.Log) {
	for _, t := range story.Types {
		log.Add(reg.RegisterType(symbols.ValueType{
			ID:        symbols.TypeID(t.ID),
			Intrinsic: symbols.TypeID(t.Intrinsic),
			Name:      t.Name,
		}, t.Location))
	}

	for _, f := range story.Functions {
		kind, ok := symbols.ParseFunctionKind(f.Kind)
		if !ok {
			log.Error(f.Location, diag.ErrMalformedSyntax, "function %q has unknown kind %q", f.Name, f.Kind)
			continue
		}
		sig := &symbols.Signature{Kind: kind, Name: f.Name, Location: f.Location}
		for _, p := range f.Params {
			param := symbols.Param{Name: p.Name, Direction: symbols.DirIn}
			if p.Out {
				param.Direction = symbols.DirOut
			}
			if t, ok := reg.TypeByName(p.Type); ok {
				param.Type = t
			} else {
				log.Error(f.Location, diag.ErrUnresolvedType,
					"parameter %q of %s has unknown type %q", p.Name, f.Name, p.Type)
			}
			sig.Params = append(sig.Params, param)
		}
		log.Add(reg.RegisterFunction(sig))
	}
}

// declareImplicit registers the user functions a story defines by use:
// proc and query rule heads, and databases. Names written by a fact or an
// action, or carrying the database prefix, become databases. Names that
// are only ever read and match nothing stay unresolved.
func declareImplicit(goals []*ir.Goal, reg *symbols.Registry, naming Naming) {
	for _, g := range goals {
		for _, r := range g.Rules {
			root, ok := r.Conditions[0].(*ir.FuncCondition)
			if !ok {
				continue
			}
			switch r.Kind {
			case ir.RuleKindProc:
				declareUser(reg, symbols.KindUserProc, root.Func, root.Params, r.Variables, root.Location)
			case ir.RuleKindQuery:
				declareUser(reg, symbols.KindUserQuery, root.Func, root.Params, r.Variables, root.Location)
			}
		}
	}

	for _, g := range goals {
		for _, c := range g.InitFacts {
			declareWritten(reg, c, nil)
		}
		for _, r := range g.Rules {
			for _, c := range r.Actions {
				declareWritten(reg, c, r.Variables)
			}
			for _, cond := range r.Conditions {
				fc, ok := cond.(*ir.FuncCondition)
				if !ok || naming.DatabasePrefix == "" || !hasPrefixFold(fc.Func.Name, naming.DatabasePrefix) {
					continue
				}
				declareUser(reg, symbols.KindDatabase, fc.Func, fc.Params, r.Variables, fc.Location)
			}
		}
		for _, c := range g.ExitFacts {
			declareWritten(reg, c, nil)
		}
	}
}

func declareWritten(reg *symbols.Registry, c ir.Call, vars []*ir.Variable) {
	if c.GoalCompleted {
		return
	}
	declareUser(reg, symbols.KindDatabase, c.Func, c.Args, vars, c.Location)
}

// declareUser registers an untyped signature unless name is already known.
// Parameter names are taken from variables at the declaring site.
func declareUser(reg *symbols.Registry, kind symbols.FunctionKind, name symbols.NameAndArity,
	args []ir.Value, vars []*ir.Variable, loc source.Location) {
	if _, ok := reg.Function(name); ok {
		return
	}
	sig := &symbols.Signature{Kind: kind, Name: name.Name, Location: loc}
	for _, a := range args {
		p := symbols.Param{Direction: symbols.DirIn}
		if a.IsVar && a.Var < len(vars) {
			p.Name = vars[a.Var].Name
		}
		sig.Params = append(sig.Params, p)
	}
	// Cannot collide: the lookup above failed.
	_ = reg.RegisterFunction(sig)
}

// checkNaming warns about user functions missing their conventional prefix.
func checkNaming(reg *symbols.Registry, naming Naming, log *diag.Log) {
	for _, sig := range reg.Functions() {
		var prefix, what string
		switch sig.Kind {
		case symbols.KindDatabase:
			prefix, what = naming.DatabasePrefix, "database"
		case symbols.KindUserProc:
			prefix, what = naming.ProcPrefix, "proc"
		case symbols.KindUserQuery:
			prefix, what = naming.QueryPrefix, "query"
		default:
			continue
		}
		if prefix != "" && !hasPrefixFold(sig.Name, prefix) {
			log.Warn(sig.Location, diag.WarnNamingConvention,
				"%s %s should be named with the %q prefix", what, sig.NameAndArity(), prefix)
		}
	}
}

// markUsage sets the Read, Inserted and Deleted flags of every referenced
// signature.
func markUsage(goals []*ir.Goal, reg *symbols.Registry) {
	write := func(c ir.Call) {
		if c.GoalCompleted {
			return
		}
		sig, ok := reg.Function(c.Func)
		if !ok {
			return
		}
		if c.Negated {
			sig.Deleted = true
		} else {
			sig.Inserted = true
		}
	}
	for _, g := range goals {
		for _, c := range g.InitFacts {
			write(c)
		}
		for _, c := range g.ExitFacts {
			write(c)
		}
		for _, r := range g.Rules {
			for _, cond := range r.Conditions {
				if fc, ok := cond.(*ir.FuncCondition); ok {
					if sig, ok := reg.Function(fc.Func); ok {
						sig.Read = true
					}
				}
			}
			for _, c := range r.Actions {
				write(c)
			}
		}
	}
}

// checkUsage warns about databases that are only written or only read.
func checkUsage(reg *symbols.Registry, log *diag.Log) {
	for _, sig := range reg.Functions() {
		if sig.Kind != symbols.KindDatabase {
			continue
		}
		switch {
		case (sig.Inserted || sig.Deleted) && !sig.Read:
			log.Warn(sig.Location, diag.WarnDatabaseNotRead, "database %s is written but never read", sig.NameAndArity())
		case sig.Read && !sig.Inserted:
			log.Warn(sig.Location, diag.WarnDatabaseNotWritten, "database %s is read but never written", sig.NameAndArity())
		}
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
