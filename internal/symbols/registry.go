// Package symbols holds the type, function and goal registry of a story.
//
// Entries are created once while the compiler scans declarations and are
// read-only once the registry is sealed. Lookups never fail; they report
// absence through their boolean result.
package symbols

import (
	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/source"
)

// Registry stores types, function signatures and goals.
type Registry struct {
	typesByID   map[TypeID]*ValueType
	typesByName map[string]*ValueType
	types       []*ValueType

	funcs     map[nameKey]*Signature
	funcOrder []*Signature

	goals     map[string]*GoalDef
	goalOrder []*GoalDef

	sealed bool
}

// NewRegistry returns a registry holding only the intrinsic types.
func NewRegistry() *Registry {
	r := &Registry{
		typesByID:   make(map[TypeID]*ValueType),
		typesByName: make(map[string]*ValueType),
		funcs:       make(map[nameKey]*Signature),
		goals:       make(map[string]*GoalDef),
	}
	for i := range intrinsicTypes {
		t := intrinsicTypes[i]
		r.addType(&t)
	}
	return r
}

func (r *Registry) addType(t *ValueType) {
	r.typesByID[t.ID] = t
	r.typesByName[fold(t.Name)] = t
	r.types = append(r.types, t)
}

func (r *Registry) checkWritable() {
	if r.sealed {
		panic("symbols: registry modified after Seal")
	}
}

// Seal makes the registry read-only. Registering afterwards panics.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// RegisterType adds an alias type. It fails when the id is reserved for an
// intrinsic, when the alias target is not an intrinsic id, or when the id or
// the name is already taken.
func (r *Registry) RegisterType(t ValueType, loc source.Location) *diag.Diagnostic {
	r.checkWritable()
	if t.ID <= MaxIntrinsic {
		return diag.Errorf(loc, diag.ErrReservedTypeID,
			"type %q uses id %d reserved for intrinsic types", t.Name, t.ID)
	}
	if t.Intrinsic == TypeNone || t.Intrinsic > MaxIntrinsic {
		return diag.Errorf(loc, diag.ErrInvalidAliasTarget,
			"type %q aliases intrinsic id %d, which is not an intrinsic type", t.Name, t.Intrinsic)
	}
	if existing, ok := r.typesByID[t.ID]; ok {
		return diag.Errorf(loc, diag.ErrDuplicateTypeID,
			"type id %d of %q is already used by %q", t.ID, t.Name, existing.Name)
	}
	if _, ok := r.typesByName[fold(t.Name)]; ok {
		return diag.Errorf(loc, diag.ErrDuplicateTypeName, "type %q is already declared", t.Name)
	}
	r.addType(&t)
	return nil
}

// TypeByID looks up a type by id.
func (r *Registry) TypeByID(id TypeID) (*ValueType, bool) {
	t, ok := r.typesByID[id]
	return t, ok
}

// TypeByName looks up a type by case-insensitive name.
func (r *Registry) TypeByName(name string) (*ValueType, bool) {
	t, ok := r.typesByName[fold(name)]
	return t, ok
}

// Types returns every type in registration order, intrinsics first.
func (r *Registry) Types() []*ValueType {
	out := make([]*ValueType, len(r.types))
	copy(out, r.types)
	return out
}

// RegisterFunction adds a signature. Overloading is by arity only, so a
// second signature with the same name and parameter count is rejected.
func (r *Registry) RegisterFunction(sig *Signature) *diag.Diagnostic {
	r.checkWritable()
	key := sig.NameAndArity().key()
	if existing, ok := r.funcs[key]; ok {
		return diag.Errorf(sig.Location, diag.ErrDuplicateFunction,
			"%s is already declared as %s", sig.NameAndArity(), existing.Kind)
	}
	sig.RefreshTyped()
	r.funcs[key] = sig
	r.funcOrder = append(r.funcOrder, sig)
	return nil
}

// Function looks up a signature by name and arity.
func (r *Registry) Function(name NameAndArity) (*Signature, bool) {
	sig, ok := r.funcs[name.key()]
	return sig, ok
}

// Functions returns every signature in registration order.
func (r *Registry) Functions() []*Signature {
	out := make([]*Signature, len(r.funcOrder))
	copy(out, r.funcOrder)
	return out
}

// RegisterGoal adds a goal. Goal names are unique, case-insensitively.
func (r *Registry) RegisterGoal(g GoalDef) *diag.Diagnostic {
	r.checkWritable()
	key := fold(g.Name)
	if existing, ok := r.goals[key]; ok {
		return diag.Errorf(g.Location, diag.ErrDuplicateGoal,
			"goal %q is already declared at %s", g.Name, existing.Location)
	}
	g.Index = len(r.goalOrder)
	r.goals[key] = &g
	r.goalOrder = append(r.goalOrder, &g)
	return nil
}

// Goal looks up a goal by name.
func (r *Registry) Goal(name string) (*GoalDef, bool) {
	g, ok := r.goals[fold(name)]
	return g, ok
}

// Goals returns every goal in registration order.
func (r *Registry) Goals() []*GoalDef {
	out := make([]*GoalDef, len(r.goalOrder))
	copy(out, r.goalOrder)
	return out
}
