// Package emit builds the evaluation graph from validated IR goals.
//
// Emission runs per goal, then per rule. Function nodes are memoized by
// signature (see Emitter.GetOrEmit); every rule becomes a chain of join and
// filter nodes from its root condition to a terminal rule node. References
// between goals are resolved in deferred passes once every goal has an id.
package emit

import (
	"fmt"
	"log/slog"

	"github.com/roach88/goalc/internal/debuginfo"
	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/graph"
	"github.com/roach88/goalc/internal/ir"
	"github.com/roach88/goalc/internal/symbols"
)

// DefinitionSuffix is appended to a user query's name to name the node
// rooting its defining rules.
const DefinitionSuffix = "__DEF__"

// InternalError is an emitter invariant violation. It is raised by panic
// and never reported as a diagnostic.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "emit: internal error: " + e.Message
}

func internalf(format string, args ...any) {
	panic(&InternalError{Message: fmt.Sprintf(format, args...)})
}

// Options configures an Emitter.
type Options struct {
	Logger    *slog.Logger
	DebugInfo bool
}

// funcEntry is the memoized emission state of one signature.
type funcEntry struct {
	sig  *symbols.Signature
	fn   *graph.Function
	node graph.NodeID
	def  graph.NodeID // user-query definition node
}

type pendingGoalRef struct {
	call *graph.Call
	goal string
}

type pendingParents struct {
	child   graph.GoalID
	parents []string
}

// Emitter accumulates one story's graph.
type Emitter struct {
	reg    *symbols.Registry
	log    *diag.Log
	logger *slog.Logger
	debug  *debuginfo.Builder
	story  *graph.Story

	funcs   map[*symbols.Signature]*funcEntry // one pointer per name+arity in a sealed registry
	goalIDs map[string]graph.GoalID

	goalRefs []pendingGoalRef
	parents  []pendingParents
}

// New returns an emitter over a sealed registry.
func New(reg *symbols.Registry, log *diag.Log, opts Options) *Emitter {
	if !reg.Sealed() {
		internalf("registry must be sealed before emission")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Emitter{
		reg:     reg,
		log:     log,
		logger:  logger,
		story:   &graph.Story{},
		funcs:   make(map[*symbols.Signature]*funcEntry),
		goalIDs: make(map[string]graph.GoalID),
	}
	if opts.DebugInfo {
		e.debug = debuginfo.NewBuilder()
	}
	for _, t := range reg.Types() {
		e.story.Types = append(e.story.Types, *t)
	}
	return e
}

// Emit emits every goal and runs the deferred passes.
func Emit(reg *symbols.Registry, goals []*ir.Goal, log *diag.Log, opts Options) (*graph.Story, *debuginfo.Info) {
	e := New(reg, log, opts)
	for _, g := range goals {
		e.EmitGoal(g)
	}
	return e.Finish()
}

// Finish resolves goal references, wires parent/child goals and adds
// placeholders for unreferenced header functions. The emitter must not be
// used afterwards.
func (e *Emitter) Finish() (*graph.Story, *debuginfo.Info) {
	e.resolveGoalRefs()
	e.wireGoals()
	e.emitHeaderPlaceholders()
	return e.story, e.debug.Info()
}

// GetOrEmit returns the memoized entry for a function, emitting its record
// and node on first use. Database and proc nodes are created eagerly;
// event and query nodes only once the function is referenced as a
// condition. Each call counts one condition or action reference.
func (e *Emitter) GetOrEmit(name symbols.NameAndArity, asCondition bool) *graph.Function {
	return e.getOrEmit(name, asCondition).fn
}

func (e *Emitter) getOrEmit(name symbols.NameAndArity, asCondition bool) *funcEntry {
	sig, ok := e.reg.Function(name)
	if !ok {
		internalf("unresolved function %s reached the emitter", name)
	}
	ent := e.entry(sig)
	if asCondition {
		e.ensureNode(ent)
		ent.fn.ConditionRefs++
	} else {
		ent.fn.ActionRefs++
	}
	return ent
}

func (e *Emitter) entry(sig *symbols.Signature) *funcEntry {
	if ent, ok := e.funcs[sig]; ok {
		return ent
	}
	fn := &graph.Function{
		Name:  sig.Name,
		Arity: len(sig.Params),
		Kind:  sig.Kind,
	}
	for _, p := range sig.Params {
		fn.Params = append(fn.Params, graph.Param{Type: typeID(p.Type), Out: p.Direction == symbols.DirOut})
	}
	ent := &funcEntry{sig: sig, fn: fn}
	e.funcs[sig] = ent
	e.story.Functions = append(e.story.Functions, fn)

	switch sig.Kind {
	case symbols.KindDatabase:
		ent.node = e.emitDatabase(sig)
	case symbols.KindUserProc:
		ent.node = e.addNode(&graph.ProcNode{NodeHeader: header(sig)})
		e.debug.AddNode(ent.node, graph.KindProc, sig.Name, sig.Location)
	}
	fn.Node = ent.node
	e.debug.AddFunction(sig, ent.node)
	return ent
}

// ensureNode creates the lazily allocated node of an event or query.
func (e *Emitter) ensureNode(ent *funcEntry) {
	if ent.node != 0 {
		return
	}
	var (
		n    graph.Node
		kind graph.NodeKind
	)
	h := header(ent.sig)
	switch ent.sig.Kind {
	case symbols.KindEvent:
		n, kind = &graph.EventNode{NodeHeader: h}, graph.KindEvent
	case symbols.KindAppQuery:
		n, kind = &graph.AppQueryNode{NodeHeader: h}, graph.KindAppQuery
	case symbols.KindRuntimeQuery:
		n, kind = &graph.InternalQueryNode{NodeHeader: h}, graph.KindInternalQuery
	case symbols.KindUserQuery:
		n, kind = &graph.UserQueryNode{NodeHeader: h}, graph.KindUserQuery
	default:
		internalf("%s %s cannot have a condition node", ent.sig.Kind, ent.sig.NameAndArity())
	}
	ent.node = e.addNode(n)
	ent.fn.Node = ent.node
	e.debug.AddNode(ent.node, kind, ent.sig.Name, ent.sig.Location)
	e.debug.SetFunctionNode(ent.sig.NameAndArity(), ent.node)
}

// definitionNode returns the node rooting a user query's defining rules,
// creating it on first use.
func (e *Emitter) definitionNode(ent *funcEntry) graph.NodeID {
	if ent.def != 0 {
		return ent.def
	}
	h := header(ent.sig)
	h.Name += DefinitionSuffix
	ent.def = e.addNode(&graph.UserQueryNode{NodeHeader: h, IsDefinition: true})
	query, ok := e.story.Node(ent.node).(*graph.UserQueryNode)
	if !ok {
		internalf("query node of %s is missing", ent.sig.NameAndArity())
	}
	query.Definition = ent.def
	e.debug.AddNode(ent.def, graph.KindUserQuery, h.Name, ent.sig.Location)
	return ent.def
}

func (e *Emitter) emitDatabase(sig *symbols.Signature) graph.NodeID {
	db := &graph.Database{
		ID:         graph.DatabaseID(len(e.story.Databases) + 1),
		Name:       sig.Name,
		ParamTypes: make([]symbols.TypeID, 0, len(sig.Params)),
	}
	for _, p := range sig.Params {
		db.ParamTypes = append(db.ParamTypes, typeID(p.Type))
	}
	e.story.Databases = append(e.story.Databases, db)

	h := header(sig)
	h.Database = db.ID
	db.Owner = e.addNode(&graph.DatabaseNode{NodeHeader: h})
	e.debug.AddDatabase(db.ID, sig)
	e.debug.AddNode(db.Owner, graph.KindDatabase, sig.Name, sig.Location)
	return db.Owner
}

func (e *Emitter) addNode(n graph.Node) graph.NodeID {
	h := n.Hdr()
	h.ID = graph.NodeID(len(e.story.Nodes) + 1)
	e.story.Nodes = append(e.story.Nodes, n)
	return h.ID
}

func (e *Emitter) addAdapter(a *graph.Adapter) graph.AdapterID {
	a.ID = graph.AdapterID(len(e.story.Adapters) + 1)
	e.story.Adapters = append(e.story.Adapters, a)
	return a.ID
}

func (e *Emitter) addChild(parent, child graph.NodeID) {
	h := e.story.Node(parent).Hdr()
	h.Children = append(h.Children, child)
}

func (e *Emitter) ownsDatabase(id graph.NodeID) bool {
	return e.story.Node(id).Hdr().Database != 0
}

// EmitGoal emits one goal: its facts, its rules and (deferred) its goal
// references and parent edges.
func (e *Emitter) EmitGoal(g *ir.Goal) graph.GoalID {
	out := &graph.Goal{
		ID:   graph.GoalID(len(e.story.Goals) + 1),
		Name: g.Name,
	}
	e.story.Goals = append(e.story.Goals, out)
	e.goalIDs[g.Name] = out.ID
	e.debug.AddGoal(out.ID, g.Name, g.Location)

	out.InitCalls = e.calls(g.InitFacts, nil)
	if len(g.Parents) == 0 {
		e.storeFacts(g.InitFacts)
	}
	for _, r := range g.Rules {
		e.emitRule(out.ID, r)
	}
	out.ExitCalls = e.calls(g.ExitFacts, nil)

	if len(g.Parents) > 0 {
		e.parents = append(e.parents, pendingParents{child: out.ID, parents: g.Parents})
	}
	e.logger.Debug("goal emitted", "goal", g.Name, "id", out.ID, "rules", len(g.Rules))
	return out.ID
}

// storeFacts records the INIT facts of a root goal as database contents:
// they hold from the start of the story.
func (e *Emitter) storeFacts(facts []ir.Call) {
	for _, f := range facts {
		if f.GoalCompleted || f.Negated {
			continue
		}
		ent := e.funcs[e.mustSignature(f.Func)]
		if ent == nil || ent.sig.Kind != symbols.KindDatabase {
			continue
		}
		db := e.story.Database(e.story.Node(ent.node).Hdr().Database)
		row := make([]graph.Constant, len(f.Args))
		for i, a := range f.Args {
			row[i] = constant(a.Const)
		}
		db.Facts = append(db.Facts, row)
	}
}

func (e *Emitter) mustSignature(name symbols.NameAndArity) *symbols.Signature {
	sig, ok := e.reg.Function(name)
	if !ok {
		internalf("unresolved function %s reached the emitter", name)
	}
	return sig
}

// calls converts facts or actions. Goal completion calls are queued for
// resolution once every goal has an id.
func (e *Emitter) calls(src []ir.Call, vars []*ir.Variable) []graph.Call {
	if len(src) == 0 {
		return nil
	}
	out := make([]graph.Call, len(src))
	for i, c := range src {
		if c.GoalCompleted {
			continue
		}
		ent := e.getOrEmit(c.Func, false)
		call := graph.Call{Name: ent.sig.Name, Negated: c.Negated}
		for _, a := range c.Args {
			if a.IsVar {
				if a.Var >= len(vars) {
					internalf("call %s references variable %d outside its rule", c.Func, a.Var)
				}
				call.Args = append(call.Args, graph.CallArg{IsVar: true, Var: a.Var})
				continue
			}
			call.Args = append(call.Args, graph.CallArg{Const: constant(a.Const)})
		}
		out[i] = call
	}
	for i, c := range src {
		if c.GoalCompleted {
			e.goalRefs = append(e.goalRefs, pendingGoalRef{call: &out[i], goal: c.Goal})
		}
	}
	return out
}

func (e *Emitter) resolveGoalRefs() {
	for _, ref := range e.goalRefs {
		id, ok := e.goalIDs[ref.goal]
		if !ok {
			internalf("goal completion references unknown goal %q", ref.goal)
		}
		ref.call.Goal = id
	}
	e.goalRefs = nil
}

func (e *Emitter) wireGoals() {
	for _, p := range e.parents {
		child := e.story.Goal(p.child)
		for _, name := range p.parents {
			id, ok := e.goalIDs[name]
			if !ok {
				internalf("goal %q has unknown parent %q", child.Name, name)
			}
			child.Parents = append(child.Parents, id)
			parent := e.story.Goal(id)
			parent.Children = append(parent.Children, child.ID)
		}
	}
	e.parents = nil
}

// emitHeaderPlaceholders makes sure every runtime and application function
// is represented, referenced or not.
func (e *Emitter) emitHeaderPlaceholders() {
	for _, sig := range e.reg.Functions() {
		if !sig.Kind.IsHeaderKind() {
			continue
		}
		if _, ok := e.funcs[sig]; ok {
			continue
		}
		ent := e.entry(sig)
		if !sig.Kind.IsCall() {
			e.ensureNode(ent)
		}
	}
}

func header(sig *symbols.Signature) graph.NodeHeader {
	return graph.NodeHeader{Name: sig.Name, Arity: len(sig.Params)}
}

func typeID(t *symbols.ValueType) symbols.TypeID {
	if t == nil {
		return symbols.TypeNone
	}
	return t.ID
}

func constant(c ir.Constant) graph.Constant {
	return graph.Constant{Type: typeID(c.Type), Int: c.Int, Real: c.Real, Str: c.Str}
}
