package emit

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/graph"
	"github.com/roach88/goalc/internal/ir"
	"github.com/roach88/goalc/internal/source"
	"github.com/roach88/goalc/internal/symbols"
)

// ============================================================================
// Fixtures
// ============================================================================

type fixture struct {
	t   *testing.T
	reg *symbols.Registry
	log *diag.Log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, reg: symbols.NewRegistry(), log: diag.NewLog()}
}

func (f *fixture) integer() *symbols.ValueType {
	typ, ok := f.reg.TypeByName("INTEGER")
	require.True(f.t, ok)
	return typ
}

// declare registers a function whose parameters are all INTEGER.
func (f *fixture) declare(kind symbols.FunctionKind, name string, arity int) {
	f.t.Helper()
	sig := &symbols.Signature{Kind: kind, Name: name}
	for i := 0; i < arity; i++ {
		sig.Params = append(sig.Params, symbols.Param{Type: f.integer()})
	}
	require.Nil(f.t, f.reg.RegisterFunction(sig))
}

func (f *fixture) emitter(debug bool) *Emitter {
	f.reg.Seal()
	return New(f.reg, f.log, Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		DebugInfo: debug,
	})
}

// vars builds typed rule variables. Names starting with "_" are unused
// singletons.
func (f *fixture) vars(names ...string) []*ir.Variable {
	out := make([]*ir.Variable, len(names))
	for i, n := range names {
		out[i] = &ir.Variable{Index: i, Name: n, Type: f.integer(), Occurrences: 2}
		if n[0] == '_' {
			out[i].Unused, out[i].Occurrences = true, 1
		}
	}
	return out
}

func (f *fixture) intConst(v int64) ir.Value {
	return ir.ConstValue(ir.Constant{Type: f.integer(), Int: v})
}

func fn(name string, args ...ir.Value) *ir.FuncCondition {
	return &ir.FuncCondition{Func: symbols.NameAndArity{Name: name, Arity: len(args)}, Params: args}
}

func call(name string, args ...ir.Value) ir.Call {
	return ir.Call{Func: symbols.NameAndArity{Name: name, Arity: len(args)}, Args: args}
}

func v(i int) ir.Value { return ir.VarValue(i) }

// ============================================================================
// Construction
// ============================================================================

func TestNewRequiresSealedRegistry(t *testing.T) {
	reg := symbols.NewRegistry()
	assert.PanicsWithError(t, "emit: internal error: registry must be sealed before emission", func() {
		New(reg, diag.NewLog(), Options{})
	})
}

func TestNewCopiesTypes(t *testing.T) {
	f := newFixture(t)
	require.Nil(t, f.reg.RegisterType(symbols.ValueType{ID: 6, Intrinsic: symbols.TypeGuidString, Name: "CHARACTERGUID"}, source.Location{}))
	e := f.emitter(false)
	story, info := e.Finish()

	require.Len(t, story.Types, 6)
	assert.Equal(t, "CHARACTERGUID", story.Types[5].Name)
	assert.Nil(t, info, "debug info is only built on request")
}

// ============================================================================
// Adapters
// ============================================================================

func TestCallAdapterColumns(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindDatabase, "DB_X", 5)
	e := f.emitter(false)

	r := &ir.Rule{
		Goal:      "G",
		Variables: f.vars("y", "_u", "x"),
		Conditions: []ir.Condition{
			fn("DB_X", v(0), v(1), v(2), f.intConst(1), v(0)),
		},
	}
	e.EmitGoal(&ir.Goal{Name: "G", Rules: []*ir.Rule{r}})
	story, _ := e.Finish()

	require.NotEmpty(t, story.Adapters)
	a := story.Adapter(1)
	assert.Equal(t, []int{0, -1, 2, -1, 0}, a.LogicalIndices)
	assert.Equal(t, []graph.ColumnMapping{{Logical: 0, Physical: 0}, {Logical: 2, Physical: 2}}, a.LogicalToPhysical)
	assert.Equal(t, []graph.AdapterConstant{{Column: 3, Value: graph.Constant{Type: symbols.TypeInteger, Int: 1}}}, a.Constants)

	root := r.Conditions[0].(*ir.FuncCondition)
	assert.Equal(t, 2, root.TupleSize, "the unused variable does not count")
}

func TestIdentityAdapterIsSharedPerRule(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindDatabase, "DB_A", 1)
	e := f.emitter(false)

	r := &ir.Rule{
		Goal:      "G",
		Variables: f.vars("x"),
		Conditions: []ir.Condition{
			fn("DB_A", v(0)),
			&ir.BinaryCondition{LHS: v(0), Op: ir.OpGreater, RHS: f.intConst(0)},
			&ir.BinaryCondition{LHS: v(0), Op: ir.OpLess, RHS: f.intConst(10)},
		},
	}
	e.EmitGoal(&ir.Goal{Name: "G", Rules: []*ir.Rule{r}})
	story, _ := e.Finish()

	// root call adapter plus one identity adapter
	require.Len(t, story.Adapters, 2)

	filters := story.NodesOfKind(graph.KindRelFilter)
	require.Len(t, filters, 2)
	assert.Equal(t, graph.AdapterID(1), filters[0].(*graph.RelFilterNode).Adapter)
	assert.Equal(t, graph.AdapterID(2), filters[1].(*graph.RelFilterNode).Adapter)

	rules := story.NodesOfKind(graph.KindRule)
	require.Len(t, rules, 1)
	assert.Equal(t, graph.AdapterID(2), rules[0].(*graph.RuleNode).Adapter)
}

// ============================================================================
// Database tracking
// ============================================================================

func TestIndirectionThroughSyntheticDatabase(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindDatabase, "DB_A", 1)
	f.declare(symbols.KindDatabase, "DB_B", 2)
	f.declare(symbols.KindRuntimeQuery, "QRY_C", 1)
	e := f.emitter(false)

	r := &ir.Rule{
		Goal:      "G",
		Variables: f.vars("x", "y"),
		Conditions: []ir.Condition{
			fn("DB_A", v(0)),
			fn("DB_B", v(0), v(1)),
			fn("QRY_C", v(1)),
		},
	}
	e.EmitGoal(&ir.Goal{Name: "G", Rules: []*ir.Rule{r}})
	story, _ := e.Finish()

	// 1 DB_A, 2 DB_B, 3 join, 4 QRY_C, 5 join, 6 rule
	require.Len(t, story.Nodes, 6)

	j1, ok := story.Node(3).(*graph.AndNode)
	require.True(t, ok)
	assert.Equal(t, graph.DatabaseRef{Node: 1, Indirection: 1, RejoinPoint: 1}, j1.Left.Database)
	assert.False(t, j1.Right.Database.Valid(), "the synthetic database replaces right-side tracking")
	require.Equal(t, graph.DatabaseID(3), j1.Database)

	synth := story.Database(3)
	assert.Equal(t, graph.NodeID(3), synth.Owner)
	assert.Empty(t, synth.Name)
	assert.Equal(t, []symbols.TypeID{symbols.TypeInteger, symbols.TypeInteger}, synth.ParamTypes)

	assert.IsType(t, &graph.InternalQueryNode{}, story.Node(4))

	j2, ok := story.Node(5).(*graph.AndNode)
	require.True(t, ok)
	assert.Equal(t, graph.DatabaseRef{Node: 3, Indirection: 1, RejoinPoint: 3}, j2.Left.Database)
	assert.Zero(t, j2.Database)

	rule, ok := story.Node(6).(*graph.RuleNode)
	require.True(t, ok)
	assert.Equal(t, graph.NodeID(5), rule.Parent)
	assert.Equal(t, graph.DatabaseRef{Node: 3, Indirection: 2, RejoinPoint: 3}, rule.ParentDatabase)
	assert.Equal(t, 2, rule.Arity)

	assert.Equal(t, []graph.NodeID{3}, story.Node(1).Hdr().Children)
	assert.Equal(t, []graph.NodeID{3}, story.Node(2).Hdr().Children)
	assert.Equal(t, []graph.NodeID{5}, story.Node(3).Hdr().Children)
	assert.Equal(t, []graph.NodeID{6}, story.Node(5).Hdr().Children)
}

func TestRightSideDatabaseIsTracked(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindEvent, "OnTick", 1)
	f.declare(symbols.KindDatabase, "DB_B", 1)
	e := f.emitter(false)

	neg := fn("DB_B", v(0))
	neg.Negated = true
	r := &ir.Rule{
		Goal:       "G",
		Variables:  f.vars("x"),
		Conditions: []ir.Condition{fn("OnTick", v(0)), neg},
	}
	e.EmitGoal(&ir.Goal{Name: "G", Rules: []*ir.Rule{r}})
	story, _ := e.Finish()

	// 1 OnTick, 2 DB_B, 3 not-and, 4 rule
	require.Len(t, story.Nodes, 4)
	j, ok := story.Node(3).(*graph.NotAndNode)
	require.True(t, ok)
	assert.False(t, j.Left.Database.Valid(), "events own no database")
	assert.Equal(t, graph.DatabaseRef{Node: 2, Indirection: 1, RejoinPoint: 3}, j.Right.Database)
	assert.Zero(t, j.Database)

	rule := story.Node(4).(*graph.RuleNode)
	assert.Equal(t, graph.DatabaseRef{Node: 2, Indirection: 2, RejoinPoint: 3}, rule.ParentDatabase)
}

func TestFilterAdvancesIndirection(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindDatabase, "DB_A", 1)
	e := f.emitter(false)

	r := &ir.Rule{
		Goal:      "G",
		Variables: f.vars("x"),
		Conditions: []ir.Condition{
			fn("DB_A", v(0)),
			&ir.BinaryCondition{LHS: v(0), Op: ir.OpGreater, RHS: f.intConst(0)},
		},
	}
	e.EmitGoal(&ir.Goal{Name: "G", Rules: []*ir.Rule{r}})
	story, _ := e.Finish()

	filter := story.Node(2).(*graph.RelFilterNode)
	assert.Equal(t, graph.DatabaseRef{Node: 1, Indirection: 1, RejoinPoint: 1}, filter.ParentDatabase)
	assert.Equal(t, graph.Operand{IsVar: true, Var: 0}, filter.LHS)
	assert.Equal(t, ">", filter.Op)

	rule := story.Node(3).(*graph.RuleNode)
	assert.Equal(t, graph.DatabaseRef{Node: 1, Indirection: 2, RejoinPoint: 1}, rule.ParentDatabase)
}

// ============================================================================
// Memoization
// ============================================================================

func TestFunctionsAreMemoized(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindDatabase, "DB_A", 1)
	f.declare(symbols.KindDatabase, "DB_B", 1)
	e := f.emitter(false)

	rule := func(i int) *ir.Rule {
		return &ir.Rule{
			Goal:       "G",
			Index:      i,
			Variables:  f.vars("x"),
			Conditions: []ir.Condition{fn("DB_A", v(0))},
			Actions:    []ir.Call{call("DB_B", v(0))},
		}
	}
	e.EmitGoal(&ir.Goal{Name: "G", Rules: []*ir.Rule{rule(0), rule(1)}})
	story, _ := e.Finish()

	a := story.Function("db_a", 1)
	require.NotNil(t, a)
	assert.Equal(t, 2, a.ConditionRefs)
	assert.Zero(t, a.ActionRefs)

	b := story.Function("DB_B", 1)
	require.NotNil(t, b)
	assert.Equal(t, 2, b.ActionRefs)
	assert.NotZero(t, b.Node, "databases get their node on first reference")

	assert.Len(t, story.NodesOfKind(graph.KindDatabase), 2)
	assert.Len(t, story.NodesOfKind(graph.KindRule), 2)
	assert.Same(t, a, e.GetOrEmit(symbols.NameAndArity{Name: "DB_A", Arity: 1}, false))
}

func TestUnresolvedFunctionPanics(t *testing.T) {
	f := newFixture(t)
	e := f.emitter(false)
	assert.Panics(t, func() {
		e.GetOrEmit(symbols.NameAndArity{Name: "Nope", Arity: 0}, true)
	})
}

func TestUserQueryDefinitionNode(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindUserQuery, "QRY_Q", 1)
	f.declare(symbols.KindDatabase, "DB_A", 1)
	e := f.emitter(false)

	r := &ir.Rule{
		Goal:       "G",
		Kind:       ir.RuleKindQuery,
		Variables:  f.vars("x"),
		Conditions: []ir.Condition{fn("QRY_Q", v(0)), fn("DB_A", v(0))},
	}
	e.EmitGoal(&ir.Goal{Name: "G", Rules: []*ir.Rule{r}})
	story, _ := e.Finish()

	query, ok := story.Node(1).(*graph.UserQueryNode)
	require.True(t, ok)
	assert.Equal(t, "QRY_Q", query.Name)
	assert.False(t, query.IsDefinition)
	assert.Equal(t, graph.NodeID(2), query.Definition)

	def, ok := story.Node(2).(*graph.UserQueryNode)
	require.True(t, ok)
	assert.Equal(t, "QRY_Q"+DefinitionSuffix, def.Name)
	assert.True(t, def.IsDefinition)
	assert.Equal(t, []graph.NodeID{4}, def.Children, "the defining chain hangs off the definition node")
	assert.Empty(t, query.Children)

	rule := story.NodesOfKind(graph.KindRule)[0].(*graph.RuleNode)
	assert.Equal(t, "query", rule.Kind)
}

// ============================================================================
// Goals
// ============================================================================

func TestGoalReferencesResolveForward(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindDatabase, "DB_A", 1)
	e := f.emitter(false)

	g1 := &ir.Goal{
		Name:      "G1",
		InitFacts: []ir.Call{call("DB_A", f.intConst(1))},
		ExitFacts: []ir.Call{{GoalCompleted: true, Goal: "G2"}},
	}
	g2 := &ir.Goal{Name: "G2", Parents: []string{"G1"}, InitFacts: []ir.Call{call("DB_A", f.intConst(2))}}
	assert.Equal(t, graph.GoalID(1), e.EmitGoal(g1))
	assert.Equal(t, graph.GoalID(2), e.EmitGoal(g2))
	story, _ := e.Finish()

	first := story.Goal(1)
	require.Len(t, first.ExitCalls, 1)
	assert.Empty(t, first.ExitCalls[0].Name)
	assert.Equal(t, graph.GoalID(2), first.ExitCalls[0].Goal)
	assert.Equal(t, []graph.GoalID{2}, first.Children)

	second := story.GoalByName("g2")
	require.NotNil(t, second)
	assert.Equal(t, []graph.GoalID{1}, second.Parents)

	// only the root goal's INIT facts are stored
	db := story.Database(1)
	require.Len(t, db.Facts, 1)
	assert.Equal(t, []graph.Constant{{Type: symbols.TypeInteger, Int: 1}}, db.Facts[0])
}

func TestUnknownGoalReferencePanics(t *testing.T) {
	f := newFixture(t)
	e := f.emitter(false)
	e.EmitGoal(&ir.Goal{Name: "G1", ExitFacts: []ir.Call{{GoalCompleted: true, Goal: "Missing"}}})

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*InternalError)
		require.True(t, ok)
		assert.Contains(t, err.Message, "Missing")
	}()
	e.Finish()
}

func TestRuleWithUntypedVariableIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindDatabase, "DB_A", 1)
	e := f.emitter(false)

	vars := f.vars("x")
	vars[0].Type = nil
	r := &ir.Rule{Goal: "G", Variables: vars, Conditions: []ir.Condition{fn("DB_A", v(0))}}
	e.EmitGoal(&ir.Goal{Name: "G", Rules: []*ir.Rule{r}})
	story, _ := e.Finish()

	require.Len(t, f.log.WithCode(diag.ErrUnresolvedVariableType), 1)
	assert.Empty(t, story.Nodes)
}

func TestRuleWithoutFunctionRootIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindDatabase, "DB_A", 1)
	e := f.emitter(false)

	filterFirst := &ir.Rule{
		Goal:      "G",
		Index:     0,
		Variables: f.vars("x"),
		Conditions: []ir.Condition{
			&ir.BinaryCondition{LHS: v(0), Op: ir.OpGreater, RHS: f.intConst(0)},
			fn("DB_A", v(0)),
		},
	}
	empty := &ir.Rule{Goal: "G", Index: 1}
	good := &ir.Rule{Goal: "G", Index: 2, Variables: f.vars("x"), Conditions: []ir.Condition{fn("DB_A", v(0))}}

	require.NotPanics(t, func() {
		e.EmitGoal(&ir.Goal{Name: "G", Rules: []*ir.Rule{filterFirst, empty, good}})
	})
	story, _ := e.Finish()

	assert.Len(t, f.log.WithCode(diag.ErrInvalidRuleRoot), 2)
	assert.Len(t, story.NodesOfKind(graph.KindRule), 1, "the valid rule after the bad ones is emitted")
	assert.Empty(t, story.NodesOfKind(graph.KindRelFilter))
}

// ============================================================================
// Header placeholders
// ============================================================================

func TestHeaderFunctionsAlwaysEmitted(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindEvent, "OnTick", 0)
	f.declare(symbols.KindRuntimeCall, "Print", 1)
	f.declare(symbols.KindAppQuery, "QRY_App", 1)
	f.declare(symbols.KindDatabase, "DB_Unused", 1)
	e := f.emitter(false)
	story, _ := e.Finish()

	tick := story.Function("OnTick", 0)
	require.NotNil(t, tick)
	assert.IsType(t, &graph.EventNode{}, story.Node(tick.Node))
	assert.Zero(t, tick.ConditionRefs)

	printFn := story.Function("Print", 1)
	require.NotNil(t, printFn)
	assert.Zero(t, printFn.Node, "calls have no node")

	app := story.Function("QRY_App", 1)
	require.NotNil(t, app)
	assert.IsType(t, &graph.AppQueryNode{}, story.Node(app.Node))

	assert.Nil(t, story.Function("DB_Unused", 1), "unreferenced story functions are not emitted")
}

// ============================================================================
// Debug info
// ============================================================================

func TestDebugInfoMapsRuleNodes(t *testing.T) {
	f := newFixture(t)
	f.declare(symbols.KindDatabase, "DB_A", 1)
	f.declare(symbols.KindDatabase, "DB_B", 1)
	e := f.emitter(true)

	r := &ir.Rule{
		Goal:       "G",
		Variables:  f.vars("x"),
		Conditions: []ir.Condition{fn("DB_A", v(0)), fn("DB_B", v(0))},
	}
	e.EmitGoal(&ir.Goal{Name: "G", Rules: []*ir.Rule{r}})
	story, info := e.Finish()
	require.NotNil(t, info)

	ruleNode := story.NodesOfKind(graph.KindRule)[0].Hdr().ID
	ri, ok := info.RuleByNode(ruleNode)
	require.True(t, ok)
	assert.Equal(t, graph.GoalID(1), ri.Goal)
	assert.Equal(t, ruleNode, ri.Node)

	rules := make(map[graph.NodeID]int)
	for _, n := range info.Nodes {
		rules[n.Node] = n.Rule
	}
	assert.Equal(t, ri.ID, rules[3], "join nodes map back to their rule")
	assert.Zero(t, rules[1], "function nodes belong to no rule")

	_, ok = info.RuleByNode(3)
	assert.False(t, ok, "only terminal nodes identify a rule")
}
