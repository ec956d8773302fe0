package compiler

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/goalc/internal/ast"
	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/graph"
	"github.com/roach88/goalc/internal/symbols"
)

func testOptions() Options {
	return Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Naming: DefaultNaming(),
	}
}

func codes(log *diag.Log) []diag.Code {
	var out []diag.Code
	for _, d := range log.Entries() {
		out = append(out, d.Code)
	}
	return out
}

func rule(conds []ast.Condition, actions ...ast.Statement) ast.Rule {
	return ast.Rule{Conditions: conds, Actions: actions}
}

func conds(c ...ast.Condition) []ast.Condition { return c }

// seedStory stores one fact, doubles positive seeds, and hands over to G2.
func seedStory() *ast.Story {
	return &ast.Story{
		Types: []ast.TypeDecl{{ID: 6, Name: "CHARACTERGUID", Intrinsic: 5}},
		Functions: []ast.FunctionDecl{{
			Kind:   "event",
			Name:   "CharacterDied",
			Params: []ast.ParamDecl{{Name: "Character", Type: "CHARACTERGUID"}},
		}},
		Goals: []ast.Goal{
			{
				Name: "G1",
				Init: []ast.Statement{ast.Do(ast.Fn("DB_Seed", ast.Int(1)))},
				KB: []ast.Rule{rule(
					conds(
						ast.If(ast.Fn("DB_Seed", ast.Var("x"))),
						ast.Cmp(ast.Var("x"), ">", ast.Int(0)),
					),
					ast.Do(ast.Fn("DB_Doubled", ast.Var("x"), ast.Int(2))),
				)},
				Exit: []ast.Statement{ast.Complete("G2")},
			},
			{Name: "G2", Parents: []string{"G1"}},
		},
	}
}

// ============================================================================
// End to end
// ============================================================================

func TestCompileSeedStory(t *testing.T) {
	res := Compile(seedStory(), testOptions())
	require.NoError(t, res.Err())
	assert.Equal(t, []diag.Code{diag.WarnDatabaseNotRead}, codes(res.Diagnostics))

	s := res.Story
	counts := s.CountByKind()
	assert.Equal(t, 2, counts[graph.KindDatabase])
	assert.Equal(t, 1, counts[graph.KindRelFilter])
	assert.Equal(t, 1, counts[graph.KindRule])
	assert.Equal(t, 1, counts[graph.KindEvent], "unreferenced events still get a node")
	assert.Len(t, s.Nodes, 5)

	seed := s.Function("DB_Seed", 1)
	require.NotNil(t, seed)
	assert.Equal(t, []graph.Param{{Type: symbols.TypeInteger}}, seed.Params)
	assert.Equal(t, 1, seed.ConditionRefs)
	assert.Equal(t, 1, seed.ActionRefs)

	db := s.Database(1)
	assert.Equal(t, "DB_Seed", db.Name)
	assert.Equal(t, [][]graph.Constant{{{Type: symbols.TypeInteger, Int: 1}}}, db.Facts)

	rn, ok := s.Node(3).(*graph.RuleNode)
	require.True(t, ok)
	assert.Equal(t, graph.NodeID(2), rn.Parent)
	assert.Equal(t, graph.DatabaseRef{Node: 1, Indirection: 2, RejoinPoint: 1}, rn.ParentDatabase)
	require.Len(t, rn.Actions, 1)
	assert.Equal(t, "DB_Doubled", rn.Actions[0].Name)
	assert.Equal(t, []graph.CallArg{
		{IsVar: true, Var: 0},
		{Const: graph.Constant{Type: symbols.TypeInteger, Int: 2}},
	}, rn.Actions[0].Args)

	g1, g2 := s.GoalByName("G1"), s.GoalByName("G2")
	require.NotNil(t, g1)
	require.NotNil(t, g2)
	assert.Equal(t, g2.ID, g1.ExitCalls[0].Goal)
	assert.Equal(t, []graph.GoalID{g1.ID}, g2.Parents)
	assert.Equal(t, []graph.GoalID{g2.ID}, g1.Children)
}

func TestCompileIsDeterministic(t *testing.T) {
	a := Compile(seedStory(), testOptions())
	b := Compile(seedStory(), testOptions())

	if diff := cmp.Diff(a.Story, b.Story); diff != "" {
		t.Errorf("story differs between runs (-first +second):\n%s", diff)
	}

	fa, err := graph.Fingerprint(a.Story)
	require.NoError(t, err)
	fb, err := graph.Fingerprint(b.Story)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}

func TestCompileDebugInfo(t *testing.T) {
	opts := testOptions()
	opts.DebugInfo = true
	res := Compile(seedStory(), opts)
	require.NotNil(t, res.Debug)

	ri, ok := res.Debug.RuleByNode(3)
	require.True(t, ok)
	assert.Equal(t, "rule", ri.Kind)
	require.Len(t, ri.Variables, 1)
	assert.Equal(t, "x", ri.Variables[0].Name)
	assert.Equal(t, symbols.TypeInteger, ri.Variables[0].Type)
}

// ============================================================================
// Options
// ============================================================================

// singletonStory produces exactly one W406 (y) and one W403 (DB_B).
func singletonStory() *ast.Story {
	return &ast.Story{Goals: []ast.Goal{{
		Name: "G",
		Init: []ast.Statement{ast.Do(ast.Fn("DB_A", ast.Int(1), ast.Int(2)))},
		KB: []ast.Rule{rule(
			conds(ast.If(ast.Fn("DB_A", ast.Var("x"), ast.Var("y")))),
			ast.Do(ast.Fn("DB_B", ast.Var("x"))),
		)},
	}}}
}

func TestCompileSuppression(t *testing.T) {
	res := Compile(singletonStory(), testOptions())
	assert.Len(t, res.Diagnostics.WithCode(diag.WarnSingletonVariable), 1)
	assert.Len(t, res.Diagnostics.WithCode(diag.WarnDatabaseNotRead), 1)

	opts := testOptions()
	opts.Suppress = []diag.Code{diag.WarnSingletonVariable}
	res = Compile(singletonStory(), opts)
	assert.Empty(t, res.Diagnostics.WithCode(diag.WarnSingletonVariable))
	assert.Len(t, res.Diagnostics.WithCode(diag.WarnDatabaseNotRead), 1)
	assert.NoError(t, res.Err())
}

func TestCompileWarningsAsErrors(t *testing.T) {
	opts := testOptions()
	opts.WarningsAsErrors = true
	res := Compile(singletonStory(), opts)
	require.Error(t, res.Err())
	assert.Equal(t, 2, res.Diagnostics.Count(diag.LevelError))
	assert.Zero(t, res.Diagnostics.Count(diag.LevelWarning))
}

func TestCompileCustomNaming(t *testing.T) {
	story := &ast.Story{Goals: []ast.Goal{{
		Name: "G",
		Init: []ast.Statement{ast.Do(ast.Fn("Seed", ast.Int(1)))},
		KB: []ast.Rule{rule(
			conds(ast.If(ast.Fn("Seed", ast.Var("x")))),
			ast.Do(ast.Fn("Seed2", ast.Var("x"))),
			ast.Do(ast.Not(ast.Fn("Seed", ast.Var("x")))),
		)},
	}}}

	res := Compile(story, testOptions())
	assert.Len(t, res.Diagnostics.WithCode(diag.WarnNamingConvention), 2)

	opts := testOptions()
	opts.Naming = Naming{}
	res = Compile(story, opts)
	assert.Empty(t, res.Diagnostics.WithCode(diag.WarnNamingConvention))
	assert.NoError(t, res.Err())
}

// ============================================================================
// Diagnostics
// ============================================================================

func TestCompileDiagnostics(t *testing.T) {
	intParam := func(name string) ast.ParamDecl { return ast.ParamDecl{Name: name, Type: "INTEGER"} }

	tests := []struct {
		name  string
		story ast.Story
		code  diag.Code
	}{
		{
			name:  "reserved type id",
			story: ast.Story{Types: []ast.TypeDecl{{ID: 3, Name: "MINE", Intrinsic: 5}}},
			code:  diag.ErrReservedTypeID,
		},
		{
			name: "duplicate function",
			story: ast.Story{Functions: []ast.FunctionDecl{
				{Kind: "event", Name: "OnTick", Params: []ast.ParamDecl{intParam("a")}},
				{Kind: "runtime-query", Name: "onTick", Params: []ast.ParamDecl{intParam("b")}},
			}},
			code: diag.ErrDuplicateFunction,
		},
		{
			name:  "duplicate goal",
			story: ast.Story{Goals: []ast.Goal{{Name: "G"}, {Name: "g"}}},
			code:  diag.ErrDuplicateGoal,
		},
		{
			name: "unknown parameter type",
			story: ast.Story{Functions: []ast.FunctionDecl{
				{Kind: "event", Name: "OnTick", Params: []ast.ParamDecl{{Name: "a", Type: "NOPE"}}},
			}},
			code: diag.ErrUnresolvedType,
		},
		{
			name: "unknown function kind",
			story: ast.Story{Functions: []ast.FunctionDecl{
				{Kind: "trigger", Name: "OnTick"},
			}},
			code: diag.ErrMalformedSyntax,
		},
		{
			name: "unknown join target",
			story: ast.Story{Goals: []ast.Goal{{
				Name: "G",
				Init: []ast.Statement{ast.Do(ast.Fn("DB_A", ast.Int(1)))},
				KB: []ast.Rule{rule(conds(
					ast.If(ast.Fn("DB_A", ast.Var("x"))),
					ast.If(ast.Fn("Mystery", ast.Var("x"))),
				))},
			}}},
			code: diag.ErrUnresolvedFunction,
		},
		{
			name:  "unknown parent",
			story: ast.Story{Goals: []ast.Goal{{Name: "G", Parents: []string{"Nope"}}}},
			code:  diag.ErrUnresolvedGoal,
		},
		{
			name:  "unknown completed goal",
			story: ast.Story{Goals: []ast.Goal{{Name: "G", Exit: []ast.Statement{ast.Complete("Nope")}}}},
			code:  diag.ErrUnresolvedGoal,
		},
		{
			name: "variable bound only under NOT",
			story: ast.Story{Goals: []ast.Goal{{
				Name: "G",
				Init: []ast.Statement{
					ast.Do(ast.Fn("DB_A", ast.Int(1))),
					ast.Do(ast.Fn("DB_B", ast.Int(1), ast.Int(2))),
				},
				KB: []ast.Rule{rule(
					conds(
						ast.If(ast.Fn("DB_A", ast.Var("x"))),
						ast.If(ast.Not(ast.Fn("DB_B", ast.Var("x"), ast.Var("y")))),
					),
					ast.Do(ast.Fn("DB_C", ast.Var("y"))),
				)},
			}}},
			code: diag.ErrUnboundVariable,
		},
		{
			name: "fact type mismatch",
			story: ast.Story{Goals: []ast.Goal{{
				Name: "G",
				Init: []ast.Statement{
					ast.Do(ast.Fn("DB_A", ast.Int(1))),
					ast.Do(ast.Fn("DB_A", ast.Str("one"))),
				},
			}}},
			code: diag.ErrTypeMismatch,
		},
		{
			name: "comparison type mismatch",
			story: ast.Story{Goals: []ast.Goal{{
				Name: "G",
				Init: []ast.Statement{ast.Do(ast.Fn("DB_A", ast.Int(1)))},
				KB: []ast.Rule{rule(conds(
					ast.If(ast.Fn("DB_A", ast.Var("x"))),
					ast.Cmp(ast.Var("x"), "==", ast.Str("1")),
				))},
			}}},
			code: diag.ErrTypeMismatch,
		},
		{
			name: "parent cycle",
			story: ast.Story{Goals: []ast.Goal{
				{Name: "A", Parents: []string{"B"}},
				{Name: "B", Parents: []string{"A"}},
			}},
			code: diag.ErrGoalCycle,
		},
		{
			name: "untyped database parameter",
			story: ast.Story{
				Functions: []ast.FunctionDecl{{Kind: "event", Name: "OnTick", Params: []ast.ParamDecl{intParam("a")}}},
				Goals: []ast.Goal{{
					Name: "G",
					KB: []ast.Rule{rule(
						conds(ast.If(ast.Fn("OnTick", ast.Var("x")))),
						ast.Do(ast.Fn("DB_Z", ast.Var("x"), ast.Var("_u"))),
					)},
				}},
			},
			code: diag.ErrUntypedParameter,
		},
		{
			name: "comparison as root",
			story: ast.Story{Goals: []ast.Goal{{
				Name: "G",
				Init: []ast.Statement{ast.Do(ast.Fn("DB_A", ast.Int(1)))},
				KB: []ast.Rule{rule(conds(
					ast.Cmp(ast.Int(1), "<", ast.Int(2)),
					ast.If(ast.Fn("DB_A", ast.Var("_x"))),
				))},
			}}},
			code: diag.ErrInvalidRuleRoot,
		},
		{
			name: "proc rule rooted at an event",
			story: ast.Story{
				Functions: []ast.FunctionDecl{{Kind: "event", Name: "OnTick", Params: []ast.ParamDecl{intParam("a")}}},
				Goals: []ast.Goal{{
					Name: "G",
					KB: []ast.Rule{{
						Kind:       ast.RuleKindProc,
						Conditions: conds(ast.If(ast.Fn("OnTick", ast.Var("_x")))),
					}},
				}},
			},
			code: diag.ErrInvalidRuleRoot,
		},
		{
			name: "event as action",
			story: ast.Story{
				Functions: []ast.FunctionDecl{{Kind: "event", Name: "OnTick", Params: []ast.ParamDecl{intParam("a")}}},
				Goals: []ast.Goal{{
					Name: "G",
					KB: []ast.Rule{rule(
						conds(ast.If(ast.Fn("OnTick", ast.Var("x")))),
						ast.Do(ast.Fn("OnTick", ast.Var("x"))),
					)},
				}},
			},
			code: diag.ErrNotCallable,
		},
		{
			name: "NOT on a runtime call",
			story: ast.Story{
				Functions: []ast.FunctionDecl{
					{Kind: "event", Name: "OnTick", Params: []ast.ParamDecl{intParam("a")}},
					{Kind: "runtime-call", Name: "Print", Params: []ast.ParamDecl{intParam("a")}},
				},
				Goals: []ast.Goal{{
					Name: "G",
					KB: []ast.Rule{rule(
						conds(ast.If(ast.Fn("OnTick", ast.Var("x")))),
						ast.Do(ast.Not(ast.Fn("Print", ast.Var("x")))),
					)},
				}},
			},
			code: diag.ErrNotOnNonDatabase,
		},
		{
			name: "event after the root",
			story: ast.Story{
				Functions: []ast.FunctionDecl{{Kind: "event", Name: "OnTick", Params: []ast.ParamDecl{intParam("a")}}},
				Goals: []ast.Goal{{
					Name: "G",
					Init: []ast.Statement{ast.Do(ast.Fn("DB_A", ast.Int(1)))},
					KB: []ast.Rule{rule(conds(
						ast.If(ast.Fn("DB_A", ast.Var("x"))),
						ast.If(ast.Fn("OnTick", ast.Var("x"))),
					))},
				}},
			},
			code: diag.ErrInvalidJoinTarget,
		},
		{
			name: "fact with a variable",
			story: ast.Story{Goals: []ast.Goal{{
				Name: "G",
				Init: []ast.Statement{ast.Do(ast.Fn("DB_A", ast.Var("x")))},
			}}},
			code: diag.ErrNonConstantFactValue,
		},
		{
			name: "ordering on strings",
			story: ast.Story{Goals: []ast.Goal{{
				Name: "G",
				Init: []ast.Statement{ast.Do(ast.Fn("DB_S", ast.Str("a")))},
				KB: []ast.Rule{rule(conds(
					ast.If(ast.Fn("DB_S", ast.Var("s"))),
					ast.Cmp(ast.Var("s"), "<", ast.Str("b")),
				))},
			}}},
			code: diag.WarnRiskyComparison,
		},
		{
			name: "database never written",
			story: ast.Story{Goals: []ast.Goal{{
				Name: "G",
				KB: []ast.Rule{rule(
					conds(ast.If(ast.Fn("DB_A", ast.Typed("INTEGER", ast.Var("x"))))),
					ast.Do(ast.Fn("DB_B", ast.Var("x"))),
				)},
			}}},
			code: diag.WarnDatabaseNotWritten,
		},
		{
			name: "guid alias mismatch",
			story: ast.Story{
				Types: []ast.TypeDecl{
					{ID: 6, Name: "ITEMGUID", Intrinsic: 5},
					{ID: 7, Name: "CHARACTERGUID", Intrinsic: 5},
				},
				Functions: []ast.FunctionDecl{
					{Kind: "event", Name: "ItemUsed", Params: []ast.ParamDecl{{Name: "Item", Type: "ITEMGUID"}}},
					{Kind: "app-call", Name: "Kill", Params: []ast.ParamDecl{{Name: "Character", Type: "CHARACTERGUID"}}},
				},
				Goals: []ast.Goal{{
					Name: "G",
					KB: []ast.Rule{rule(
						conds(ast.If(ast.Fn("ItemUsed", ast.Var("g")))),
						ast.Do(ast.Fn("Kill", ast.Var("g"))),
					)},
				}},
			},
			code: diag.WarnGuidAliasMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			story := tt.story
			res := Compile(&story, testOptions())
			assert.NotEmpty(t, res.Diagnostics.WithCode(tt.code), "got %v", codes(res.Diagnostics))
			require.NotNil(t, res.Story, "compilation always yields a story")
		})
	}
}

func TestCompileDropsInvalidRules(t *testing.T) {
	story := &ast.Story{Goals: []ast.Goal{{
		Name: "G",
		Init: []ast.Statement{ast.Do(ast.Fn("DB_A", ast.Int(1)))},
		KB: []ast.Rule{
			rule(conds(
				ast.If(ast.Fn("DB_A", ast.Var("x"))),
				ast.If(ast.Fn("Mystery", ast.Var("x"))),
			)),
			rule(
				conds(ast.If(ast.Fn("DB_A", ast.Var("x")))),
				ast.Do(ast.Not(ast.Fn("DB_A", ast.Var("x")))),
			),
		},
	}}}

	res := Compile(story, testOptions())
	require.Error(t, res.Err())
	assert.Len(t, res.Goals[0].Rules, 1)
	assert.Len(t, res.Story.NodesOfKind(graph.KindRule), 1, "the valid rule is still emitted")
}

func TestCompileJoinsOnUnderscoreVariable(t *testing.T) {
	story := &ast.Story{Goals: []ast.Goal{{
		Name: "G",
		Init: []ast.Statement{
			ast.Do(ast.Fn("DB_A", ast.Int(1))),
			ast.Do(ast.Fn("DB_B", ast.Int(1))),
		},
		KB: []ast.Rule{rule(
			conds(
				ast.If(ast.Fn("DB_A", ast.Var("_Char"))),
				ast.If(ast.Fn("DB_B", ast.Var("_Char"))),
			),
			ast.Do(ast.Fn("DB_C", ast.Var("_Char"))),
		)},
	}}}

	res := Compile(story, testOptions())
	require.NoError(t, res.Err())
	assert.NotContains(t, codes(res.Diagnostics), diag.WarnSingletonVariable)

	require.Len(t, res.Goals[0].Rules, 1)
	v := res.Goals[0].Rules[0].Variables[0]
	assert.Equal(t, 3, v.Occurrences)
	assert.False(t, v.Unused, "a repeated _ variable is still a join column")

	ands := res.Story.NodesOfKind(graph.KindAnd)
	require.Len(t, ands, 1)
	and := ands[0].(*graph.AndNode)
	assert.Equal(t, 1, and.Arity)
	assert.Equal(t, []int{0}, res.Story.Adapter(and.Left.Adapter).LogicalIndices)
	assert.Equal(t, []int{0}, res.Story.Adapter(and.Right.Adapter).LogicalIndices)

	rules := res.Story.NodesOfKind(graph.KindRule)
	require.Len(t, rules, 1)
	rn := rules[0].(*graph.RuleNode)
	assert.Equal(t, 1, rn.Arity)
	require.Len(t, rn.Variables, 1)
	assert.False(t, rn.Variables[0].Unused)
}

func TestCompileUserQuery(t *testing.T) {
	story := &ast.Story{Goals: []ast.Goal{{
		Name: "G",
		Init: []ast.Statement{ast.Do(ast.Fn("DB_A", ast.Int(1)))},
		KB: []ast.Rule{
			{
				Kind: ast.RuleKindQuery,
				Conditions: conds(
					ast.If(ast.Fn("QRY_Positive", ast.Var("x"))),
					ast.If(ast.Fn("DB_A", ast.Var("x"))),
					ast.Cmp(ast.Var("x"), ">", ast.Int(0)),
				),
			},
			rule(
				conds(
					ast.If(ast.Fn("DB_A", ast.Var("x"))),
					ast.If(ast.Fn("QRY_Positive", ast.Var("x"))),
				),
				ast.Do(ast.Fn("DB_B", ast.Var("x"))),
			),
		},
	}}}

	res := Compile(story, testOptions())
	require.NoError(t, res.Err())

	sig, ok := res.Registry.Function(symbols.NameAndArity{Name: "QRY_Positive", Arity: 1})
	require.True(t, ok)
	assert.Equal(t, symbols.KindUserQuery, sig.Kind)

	queries := res.Story.NodesOfKind(graph.KindUserQuery)
	require.Len(t, queries, 2)
	query := queries[0].(*graph.UserQueryNode)
	def := queries[1].(*graph.UserQueryNode)
	assert.Equal(t, "QRY_Positive", query.Name)
	assert.Equal(t, "QRY_Positive__DEF__", def.Name)
	assert.Equal(t, def.ID, query.Definition)
	assert.NotEmpty(t, query.Children, "the second rule joins against the query node")
	assert.NotEmpty(t, def.Children, "the query rule hangs off the definition node")
}
