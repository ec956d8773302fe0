package testutil

import "github.com/roach88/goalc/internal/ast"

// SeedStory is a two-goal story: G1 seeds DB_Seed, doubles every positive
// seed into DB_Doubled and completes G2 on exit. It declares one custom
// type and one event that no rule uses.
//
// It is the Go form of ast/testdata/seed.yaml.
func SeedStory() *ast.Story {
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
				KB: []ast.Rule{{
					Conditions: []ast.Condition{
						ast.If(ast.Fn("DB_Seed", ast.Var("x"))),
						ast.Cmp(ast.Var("x"), ">", ast.Int(0)),
					},
					Actions: []ast.Statement{ast.Do(ast.Fn("DB_Doubled", ast.Var("x"), ast.Int(2)))},
				}},
				Exit: []ast.Statement{ast.Complete("G2")},
			},
			{Name: "G2", Parents: []string{"G1"}},
		},
	}
}
