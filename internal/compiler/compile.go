// Package compiler turns a parsed story into an evaluation graph.
//
// Compilation runs in fixed phases over one symbol registry and one
// diagnostics log:
//
//  1. Header declarations (types, header functions) and goal registration
//  2. Lowering of every goal to IR
//  3. Implicit declarations (proc/query heads, databases) and usage flags
//  4. Type inference to a fixed point, then type checking
//  5. Structural validation and goal cycle rejection
//  6. Graph emission (see package emit)
//
// Problems never stop compilation; they are collected in the log and the
// offending unit (type, function, fact, rule, goal edge) is left out.
package compiler

import (
	"log/slog"

	"github.com/roach88/goalc/internal/ast"
	"github.com/roach88/goalc/internal/debuginfo"
	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/emit"
	"github.com/roach88/goalc/internal/graph"
	"github.com/roach88/goalc/internal/ir"
	"github.com/roach88/goalc/internal/symbols"
)

// Naming holds the conventional name prefixes of user functions. An empty
// prefix disables the check for that kind.
type Naming struct {
	DatabasePrefix string `yaml:"database_prefix"`
	ProcPrefix     string `yaml:"proc_prefix"`
	QueryPrefix    string `yaml:"query_prefix"`
}

// DefaultNaming returns the DB_/PROC_/QRY_ convention.
func DefaultNaming() Naming {
	return Naming{DatabasePrefix: "DB_", ProcPrefix: "PROC_", QueryPrefix: "QRY_"}
}

// Options configures a compilation.
type Options struct {
	Logger           *slog.Logger
	Suppress         []diag.Code
	WarningsAsErrors bool
	DebugInfo        bool
	Naming           Naming
}

// DefaultOptions returns options with the default logger and naming.
func DefaultOptions() Options {
	return Options{Logger: slog.Default(), Naming: DefaultNaming()}
}

// Result is the outcome of Compile. Story is always set; whether it should
// be used when Diagnostics has errors is up to the caller.
type Result struct {
	Story       *graph.Story
	Debug       *debuginfo.Info // nil unless Options.DebugInfo
	Goals       []*ir.Goal
	Registry    *symbols.Registry
	Diagnostics *diag.Log
}

// Err returns every error-level diagnostic combined, or nil.
func (r *Result) Err() error {
	return r.Diagnostics.Err()
}

// Compile compiles a story.
func Compile(story *ast.Story, opts Options) *Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	log := diag.NewLog(
		diag.WithSuppressed(opts.Suppress...),
		diag.WithWarningsAsErrors(opts.WarningsAsErrors),
		diag.WithLogger(logger),
	)
	reg := symbols.NewRegistry()

	declareHeader(story, reg, log)
	var sources []*ast.Goal
	for i := range story.Goals {
		g := &story.Goals[i]
		if d := reg.RegisterGoal(symbols.GoalDef{Name: g.Name, Location: g.Location}); d != nil {
			log.Add(d)
			continue
		}
		sources = append(sources, g)
	}
	logger.Debug("declarations scanned",
		"types", len(reg.Types()),
		"functions", len(reg.Functions()),
		"goals", len(sources))

	goals := make([]*ir.Goal, 0, len(sources))
	for _, g := range sources {
		goals = append(goals, LowerGoal(g, reg, log))
	}

	declareImplicit(goals, reg, opts.Naming)
	checkNaming(reg, opts.Naming, log)
	markUsage(goals, reg)
	checkUsage(reg, log)

	inferTypes(goals, reg, log)
	checkTypes(goals, reg, log)

	validateGoals(goals, reg, log)
	checkGoalCycles(goals, log)
	logger.Debug("goals lowered",
		"goals", len(goals),
		"rules", countRules(goals),
		"errors", log.Count(diag.LevelError))

	reg.Seal()
	out, info := emit.Emit(reg, goals, log, emit.Options{Logger: logger, DebugInfo: opts.DebugInfo})
	logger.Debug("graph emitted",
		"nodes", len(out.Nodes),
		"databases", len(out.Databases),
		"adapters", len(out.Adapters),
		"errors", log.Count(diag.LevelError),
		"warnings", log.Count(diag.LevelWarning))

	return &Result{
		Story:       out,
		Debug:       info,
		Goals:       goals,
		Registry:    reg,
		Diagnostics: log,
	}
}

func countRules(goals []*ir.Goal) int {
	n := 0
	for _, g := range goals {
		n += len(g.Rules)
	}
	return n
}
