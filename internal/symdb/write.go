package symdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/goalc/internal/debuginfo"
)

// Build describes one stored compilation.
type Build struct {
	ID          string
	Seq         int64
	Fingerprint string
	Source      string
}

// WriteOptions configures WriteInfo.
type WriteOptions struct {
	Fingerprint string // graph.Fingerprint of the compiled story
	Source      string // story path, informational
	IDs         IDGenerator
}

// WriteInfo stores info as a new build in a single transaction and
// returns it. A nil info is rejected.
func (d *DB) WriteInfo(ctx context.Context, info *debuginfo.Info, opts WriteOptions) (Build, error) {
	if info == nil {
		return Build{}, fmt.Errorf("write info: no debug info")
	}
	ids := opts.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	b := Build{ID: ids.Generate(), Fingerprint: opts.Fingerprint, Source: opts.Source}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Build{}, fmt.Errorf("write info: begin: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM builds`).Scan(&b.Seq); err != nil {
		return Build{}, fmt.Errorf("write info: next seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO builds (id, seq, fingerprint, source) VALUES (?, ?, ?, ?)
	`, b.ID, b.Seq, b.Fingerprint, b.Source); err != nil {
		return Build{}, fmt.Errorf("write build: %w", err)
	}

	w := &writer{ctx: ctx, tx: tx, build: b.ID}
	w.goals(info.Goals)
	w.functions(info.Functions)
	w.databases(info.Databases)
	w.rules(info.Rules)
	w.nodes(info.Nodes)
	if w.err != nil {
		return Build{}, w.err
	}

	if err := tx.Commit(); err != nil {
		return Build{}, fmt.Errorf("write info: commit: %w", err)
	}
	return b, nil
}

// writer inserts the rows of one build and keeps the first error.
type writer struct {
	ctx   context.Context
	tx    *sql.Tx
	build string
	err   error
}

func (w *writer) exec(what, query string, args ...any) {
	if w.err != nil {
		return
	}
	if _, err := w.tx.ExecContext(w.ctx, query, append([]any{w.build}, args...)...); err != nil {
		w.err = fmt.Errorf("write %s: %w", what, err)
	}
}

func (w *writer) json(what string, v any) string {
	data, err := json.Marshal(v)
	if err != nil && w.err == nil {
		w.err = fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data)
}

func (w *writer) goals(goals []debuginfo.GoalInfo) {
	for _, g := range goals {
		w.exec("goal", `INSERT INTO goals (build_id, id, name, file, line) VALUES (?, ?, ?, ?, ?)`,
			g.ID, g.Name, g.Location.File, g.Location.Line)
	}
}

func (w *writer) functions(funcs []debuginfo.FunctionInfo) {
	for _, f := range funcs {
		w.exec("function", `
			INSERT INTO functions (build_id, name, arity, kind, node, param_names, file, line)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, f.Name, f.Arity, f.Kind.String(), f.Node, w.json("param names", nonNil(f.ParamNames)),
			f.Location.File, f.Location.Line)
	}
}

func (w *writer) databases(dbs []debuginfo.DatabaseInfo) {
	for _, db := range dbs {
		w.exec("database", `INSERT INTO databases (build_id, id, name, param_names) VALUES (?, ?, ?, ?)`,
			db.ID, db.Name, w.json("param names", nonNil(db.ParamNames)))
	}
}

func (w *writer) rules(rules []debuginfo.RuleInfo) {
	for _, r := range rules {
		w.exec("rule", `
			INSERT INTO rules
			(build_id, id, goal_id, idx, kind, node, file, line, condition_lines, action_lines, variables)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.Goal, r.Index, r.Kind, r.Node, r.Location.File, r.Location.Line,
			w.json("condition lines", nonNil(r.ConditionLines)),
			w.json("action lines", nonNil(r.ActionLines)),
			w.json("variables", nonNil(r.Variables)))
	}
}

func (w *writer) nodes(nodes []debuginfo.NodeInfo) {
	for _, n := range nodes {
		w.exec("node", `
			INSERT INTO nodes (build_id, id, kind, name, rule_id, file, line)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, n.Node, n.Kind.String(), n.Name, n.Rule, n.Location.File, n.Location.Line)
	}
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
