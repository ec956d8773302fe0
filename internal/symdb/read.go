package symdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/goalc/internal/debuginfo"
	"github.com/roach88/goalc/internal/graph"
)

// Builds returns every stored build, oldest first.
//
// Returns an empty slice (not nil) if the database holds no builds.
func (d *DB) Builds(ctx context.Context) ([]Build, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, seq, fingerprint, source
		FROM builds
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	builds := []Build{}
	for rows.Next() {
		var b Build
		if err := rows.Scan(&b.ID, &b.Seq, &b.Fingerprint, &b.Source); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}

// LatestBuild returns the most recently written build.
func (d *DB) LatestBuild(ctx context.Context) (Build, bool, error) {
	var b Build
	err := d.db.QueryRowContext(ctx, `
		SELECT id, seq, fingerprint, source
		FROM builds
		ORDER BY seq DESC
		LIMIT 1
	`).Scan(&b.ID, &b.Seq, &b.Fingerprint, &b.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return Build{}, false, nil
	}
	if err != nil {
		return Build{}, false, fmt.Errorf("query latest build: %w", err)
	}
	return b, true, nil
}

// Rules returns the rules of a build ordered by id.
//
// Returns an empty slice (not nil) if the build has no rules.
func (d *DB) Rules(ctx context.Context, buildID string) ([]debuginfo.RuleInfo, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, goal_id, idx, kind, node, file, line, condition_lines, action_lines, variables
		FROM rules
		WHERE build_id = ?
		ORDER BY id ASC
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules := []debuginfo.RuleInfo{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// RuleForNode returns the rule a join, filter or rule node was emitted
// for. Function nodes belong to no rule.
func (d *DB) RuleForNode(ctx context.Context, buildID string, node graph.NodeID) (debuginfo.RuleInfo, bool, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT r.id, r.goal_id, r.idx, r.kind, r.node, r.file, r.line,
		       r.condition_lines, r.action_lines, r.variables
		FROM nodes n
		JOIN rules r ON r.build_id = n.build_id AND r.id = n.rule_id
		WHERE n.build_id = ? AND n.id = ?
	`, buildID, node)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return debuginfo.RuleInfo{}, false, nil
	}
	if err != nil {
		return debuginfo.RuleInfo{}, false, err
	}
	return r, true, nil
}

// Nodes returns the nodes of a build ordered by id.
//
// Returns an empty slice (not nil) if the build has no nodes.
func (d *DB) Nodes(ctx context.Context, buildID string) ([]debuginfo.NodeInfo, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, kind, name, rule_id, file, line
		FROM nodes
		WHERE build_id = ?
		ORDER BY id ASC
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []debuginfo.NodeInfo{}
	for rows.Next() {
		var (
			n    debuginfo.NodeInfo
			kind string
		)
		if err := rows.Scan(&n.Node, &kind, &n.Name, &n.Rule, &n.Location.File, &n.Location.Line); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		k, ok := graph.ParseNodeKind(kind)
		if !ok {
			return nil, fmt.Errorf("scan node %d: unknown kind %q", n.Node, kind)
		}
		n.Kind = k
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

// DeleteBuild removes a build and, through the foreign keys, all of its rows.
func (d *DB) DeleteBuild(ctx context.Context, buildID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM builds WHERE id = ?`, buildID); err != nil {
		return fmt.Errorf("delete build: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (debuginfo.RuleInfo, error) {
	var (
		r                  debuginfo.RuleInfo
		conds, acts, vars string
	)
	err := row.Scan(&r.ID, &r.Goal, &r.Index, &r.Kind, &r.Node, &r.Location.File, &r.Location.Line,
		&conds, &acts, &vars)
	if errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("scan rule: %w", err)
	}
	if err := json.Unmarshal([]byte(conds), &r.ConditionLines); err != nil {
		return r, fmt.Errorf("unmarshal condition lines of rule %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(acts), &r.ActionLines); err != nil {
		return r, fmt.Errorf("unmarshal action lines of rule %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(vars), &r.Variables); err != nil {
		return r, fmt.Errorf("unmarshal variables of rule %d: %w", r.ID, err)
	}
	return r, nil
}
