package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/goalc/internal/symbols"
)

// Dump writes a line-oriented text rendering of s. The output is stable
// for a given story and is used for golden tests and `goalc dump`.
func Dump(w io.Writer, s *Story) error {
	d := &dumper{s: s}
	d.types()
	d.functions()
	d.goals()
	d.databases()
	d.adapters()
	d.nodes()
	_, err := io.WriteString(w, d.b.String())
	return err
}

type dumper struct {
	s *Story
	b strings.Builder
}

func (d *dumper) line(indent int, format string, args ...any) {
	d.b.WriteString(strings.Repeat("  ", indent))
	fmt.Fprintf(&d.b, format, args...)
	d.b.WriteByte('\n')
}

func (d *dumper) typeName(id symbols.TypeID) string {
	for _, t := range d.s.Types {
		if t.ID == id {
			return t.Name
		}
	}
	if id == symbols.TypeNone {
		return "?"
	}
	return fmt.Sprintf("type(%d)", id)
}

func (d *dumper) constant(c Constant) string {
	return c.String(d.s.typeIntrinsic(c.Type))
}

func (d *dumper) types() {
	var aliases []symbols.ValueType
	for _, t := range d.s.Types {
		if t.IsAlias() {
			aliases = append(aliases, t)
		}
	}
	if len(aliases) == 0 {
		return
	}
	d.line(0, "types:")
	for _, t := range aliases {
		d.line(1, "%d %s -> %s", t.ID, t.Name, d.typeName(t.Intrinsic))
	}
}

func (d *dumper) functions() {
	d.line(0, "functions:")
	for _, f := range d.s.Functions {
		params := make([]string, len(f.Params))
		for i, p := range f.Params {
			params[i] = d.typeName(p.Type)
			if p.Out {
				params[i] = "out " + params[i]
			}
		}
		d.line(1, "%s/%d %s (%s) cond=%d act=%d node=%d",
			f.Name, f.Arity, f.Kind, strings.Join(params, ", "), f.ConditionRefs, f.ActionRefs, f.Node)
	}
}

func (d *dumper) goals() {
	d.line(0, "goals:")
	for _, g := range d.s.Goals {
		d.line(1, "#%d %s parents=%s children=%s", g.ID, g.Name, goalIDs(g.Parents), goalIDs(g.Children))
		for _, c := range g.InitCalls {
			d.line(2, "init %s", d.call(c, nil))
		}
		for _, c := range g.ExitCalls {
			d.line(2, "exit %s", d.call(c, nil))
		}
	}
}

func (d *dumper) databases() {
	d.line(0, "databases:")
	for _, db := range d.s.Databases {
		types := make([]string, len(db.ParamTypes))
		for i, t := range db.ParamTypes {
			types[i] = d.typeName(t)
		}
		name := db.Name
		if name == "" {
			name = "<join>"
		}
		d.line(1, "#%d %s(%s) owner=%d", db.ID, name, strings.Join(types, ", "), db.Owner)
		for _, fact := range db.Facts {
			vals := make([]string, len(fact))
			for i, c := range fact {
				vals[i] = d.constant(c)
			}
			d.line(2, "fact (%s)", strings.Join(vals, ", "))
		}
	}
}

func (d *dumper) adapters() {
	d.line(0, "adapters:")
	for _, a := range d.s.Adapters {
		maps := make([]string, len(a.LogicalToPhysical))
		for i, m := range a.LogicalToPhysical {
			maps[i] = fmt.Sprintf("%d:%d", m.Logical, m.Physical)
		}
		consts := make([]string, len(a.Constants))
		for i, c := range a.Constants {
			consts[i] = fmt.Sprintf("%d=%s", c.Column, d.constant(c.Value))
		}
		d.line(1, "#%d logical=%v map=[%s] consts=[%s]",
			a.ID, a.LogicalIndices, strings.Join(maps, " "), strings.Join(consts, " "))
	}
}

func (d *dumper) nodes() {
	d.line(0, "nodes:")
	for _, n := range d.s.Nodes {
		h := n.Hdr()
		head := fmt.Sprintf("#%d %s", h.ID, KindOf(n))
		if h.Name != "" {
			head += fmt.Sprintf(" %s/%d", h.Name, h.Arity)
		} else {
			head += fmt.Sprintf(" arity=%d", h.Arity)
		}
		if h.Database != 0 {
			head += fmt.Sprintf(" db=%d", h.Database)
		}

		switch n := n.(type) {
		case *DatabaseNode, *ProcNode, *EventNode, *AppQueryNode, *InternalQueryNode:
		case *UserQueryNode:
			if n.IsDefinition {
				head += " definition"
			} else if n.Definition != 0 {
				head += fmt.Sprintf(" def=%d", n.Definition)
			}
		case *AndNode:
			head += d.join(&n.JoinNode)
		case *NotAndNode:
			head += d.join(&n.JoinNode)
		case *RelFilterNode:
			head += fmt.Sprintf(" parent=%d adapter=%d ref=%s %s %s %s",
				n.Parent, n.Adapter, ref(n.ParentDatabase), d.operand(n.LHS), n.Op, d.operand(n.RHS))
		case *RuleNode:
			vars := make([]string, len(n.Variables))
			for i, v := range n.Variables {
				vars[i] = fmt.Sprintf("%s:%s", v.Name, d.typeName(v.Type))
				if v.Unused {
					vars[i] += "!"
				}
			}
			head += fmt.Sprintf(" goal=%d kind=%s parent=%d adapter=%d ref=%s vars=[%s]",
				n.Goal, n.Kind, n.Parent, n.Adapter, ref(n.ParentDatabase), strings.Join(vars, " "))
		}
		if len(h.Children) > 0 {
			head += fmt.Sprintf(" children=%v", h.Children)
		}
		d.line(1, "%s", head)

		if r, ok := n.(*RuleNode); ok {
			for _, c := range r.Actions {
				d.line(2, "%s", d.call(c, r.Variables))
			}
		}
	}
}

func (d *dumper) join(j *JoinNode) string {
	return fmt.Sprintf(" left=%d/%d/%s right=%d/%d/%s",
		j.Left.Parent, j.Left.Adapter, ref(j.Left.Database),
		j.Right.Parent, j.Right.Adapter, ref(j.Right.Database))
}

func (d *dumper) operand(o Operand) string {
	if o.IsVar {
		return fmt.Sprintf("$%d", o.Var)
	}
	return d.constant(o.Const)
}

func (d *dumper) call(c Call, vars []RuleVariable) string {
	if c.Name == "" {
		return fmt.Sprintf("GoalCompleted(#%d)", c.Goal)
	}
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		switch {
		case !a.IsVar:
			args[i] = d.constant(a.Const)
		case a.Var < len(vars):
			args[i] = vars[a.Var].Name
		default:
			args[i] = fmt.Sprintf("$%d", a.Var)
		}
	}
	prefix := ""
	if c.Negated {
		prefix = "NOT "
	}
	return fmt.Sprintf("%s%s(%s)", prefix, c.Name, strings.Join(args, ", "))
}

func ref(r DatabaseRef) string {
	if !r.Valid() {
		return "-"
	}
	return fmt.Sprintf("%d+%d@%d", r.Node, r.Indirection, r.RejoinPoint)
}

func goalIDs(ids []GoalID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
