package emit

import (
	"math"
	"sort"

	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/graph"
	"github.com/roach88/goalc/internal/ir"
	"github.com/roach88/goalc/internal/symbols"
)

// chain is the state of one rule's join chain while it is being built.
type chain struct {
	rule *ir.Rule

	prev   graph.NodeID // last node of the chain
	atRoot bool         // prev is the root function node

	rootAdapter graph.AdapterID
	identity    graph.AdapterID // allocated on first use

	// tracked is the nearest database-owning ancestor of prev.
	tracked graph.DatabaseRef
	bound   map[int]bool
}

// emitRule builds the join chain of r and its terminal rule node. A rule
// whose root is not a function condition is skipped with E301, and one with
// a used variable whose type was never resolved is skipped with E202.
func (e *Emitter) emitRule(goal graph.GoalID, r *ir.Rule) {
	var root *ir.FuncCondition
	if len(r.Conditions) > 0 {
		root, _ = r.Conditions[0].(*ir.FuncCondition)
	}
	if root == nil {
		e.log.Error(r.Location, diag.ErrInvalidRuleRoot,
			"rule %d of goal %q does not start with a function condition", r.Index, r.Goal)
		return
	}

	untyped := false
	for _, v := range r.Variables {
		if !v.Unused && v.Type == nil {
			e.log.Error(v.Location, diag.ErrUnresolvedVariableType,
				"cannot determine the type of variable %q in goal %q", v.Name, r.Goal)
			untyped = true
		}
	}
	if untyped {
		return
	}

	e.debug.BeginRule(goal, r)
	ent := e.getOrEmit(root.Func, true)
	rootNode := ent.node
	if r.Kind == ir.RuleKindQuery {
		rootNode = e.definitionNode(ent)
	}

	c := &chain{
		rule:        r,
		prev:        rootNode,
		atRoot:      true,
		rootAdapter: e.callAdapter(r, root.Params),
		bound:       make(map[int]bool),
	}
	c.bind(root.Params)
	root.TupleSize = c.tupleSize()
	if e.ownsDatabase(rootNode) {
		c.tracked = graph.DatabaseRef{Node: rootNode, RejoinPoint: rootNode}
	}

	for _, cond := range r.Conditions[1:] {
		switch cond := cond.(type) {
		case *ir.BinaryCondition:
			e.emitFilter(c, cond)
		case *ir.FuncCondition:
			e.emitJoin(c, cond)
		}
	}

	rn := &graph.RuleNode{
		NodeHeader:     graph.NodeHeader{Arity: c.tupleSize()},
		Parent:         c.prev,
		Adapter:        e.leftAdapter(c),
		ParentDatabase: c.advance(),
		Goal:           goal,
		Kind:           r.Kind.String(),
	}
	for _, v := range r.Variables {
		rn.Variables = append(rn.Variables, graph.RuleVariable{
			Index:  v.Index,
			Name:   v.Name,
			Type:   typeID(v.Type),
			Unused: v.Unused,
		})
	}
	id := e.addNode(rn)
	e.addChild(c.prev, id)
	rn.Actions = e.calls(r.Actions, r.Variables)

	e.debug.AddNode(id, graph.KindRule, "", r.Location)
	e.debug.EndRule(id)
	e.logger.Debug("rule emitted", "goal", r.Goal, "rule", r.Index, "node", id)
}

// emitFilter appends a relational filter. Filters never own a database;
// they advance the tracked ancestor like any other hop.
func (e *Emitter) emitFilter(c *chain, cond *ir.BinaryCondition) {
	n := &graph.RelFilterNode{
		NodeHeader:     graph.NodeHeader{Arity: c.tupleSize()},
		Parent:         c.prev,
		Adapter:        e.leftAdapter(c),
		ParentDatabase: c.advance(),
		LHS:            operand(cond.LHS),
		Op:             string(cond.Op),
		RHS:            operand(cond.RHS),
	}
	id := e.addNode(n)
	e.addChild(c.prev, id)
	e.debug.AddNode(id, graph.KindRelFilter, "", cond.Location)

	cond.TupleSize = c.tupleSize()
	c.prev, c.atRoot = id, false
}

// emitJoin appends an AND or NOT-AND join against the condition's function
// node. The join owns a new synthetic database when both of its parents
// own one; tracking then restarts at the join. Otherwise a database on the
// right side is tracked separately and wins when it is closer than the
// left side's ancestor.
func (e *Emitter) emitJoin(c *chain, cond *ir.FuncCondition) {
	right := e.getOrEmit(cond.Func, true)
	if right.node == 0 {
		internalf("condition %s has no node", cond.Func)
	}

	left := graph.JoinSide{
		Parent:   c.prev,
		Adapter:  e.leftAdapter(c),
		Database: c.advance(),
	}
	side := graph.JoinSide{
		Parent:  right.node,
		Adapter: e.callAdapter(c.rule, cond.Params),
	}
	if !cond.Negated {
		c.bind(cond.Params)
	}

	var (
		n    graph.Node
		j    *graph.JoinNode
		kind graph.NodeKind
	)
	if cond.Negated {
		nn := &graph.NotAndNode{}
		n, j, kind = nn, &nn.JoinNode, graph.KindNotAnd
	} else {
		an := &graph.AndNode{}
		n, j, kind = an, &an.JoinNode, graph.KindAnd
	}
	j.Arity = c.tupleSize()
	j.Left = left
	j.Right = side
	id := e.addNode(n)

	switch {
	case e.ownsDatabase(c.prev) && e.ownsDatabase(right.node):
		j.Database = e.emitSyntheticDatabase(c, id)
		c.tracked = graph.DatabaseRef{Node: id, RejoinPoint: id}
	case e.ownsDatabase(right.node):
		j.Right.Database = graph.DatabaseRef{Node: right.node, Indirection: 1, RejoinPoint: id}
		if !c.tracked.Valid() || j.Right.Database.Indirection < c.tracked.Indirection {
			c.tracked = j.Right.Database
		}
	}

	e.addChild(c.prev, id)
	e.addChild(right.node, id)
	e.debug.AddNode(id, kind, "", cond.Location)

	cond.TupleSize = c.tupleSize()
	c.prev, c.atRoot = id, false
}

// emitSyntheticDatabase materializes the tuples flowing out of a join. Its
// columns are the used variables bound so far, in variable order.
func (e *Emitter) emitSyntheticDatabase(c *chain, owner graph.NodeID) graph.DatabaseID {
	db := &graph.Database{
		ID:         graph.DatabaseID(len(e.story.Databases) + 1),
		ParamTypes: []symbols.TypeID{},
		Owner:      owner,
	}
	for _, v := range c.rule.Variables {
		if c.bound[v.Index] && !v.Unused {
			db.ParamTypes = append(db.ParamTypes, typeID(v.Type))
		}
	}
	e.story.Databases = append(e.story.Databases, db)
	e.debug.AddDatabase(db.ID, nil)
	return db.ID
}

// leftAdapter is the root's call adapter while the chain is still at its
// root, and the rule's identity adapter afterwards.
func (e *Emitter) leftAdapter(c *chain) graph.AdapterID {
	if c.atRoot {
		return c.rootAdapter
	}
	if c.identity == 0 {
		c.identity = e.identityAdapter(c.rule)
	}
	return c.identity
}

// callAdapter maps the arguments of one call to rule variables. Constants
// are embedded and unused variables get no slot; a variable repeated within
// the call keeps its first physical column.
func (e *Emitter) callAdapter(r *ir.Rule, args []ir.Value) graph.AdapterID {
	a := &graph.Adapter{LogicalIndices: make([]int, 0, len(args))}
	first := make(map[int]int)
	for col, v := range args {
		switch {
		case !v.IsVar:
			a.LogicalIndices = append(a.LogicalIndices, -1)
			a.Constants = append(a.Constants, graph.AdapterConstant{Column: col, Value: constant(v.Const)})
		case r.Variables[v.Var].Unused:
			a.LogicalIndices = append(a.LogicalIndices, -1)
		default:
			a.LogicalIndices = append(a.LogicalIndices, v.Var)
			if _, seen := first[v.Var]; !seen {
				first[v.Var] = col
			}
		}
	}
	a.LogicalToPhysical = sortedMapping(first)
	return e.addAdapter(a)
}

// identityAdapter passes every used rule variable through at its own index.
func (e *Emitter) identityAdapter(r *ir.Rule) graph.AdapterID {
	a := &graph.Adapter{LogicalIndices: make([]int, 0, len(r.Variables))}
	first := make(map[int]int)
	for i, v := range r.Variables {
		if v.Unused {
			a.LogicalIndices = append(a.LogicalIndices, -1)
			continue
		}
		a.LogicalIndices = append(a.LogicalIndices, i)
		first[i] = i
	}
	a.LogicalToPhysical = sortedMapping(first)
	return e.addAdapter(a)
}

func sortedMapping(first map[int]int) []graph.ColumnMapping {
	out := make([]graph.ColumnMapping, 0, len(first))
	for logical, physical := range first {
		out = append(out, graph.ColumnMapping{Logical: logical, Physical: physical})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Logical < out[j].Logical })
	return out
}

// advance moves the chain one hop further from its tracked database and
// returns the reference as seen from the new node.
func (c *chain) advance() graph.DatabaseRef {
	if c.tracked.Valid() {
		if c.tracked.Indirection == math.MaxUint8 {
			internalf("join chain of rule %d in goal %q is too deep", c.rule.Index, c.rule.Goal)
		}
		c.tracked.Indirection++
	}
	return c.tracked
}

func (c *chain) bind(params []ir.Value) {
	for _, p := range params {
		if p.IsVar {
			c.bound[p.Var] = true
		}
	}
}

// tupleSize is the number of bound used variables.
func (c *chain) tupleSize() int {
	n := 0
	for i := range c.bound {
		if !c.rule.Variables[i].Unused {
			n++
		}
	}
	return n
}

func operand(v ir.Value) graph.Operand {
	if v.IsVar {
		return graph.Operand{IsVar: true, Var: v.Var}
	}
	return graph.Operand{Const: constant(v.Const)}
}
