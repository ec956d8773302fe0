// Package debuginfo records source and symbol metadata alongside graph
// emission, for consumption by a story debugger. It never influences the
// graph itself.
package debuginfo

import (
	"github.com/roach88/goalc/internal/graph"
	"github.com/roach88/goalc/internal/ir"
	"github.com/roach88/goalc/internal/source"
	"github.com/roach88/goalc/internal/symbols"
)

// Info is the debug information of one compiled story.
type Info struct {
	Goals     []GoalInfo     `json:"goals"`
	Rules     []RuleInfo     `json:"rules"`
	Nodes     []NodeInfo     `json:"nodes"`
	Databases []DatabaseInfo `json:"databases"`
	Functions []FunctionInfo `json:"functions"`
}

type GoalInfo struct {
	ID       graph.GoalID    `json:"id"`
	Name     string          `json:"name"`
	Location source.Location `json:"location"`
}

type VariableInfo struct {
	Index  int            `json:"index"`
	Name   string         `json:"name"`
	Type   symbols.TypeID `json:"type"`
	Unused bool           `json:"unused,omitempty"`
}

// RuleInfo describes one emitted rule. ID starts at 1 in emission order.
type RuleInfo struct {
	ID             int             `json:"id"`
	Goal           graph.GoalID    `json:"goal"`
	Index          int             `json:"index"` // position in the goal's KB section
	Kind           string          `json:"kind"`
	Node           graph.NodeID    `json:"node"` // terminal rule node
	Location       source.Location `json:"location"`
	ConditionLines []int           `json:"condition_lines"`
	ActionLines    []int           `json:"action_lines"`
	Variables      []VariableInfo  `json:"variables"`
}

// NodeInfo maps a node back to source. Rule is 0 for function nodes.
type NodeInfo struct {
	Node     graph.NodeID    `json:"node"`
	Kind     graph.NodeKind  `json:"kind"`
	Name     string          `json:"name,omitempty"`
	Rule     int             `json:"rule,omitempty"`
	Location source.Location `json:"location"`
}

type DatabaseInfo struct {
	ID         graph.DatabaseID `json:"id"`
	Name       string           `json:"name,omitempty"`
	ParamNames []string         `json:"param_names,omitempty"`
}

type FunctionInfo struct {
	Name       string               `json:"name"`
	Arity      int                  `json:"arity"`
	Kind       symbols.FunctionKind `json:"kind"`
	Node       graph.NodeID         `json:"node,omitempty"`
	ParamNames []string             `json:"param_names,omitempty"`
	Location   source.Location      `json:"location"`
}

// Builder assembles Info while the emitter runs. A nil *Builder ignores
// every call, so callers need not check whether debug info is enabled.
type Builder struct {
	info    Info
	rule    *RuleInfo
	pending []int // Nodes entries created since BeginRule
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddGoal records a goal.
func (b *Builder) AddGoal(id graph.GoalID, name string, loc source.Location) {
	if b == nil {
		return
	}
	b.info.Goals = append(b.info.Goals, GoalInfo{ID: id, Name: name, Location: loc})
}

// AddFunction records a function signature and its node.
func (b *Builder) AddFunction(sig *symbols.Signature, node graph.NodeID) {
	if b == nil {
		return
	}
	b.info.Functions = append(b.info.Functions, FunctionInfo{
		Name:       sig.Name,
		Arity:      len(sig.Params),
		Kind:       sig.Kind,
		Node:       node,
		ParamNames: paramNames(sig),
		Location:   sig.Location,
	})
}

// SetFunctionNode records a node created after the function was added.
func (b *Builder) SetFunctionNode(name symbols.NameAndArity, node graph.NodeID) {
	if b == nil {
		return
	}
	for i := range b.info.Functions {
		f := &b.info.Functions[i]
		if name.SameAs(symbols.NameAndArity{Name: f.Name, Arity: f.Arity}) {
			f.Node = node
			return
		}
	}
}

// AddDatabase records a database. sig is nil for synthetic databases.
func (b *Builder) AddDatabase(id graph.DatabaseID, sig *symbols.Signature) {
	if b == nil {
		return
	}
	info := DatabaseInfo{ID: id}
	if sig != nil {
		info.Name = sig.Name
		info.ParamNames = paramNames(sig)
	}
	b.info.Databases = append(b.info.Databases, info)
}

// AddNode records a node. Join, filter and rule nodes added between
// BeginRule and EndRule are attributed to that rule once EndRule runs;
// function nodes never belong to a rule.
func (b *Builder) AddNode(id graph.NodeID, kind graph.NodeKind, name string, loc source.Location) {
	if b == nil {
		return
	}
	b.info.Nodes = append(b.info.Nodes, NodeInfo{Node: id, Kind: kind, Name: name, Location: loc})
	if b.rule == nil {
		return
	}
	switch kind {
	case graph.KindAnd, graph.KindNotAnd, graph.KindRelFilter, graph.KindRule:
		b.pending = append(b.pending, len(b.info.Nodes)-1)
	}
}

// BeginRule starts recording the nodes of r.
func (b *Builder) BeginRule(goal graph.GoalID, r *ir.Rule) {
	if b == nil {
		return
	}
	info := &RuleInfo{
		ID:       len(b.info.Rules) + 1,
		Goal:     goal,
		Index:    r.Index,
		Kind:     r.Kind.String(),
		Location: r.Location,
	}
	for _, c := range r.Conditions {
		info.ConditionLines = append(info.ConditionLines, c.Pos().Line)
	}
	for _, a := range r.Actions {
		info.ActionLines = append(info.ActionLines, a.Location.Line)
	}
	for _, v := range r.Variables {
		vi := VariableInfo{Index: v.Index, Name: v.Name, Unused: v.Unused}
		if v.Type != nil {
			vi.Type = v.Type.ID
		}
		info.Variables = append(info.Variables, vi)
	}
	b.rule = info
	b.pending = b.pending[:0]
}

// EndRule closes the current rule, whose terminal node is node, and
// attributes the pending nodes to it.
func (b *Builder) EndRule(node graph.NodeID) {
	if b == nil || b.rule == nil {
		return
	}
	b.rule.Node = node
	for _, i := range b.pending {
		b.info.Nodes[i].Rule = b.rule.ID
	}
	b.info.Rules = append(b.info.Rules, *b.rule)
	b.rule = nil
	b.pending = b.pending[:0]
}

// Info returns the assembled debug info, or nil for a nil builder.
func (b *Builder) Info() *Info {
	if b == nil {
		return nil
	}
	out := b.info
	return &out
}

// RuleByNode returns the rule whose terminal node is node.
func (i *Info) RuleByNode(node graph.NodeID) (RuleInfo, bool) {
	for _, r := range i.Rules {
		if r.Node == node {
			return r, true
		}
	}
	return RuleInfo{}, false
}

func paramNames(sig *symbols.Signature) []string {
	var names []string
	named := false
	for _, p := range sig.Params {
		names = append(names, p.Name)
		named = named || p.Name != ""
	}
	if !named {
		return nil
	}
	return names
}
