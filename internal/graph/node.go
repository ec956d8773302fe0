// Package graph is the compiled form of a story: an incremental-evaluation
// network of function nodes, join chains, adapters and databases.
//
// Every cross reference is an integer id into one of the Story tables.
// Ids start at 1; 0 means "none".
package graph

import (
	"fmt"

	"github.com/roach88/goalc/internal/symbols"
)

type (
	NodeID     uint32
	AdapterID  uint32
	DatabaseID uint32
	GoalID     uint32
)

// NodeKind names the concrete node variants.
type NodeKind int

const (
	KindDatabase NodeKind = iota + 1
	KindProc
	KindEvent
	KindAppQuery
	KindInternalQuery
	KindUserQuery
	KindAnd
	KindNotAnd
	KindRelFilter
	KindRule
)

var nodeKindNames = map[NodeKind]string{
	KindDatabase:      "database",
	KindProc:          "proc",
	KindEvent:         "event",
	KindAppQuery:      "app-query",
	KindInternalQuery: "internal-query",
	KindUserQuery:     "user-query",
	KindAnd:           "and",
	KindNotAnd:        "not-and",
	KindRelFilter:     "rel-filter",
	KindRule:          "rule",
}

func (k NodeKind) String() string {
	if s, ok := nodeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("node-kind(%d)", int(k))
}

// MarshalText renders the kind by name.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseNodeKind maps a kind name back to its value.
func ParseNodeKind(s string) (NodeKind, bool) {
	for k, name := range nodeKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Node is one vertex of the network.
//
// This is a sealed interface - only the node types of this package
// implement it. Dispatch on the concrete type with a type switch (see
// KindOf); there are no per-kind methods.
type Node interface {
	Hdr() *NodeHeader
	node()
}

// NodeHeader holds the fields shared by every node.
type NodeHeader struct {
	ID       NodeID     `json:"id"`
	Name     string     `json:"name,omitempty"`
	Arity    int        `json:"arity"`
	Database DatabaseID `json:"database,omitempty"` // owned database
	Children []NodeID   `json:"children,omitempty"`
}

// Hdr returns the shared header.
func (h *NodeHeader) Hdr() *NodeHeader { return h }

func (*NodeHeader) node() {}

// DatabaseNode is the terminal node of a stored database.
type DatabaseNode struct {
	NodeHeader
}

// ProcNode is the root of a user proc's defining rules.
type ProcNode struct {
	NodeHeader
}

// EventNode is an event raised by the runtime.
type EventNode struct {
	NodeHeader
}

// AppQueryNode is a query implemented by the application.
type AppQueryNode struct {
	NodeHeader
}

// InternalQueryNode is a query implemented by the runtime.
type InternalQueryNode struct {
	NodeHeader
}

// UserQueryNode is one half of a user query: the node other rules join
// against, or (IsDefinition) the root of the query's defining rules.
// Definition links the query node to its definition node.
type UserQueryNode struct {
	NodeHeader
	Definition   NodeID `json:"definition,omitempty"`
	IsDefinition bool   `json:"is_definition,omitempty"`
}

// DatabaseRef tracks the nearest database-owning ancestor of a node.
// Indirection counts the join hops between Node and the referencing node;
// RejoinPoint is the node at which tracking of this reference started.
type DatabaseRef struct {
	Node        NodeID `json:"node,omitempty"`
	Indirection uint8  `json:"indirection,omitempty"`
	RejoinPoint NodeID `json:"rejoin_point,omitempty"`
}

// Valid reports whether the reference points at a node.
func (r DatabaseRef) Valid() bool { return r.Node != 0 }

// JoinSide is one input of a join.
type JoinSide struct {
	Parent   NodeID      `json:"parent"`
	Adapter  AdapterID   `json:"adapter"`
	Database DatabaseRef `json:"database"`
}

// JoinNode holds the fields of AND and NOT-AND joins.
type JoinNode struct {
	NodeHeader
	Left  JoinSide `json:"left"`
	Right JoinSide `json:"right"`
}

// AndNode joins the tuples of both sides.
type AndNode struct {
	JoinNode
}

// NotAndNode passes left tuples without a match on the right.
type NotAndNode struct {
	JoinNode
}

// Operand is a column of the incoming tuple (Var, a rule variable index)
// or a constant.
type Operand struct {
	IsVar bool     `json:"is_var,omitempty"`
	Var   int      `json:"var,omitempty"`
	Const Constant `json:"const"`
}

// RelFilterNode drops tuples failing a comparison.
type RelFilterNode struct {
	NodeHeader
	Parent         NodeID      `json:"parent"`
	Adapter        AdapterID   `json:"adapter"`
	ParentDatabase DatabaseRef `json:"parent_database"`
	LHS            Operand     `json:"lhs"`
	Op             string      `json:"op"`
	RHS            Operand     `json:"rhs"`
}

// RuleVariable describes one rule-local variable for the runtime.
type RuleVariable struct {
	Index  int            `json:"index"`
	Name   string         `json:"name"`
	Type   symbols.TypeID `json:"type"`
	Unused bool           `json:"unused,omitempty"`
}

// RuleNode terminates a rule's join chain and runs its actions.
type RuleNode struct {
	NodeHeader
	Parent         NodeID         `json:"parent"`
	Adapter        AdapterID      `json:"adapter"`
	ParentDatabase DatabaseRef    `json:"parent_database"`
	Goal           GoalID         `json:"goal"`
	Kind           string         `json:"kind"`
	Actions        []Call         `json:"actions,omitempty"`
	Variables      []RuleVariable `json:"variables,omitempty"`
}

// KindOf returns the kind of n.
func KindOf(n Node) NodeKind {
	switch n.(type) {
	case *DatabaseNode:
		return KindDatabase
	case *ProcNode:
		return KindProc
	case *EventNode:
		return KindEvent
	case *AppQueryNode:
		return KindAppQuery
	case *InternalQueryNode:
		return KindInternalQuery
	case *UserQueryNode:
		return KindUserQuery
	case *AndNode:
		return KindAnd
	case *NotAndNode:
		return KindNotAnd
	case *RelFilterNode:
		return KindRelFilter
	case *RuleNode:
		return KindRule
	default:
		panic(fmt.Sprintf("graph: unknown node type %T", n))
	}
}
