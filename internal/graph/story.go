package graph

import (
	"encoding/json"
	"strconv"

	"github.com/roach88/goalc/internal/symbols"
)

// Constant is a typed literal value.
type Constant struct {
	Type symbols.TypeID `json:"type"`
	Int  int64          `json:"int,omitempty"`
	Real float64        `json:"real,omitempty"`
	Str  string         `json:"str,omitempty"`
}

// String renders c given its intrinsic type.
func (c Constant) String(intrinsic symbols.TypeID) string {
	switch intrinsic {
	case symbols.TypeInteger, symbols.TypeInteger64:
		return strconv.FormatInt(c.Int, 10)
	case symbols.TypeReal:
		return strconv.FormatFloat(c.Real, 'g', -1, 64)
	case symbols.TypeString:
		return strconv.Quote(c.Str)
	default:
		return c.Str
	}
}

// CallArg is a rule variable (by index) or a constant.
type CallArg struct {
	IsVar bool     `json:"is_var,omitempty"`
	Var   int      `json:"var,omitempty"`
	Const Constant `json:"const"`
}

// Call is an action or a goal fact. Goal completion calls have no Name and
// carry the completed goal's id.
type Call struct {
	Name    string    `json:"name,omitempty"`
	Args    []CallArg `json:"args,omitempty"`
	Negated bool      `json:"negated,omitempty"`
	Goal    GoalID    `json:"goal,omitempty"`
}

// ColumnMapping maps a rule variable to its first physical column.
type ColumnMapping struct {
	Logical  int `json:"logical"`
	Physical int `json:"physical"`
}

// AdapterConstant is a constant embedded at a physical column.
type AdapterConstant struct {
	Column int      `json:"column"`
	Value  Constant `json:"value"`
}

// Adapter projects the physical columns of an incoming tuple onto rule
// variables. LogicalIndices has one entry per physical column: the rule
// variable index, or -1 for constants and unused variables.
// LogicalToPhysical is sorted by Logical.
type Adapter struct {
	ID                AdapterID         `json:"id"`
	LogicalIndices    []int             `json:"logical_indices"`
	LogicalToPhysical []ColumnMapping   `json:"logical_to_physical"`
	Constants         []AdapterConstant `json:"constants,omitempty"`
}

// Database is a stored or synthetic tuple set. Synthetic databases
// materialize a join and have no name.
type Database struct {
	ID         DatabaseID       `json:"id"`
	Name       string           `json:"name,omitempty"`
	ParamTypes []symbols.TypeID `json:"param_types"`
	Owner      NodeID           `json:"owner"`
	Facts      [][]Constant     `json:"facts,omitempty"`
}

// Param is a function parameter in the output.
type Param struct {
	Type symbols.TypeID `json:"type"`
	Out  bool           `json:"out,omitempty"`
}

// Function is the output record of a referenced or header-declared
// function. Node is 0 when the function has no graph node.
type Function struct {
	Name          string               `json:"name"`
	Arity         int                  `json:"arity"`
	Kind          symbols.FunctionKind `json:"kind"`
	Params        []Param              `json:"params,omitempty"`
	ConditionRefs int                  `json:"condition_refs"`
	ActionRefs    int                  `json:"action_refs"`
	Node          NodeID               `json:"node,omitempty"`
}

// Goal is a compiled goal.
type Goal struct {
	ID        GoalID   `json:"id"`
	Name      string   `json:"name"`
	InitCalls []Call   `json:"init_calls,omitempty"`
	ExitCalls []Call   `json:"exit_calls,omitempty"`
	Parents   []GoalID `json:"parents,omitempty"`
	Children  []GoalID `json:"children,omitempty"`
}

// Story is a compiled story. Element i of each id-addressed table has id i+1.
type Story struct {
	Types     []symbols.ValueType `json:"types"`
	Functions []*Function         `json:"functions"`
	Nodes     []Node              `json:"nodes"`
	Adapters  []*Adapter          `json:"adapters"`
	Databases []*Database         `json:"databases"`
	Goals     []*Goal             `json:"goals"`
}

// Node returns the node with the given id, or nil.
func (s *Story) Node(id NodeID) Node {
	if id == 0 || int(id) > len(s.Nodes) {
		return nil
	}
	return s.Nodes[id-1]
}

// Adapter returns the adapter with the given id, or nil.
func (s *Story) Adapter(id AdapterID) *Adapter {
	if id == 0 || int(id) > len(s.Adapters) {
		return nil
	}
	return s.Adapters[id-1]
}

// Database returns the database with the given id, or nil.
func (s *Story) Database(id DatabaseID) *Database {
	if id == 0 || int(id) > len(s.Databases) {
		return nil
	}
	return s.Databases[id-1]
}

// Goal returns the goal with the given id, or nil.
func (s *Story) Goal(id GoalID) *Goal {
	if id == 0 || int(id) > len(s.Goals) {
		return nil
	}
	return s.Goals[id-1]
}

// GoalByName returns the goal with the given name, or nil. Goal names fold
// case like every other symbol.
func (s *Story) GoalByName(name string) *Goal {
	for _, g := range s.Goals {
		if symbols.SameName(g.Name, name) {
			return g
		}
	}
	return nil
}

// Function returns the function record for name and arity, or nil.
func (s *Story) Function(name string, arity int) *Function {
	want := symbols.NameAndArity{Name: name, Arity: arity}
	for _, f := range s.Functions {
		if want.SameAs(symbols.NameAndArity{Name: f.Name, Arity: f.Arity}) {
			return f
		}
	}
	return nil
}

// NodesOfKind returns the nodes of one kind in id order.
func (s *Story) NodesOfKind(kind NodeKind) []Node {
	var out []Node
	for _, n := range s.Nodes {
		if KindOf(n) == kind {
			out = append(out, n)
		}
	}
	return out
}

// CountByKind counts nodes per kind.
func (s *Story) CountByKind() map[NodeKind]int {
	out := make(map[NodeKind]int)
	for _, n := range s.Nodes {
		out[KindOf(n)]++
	}
	return out
}

// typeIntrinsic resolves a type id to its intrinsic id.
func (s *Story) typeIntrinsic(id symbols.TypeID) symbols.TypeID {
	for _, t := range s.Types {
		if t.ID == id {
			return t.Intrinsic
		}
	}
	return id
}

type taggedNode struct {
	Kind NodeKind `json:"kind"`
	Node Node     `json:"node"`
}

// MarshalJSON tags every node with its kind.
func (s *Story) MarshalJSON() ([]byte, error) {
	type plain Story
	nodes := make([]taggedNode, len(s.Nodes))
	for i, n := range s.Nodes {
		nodes[i] = taggedNode{Kind: KindOf(n), Node: n}
	}
	return json.Marshal(struct {
		*plain
		Nodes []taggedNode `json:"nodes"`
	}{plain: (*plain)(s), Nodes: nodes})
}
