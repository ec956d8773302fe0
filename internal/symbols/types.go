package symbols

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/goalc/internal/source"
)

// TypeID identifies a value type. Ids up to MaxIntrinsic are reserved for
// the intrinsic types; aliases use larger ids.
type TypeID uint32

// Intrinsic type ids.
const (
	TypeNone       TypeID = 0
	TypeInteger    TypeID = 1
	TypeInteger64  TypeID = 2
	TypeReal       TypeID = 3
	TypeString     TypeID = 4
	TypeGuidString TypeID = 5

	MaxIntrinsic = TypeGuidString
)

// ValueType is an intrinsic type or an alias of one.
type ValueType struct {
	ID        TypeID `json:"id"`
	Intrinsic TypeID `json:"intrinsic"`
	Name      string `json:"name"`
}

// IsAlias reports whether t is an alias rather than an intrinsic type.
func (t *ValueType) IsAlias() bool {
	return t.ID != t.Intrinsic
}

// IsNumeric reports whether t resolves to integer, integer64 or real.
func (t *ValueType) IsNumeric() bool {
	return t.Intrinsic == TypeInteger || t.Intrinsic == TypeInteger64 || t.Intrinsic == TypeReal
}

func (t *ValueType) String() string {
	if t == nil {
		return "<untyped>"
	}
	return t.Name
}

// intrinsicTypes are pre-registered in every Registry.
var intrinsicTypes = []ValueType{
	{ID: TypeInteger, Intrinsic: TypeInteger, Name: "INTEGER"},
	{ID: TypeInteger64, Intrinsic: TypeInteger64, Name: "INTEGER64"},
	{ID: TypeReal, Intrinsic: TypeReal, Name: "REAL"},
	{ID: TypeString, Intrinsic: TypeString, Name: "STRING"},
	{ID: TypeGuidString, Intrinsic: TypeGuidString, Name: "GUIDSTRING"},
}

// FunctionKind classifies a callable, queryable or database symbol.
type FunctionKind int

const (
	KindRuntimeQuery FunctionKind = iota + 1
	KindRuntimeCall
	KindEvent
	KindAppQuery
	KindAppCall
	KindUserProc
	KindUserQuery
	KindDatabase
)

var kindNames = map[FunctionKind]string{
	KindRuntimeQuery: "runtime-query",
	KindRuntimeCall:  "runtime-call",
	KindEvent:        "event",
	KindAppQuery:     "app-query",
	KindAppCall:      "app-call",
	KindUserProc:     "user-proc",
	KindUserQuery:    "user-query",
	KindDatabase:     "database",
}

func (k FunctionKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText renders the kind by name.
func (k FunctionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseFunctionKind maps a kind name back to its value.
func ParseFunctionKind(s string) (FunctionKind, bool) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, true
		}
	}
	return 0, false
}

// IsHeaderKind reports whether k is declared by the runtime or the
// application rather than by story code. Every header function must be
// represented in the emitted graph.
func (k FunctionKind) IsHeaderKind() bool {
	switch k {
	case KindRuntimeQuery, KindRuntimeCall, KindEvent, KindAppQuery, KindAppCall:
		return true
	}
	return false
}

// IsCall reports whether k can only be used in action position.
func (k FunctionKind) IsCall() bool {
	return k == KindRuntimeCall || k == KindAppCall
}

// Direction is the flow direction of a parameter.
type Direction int

const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	if d == DirOut {
		return "out"
	}
	return "in"
}

// MarshalText renders the direction as "in" or "out".
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Param is one parameter of a signature. Type is nil until resolved.
type Param struct {
	Name      string     `json:"name,omitempty"`
	Direction Direction  `json:"direction"`
	Type      *ValueType `json:"type,omitempty"`
}

// NameAndArity is the unique key of every function symbol.
// Names compare case-insensitively.
type NameAndArity struct {
	Name  string
	Arity int
}

func (n NameAndArity) String() string {
	return fmt.Sprintf("%s/%d", n.Name, n.Arity)
}

type nameKey struct {
	folded string
	arity  int
}

func (n NameAndArity) key() nameKey {
	return nameKey{folded: fold(n.Name), arity: n.Arity}
}

// SameAs reports whether n and o name the same symbol.
func (n NameAndArity) SameAs(o NameAndArity) bool {
	return n.key() == o.key()
}

// SameName reports whether two goal or function names match under the
// registry's case folding.
func SameName(a, b string) bool {
	return fold(a) == fold(b)
}

// fold normalizes to NFC before case folding so that composed and
// decomposed spellings of a name collide.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// Signature describes a function, query, event, proc or database.
type Signature struct {
	Kind       FunctionKind    `json:"kind"`
	Name       string          `json:"name"`
	Params     []Param         `json:"params"`
	FullyTyped bool            `json:"fully_typed"`
	Inserted   bool            `json:"inserted,omitempty"`
	Deleted    bool            `json:"deleted,omitempty"`
	Read       bool            `json:"read,omitempty"`
	Location   source.Location `json:"location"`
}

// NameAndArity returns the signature's lookup key.
func (s *Signature) NameAndArity() NameAndArity {
	return NameAndArity{Name: s.Name, Arity: len(s.Params)}
}

// RefreshTyped recomputes FullyTyped from the parameter list.
func (s *Signature) RefreshTyped() bool {
	s.FullyTyped = true
	for _, p := range s.Params {
		if p.Type == nil {
			s.FullyTyped = false
			break
		}
	}
	return s.FullyTyped
}

// OutParamMask returns a bitmask with bit i set when parameter i is an out parameter.
func (s *Signature) OutParamMask() []byte {
	mask := make([]byte, (len(s.Params)+7)/8)
	for i, p := range s.Params {
		if p.Direction == DirOut {
			mask[i/8] |= 1 << (i % 8)
		}
	}
	return mask
}

// GoalDef is a registered goal.
type GoalDef struct {
	Name     string
	Index    int // registration order, starting at 0
	Location source.Location
}
