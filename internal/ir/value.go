package ir

import (
	"fmt"
	"strconv"

	"github.com/roach88/goalc/internal/source"
	"github.com/roach88/goalc/internal/symbols"
)

// Constant is a typed literal. Int is set for integer and integer64
// constants, Real for real constants and Str for string and guidstring ones.
type Constant struct {
	Type *symbols.ValueType `json:"type,omitempty"` // nil when the annotation did not resolve

	// Annotated constants carry an explicit type and never widen.
	Annotated bool `json:"annotated,omitempty"`

	Int  int64   `json:"int,omitempty"`
	Real float64 `json:"real,omitempty"`
	Str  string  `json:"str,omitempty"`
}

func (c Constant) String() string {
	if c.Type == nil {
		return "?"
	}
	switch c.Type.Intrinsic {
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

// Value is a variable reference or a constant.
type Value struct {
	IsVar    bool            `json:"is_var,omitempty"`
	Var      int             `json:"var,omitempty"` // index into Rule.Variables
	Const    Constant        `json:"const"`
	Location source.Location `json:"location"`
}

// VarValue references variable index i.
func VarValue(i int) Value {
	return Value{IsVar: true, Var: i}
}

// ConstValue wraps a constant.
func ConstValue(c Constant) Value {
	return Value{Const: c}
}

func (v Value) String() string {
	if v.IsVar {
		return fmt.Sprintf("$%d", v.Var)
	}
	return v.Const.String()
}
