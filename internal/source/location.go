// Package source holds source positions shared by the AST, IR and diagnostics.
package source

import "fmt"

// Location is a position in a story source file.
// The zero value means "unknown".
type Location struct {
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
	Column int    `json:"column,omitempty" yaml:"column,omitempty"`
}

// IsValid reports whether the location carries a line number.
func (l Location) IsValid() bool {
	return l.Line > 0
}

func (l Location) String() string {
	switch {
	case !l.IsValid():
		return l.File
	case l.Column > 0:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	default:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
}
