package cli

import (
	"github.com/fatih/color"
)

// Color usage:
//   - red: errors, failures
//   - yellow: warnings
//   - green: success
//   - dim: source locations
var (
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	green  = color.New(color.FgGreen)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

// InitColors turns colored output off when noColor is set. fatih/color
// already honours NO_COLOR and disables itself when stdout is not a TTY.
func InitColors(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}
