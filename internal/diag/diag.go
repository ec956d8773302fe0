// Package diag collects compiler diagnostics.
//
// The log is append-only and never fails fast: every component reports into
// it and keeps going, so a single compilation surfaces as many problems as
// possible. Whether output is produced is decided by the caller (see Log.HasErrors).
package diag

import (
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/roach88/goalc/internal/source"
)

// Level is the severity of a diagnostic.
type Level int

const (
	LevelWarning Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "warning"
}

// MarshalText renders the level as "error" or "warning".
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts the names MarshalText produces.
func (l *Level) UnmarshalText(text []byte) error {
	switch string(text) {
	case "error":
		*l = LevelError
	case "warning":
		*l = LevelWarning
	default:
		return fmt.Errorf("unknown diagnostic level %q", text)
	}
	return nil
}

// Code is a stable short identifier of a diagnostic category.
type Code string

// Registry conflicts (E101-E109)
const (
	ErrDuplicateTypeID    Code = "E101" // type id already registered
	ErrDuplicateTypeName  Code = "E102" // type name already registered
	ErrReservedTypeID     Code = "E103" // type id collides with an intrinsic id
	ErrInvalidAliasTarget Code = "E104" // alias intrinsic id out of range
	ErrDuplicateFunction  Code = "E105" // name+arity already registered
	ErrDuplicateGoal      Code = "E106" // goal name already registered
)

// Resolution failures (E201-E209)
const (
	ErrUnresolvedType         Code = "E201" // type annotation names no type
	ErrUnresolvedVariableType Code = "E202" // rule variable never got a type
	ErrUnresolvedFunction     Code = "E203" // name+arity names no function
	ErrUnresolvedGoal         Code = "E204" // goal name names no goal
	ErrUnboundVariable        Code = "E205" // variable read before a condition binds it
	ErrTypeMismatch           Code = "E206" // value type incompatible with parameter
	ErrGoalCycle              Code = "E207" // parent/child goal edges form a cycle
	ErrUntypedParameter       Code = "E208" // parameter type could not be inferred
)

// Structural violations (E301-E309)
const (
	ErrInvalidRuleRoot      Code = "E301" // first condition is not a valid root
	ErrNotCallable          Code = "E302" // action or fact target is not callable
	ErrNotOnNonDatabase     Code = "E303" // NOT applied to a non-database action
	ErrInvalidJoinTarget    Code = "E304" // condition cannot appear after the root
	ErrNonConstantFactValue Code = "E305" // INIT/EXIT fact with a variable
	ErrMalformedSyntax      Code = "E306" // AST node with no or conflicting shape
)

// Style and semantic warnings (W401-W409)
const (
	WarnRiskyComparison    Code = "W401" // ordering operator on strings/guids
	WarnNamingConvention   Code = "W402" // DB_/PROC_/QRY_ prefix missing
	WarnDatabaseNotRead    Code = "W403" // database written but never read
	WarnDatabaseNotWritten Code = "W404" // database read but never written
	WarnGuidAliasMismatch  Code = "W405" // guid of one alias passed as another
	WarnSingletonVariable  Code = "W406" // variable used once without a _ prefix
)

// Diagnostic is a single compiler message.
type Diagnostic struct {
	Location source.Location `json:"location"`
	Level    Level           `json:"level"`
	Code     Code            `json:"code"`
	Message  string          `json:"message"`
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	if d.Location.IsValid() || d.Location.File != "" {
		return fmt.Sprintf("%s: [%s] %s", d.Location, d.Code, d.Message)
	}
	return fmt.Sprintf("[%s] %s", d.Code, d.Message)
}

// Errorf builds an error-level diagnostic.
func Errorf(loc source.Location, code Code, format string, args ...any) *Diagnostic {
	return &Diagnostic{Location: loc, Level: LevelError, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning-level diagnostic.
func Warnf(loc source.Location, code Code, format string, args ...any) *Diagnostic {
	return &Diagnostic{Location: loc, Level: LevelWarning, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Log accumulates diagnostics.
type Log struct {
	entries          []Diagnostic
	suppressed       map[Code]bool
	warningsAsErrors bool
	logger           *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithSuppressed drops every diagnostic carrying one of codes.
func WithSuppressed(codes ...Code) Option {
	return func(l *Log) {
		for _, c := range codes {
			l.suppressed[c] = true
		}
	}
}

// WithWarningsAsErrors promotes warnings to errors when they are added.
func WithWarningsAsErrors(on bool) Option {
	return func(l *Log) {
		l.warningsAsErrors = on
	}
}

// WithLogger mirrors every accepted diagnostic to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// NewLog creates an empty log.
func NewLog(opts ...Option) *Log {
	l := &Log{suppressed: make(map[Code]bool)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Suppress disables a code for all subsequent Add calls.
func (l *Log) Suppress(code Code) {
	l.suppressed[code] = true
}

// Add appends d unless its code is suppressed. A nil d is ignored so
// registry results can be passed straight through.
func (l *Log) Add(d *Diagnostic) {
	if d == nil || l.suppressed[d.Code] {
		return
	}
	entry := *d
	if entry.Level == LevelWarning && l.warningsAsErrors {
		entry.Level = LevelError
	}
	l.entries = append(l.entries, entry)
	if l.logger != nil {
		l.logger.Debug("diagnostic",
			"code", string(entry.Code),
			"level", entry.Level.String(),
			"location", entry.Location.String(),
			"message", entry.Message,
		)
	}
}

// Error records an error-level diagnostic.
func (l *Log) Error(loc source.Location, code Code, format string, args ...any) {
	l.Add(Errorf(loc, code, format, args...))
}

// Warn records a warning-level diagnostic.
func (l *Log) Warn(loc source.Location, code Code, format string, args ...any) {
	l.Add(Warnf(loc, code, format, args...))
}

// Entries returns the diagnostics in the order they were reported.
func (l *Log) Entries() []Diagnostic {
	out := make([]Diagnostic, len(l.entries))
	copy(out, l.entries)
	return out
}

// WithCode returns the diagnostics carrying code.
func (l *Log) WithCode(code Code) []Diagnostic {
	var out []Diagnostic
	for _, d := range l.entries {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// Count returns how many entries have the given level.
func (l *Log) Count(level Level) int {
	n := 0
	for _, d := range l.entries {
		if d.Level == level {
			n++
		}
	}
	return n
}

// HasErrors reports whether any error-level diagnostic was recorded.
func (l *Log) HasErrors() bool {
	return l.Count(LevelError) > 0
}

// Err combines all error-level diagnostics into one error, or returns nil.
func (l *Log) Err() error {
	var err error
	for _, d := range l.entries {
		if d.Level == LevelError {
			err = multierr.Append(err, d)
		}
	}
	return err
}
