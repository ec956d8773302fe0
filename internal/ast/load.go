package ast

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/goalc/internal/source"
)

// Format is the encoding of a story document.
type Format string

const (
	FormatYAML Format = "yaml" // also accepts JSON
	FormatCUE  Format = "cue"
)

// LoadError is a document that could not be read or decoded.
type LoadError struct {
	Path     string
	Message  string
	Location source.Location
	Err      error // underlying I/O error, if any
}

func (e *LoadError) Error() string {
	if e.Location.IsValid() {
		return fmt.Sprintf("%s: %s", e.Location, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// FormatForPath picks the document format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported story document %q (want .yaml, .yml, .json or .cue)", path)
	}
}

// LoadFile reads a story document. Locations without a file name are
// stamped with path.
func LoadFile(path string) (*Story, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("read: %v", err), Err: err}
	}
	story, err := Parse(data, format, path)
	if err != nil {
		return nil, err
	}
	story.stampFile(path)
	return story, nil
}

// Parse decodes a story document. name is used in error messages.
func Parse(data []byte, format Format, name string) (*Story, error) {
	switch format {
	case FormatYAML:
		return parseYAML(data, name)
	case FormatCUE:
		return parseCUE(data, name)
	default:
		return nil, &LoadError{Path: name, Message: fmt.Sprintf("unknown format %q", format)}
	}
}

func parseYAML(data []byte, name string) (*Story, error) {
	var story Story
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&story); err != nil {
		loadErr := &LoadError{Path: name, Message: fmt.Sprintf("decode: %v", err)}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			loadErr.Message = "decode: " + strings.Join(typeErr.Errors, "; ")
		}
		return nil, loadErr
	}
	return &story, nil
}

func parseCUE(data []byte, name string) (*Story, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(name, err)
	}
	var story Story
	if err := v.Decode(&story); err != nil {
		return nil, cueLoadError(name, err)
	}
	return &story, nil
}

// cueLoadError keeps the first CUE error together with its position.
func cueLoadError(name string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: name, Message: err.Error()}
	}
	first := errs[0]
	loadErr := &LoadError{Path: name, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 && positions[0].IsValid() {
		pos := positions[0]
		loadErr.Location = source.Location{File: pos.Filename(), Line: pos.Line(), Column: pos.Column()}
	}
	return loadErr
}

func stamp(loc *source.Location, file string) {
	if loc.File == "" {
		loc.File = file
	}
}

func (s *Story) stampFile(file string) {
	for i := range s.Types {
		stamp(&s.Types[i].Location, file)
	}
	for i := range s.Functions {
		stamp(&s.Functions[i].Location, file)
	}
	for i := range s.Goals {
		g := &s.Goals[i]
		stamp(&g.Location, file)
		stampStatements(g.Init, file)
		stampStatements(g.Exit, file)
		for j := range g.KB {
			r := &g.KB[j]
			stamp(&r.Location, file)
			for k := range r.Conditions {
				c := &r.Conditions[k]
				stamp(&c.Location, file)
				if c.Func != nil {
					stampCall(c.Func, file)
				}
				if c.Rel != nil {
					stamp(&c.Rel.LHS.Location, file)
					stamp(&c.Rel.RHS.Location, file)
				}
			}
			stampStatements(r.Actions, file)
		}
	}
}

func stampStatements(stmts []Statement, file string) {
	for i := range stmts {
		stamp(&stmts[i].Location, file)
		if stmts[i].Call != nil {
			stampCall(stmts[i].Call, file)
		}
	}
}

func stampCall(c *Call, file string) {
	stamp(&c.Location, file)
	for i := range c.Args {
		stamp(&c.Args[i].Location, file)
	}
}
