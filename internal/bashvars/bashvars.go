// Package bashvars parses the "set"-style variable dump produced by the
// ebuild interpreter back into Go values, preserving indexed bash arrays
// (CROS_WORKON_PROJECT and friends are genuine arrays, not strings) rather
// than collapsing them into a delimiter-joined scalar.
package bashvars

import (
	"fmt"
	"io"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// Vars holds both scalar variables and indexed arrays parsed out of a bash
// environment dump.
type Vars struct {
	Scalars map[string]string
	Arrays  map[string][]string
}

func New() *Vars {
	return &Vars{Scalars: make(map[string]string), Arrays: make(map[string][]string)}
}

// Get returns a variable as a string, joining array elements with a space
// the way bash's "${var[*]}" would with the default IFS. Most
// callers that only ever dealt with scalars can keep using this.
func (v *Vars) Get(name string) string {
	if s, ok := v.Scalars[name]; ok {
		return s
	}
	return strings.Join(v.Arrays[name], " ")
}

// Array returns the named variable as an array, treating an absent array
// and a non-array scalar as a nil/empty array.
func (v *Vars) Array(name string) []string {
	if a, ok := v.Arrays[name]; ok {
		return a
	}
	return nil
}

// Environ adapts Vars to mvdan.cc/sh/v3/expand.Environ for use as the
// expansion context when parsing further bash fragments.
type Environ struct{ V *Vars }

var _ expand.Environ = Environ{}

func (e Environ) Get(name string) expand.Variable {
	if a, ok := e.V.Arrays[name]; ok {
		return expand.Variable{Local: true, Kind: expand.Indexed, List: a}
	}
	if s, ok := e.V.Scalars[name]; ok {
		return expand.Variable{Local: true, Kind: expand.String, Str: s}
	}
	return expand.Variable{}
}

func (e Environ) Each(f func(name string, v expand.Variable) bool) {
	for name := range e.V.Scalars {
		if !f(name, e.Get(name)) {
			return
		}
	}
	for name := range e.V.Arrays {
		if !f(name, e.Get(name)) {
			return
		}
	}
}

func (e Environ) Set(name string, v expand.Variable) {
	switch v.Kind {
	case expand.String:
		e.V.Scalars[name] = v.Str
	case expand.Indexed:
		e.V.Arrays[name] = append([]string(nil), v.List...)
	}
}

// ParseSetOutput parses the output of `set` (restricted to simple
// variable assignment statements, as produced by the evaluator's
// prelude) into Vars.
func ParseSetOutput(r io.Reader) (*Vars, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	parsed, err := parser.Parse(r, "")
	if err != nil {
		return nil, err
	}

	vars := New()

	for _, stmt := range parsed.Stmts {
		call, ok := stmt.Cmd.(*syntax.CallExpr)
		if !ok {
			return nil, fmt.Errorf("%s: unsupported statement", stmt.Pos())
		}
		if len(call.Args) >= 1 {
			return nil, fmt.Errorf("%s: unsupported call", call.Pos())
		}

		for _, assign := range call.Assigns {
			name := assign.Name.Value
			if assign.Append || assign.Index != nil || assign.Naked {
				return nil, fmt.Errorf("%s: unsupported assignment", assign.Pos())
			}

			cfg := &expand.Config{Env: Environ{vars}}

			if assign.Array == nil {
				value, err := expand.Literal(cfg, assign.Value)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", assign.Value.Pos(), err)
				}
				vars.Scalars[name] = value
				continue
			}

			var values []string
			for _, elem := range assign.Array.Elems {
				value, err := expand.Literal(cfg, elem.Value)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", elem.Value.Pos(), err)
				}
				values = append(values, value)
			}
			vars.Arrays[name] = values
		}
	}

	return vars, nil
}
