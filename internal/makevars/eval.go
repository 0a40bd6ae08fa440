package makevars

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

type environ Vars

var _ expand.Environ = environ{}

func (e environ) Get(name string) expand.Variable {
	value, ok := e[name]
	if !ok {
		return expand.Variable{}
	}
	return expand.Variable{Local: true, Kind: expand.String, Str: value}
}

func (e environ) Each(f func(name string, v expand.Variable) bool) {
	for name := range e {
		if !f(name, e.Get(name)) {
			return
		}
	}
}

func (e environ) Set(name string, v expand.Variable) {
	if v.Kind != expand.String {
		return
	}
	e[name] = v.Str
}

// Eval evaluates a bash-like file of simple assignment statements (as
// used by make.conf/make.defaults), merging into env and returning just
// the variables this file itself assigned. If allowSource is true, a bare
// "source <path>" statement recurses into another file, resolved relative
// to the current file's directory unless absolute.
func Eval(path string, env Vars, allowSource bool) (Vars, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer file.Close()

	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	parsed, err := parser.Parse(file, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	vars := make(Vars)

	for _, stmt := range parsed.Stmts {
		call, ok := stmt.Cmd.(*syntax.CallExpr)
		if !ok {
			return nil, fmt.Errorf("%s:%s: unsupported statement", path, stmt.Pos())
		}

		if allowSource && len(call.Args) >= 1 && len(call.Args[0].Parts) == 1 {
			if keyword, ok := call.Args[0].Parts[0].(*syntax.Lit); ok && keyword.Value == "source" {
				if len(call.Args) != 2 {
					return nil, fmt.Errorf("%s:%s: source needs exactly one file name", path, call.Pos())
				}

				cfg := &expand.Config{Env: environ(env)}
				relPath, err := expand.Literal(cfg, call.Args[1])
				if err != nil {
					return nil, fmt.Errorf("%s:%s: %w", path, call.Args[1].Pos(), err)
				}

				newPath := relPath
				if !filepath.IsAbs(relPath) {
					newPath = filepath.Join(filepath.Dir(path), relPath)
				}

				subvars, err := Eval(newPath, env, allowSource)
				if err != nil {
					return nil, err
				}
				for name, value := range subvars {
					vars[name] = value
				}
				continue
			}
		}

		if len(call.Args) >= 1 {
			return nil, fmt.Errorf("%s:%s: unsupported call", path, call.Pos())
		}

		for _, assign := range call.Assigns {
			name := assign.Name.Value
			if assign.Append || assign.Array != nil || assign.Index != nil || assign.Naked || assign.Value == nil {
				return nil, fmt.Errorf("%s:%s: unsupported assignment", path, assign.Pos())
			}

			cfg := &expand.Config{Env: environ(env)}
			value, err := expand.Literal(cfg, assign.Value)
			if err != nil {
				return nil, fmt.Errorf("%s:%s: %w", path, assign.Value.Pos(), err)
			}

			env[name] = value
			vars[name] = value
		}
	}
	return vars, nil
}

// ParseMakeDefaults evaluates path, merging its (non-incremental-aware)
// assignments into vars using incremental-variable semantics.
func ParseMakeDefaults(path string, vars Vars) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer file.Close()

	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	parsed, err := parser.Parse(file, path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	newVars := vars.CopyNoIncrementalVars()

	for _, stmt := range parsed.Stmts {
		call, ok := stmt.Cmd.(*syntax.CallExpr)
		if !ok {
			return fmt.Errorf("%s:%s: unsupported statement", path, stmt.Pos())
		}
		if len(call.Args) >= 1 {
			return fmt.Errorf("%s:%s: unsupported call", path, call.Pos())
		}

		for _, assign := range call.Assigns {
			name := assign.Name.Value
			if assign.Append || assign.Array != nil || assign.Index != nil || assign.Naked {
				return fmt.Errorf("%s:%s: unsupported assignment", path, assign.Pos())
			}

			cfg := &expand.Config{Env: environ(newVars)}
			value, err := expand.Literal(cfg, assign.Value)
			if err != nil {
				return fmt.Errorf("%s:%s: %w", path, assign.Value.Pos(), err)
			}
			newVars[name] = value
		}
	}

	vars.Merge(newVars)
	return nil
}

// ParseSetOutput parses a scalar-only "set"-style dump into Vars,
// rejecting any bash array assignment (callers needing arrays should use
// internal/bashvars instead).
func ParseSetOutput(r io.Reader) (Vars, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	parsed, err := parser.Parse(r, "")
	if err != nil {
		return nil, err
	}

	vars := Vars{}

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
			if assign.Array != nil {
				return nil, fmt.Errorf("%s: unexpected array assignment %s", assign.Pos(), name)
			}
			if assign.Append || assign.Index != nil || assign.Naked {
				return nil, fmt.Errorf("%s: unsupported assignment", assign.Pos())
			}

			cfg := &expand.Config{Env: environ(vars)}
			value, err := expand.Literal(cfg, assign.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", assign.Value.Pos(), err)
			}
			vars[name] = value
		}
	}

	return vars, nil
}
