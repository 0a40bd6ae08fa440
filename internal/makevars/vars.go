// Package makevars implements the scalar portage variable environment:
// make.conf/make.defaults/profile assignments, incremental-variable
// merging (USE, CONFIG_PROTECT, ...), and evaluation of simple bash
// assignment files via mvdan.cc/sh.
package makevars

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alessio/shellescape"
)

// Vars is a flat string-keyed variable environment, as produced by
// make.conf/profile evaluation (distinct from bashvars.Vars, which also
// tracks indexed arrays for the richer ebuild-evaluation environment).
type Vars map[string]string

func (v Vars) Copy() Vars {
	u := make(Vars, len(v))
	for k, val := range v {
		u[k] = val
	}
	return u
}

func (v Vars) CopyNoIncrementalVars() Vars {
	u := make(Vars)
	for k, val := range v {
		if isIncrementalVar(k) {
			continue
		}
		u[k] = val
	}
	return u
}

func (v Vars) Environ() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make([]string, 0, len(v))
	for _, name := range names {
		env = append(env, fmt.Sprintf("%s=%s", name, v[name]))
	}
	return env
}

func (v Vars) Dump(w io.Writer) {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "%s=%s\n", shellescape.Quote(name), shellescape.Quote(v[name]))
	}
}

func (v Vars) GetAsList(key string) []string {
	return strings.Fields(v[key])
}

func (v Vars) GetAsSet(key string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, e := range v.GetAsList(key) {
		set[e] = struct{}{}
	}
	return set
}

// Merge folds nv into v in place: incremental variables are
// space-appended, everything else is overwritten.
func (v Vars) Merge(nv Vars) {
	for key, newValue := range nv {
		if isIncrementalVar(key) {
			v[key] = strings.TrimSpace(v[key] + " " + newValue)
		} else {
			v[key] = newValue
		}
	}
}

func Merge(varsList ...Vars) Vars {
	merged := make(Vars)
	for _, vars := range varsList {
		merged.Merge(vars)
	}
	return merged
}

var incrementalVarNames = map[string]struct{}{
	"USE":                   {},
	"USE_EXPAND":            {},
	"USE_EXPAND_HIDDEN":     {},
	"CONFIG_PROTECT":        {},
	"CONFIG_PROTECT_MASK":   {},
	"IUSE_IMPLICIT":         {},
	"USE_EXPAND_IMPLICIT":   {},
	"USE_EXPAND_UNPREFIXED": {},
	"ENV_UNSET":             {},
}

func isIncrementalVar(name string) bool {
	if _, ok := incrementalVarNames[name]; ok {
		return true
	}
	return strings.HasPrefix(name, "USE_EXPAND_VALUES_")
}

// FinalizeIncrementalVar resolves a space-separated incremental variable
// value that may contain "-*" (reset) and "-flag" (negate) tokens into its
// final sorted, deduplicated token list.
func FinalizeIncrementalVar(value string) string {
	tokenSet := make(map[string]struct{})

	for _, token := range strings.Fields(value) {
		if token == "-*" {
			tokenSet = make(map[string]struct{})
			continue
		}
		if strings.HasPrefix(token, "-") {
			delete(tokenSet, token[1:])
			continue
		}
		tokenSet[token] = struct{}{}
	}

	tokens := make([]string, 0, len(tokenSet))
	for token := range tokenSet {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
