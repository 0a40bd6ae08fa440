package dependency

import (
	"fmt"
	"strings"

	"crosbuild.dev/alchemist/internal/naming"
	"crosbuild.dev/alchemist/internal/version"
)

// TargetPackage describes a concrete, already-resolved package that an
// Atom can be matched against.
type TargetPackage struct {
	Name     string
	Version  *version.Version
	MainSlot string
	Uses     map[string]bool
}

type VersionOperator string

const (
	OpNone         VersionOperator = ""
	OpLessEqual    VersionOperator = "<="
	OpLess         VersionOperator = "<"
	OpExactEqual   VersionOperator = "="
	OpRoughEqual   VersionOperator = "~"
	OpGreaterEqual VersionOperator = ">="
	OpGreater      VersionOperator = ">"
)

// Order matters: longer prefixes ("<=", ">=") must be tried before their
// single-character counterparts ("<", ">").
var versionOperators = []VersionOperator{
	OpLessEqual,
	OpLess,
	OpExactEqual,
	OpRoughEqual,
	OpGreaterEqual,
	OpGreater,
}

// Atom is a Portage package dependency atom: a package name plus optional
// version constraint, slot constraint, and use dependencies.
type Atom struct {
	name     string
	op       VersionOperator
	ver      *version.Version
	wildcard bool
	slotDep  string
	useDeps  []*UseDependency
}

func NewAtom(packageName string, op VersionOperator, ver *version.Version, wildcard bool, slotDep string, useDeps []*UseDependency) *Atom {
	return &Atom{name: packageName, op: op, ver: ver, wildcard: wildcard, slotDep: slotDep, useDeps: useDeps}
}

func NewSimpleAtom(packageName string) *Atom {
	return NewAtom(packageName, OpNone, nil, false, "", nil)
}

// ParseAtom parses a package atom string such as
// ">=dev-libs/foo-1.2.3:0/1[bar,-baz]".
func ParseAtom(atomStr string) (*Atom, error) {
	rest := atomStr

	var useDeps []*UseDependency
	if strings.HasSuffix(rest, "]") {
		v := strings.SplitN(strings.TrimSuffix(rest, "]"), "[", 2)
		if len(v) != 2 {
			return nil, fmt.Errorf("%s: invalid use dependencies", atomStr)
		}
		for _, u := range strings.Split(v[1], ",") {
			useDeps = append(useDeps, &UseDependency{raw: u})
		}
		rest = v[0]
	}

	slotDep := ""
	if v := strings.SplitN(rest, ":", 2); len(v) == 2 {
		slotDep = v[1]
		rest = v[0]
	}

	op, rest, err := trimVersionOperator(rest)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", atomStr, err)
	}

	var ver *version.Version
	wildcard := false
	if op != OpNone {
		if op == OpExactEqual && strings.HasSuffix(rest, "*") {
			rest = strings.TrimSuffix(rest, "*")
			wildcard = true
		}
		rest, ver, err = version.ExtractSuffix(rest)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", atomStr, err)
		}
		if !strings.HasSuffix(rest, "-") {
			return nil, fmt.Errorf("%s: missing '-' before version", atomStr)
		}
		rest = strings.TrimSuffix(rest, "-")
	}

	if err := naming.CheckCategoryAndPackage(rest); err != nil {
		return nil, fmt.Errorf("%s: %w", atomStr, err)
	}

	return &Atom{name: rest, op: op, ver: ver, wildcard: wildcard, slotDep: slotDep, useDeps: useDeps}, nil
}

func trimVersionOperator(s string) (op VersionOperator, rest string, err error) {
	for _, op := range versionOperators {
		if strings.HasPrefix(s, string(op)) {
			return op, strings.TrimPrefix(s, string(op)), nil
		}
	}
	return OpNone, s, nil
}

func (a *Atom) PackageName() string              { return a.name }
func (a *Atom) PackageCategory() string          { return strings.Split(a.name, "/")[0] }
func (a *Atom) VersionOperator() VersionOperator { return a.op }
func (a *Atom) Version() *version.Version        { return a.ver }
func (a *Atom) Wildcard() bool                   { return a.wildcard }
func (a *Atom) SlotDep() string                  { return a.slotDep }
func (a *Atom) UseDeps() []*UseDependency        { return a.useDeps }

// Match reports whether t satisfies this atom's name, version, and slot
// constraints. Use dependencies are not checked here: they only narrow
// which USE flags a dependency must be built with, not whether a
// candidate package qualifies at all.
func (a *Atom) Match(t *TargetPackage) bool {
	if t.Name != a.name {
		return false
	}
	if a.slotDep != "" && a.slotDep != "*" && a.slotDep != "=" {
		wantMainSlot := strings.Split(strings.TrimSuffix(a.slotDep, "="), "/")[0]
		if t.MainSlot != wantMainSlot {
			return false
		}
	}
	switch a.op {
	case OpNone:
		return true
	case OpLess:
		return t.Version.Compare(a.ver) < 0
	case OpLessEqual:
		return t.Version.Compare(a.ver) <= 0
	case OpExactEqual:
		if a.wildcard {
			return t.Version.HasPrefix(a.ver)
		}
		return t.Version.Compare(a.ver) == 0
	case OpRoughEqual:
		return t.Version.DropRevision().Compare(a.ver) == 0
	case OpGreaterEqual:
		return t.Version.Compare(a.ver) >= 0
	case OpGreater:
		return t.Version.Compare(a.ver) > 0
	default:
		panic(fmt.Sprintf("unknown version operator %q", string(a.op)))
	}
}

func (a *Atom) String() string {
	s := string(a.op) + a.name
	if a.op != OpNone {
		s += "-" + a.ver.String()
		if a.wildcard {
			s += "*"
		}
	}
	if a.slotDep != "" {
		s += ":" + a.slotDep
	}
	if len(a.useDeps) > 0 {
		var parts []string
		for _, u := range a.useDeps {
			parts = append(parts, u.String())
		}
		s += fmt.Sprintf("[%s]", strings.Join(parts, ","))
	}
	return s
}

type UseDependency struct {
	raw string
}

func (u *UseDependency) String() string { return u.raw }

// Package is a dependency-tree leaf: an atom plus a block count (the
// number of leading "!" marks, 0 for an ordinary dependency, 1 for a
// "weak" blocker, 2 for a "strong" blocker).
type Package struct {
	atom   *Atom
	blocks int
}

func NewPackage(atom *Atom, blocks int) *Package { return &Package{atom: atom, blocks: blocks} }

func (p *Package) Atom() *Atom { return p.atom }
func (p *Package) Blocks() int { return p.blocks }

func (p *Package) String() string {
	return strings.Repeat("!", p.blocks) + p.atom.String()
}
