// Package version implements parsing and comparison of Portage package
// versions, as defined by the ebuild version specification: a dot-separated
// main part, an optional trailing letter, zero or more release-type
// suffixes (_alpha, _beta, _pre, _rc, _p, each with an optional trailing
// number), and an optional -rN revision.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Version is a parsed Portage package version.
type Version struct {
	Main     []string
	Letter   string
	Suffixes []*Suffix
	Revision string
}

func (v *Version) Copy() *Version {
	c := *v
	c.Suffixes = append([]*Suffix(nil), v.Suffixes...)
	for i, suffix := range c.Suffixes {
		c.Suffixes[i] = suffix.Copy()
	}
	return &c
}

// ImplicitRevision returns the revision string, defaulting to "0" when the
// version carries no explicit -rN suffix.
func (v *Version) ImplicitRevision() string {
	if v.Revision == "" {
		return "0"
	}
	return v.Revision
}

func (v *Version) DropRevision() *Version {
	c := v.Copy()
	c.Revision = ""
	return c
}

func (v *Version) Major() string {
	if len(v.Main) > 0 {
		return v.Main[0]
	}
	return "0"
}

func (v *Version) String() string {
	var w strings.Builder
	for i, n := range v.Main {
		if i > 0 {
			w.WriteString(".")
		}
		w.WriteString(n)
	}
	w.WriteString(v.Letter)
	for _, s := range v.Suffixes {
		w.WriteString(string(s.Label))
		w.WriteString(s.Number)
	}
	if v.Revision != "" {
		w.WriteString("-r")
		w.WriteString(v.Revision)
	}
	return w.String()
}

// Compare returns <0, 0, >0 if v is respectively less than, equal to, or
// greater than o, per Portage version ordering rules.
func (v *Version) Compare(o *Version) int {
	if cmp := compareStringInt(v.Main[0], o.Main[0]); cmp != 0 {
		return cmp
	}
	for i := 1; i < len(v.Main) && i < len(o.Main); i++ {
		a, b := v.Main[i], o.Main[i]
		if strings.HasPrefix(a, "0") || strings.HasPrefix(b, "0") {
			// A component with a leading zero compares as a decimal
			// fraction: trailing zeros don't matter.
			if cmp := strings.Compare(strings.TrimRight(a, "0"), strings.TrimRight(b, "0")); cmp != 0 {
				return cmp
			}
		} else if cmp := compareStringInt(a, b); cmp != 0 {
			return cmp
		}
	}
	if len(v.Main) != len(o.Main) {
		if len(v.Main) < len(o.Main) {
			return -1
		}
		return 1
	}

	if cmp := strings.Compare(v.Letter, o.Letter); cmp != 0 {
		return cmp
	}

	for i := 0; i < len(v.Suffixes) && i < len(o.Suffixes); i++ {
		if cmp := v.Suffixes[i].Compare(o.Suffixes[i]); cmp != 0 {
			return cmp
		}
	}
	if len(v.Suffixes) > len(o.Suffixes) {
		if v.Suffixes[len(v.Suffixes)-1].Label == SuffixP {
			return 1
		}
		return -1
	}
	if len(v.Suffixes) < len(o.Suffixes) {
		if o.Suffixes[len(o.Suffixes)-1].Label == SuffixP {
			return -1
		}
		return 1
	}

	return compareStringInt(v.Revision, o.Revision)
}

// HasPrefix reports whether v starts with prefix component-by-component,
// used to implement the "=pkg-1.2*" wildcard atom operator.
func (v *Version) HasPrefix(prefix *Version) bool {
	c := v.Copy()

	func() {
		if prefix.Revision != "" {
			return
		}
		c.Revision = ""

		if len(c.Suffixes) > len(prefix.Suffixes) {
			c.Suffixes = c.Suffixes[:len(prefix.Suffixes)]
		}
		if len(prefix.Suffixes) > 0 {
			return
		}

		if prefix.Letter != "" {
			return
		}
		c.Letter = ""

		if len(c.Main) > len(prefix.Main) {
			c.Main = c.Main[:len(prefix.Main)]
		}
	}()

	return c.Compare(prefix) == 0
}

type Suffix struct {
	Label  SuffixLabel
	Number string
}

func (s *Suffix) Copy() *Suffix {
	c := *s
	return &c
}

func (s *Suffix) Compare(o *Suffix) int {
	if cmp := s.Label.Compare(o.Label); cmp != 0 {
		return cmp
	}
	return compareStringInt(s.Number, o.Number)
}

// SuffixLabel is one of the release-type suffixes, ordered by how "final" a
// release they denote: alpha < beta < pre < rc < p (patch, post-release).
type SuffixLabel string

const (
	SuffixAlpha SuffixLabel = "_alpha"
	SuffixBeta  SuffixLabel = "_beta"
	SuffixPre   SuffixLabel = "_pre"
	SuffixRC    SuffixLabel = "_rc"
	SuffixP     SuffixLabel = "_p"
)

func (l SuffixLabel) Compare(o SuffixLabel) int {
	lp, op := l.priority(), o.priority()
	switch {
	case lp < op:
		return -1
	case lp > op:
		return 1
	default:
		return 0
	}
}

func (l SuffixLabel) priority() int {
	switch l {
	case SuffixAlpha:
		return 1
	case SuffixBeta:
		return 2
	case SuffixPre:
		return 3
	case SuffixRC:
		return 4
	case SuffixP:
		return 5
	default:
		panic(fmt.Sprintf("unknown version suffix label %s", string(l)))
	}
}

// compareStringInt compares two non-negative decimal integers given as
// strings, ignoring leading zeros, without risking overflow on huge
// version components.
func compareStringInt(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

var (
	mainRe     = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)*)$`)
	letterRe   = regexp.MustCompile(`([a-z])$`)
	suffixRe   = regexp.MustCompile(`(_(?:alpha|beta|pre|rc|p))(\d*)$`)
	revisionRe = regexp.MustCompile(`-r(\d+)$`)
)

// ExtractSuffix trims a Portage package version suffix from the end of s,
// returning whatever precedes it (typically "category/name-") and the
// parsed version.
//
// Examples:
//
//	"net-misc/curl-7.78.0-r1" => ("net-misc/curl-", 7.78.0-r1)
//	"curl-7.78.0-r1"          => ("curl-", 7.78.0-r1)
//	"7.78.0-r1"               => ("", 7.78.0-r1)
func ExtractSuffix(s string) (prefix string, ver *Version, err error) {
	revision := ""
	if m := revisionRe.FindStringSubmatch(s); m != nil {
		revision = m[1]
		s = s[:len(s)-len(m[0])]
	}

	var suffixes []*Suffix
	for {
		m := suffixRe.FindStringSubmatch(s)
		if m == nil {
			break
		}
		suffixes = append([]*Suffix{{Label: SuffixLabel(m[1]), Number: m[2]}}, suffixes...)
		s = s[:len(s)-len(m[0])]
	}

	var letter string
	if m := letterRe.FindStringSubmatch(s); m != nil {
		letter = m[1]
		s = s[:len(s)-len(m[0])]
	}

	m := mainRe.FindStringSubmatch(s)
	if m == nil {
		return "", nil, errors.New("invalid version: missing main numeric part")
	}
	main := strings.Split(m[1], ".")
	s = s[:len(s)-len(m[0])]

	return s, &Version{Main: main, Letter: letter, Suffixes: suffixes, Revision: revision}, nil
}

// Parse parses s as a complete Portage version string, rejecting any
// leftover prefix.
func Parse(s string) (*Version, error) {
	rest, ver, err := ExtractSuffix(s)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("invalid version %q: unexpected prefix %q", s, rest)
	}
	return ver, nil
}
