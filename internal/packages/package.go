// Package packages wraps an evaluated ebuild with the identity and
// metadata needed to resolve and analyze it: its USE flags, SLOT,
// stability, and the repository-relative eclasses it pulled in.
package packages

import (
	"strings"

	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/version"
)

// Metadata holds an ebuild's evaluated global variables (DEPEND, SLOT,
// KEYWORDS, IUSE, USED_ECLASSES, ...) as flat strings, the way `ebuild.sh
// --dump` or an equivalent bash evaluation would produce them.
type Metadata map[string]string

type Package struct {
	path     string
	metadata Metadata
	target   *dependency.TargetPackage
}

func NewPackage(path string, metadata Metadata, target *dependency.TargetPackage) *Package {
	return &Package{path: path, metadata: metadata, target: target}
}

func (p *Package) Path() string                             { return p.path }
func (p *Package) Name() string                             { return p.target.Name }
func (p *Package) Category() string                         { return strings.Split(p.target.Name, "/")[0] }
func (p *Package) Version() *version.Version                { return p.target.Version }
func (p *Package) Uses() map[string]bool                    { return p.target.Uses }
func (p *Package) Metadata() Metadata                        { return p.metadata }
func (p *Package) TargetPackage() *dependency.TargetPackage { return p.target }

func (p *Package) MainSlot() string {
	slot := p.metadata["SLOT"]
	return strings.SplitN(slot, "/", 2)[0]
}

func (p *Package) Stability() Stability {
	arch := p.metadata["ARCH"]
	keywordSet := make(map[string]struct{})
	for _, k := range strings.Fields(p.metadata["KEYWORDS"]) {
		keywordSet[k] = struct{}{}
	}

	for _, s := range []string{arch, "*"} {
		if _, ok := keywordSet[s]; ok {
			return StabilityStable
		}
		if _, ok := keywordSet["~"+s]; ok {
			return StabilityTesting
		}
		if _, ok := keywordSet["-"+s]; ok {
			return StabilityBroken
		}
	}
	return StabilityTesting
}

func (p *Package) UsesEclass(eclass string) bool {
	for _, used := range strings.Split(p.metadata["USED_ECLASSES"], "|") {
		if used == eclass {
			return true
		}
	}
	return false
}
