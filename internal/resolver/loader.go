// Package resolver loads ebuilds into fully-classified candidate packages
// (accepted/masked/REQUIRED_USE-satisfied) and picks the best match for a
// dependency atom across a repository set.
package resolver

import (
	"strings"
	"sync"

	"crosbuild.dev/alchemist/internal/config"
	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/ebuildeval"
	"crosbuild.dev/alchemist/internal/packages"
	"crosbuild.dev/alchemist/internal/repository"
)

// LoadedPackage wraps an evaluated package with the acceptance/masking
// verdict the resolver needs to decide whether it's a usable candidate.
type LoadedPackage struct {
	*packages.Package

	// Accepted reports whether the package's KEYWORDS line (or the
	// force-accept-9999 override) admits it at all, ignoring masks.
	Accepted bool
	// Stable reports whether it was accepted via a stable keyword.
	Stable bool
	// RequiredUseOK reports whether REQUIRED_USE, evaluated against the
	// resolved USE map, is satisfied.
	RequiredUseOK bool
	// Masked is the final verdict: unaccepted, config-masked, or
	// REQUIRED_USE-failing packages are never selected.
	Masked bool

	Inherited        []string
	InheritPaths     []string
	MetallurgyTarget string

	Repo *repository.Repo
}

type loadCell struct {
	once sync.Once
	pkg  *LoadedPackage
	err  error
}

// Loader evaluates ebuild files into LoadedPackages.
type Loader struct {
	processor       *ebuildeval.CachedProcessor
	bundle          config.Bundle
	masks           []*dependency.Atom
	forceAccept9999 bool

	mu    sync.Mutex
	cells map[string]*loadCell
}

// NewLoader constructs a Loader. forceAccept9999 mirrors running outside a
// build chroot, where cros-workon 9999 ebuilds are evaluated even though
// they carry no stabilized keyword.
func NewLoader(processor *ebuildeval.CachedProcessor, bundle config.Bundle, masks []*dependency.Atom, forceAccept9999 bool) *Loader {
	return &Loader{
		processor:       processor,
		bundle:          bundle,
		masks:           masks,
		forceAccept9999: forceAccept9999,
		cells:           make(map[string]*loadCell),
	}
}

// Load classifies the ebuild at repoPkg.Path as packageName, memoized per
// path: masks and REQUIRED_USE never vary across calls for the same
// ebuild within one Loader, so repeated lookups (the same atom resolved
// from several dependency edges) reuse the first verdict.
func (l *Loader) Load(repoPkg *repository.Package, packageName string) (*LoadedPackage, error) {
	l.mu.Lock()
	c, ok := l.cells[repoPkg.Path]
	if !ok {
		c = &loadCell{}
		l.cells[repoPkg.Path] = c
	}
	l.mu.Unlock()

	c.once.Do(func() {
		c.pkg, c.err = l.load(repoPkg, packageName)
	})
	return c.pkg, c.err
}

func (l *Loader) load(repoPkg *repository.Package, packageName string) (*LoadedPackage, error) {
	info, err := l.processor.Read(repoPkg.Path)
	if err != nil {
		return nil, err
	}

	mainSlot := strings.SplitN(info.Metadata["SLOT"], "/", 2)[0]
	target := &dependency.TargetPackage{
		Name:     packageName,
		Version:  repoPkg.Version,
		MainSlot: mainSlot,
		Uses:     info.Uses,
	}

	pkg := packages.NewPackage(repoPkg.Path, info.Metadata, target)

	accepted := pkg.Stability() != packages.StabilityBroken
	stable := pkg.Stability() == packages.StabilityStable

	if !accepted && l.forceAccept9999 {
		manualUprev := info.Metadata["CROS_WORKON_MANUAL_UPREV"] == "1"
		if pkg.UsesEclass("cros-workon") && repoPkg.Version.DropRevision().String() == "9999" && !manualUprev {
			accepted = true
			stable = false
		}
	}

	requiredUseOK := true
	if ru := info.Metadata["REQUIRED_USE"]; strings.TrimSpace(ru) != "" {
		requiredUseOK, err = dependency.EvalRequiredUse(ru, info.Uses)
		if err != nil {
			return nil, err
		}
	}

	masked := !accepted
	if !masked {
		for _, mask := range l.masks {
			if mask.Match(target) {
				masked = true
				break
			}
		}
	}
	if !masked && !requiredUseOK {
		masked = true
	}

	return &LoadedPackage{
		Package:          pkg,
		Accepted:         accepted,
		Stable:           stable,
		RequiredUseOK:    requiredUseOK,
		Masked:           masked,
		Inherited:        strings.Fields(info.Metadata["INHERITED"]),
		InheritPaths:     strings.Fields(info.Metadata["INHERIT_PATHS"]),
		MetallurgyTarget: info.Metadata["METALLURGY_TARGET"],
		Repo:             repoPkg.Repo,
	}, nil
}
