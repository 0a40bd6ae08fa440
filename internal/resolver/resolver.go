package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"crosbuild.dev/alchemist/internal/alchemistlog"
	"crosbuild.dev/alchemist/internal/config"
	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/ebuildeval"
	"crosbuild.dev/alchemist/internal/makeconf"
	"crosbuild.dev/alchemist/internal/makevars"
	"crosbuild.dev/alchemist/internal/packages"
	"crosbuild.dev/alchemist/internal/portagevars"
	"crosbuild.dev/alchemist/internal/repository"
)

type Resolver struct {
	repoSet  *repository.RepoSet
	bundle   config.Bundle
	loader   *Loader
	provided map[string][]*config.TargetPackage

	// collector, when set, receives evaluation failures so they're
	// tallied alongside post-load analysis failures instead of only
	// reaching stderr.
	collector *alchemistlog.Collector
}

// SetCollector routes evaluation failures Packages encounters through c
// instead of the bare stderr warning, so a bulk run can tally them the
// same way cmd/alchemist tallies per-package analysis failures.
func (r *Resolver) SetCollector(c *alchemistlog.Collector) {
	r.collector = c
}

// NewResolver discovers the repository set and profile chain rooted at
// rootDir (a sysroot, typically the build chroot), evaluates make.conf and
// the active profile, and returns a Resolver ready to answer queries.
// forceAccept9999 should be true when running outside the chroot that
// would otherwise stabilize cros-workon ebuilds.
func NewResolver(rootDir string, forceAccept9999 bool, extraSources ...config.Source) (*Resolver, error) {
	userConfigSource := makeconf.NewUserConfigSource(rootDir)

	bootEnv := make(makevars.Vars)
	if _, err := userConfigSource.EvalGlobalVars(bootEnv); err != nil {
		return nil, err
	}

	overlays := portagevars.Overlays(bootEnv)

	repoSet, err := repository.NewRepoSet(overlays)
	if err != nil {
		return nil, err
	}

	profilePath, err := os.Readlink(filepath.Join(rootDir, "etc/portage/make.profile"))
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(profilePath) {
		profilePath = filepath.Clean(filepath.Join(rootDir, "etc/portage", profilePath))
	}

	rawProfile, err := repoSet.ProfileByPath(profilePath)
	if err != nil {
		return nil, err
	}

	prof, err := rawProfile.Parse()
	if err != nil {
		return nil, err
	}

	bundle := config.Bundle(append([]config.Source{prof, userConfigSource}, extraSources...))

	processor := ebuildeval.NewCachedProcessor(ebuildeval.NewProcessor(bundle, repoSet.EClassDirs()))

	masks, err := bundle.PackageMasks()
	if err != nil {
		return nil, err
	}

	rawProvided, err := bundle.ProvidedPackages()
	if err != nil {
		return nil, err
	}
	provided := make(map[string][]*config.TargetPackage)
	for _, pkg := range rawProvided {
		provided[pkg.Name] = append(provided[pkg.Name], pkg)
	}

	return &Resolver{
		repoSet:  repoSet,
		bundle:   bundle,
		loader:   NewLoader(processor, bundle, masks, forceAccept9999),
		provided: provided,
	}, nil
}

func (r *Resolver) Config() config.Source    { return r.bundle }
func (r *Resolver) RepoSet() *repository.RepoSet { return r.repoSet }

// Packages returns every unmasked candidate matching atom, highest
// version first, ties broken by repository priority (later/overlay
// repositories win).
func (r *Resolver) Packages(atom *dependency.Atom) ([]*LoadedPackage, error) {
	repoPkgs, err := r.repoSet.Packages(atom.PackageName())
	if err != nil {
		return nil, err
	}

	var pkgs []*LoadedPackage
	for _, repoPkg := range repoPkgs {
		loaded, err := r.loader.Load(repoPkg, atom.PackageName())
		if err != nil {
			if r.collector != nil {
				r.collector.Fail(repoPkg.Path, err)
			} else {
				fmt.Fprintf(os.Stderr, "WARNING: ignored ebuild: failed to evaluate %s: %v\n", repoPkg.Path, err)
			}
			continue
		}
		if loaded.Masked {
			continue
		}
		if atom.Match(loaded.TargetPackage()) {
			pkgs = append(pkgs, loaded)
		}
	}

	sort.SliceStable(pkgs, func(i, j int) bool {
		if cmp := pkgs[i].Version().Compare(pkgs[j].Version()); cmp != 0 {
			return cmp > 0
		}
		return pkgs[i].Repo.Priority() > pkgs[j].Repo.Priority()
	})

	return pkgs, nil
}

// BestPackage implements find_best_package: the highest-priority stable
// candidate, falling back to testing when no stable candidate exists.
func (r *Resolver) BestPackage(atom *dependency.Atom) (*LoadedPackage, error) {
	pkgs, err := r.Packages(atom)
	if err != nil {
		return nil, err
	}

	best := selectByStability(pkgs)
	if len(best) == 0 {
		return nil, fmt.Errorf("no package satisfies %s", atom.String())
	}
	return best[0], nil
}

func selectByStability(pkgs []*LoadedPackage) []*LoadedPackage {
	var stable, testing []*LoadedPackage
	for _, pkg := range pkgs {
		if pkg.Stability() == packages.StabilityStable {
			stable = append(stable, pkg)
		} else if pkg.Stability() == packages.StabilityTesting || pkg.Accepted {
			testing = append(testing, pkg)
		}
	}
	if len(stable) > 0 {
		return stable
	}
	return testing
}

func (r *Resolver) IsProvided(atom *dependency.Atom) bool {
	for _, pkg := range r.provided[atom.PackageName()] {
		if atom.Match(&dependency.TargetPackage{Name: pkg.Name, Version: pkg.Version}) {
			return true
		}
	}
	return false
}

// FindProvidedPackages enumerates the package.provided entries matching
// atom's package name, for callers that need to rewrite a dependency leaf
// rather than just test membership.
func (r *Resolver) FindProvidedPackages(atom *dependency.Atom) []*config.TargetPackage {
	var matches []*config.TargetPackage
	for _, pkg := range r.provided[atom.PackageName()] {
		if atom.Match(&dependency.TargetPackage{Name: pkg.Name, Version: pkg.Version}) {
			matches = append(matches, pkg)
		}
	}
	return matches
}

// SelectBestVersion picks the highest-version package from candidates,
// used for virtuals such as virtual/target-sdk-implicit-system where the
// real SDK base package must be located among several providers.
func SelectBestVersion(candidates []*LoadedPackage) *LoadedPackage {
	var best *LoadedPackage
	for _, c := range candidates {
		if best == nil || c.Version().Compare(best.Version()) > 0 {
			best = c
		}
	}
	return best
}
