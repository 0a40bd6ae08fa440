package analyzer

import "crosbuild.dev/alchemist/internal/resolver"

// PackageSources is a package's full source-code closure: local
// (checked-out) directories, pinned repo subtrees, and remote
// distribution archives.
type PackageSources struct {
	LocalSources []LocalSource
	RepoSources  []RepoSource
	DistSources  []*DistSource
}

// AnalyzeSources computes pkg's full PackageSources. checkoutRoot is the
// directory live ("9999") CROS_WORKON checkouts are resolved against.
func AnalyzeSources(pkg *resolver.LoadedPackage, checkoutRoot string) (*PackageSources, error) {
	localSources, repoSources, err := AnalyzeLocalSources(pkg, checkoutRoot)
	if err != nil {
		return nil, err
	}
	distSources, err := AnalyzeDistSources(pkg)
	if err != nil {
		return nil, err
	}
	return &PackageSources{
		LocalSources: localSources,
		RepoSources:  repoSources,
		DistSources:  distSources,
	}, nil
}

// Result bundles one package's analyzed dependencies and sources, the
// unit of work cmd/alchemist fans out over.
type Result struct {
	Package      *resolver.LoadedPackage
	Dependencies *PackageDependencies
	Sources      *PackageSources
}

// Analyze computes pkg's full Result: its dependency closure plus its
// local/pinned/remote source closure.
func Analyze(pkg *resolver.LoadedPackage, res *resolver.Resolver, checkoutRoot string, crossCompile bool) (*Result, error) {
	deps, err := AnalyzeDependencies(pkg, res, crossCompile)
	if err != nil {
		return nil, err
	}
	sources, err := AnalyzeSources(pkg, checkoutRoot)
	if err != nil {
		return nil, err
	}
	return &Result{Package: pkg, Dependencies: deps, Sources: sources}, nil
}
