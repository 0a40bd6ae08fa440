package resolver

import (
	"testing"

	"crosbuild.dev/alchemist/internal/config"
	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/ebuildeval"
	"crosbuild.dev/alchemist/internal/repository"
)

func newTestResolver(t *testing.T, repoDir string) *Resolver {
	t.Helper()

	repoSet, err := repository.NewRepoSet([]string{repoDir})
	if err != nil {
		t.Fatal(err)
	}

	bundle := config.Bundle{config.NewHackSource("", nil)}
	processor := ebuildeval.NewCachedProcessor(ebuildeval.NewProcessor(bundle, nil))

	return &Resolver{
		repoSet: repoSet,
		bundle:  bundle,
		loader:  NewLoader(processor, bundle, nil, false),
	}
}

func TestResolverBestPackagePrefersStableOverTesting(t *testing.T) {
	repoDir := t.TempDir()
	writeEbuild(t, repoDir, "app-misc", "widget", "1.0", "EAPI=\"7\"\nSLOT=\"0\"\nKEYWORDS=\"*\"\nIUSE=\"\"\n")
	writeEbuild(t, repoDir, "app-misc", "widget", "2.0", "EAPI=\"7\"\nSLOT=\"0\"\nKEYWORDS=\"~*\"\nIUSE=\"\"\n")

	res := newTestResolver(t, repoDir)

	best, err := res.BestPackage(dependency.NewSimpleAtom("app-misc/widget"))
	if err != nil {
		t.Fatalf("BestPackage() error = %v", err)
	}
	if best.Version().String() != "1.0" {
		t.Errorf("BestPackage() version = %s, want 1.0 (the stable candidate, even though 2.0 is newer)", best.Version())
	}
}

func TestResolverBestPackageFallsBackToTesting(t *testing.T) {
	repoDir := t.TempDir()
	writeEbuild(t, repoDir, "app-misc", "widget", "1.0", "EAPI=\"7\"\nSLOT=\"0\"\nKEYWORDS=\"~*\"\nIUSE=\"\"\n")

	res := newTestResolver(t, repoDir)

	best, err := res.BestPackage(dependency.NewSimpleAtom("app-misc/widget"))
	if err != nil {
		t.Fatalf("BestPackage() error = %v", err)
	}
	if best.Version().String() != "1.0" {
		t.Errorf("BestPackage() version = %s, want 1.0", best.Version())
	}
}

func TestResolverPackagesExcludesMasked(t *testing.T) {
	repoDir := t.TempDir()
	writeEbuild(t, repoDir, "app-misc", "widget", "1.0", "EAPI=\"7\"\nSLOT=\"0\"\nKEYWORDS=\"-*\"\nIUSE=\"\"\n")

	res := newTestResolver(t, repoDir)

	pkgs, err := res.Packages(dependency.NewSimpleAtom("app-misc/widget"))
	if err != nil {
		t.Fatalf("Packages() error = %v", err)
	}
	if len(pkgs) != 0 {
		t.Errorf("Packages() = %d results, want 0 for an unkeyworded-only package", len(pkgs))
	}
}
