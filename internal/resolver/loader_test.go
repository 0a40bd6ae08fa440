package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"crosbuild.dev/alchemist/internal/config"
	"crosbuild.dev/alchemist/internal/ebuildeval"
	"crosbuild.dev/alchemist/internal/repository"
	"crosbuild.dev/alchemist/internal/version"
)

// writeEbuild lays out repoDir/category/pkg/pkg-ver.ebuild with the given
// body and returns its path.
func writeEbuild(t *testing.T, repoDir, category, pkg, ver, body string) string {
	t.Helper()
	dir := filepath.Join(repoDir, category, pkg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, pkg+"-"+ver+".ebuild")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestLoader(t *testing.T, repoDir string) (*Loader, *repository.Repo) {
	t.Helper()

	repoSet, err := repository.NewRepoSet([]string{repoDir})
	if err != nil {
		t.Fatal(err)
	}
	repo := repoSet.Repos()[0]

	bundle := config.Bundle{config.NewHackSource("", nil)}
	processor := ebuildeval.NewCachedProcessor(ebuildeval.NewProcessor(bundle, nil))

	return NewLoader(processor, bundle, nil, false), repo
}

func TestLoaderLoadAcceptsStableKeywords(t *testing.T) {
	repoDir := t.TempDir()
	path := writeEbuild(t, repoDir, "app-misc", "widget", "1.0", "EAPI=\"7\"\nSLOT=\"0\"\nKEYWORDS=\"*\"\nIUSE=\"\"\nDEPEND=\"\"\nRDEPEND=\"\"\n")

	loader, repo := newTestLoader(t, repoDir)

	ver, err := version.Parse("1.0")
	if err != nil {
		t.Fatal(err)
	}
	repoPkg := &repository.Package{Path: path, Version: ver, Repo: repo}

	loaded, err := loader.Load(repoPkg, "app-misc/widget")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.Accepted || !loaded.Stable || loaded.Masked {
		t.Errorf("Load() = {Accepted:%v Stable:%v Masked:%v}, want all accepted/stable/unmasked",
			loaded.Accepted, loaded.Stable, loaded.Masked)
	}
	if loaded.Name() != "app-misc/widget" {
		t.Errorf("Name() = %q, want app-misc/widget", loaded.Name())
	}
	if loaded.MainSlot() != "0" {
		t.Errorf("MainSlot() = %q, want 0", loaded.MainSlot())
	}
}

func TestLoaderLoadMasksUnkeyworded(t *testing.T) {
	repoDir := t.TempDir()
	path := writeEbuild(t, repoDir, "app-misc", "widget", "1.0", "EAPI=\"7\"\nSLOT=\"0\"\nKEYWORDS=\"-*\"\nIUSE=\"\"\n")

	loader, repo := newTestLoader(t, repoDir)

	ver, err := version.Parse("1.0")
	if err != nil {
		t.Fatal(err)
	}
	repoPkg := &repository.Package{Path: path, Version: ver, Repo: repo}

	loaded, err := loader.Load(repoPkg, "app-misc/widget")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Accepted || !loaded.Masked {
		t.Errorf("Load() = {Accepted:%v Masked:%v}, want unaccepted and masked for -* keywords", loaded.Accepted, loaded.Masked)
	}
}

func TestLoaderLoadForceAccept9999(t *testing.T) {
	repoDir := t.TempDir()
	path := writeEbuild(t, repoDir, "app-misc", "widget", "9999",
		"EAPI=\"7\"\nSLOT=\"0\"\nKEYWORDS=\"-*\"\nIUSE=\"\"\nCROS_WORKON_MANUAL_UPREV=\"0\"\n"+
			// USED_ECLASSES is normally populated by the prelude's inherit()
			// bookkeeping as it sources a real eclass file; assigned directly
			// here since no eclass fixture is needed for this scenario.
			"USED_ECLASSES=\"cros-workon\"\n")

	repoSet, err := repository.NewRepoSet([]string{repoDir})
	if err != nil {
		t.Fatal(err)
	}
	repo := repoSet.Repos()[0]

	bundle := config.Bundle{config.NewHackSource("", nil)}
	processor := ebuildeval.NewCachedProcessor(ebuildeval.NewProcessor(bundle, nil))
	loader := NewLoader(processor, bundle, nil, true)

	ver, err := version.Parse("9999")
	if err != nil {
		t.Fatal(err)
	}
	repoPkg := &repository.Package{Path: path, Version: ver, Repo: repo}

	loaded, err := loader.Load(repoPkg, "app-misc/widget")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.Accepted || loaded.Stable || loaded.Masked {
		t.Errorf("Load() = {Accepted:%v Stable:%v Masked:%v}, want live 9999 accepted as testing and unmasked under forceAccept9999",
			loaded.Accepted, loaded.Stable, loaded.Masked)
	}
}
