package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/packages"
	"crosbuild.dev/alchemist/internal/resolver"
	"crosbuild.dev/alchemist/internal/version"
)

func writeEbuildDirManifest(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Manifest"), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newDistPackage(t *testing.T, dir, srcURI string) *resolver.LoadedPackage {
	t.Helper()
	ver, err := version.Parse("1.0")
	if err != nil {
		t.Fatal(err)
	}
	target := &dependency.TargetPackage{Name: "app-misc/widget", Version: ver}
	pkg := packages.NewPackage(filepath.Join(dir, "widget-1.0.ebuild"), packages.Metadata{
		"SRC_URI": srcURI,
	}, target)
	return &resolver.LoadedPackage{Package: pkg}
}

func TestAnalyzeDistSourcesJoinsManifest(t *testing.T) {
	dir := writeEbuildDirManifest(t, "DIST widget-1.0.tar.gz 2048 SHA512 ab\n")
	pkg := newDistPackage(t, dir, "https://example.com/dist/widget-1.0.tar.gz")

	sources, err := AnalyzeDistSources(pkg)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 {
		t.Fatalf("expected 1 dist source, got %d: %+v", len(sources), sources)
	}
	s := sources[0]
	if s.Filename != "widget-1.0.tar.gz" {
		t.Errorf("filename = %q", s.Filename)
	}
	if s.Size != 2048 {
		t.Errorf("size = %d, want 2048", s.Size)
	}
	integrity, err := s.Integrity()
	if err != nil {
		t.Fatal(err)
	}
	if want := "sha512-qw=="; integrity != want {
		t.Errorf("integrity = %q, want %q", integrity, want)
	}
}

func TestAnalyzeDistSourcesMissingManifestEntryErrors(t *testing.T) {
	dir := writeEbuildDirManifest(t, "DIST other.tar.gz 10 SHA256 00\n")
	pkg := newDistPackage(t, dir, "https://example.com/dist/widget-1.0.tar.gz")

	if _, err := AnalyzeDistSources(pkg); err == nil {
		t.Fatal("expected error for distfile missing from Manifest")
	}
}

func TestAnalyzeDistSourcesEmptySrcUri(t *testing.T) {
	dir := writeEbuildDirManifest(t, "")
	pkg := newDistPackage(t, dir, "")

	sources, err := AnalyzeDistSources(pkg)
	if err != nil {
		t.Fatal(err)
	}
	if sources != nil {
		t.Errorf("expected nil sources for empty SRC_URI, got %+v", sources)
	}
}
