package analyzer

import (
	"testing"

	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/packages"
	"crosbuild.dev/alchemist/internal/resolver"
	"crosbuild.dev/alchemist/internal/version"
)

func TestGetExtraDependenciesCrossCompileSwitch(t *testing.T) {
	got := getExtraDependencies("net-libs/rpcsvc-proto", KindBuildHost, true, nil)
	if got != "net-libs/rpcsvc-proto" {
		t.Errorf("cross-compile rpcsvc-proto BuildHost = %q, want net-libs/rpcsvc-proto (cross-compile-only entry)", got)
	}

	got = getExtraDependencies("net-libs/rpcsvc-proto", KindBuildHost, false, nil)
	if got != "sys-devel/gcc" {
		t.Errorf("native rpcsvc-proto BuildHost = %q, want sys-devel/gcc", got)
	}
}

func TestGetExtraDependenciesFcapsAppendsLibcap(t *testing.T) {
	got := getExtraDependencies("chromeos-base/does-not-exist", KindInstallHost, false, []string{"fcaps"})
	if got != "sys-libs/libcap" {
		t.Errorf("fcaps IDEPEND extra = %q, want sys-libs/libcap", got)
	}
}

func TestEapiSupportsBDepend(t *testing.T) {
	pkg := newFakePackage(t, "cat/pkg", packages.Metadata{"EAPI": "7"}, nil)
	if !eapiSupportsBDepend(pkg) {
		t.Error("EAPI 7 should support BDEPEND")
	}

	pkg = newFakePackage(t, "cat/pkg", packages.Metadata{"EAPI": "6"}, nil)
	if eapiSupportsBDepend(pkg) {
		t.Error("EAPI 6 should not support BDEPEND")
	}

	pkg = newFakePackage(t, "cat/pkg", packages.Metadata{}, nil)
	if eapiSupportsBDepend(pkg) {
		t.Error("missing EAPI should be treated as pre-7")
	}
}

func TestIsRustSourcePackage(t *testing.T) {
	pkg := newFakePackage(t, "dev-rust/foo", packages.Metadata{"HAS_SRC_COMPILE": "0"}, nil)
	pkg.Inherited = []string{"cros-rust"}
	if !isRustSourcePackage(pkg) {
		t.Error("cros-rust without cros-workon and without HAS_SRC_COMPILE should be a rust source package")
	}

	pkg.Inherited = []string{"cros-rust", "cros-workon"}
	if isRustSourcePackage(pkg) {
		t.Error("cros-workon rust packages declare their own runtime deps and shouldn't be treated specially")
	}
}

func TestDedupeSortPackages(t *testing.T) {
	verA, err := version.Parse("1.0")
	if err != nil {
		t.Fatal(err)
	}
	verB, err := version.Parse("2.0")
	if err != nil {
		t.Fatal(err)
	}
	mk := func(name string, v *version.Version) *resolver.LoadedPackage {
		target := &dependency.TargetPackage{Name: name, Version: v}
		return &resolver.LoadedPackage{Package: packages.NewPackage("/repo/x.ebuild", packages.Metadata{}, target)}
	}

	b2 := mk("b/pkg", verB)
	a1 := mk("a/pkg", verA)
	b1 := mk("b/pkg", verA)
	b1dup := mk("b/pkg", verA)

	got := dedupeSortPackages([]*resolver.LoadedPackage{b2, a1, b1, b1dup})
	if len(got) != 3 {
		t.Fatalf("expected 3 deduped packages, got %d", len(got))
	}
	if got[0].Name() != "a/pkg" || got[1].Name() != "b/pkg" || got[1].Version() != verA || got[2].Version() != verB {
		t.Errorf("unexpected order: %+v", got)
	}
}
