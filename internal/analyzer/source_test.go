package analyzer

import (
	"strings"
	"testing"

	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/packages"
	"crosbuild.dev/alchemist/internal/resolver"
	"crosbuild.dev/alchemist/internal/version"
)

func newFakePackage(t *testing.T, name string, metadata packages.Metadata, use map[string]bool) *resolver.LoadedPackage {
	t.Helper()
	ver, err := version.Parse("1.0")
	if err != nil {
		t.Fatal(err)
	}
	target := &dependency.TargetPackage{Name: name, Version: ver, Uses: use}
	pkg := packages.NewPackage("/repo/"+name+"/x-1.0.ebuild", metadata, target)
	return &resolver.LoadedPackage{Package: pkg}
}

func joinArray(elems ...string) string { return strings.Join(elems, "|") }

// TestCrosWorkonPinnedWithSubtrees mirrors the "cros-workon with subtrees
// (pinned)" scenario: two projects, one carrying four subtree entries and
// the other two, six tree hashes total, neither optional.
func TestCrosWorkonPinnedWithSubtrees(t *testing.T) {
	pkg := newFakePackage(t, "sys-boot/libpayload", packages.Metadata{
		"CROS_WORKON_PROJECT":           joinArray("chromiumos/third_party/coreboot", "chromiumos/third_party/vboot_reference"),
		"CROS_WORKON_LOCALNAME":         joinArray("coreboot", "../platform/vboot_reference"),
		"CROS_WORKON_SUBTREE":           joinArray("payloads/libpayload src/commonlib util/kconfig util/xcompile", "Makefile firmware"),
		"CROS_WORKON_TREE":              joinArray("h1", "h2", "h3", "h4", "h5", "h6"),
		"CROS_WORKON_OPTIONAL_CHECKOUT": joinArray("", ""),
	}, nil)

	localSources, repoSources, err := extractCrosWorkonSources(pkg, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(localSources) != 0 {
		t.Fatalf("expected no local sources, got %v", localSources)
	}
	if len(repoSources) != 6 {
		t.Fatalf("expected 6 repo sources, got %d: %+v", len(repoSources), repoSources)
	}

	wantNames := []string{
		"tree-chromiumos-third_party-coreboot-h1",
		"tree-chromiumos-third_party-coreboot-h2",
		"tree-chromiumos-third_party-coreboot-h3",
		"tree-chromiumos-third_party-coreboot-h4",
		"tree-chromiumos-third_party-vboot_reference-h5",
		"tree-chromiumos-third_party-vboot_reference-h6",
	}
	gotByName := make(map[string]RepoSource)
	for _, r := range repoSources {
		gotByName[r.Name] = r
	}
	for _, name := range wantNames {
		if _, ok := gotByName[name]; !ok {
			t.Errorf("missing repo source %s", name)
		}
	}
	if p := gotByName[wantNames[0]].ProjectPath; p != "third_party/coreboot" {
		t.Errorf("project path for A = %q, want third_party/coreboot", p)
	}
	if p := gotByName[wantNames[4]].ProjectPath; p != "platform/vboot_reference" {
		t.Errorf("project path for B = %q, want platform/vboot_reference", p)
	}
}

// TestCrosWorkonOptionalSubtreeFalse mirrors the "optional subtree
// evaluated false" scenario: the first project's OPTIONAL_CHECKOUT
// depends on a disabled USE flag, so only the second project's two
// subtrees remain, but the tree-hash cursor still advances past the
// first project's four hashes.
func TestCrosWorkonOptionalSubtreeFalse(t *testing.T) {
	pkg := newFakePackage(t, "sys-boot/libpayload", packages.Metadata{
		"CROS_WORKON_PROJECT":           joinArray("chromiumos/third_party/coreboot", "chromiumos/third_party/vboot_reference"),
		"CROS_WORKON_LOCALNAME":         joinArray("coreboot", "../platform/vboot_reference"),
		"CROS_WORKON_SUBTREE":           joinArray("payloads/libpayload src/commonlib util/kconfig util/xcompile", "Makefile firmware"),
		"CROS_WORKON_TREE":              joinArray("h1", "h2", "h3", "h4", "h5", "h6"),
		"CROS_WORKON_OPTIONAL_CHECKOUT": joinArray("use coreboot", ""),
	}, map[string]bool{"coreboot": false})

	_, repoSources, err := extractCrosWorkonSources(pkg, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(repoSources) != 2 {
		t.Fatalf("expected 2 repo sources, got %d: %+v", len(repoSources), repoSources)
	}
	for _, r := range repoSources {
		if r.Project != "chromiumos/third_party/vboot_reference" {
			t.Errorf("unexpected surviving source: %+v", r)
		}
	}
}

func TestEvalOptionalCheckout(t *testing.T) {
	cases := []struct {
		expr string
		use  map[string]bool
		want bool
	}{
		{"use coreboot", map[string]bool{"coreboot": true}, true},
		{"use coreboot", map[string]bool{"coreboot": false}, false},
		{"!use coreboot", map[string]bool{"coreboot": false}, true},
	}
	for _, c := range cases {
		got, err := evalOptionalCheckout(c.expr, c.use)
		if err != nil {
			t.Fatalf("evalOptionalCheckout(%q): %v", c.expr, err)
		}
		if got != c.want {
			t.Errorf("evalOptionalCheckout(%q, %v) = %v, want %v", c.expr, c.use, got, c.want)
		}
	}
}

func TestLocalPath(t *testing.T) {
	cases := []struct {
		packageName, localName, want string
	}{
		{"sys-boot/depthcharge", "depthcharge", "third_party/depthcharge"},
		{"chromeos-base/libchrome", "libchrome", "libchrome"},
		{"sys-boot/libpayload", "../platform/vboot_reference", "platform/vboot_reference"},
		{"app-accessibility/pumpkin", "chromiumos-assets", "platform/chromiumos-assets"},
	}
	for _, c := range cases {
		if got := localPath(c.packageName, c.localName); got != c.want {
			t.Errorf("localPath(%q, %q) = %q, want %q", c.packageName, c.localName, got, c.want)
		}
	}
}
