package dependency_test

import (
	"testing"

	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/version"
)

func verifyParseAtom(t *testing.T, atomStr string) {
	t.Helper()
	a, err := dependency.ParseAtom(atomStr)
	if err != nil {
		t.Errorf("ParseAtom(%q) failed: %v", atomStr, err)
		return
	}
	if got := a.String(); got != atomStr {
		t.Errorf("ParseAtom(%q).String() = %q; want %q", atomStr, got, atomStr)
	}
}

func TestParseAtom(t *testing.T) {
	for _, s := range []string{
		"dev-libs/foo",
		"<=dev-libs/9libs-1.0",
		">=dev-libs/foo-1.2.3",
		"=dev-libs/foo-1.2.3*",
		"dev-libs/foo:0",
		"dev-libs/foo[bar,-baz]",
	} {
		verifyParseAtom(t, s)
	}
}

func TestAtomMatch(t *testing.T) {
	for _, tc := range []struct {
		atom   string
		target string
		want   bool
	}{
		{"=dev-rust/atomic-polyfill-0.1*", "0.1.0", true},
		{"=dev-rust/atomic-polyfill-0.1*", "0.2.0", false},
		{">=dev-libs/foo-1.2.3", "1.2.4", true},
		{">=dev-libs/foo-1.2.3", "1.2.2", false},
		{"~dev-libs/foo-1.2.3", "1.2.3-r5", true},
		{"~dev-libs/foo-1.2.3", "1.2.4", false},
	} {
		a, err := dependency.ParseAtom(tc.atom)
		if err != nil {
			t.Fatalf("ParseAtom(%q): %v", tc.atom, err)
		}
		ver, err := version.Parse(tc.target)
		if err != nil {
			t.Fatalf("version.Parse(%q): %v", tc.target, err)
		}
		target := &dependency.TargetPackage{Name: a.PackageName(), Version: ver}
		if got := a.Match(target); got != tc.want {
			t.Errorf("%s.Match(%s) = %v; want %v", tc.atom, tc.target, got, tc.want)
		}
	}
}
