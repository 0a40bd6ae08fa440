package dependency_test

import (
	"testing"

	"crosbuild.dev/alchemist/internal/dependency"
)

func TestParseString(t *testing.T) {
	for _, s := range []string{
		"dev-libs/foo",
		"( dev-libs/foo dev-libs/bar )",
		"|| ( dev-libs/foo dev-libs/bar )",
		"use? ( dev-libs/foo )",
		"!use? ( dev-libs/foo )",
		"!dev-libs/foo",
	} {
		deps, err := dependency.Parse(s)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", s, err)
			continue
		}
		if got := deps.String(); got != s {
			t.Errorf("Parse(%q).String() = %q; want %q", s, got, s)
		}
	}
}

func TestParseURI(t *testing.T) {
	deps, err := dependency.ParseURI("https://example.com/foo-1.0.tar.gz -> foo.tar.gz mirror? ( https://mirror.example.com/foo.tar.gz )")
	if err != nil {
		t.Fatalf("ParseURI failed: %v", err)
	}
	leaves := deps.Expr().Children()
	if len(leaves) != 2 {
		t.Fatalf("got %d children; want 2", len(leaves))
	}
}

func TestElideAndSimplify(t *testing.T) {
	deps, err := dependency.Parse("foo? ( dev-libs/a ) !foo? ( dev-libs/b ) dev-libs/c")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	elided := dependency.ElideUseConditions(deps, map[string]bool{"foo": true})
	simplified := dependency.Simplify(elided)
	resolved := dependency.ApplyAnyOfFirstChild(simplified)
	names, ok := dependency.ParseSimplified(resolved)
	if !ok {
		t.Fatalf("ParseSimplified failed on %s", resolved)
	}
	var atoms []string
	for _, p := range names {
		atoms = append(atoms, p.Atom().PackageName())
	}
	want := []string{"dev-libs/a", "dev-libs/c"}
	if len(atoms) != len(want) {
		t.Fatalf("got atoms %v; want %v", atoms, want)
	}
	for i := range want {
		if atoms[i] != want[i] {
			t.Errorf("atoms[%d] = %s; want %s", i, atoms[i], want[i])
		}
	}
}

func TestAnyOfFirstChildDeterminism(t *testing.T) {
	deps, err := dependency.Parse("|| ( dev-libs/a dev-libs/b )")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	resolved := dependency.ApplyAnyOfFirstChild(dependency.Simplify(deps))
	names, ok := dependency.ParseSimplified(resolved)
	if !ok || len(names) != 1 || names[0].Atom().PackageName() != "dev-libs/a" {
		t.Fatalf("got %v, ok=%v; want [dev-libs/a]", names, ok)
	}
}
