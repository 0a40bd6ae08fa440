package repository_test

import (
	"os"
	"path/filepath"
	"testing"

	"crosbuild.dev/alchemist/internal/repository"
)

func writeEbuild(t *testing.T, dir, category, name, ver string) {
	t.Helper()
	pkgDir := filepath.Join(dir, category, name)
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(pkgDir, name+"-"+ver+".ebuild")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRepoPackagesSortedDescending(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "profiles"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "profiles", "repo_name"), []byte("test-repo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	writeEbuild(t, root, "dev-libs", "foo", "1.0")
	writeEbuild(t, root, "dev-libs", "foo", "2.0")
	writeEbuild(t, root, "dev-libs", "foo", "1.5")

	repoSet, err := repository.NewRepoSet([]string{root})
	if err != nil {
		t.Fatalf("NewRepoSet: %v", err)
	}

	repo, ok := repoSet.Repo("test-repo")
	if !ok {
		t.Fatal("repo not found")
	}

	pkgs, err := repo.Packages("dev-libs/foo")
	if err != nil {
		t.Fatalf("Packages: %v", err)
	}
	if len(pkgs) != 3 {
		t.Fatalf("got %d packages, want 3", len(pkgs))
	}

	want := []string{"2.0", "1.5", "1.0"}
	for i, w := range want {
		if got := pkgs[i].Version.String(); got != w {
			t.Errorf("pkgs[%d].Version = %q; want %q", i, got, w)
		}
	}
}
