package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"crosbuild.dev/alchemist/internal/manifest"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Manifest"), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadParsesDistLinesOnly(t *testing.T) {
	dir := writeManifest(t, "AUX foo.patch 123 SHA256 deadbeef\n"+
		"DIST x.tar.gz 4096 SHA256 00ff BLAKE2B ab\n"+
		"EBUILD x-1.0.ebuild 55 SHA256 cafe\n")

	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Dists) != 1 {
		t.Fatalf("want 1 dist entry, got %d", len(m.Dists))
	}
	d, ok := m.Dists["x.tar.gz"]
	if !ok {
		t.Fatal("missing x.tar.gz entry")
	}
	if d.Size != 4096 {
		t.Errorf("size = %d, want 4096", d.Size)
	}
	if d.Hashes["SHA256"] != "00ff" || d.Hashes["BLAKE2B"] != "ab" {
		t.Errorf("hashes = %v", d.Hashes)
	}
}

func TestIntegrityPrefersSHA256OverBlake2b(t *testing.T) {
	d := &manifest.Dist{Filename: "x.tar.gz", Hashes: map[string]string{"SHA256": "00ff", "BLAKE2B": "ab"}}
	got, err := d.Integrity()
	if err != nil {
		t.Fatal(err)
	}
	if want := "sha256-AP8="; got != want {
		t.Errorf("Integrity() = %q, want %q", got, want)
	}
}

func TestIntegrityPrefersSHA512OverSHA256(t *testing.T) {
	d := &manifest.Dist{Filename: "x.tar.gz", Hashes: map[string]string{
		"SHA256": "00ff",
		"SHA512": "ab",
	}}
	got, err := d.Integrity()
	if err != nil {
		t.Fatal(err)
	}
	if want := "sha512-qw=="; got != want {
		t.Errorf("Integrity() = %q, want %q", got, want)
	}
}

func TestIntegrityMissingHashErrors(t *testing.T) {
	d := &manifest.Dist{Filename: "x.tar.gz", Hashes: map[string]string{"MD5": "00ff"}}
	if _, err := d.Integrity(); err == nil {
		t.Fatal("expected error for unsupported hash set")
	}
}
