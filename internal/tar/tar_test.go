package tar_test

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	xtar "crosbuild.dev/alchemist/internal/tar"
)

func writeTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for name, content := range files {
		if err := w.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestIsTar(t *testing.T) {
	cases := map[string]bool{
		"foo.tar":     true,
		"foo.tar.zst": true,
		"foo.tar.gz":  false,
		"foo.txt":     false,
	}
	for name, want := range cases {
		if got := xtar.IsTar(name); got != want {
			t.Errorf("IsTar(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestExtractPlainTar(t *testing.T) {
	data := writeTar(t, map[string]string{"a.txt": "hello"})
	dir := t.TempDir()
	src := filepath.Join(dir, "archive.tar")
	if err := os.WriteFile(src, data, 0644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "out")
	if err := os.Mkdir(dest, 0755); err != nil {
		t.Fatal(err)
	}
	if err := xtar.Extract(src, dest); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("extracted content = %q, want %q", got, "hello")
	}
}

func TestExtractTarZstd(t *testing.T) {
	plain := writeTar(t, map[string]string{"b.txt": "world"})

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "archive.tar.zst")
	if err := os.WriteFile(src, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "out")
	if err := os.Mkdir(dest, 0755); err != nil {
		t.Fatal(err)
	}
	if err := xtar.Extract(src, dest); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "b.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "world" {
		t.Errorf("extracted content = %q, want %q", got, "world")
	}
}

func TestListFiles(t *testing.T) {
	data := writeTar(t, map[string]string{"a.txt": "x", "b.txt": "y"})
	items, err := xtar.ListFiles(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(items), items)
	}
}
