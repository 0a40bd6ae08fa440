package container

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveSymlinkForest(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatal(err)
	}

	link1 := filepath.Join(dir, "link1")
	link2 := filepath.Join(dir, "link2")
	if err := os.Symlink(real, link1); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(link1, link2); err != nil {
		t.Fatal(err)
	}

	got, err := resolveSymlinkForest(link2)
	if err != nil {
		t.Fatal(err)
	}
	if got != real {
		t.Errorf("resolveSymlinkForest(link2) = %q, want %q", got, real)
	}

	// A plain directory with no symlink forest resolves to itself.
	got, err = resolveSymlinkForest(real)
	if err != nil {
		t.Fatal(err)
	}
	if got != real {
		t.Errorf("resolveSymlinkForest(real) = %q, want %q", got, real)
	}
}

func TestDetectLayerKindDir(t *testing.T) {
	dir := t.TempDir()
	layer, err := ResolveLayer(dir)
	if err != nil {
		t.Fatal(err)
	}
	if layer.Kind != LayerDir {
		t.Errorf("kind = %v, want LayerDir", layer.Kind)
	}
}

func TestDetectLayerKindDurableTree(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, durableTreeSentinel), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	layer, err := ResolveLayer(dir)
	if err != nil {
		t.Fatal(err)
	}
	if layer.Kind != LayerDurableTree {
		t.Errorf("kind = %v, want LayerDurableTree", layer.Kind)
	}
}

func TestDetectLayerKindTar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.tar")

	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	layer, err := ResolveLayer(path)
	if err != nil {
		t.Fatal(err)
	}
	if layer.Kind != LayerTar {
		t.Errorf("kind = %v, want LayerTar", layer.Kind)
	}
}

func TestDetectLayerKindUnknownErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mystery.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveLayer(path); err == nil {
		t.Fatal("expected error for unrecognized layer file")
	}
}

func TestShortestLowerPath(t *testing.T) {
	cwd := "/a/b"
	cases := []struct {
		path string
		want string
	}{
		{"/a/b/c", "c"},
		{"/x/y", "/x/y"},
	}
	for _, c := range cases {
		if got := shortestLowerPath(c.path, cwd); got != c.want {
			t.Errorf("shortestLowerPath(%q, %q) = %q, want %q", c.path, cwd, got, c.want)
		}
	}
}
