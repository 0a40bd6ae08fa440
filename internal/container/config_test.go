package container

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := &Config{
		LayerPaths: []string{"/a", "/b.tar.zst"},
		BindMounts: []BindMount{{Source: "/src", Target: "/dst", ReadOnly: true}},
		Envs:       []string{"FOO=bar"},
		Chdir:      "/build",
		Args:       []string{"/bin/sh", "-c", "true"},
	}

	if err := WriteConfig(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := ReadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, got) {
		t.Errorf("round-tripped config = %+v, want %+v", got, cfg)
	}
}
