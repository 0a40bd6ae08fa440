package container

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	xtar "crosbuild.dev/alchemist/internal/tar"
)

// LayerKind distinguishes the three source forms an input layer path can
// take once its symlink forest, if any, has been resolved.
type LayerKind int

const (
	LayerDir LayerKind = iota
	LayerTar
	LayerDurableTree
)

func (k LayerKind) String() string {
	switch k {
	case LayerDir:
		return "dir"
	case LayerTar:
		return "tar"
	case LayerDurableTree:
		return "durable-tree"
	default:
		return "unknown"
	}
}

// durableTreeSentinel names the marker file a durable tree carries at its
// root. Narrowly scoped: the original sentinel convention this is
// grounded on (a separate durable-tree library) was retrieved into the
// pack only as its test-description helpers, not its marker-writing
// source, so this picks one concrete, clearly-named sentinel rather than
// guessing at an unretrieved format.
const durableTreeSentinel = ".alchemist_durable_tree"

// Layer is one resolved input to the overlay stack: a path plus the kind
// of thing it names.
type Layer struct {
	Kind LayerKind
	Path string
}

// resolveSymlinkForest follows path for as long as it is itself a symlink
// (a chain of links to links), until it reaches a real file or directory.
// It does not look inside directories: a directory whose entries are
// symlinks into another tree is returned as that directory, not as the
// tree its links point into. Paths that are not symlinks are returned
// unchanged.
func resolveSymlinkForest(path string) (string, error) {
	for {
		info, err := os.Lstat(path)
		if err != nil {
			return "", fmt.Errorf("resolving symlink forest at %s: %w", path, err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return path, nil
		}

		target, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("resolving symlink forest at %s: %w", path, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		path = target
	}
}

// detectLayerKind classifies an already symlink-resolved layer path.
func detectLayerKind(path string) (LayerKind, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("detecting layer type for %s: %w", path, err)
	}

	if info.IsDir() {
		if _, err := os.Stat(filepath.Join(path, durableTreeSentinel)); err == nil {
			return LayerDurableTree, nil
		} else if !os.IsNotExist(err) {
			return 0, fmt.Errorf("detecting layer type for %s: %w", path, err)
		}
		return LayerDir, nil
	}

	if xtar.IsTar(path) {
		return LayerTar, nil
	}

	return 0, fmt.Errorf("%s is neither a directory nor a recognized archive", path)
}

// ResolveLayer resolves a raw layer path (as it would appear in
// Config.LayerPaths) to its real location and kind.
func ResolveLayer(rawPath string) (Layer, error) {
	path, err := resolveSymlinkForest(rawPath)
	if err != nil {
		return Layer{}, err
	}
	kind, err := detectLayerKind(path)
	if err != nil {
		return Layer{}, err
	}
	return Layer{Kind: kind, Path: path}, nil
}

// stageLayer prepares layer i as an overlayfs lower directory, extracting
// tar layers into a per-layer subdirectory of lowersDir. ContinueInNamespace
// passes the stage directory's tar/ subdirectory, which is not one of the
// tmpfs lowers; the stage directory itself is mounted as tmpfs, though, so
// an extracted tar layer is held in memory. Durable trees are treated the
// same as plain directories: both are already laid out
// as the merged tree expects, so their resolved path is used directly as
// the lowerdir= entry, with no bind mount needed.
func stageLayer(i int, layer Layer, lowersDir string) (string, error) {
	switch layer.Kind {
	case LayerDir, LayerDurableTree:
		return layer.Path, nil
	case LayerTar:
		dest := filepath.Join(lowersDir, fmt.Sprintf("tar-%d", i))
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", fmt.Errorf("staging tar layer %s: %w", layer.Path, err)
		}
		if err := xtar.Extract(layer.Path, dest); err != nil {
			return "", fmt.Errorf("extracting tar layer %s: %w", layer.Path, err)
		}
		return dest, nil
	default:
		return "", fmt.Errorf("unknown layer kind %v", layer.Kind)
	}
}

// shortestLowerPath rewrites an absolute lower-directory path to
// whichever of itself or its path relative to cwd is shorter: overlayfs's
// mount option string has a bounded total length, and a long chain of
// absolute staging paths can blow past it.
func shortestLowerPath(path, cwd string) string {
	rel, err := filepath.Rel(cwd, path)
	if err != nil {
		return path
	}
	if len(rel) < len(path) && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
