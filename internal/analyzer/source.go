package analyzer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"crosbuild.dev/alchemist/internal/resolver"
)

// LocalSourceKind distinguishes the handful of well-known local source
// trees a package can draw from, beyond a plain repository checkout.
type LocalSourceKind int

const (
	LocalSourceSrc LocalSourceKind = iota
	LocalSourceChromite
	LocalSourceChrome
)

// LocalSource is one local (already-checked-out) source contribution: a
// directory under the checkout root, or one of the well-known special
// trees (Chromite, the build-tooling checkout; Chrome, keyed by the
// version it was checked out at).
type LocalSource struct {
	Kind LocalSourceKind
	Path string // relative to the checkout root; only set for Kind == Src

	// ChromeVersion is set only for Kind == LocalSourceChrome.
	ChromeVersion string
}

// RepoSource is a pinned subtree of a separately-synced git project,
// named by its tree hash (CROS_WORKON_TREE), used when analyzing outside
// a live ("9999") checkout.
type RepoSource struct {
	Name        string // "tree-<project-with-dashes>-<hash>"
	Project     string
	TreeHash    string
	ProjectPath string
	Subtree     string // "" if the whole project_path is the source
}

// FullPath returns the path this source contributes, relative to the
// checkout root.
func (s *RepoSource) FullPath() string {
	if s.Subtree == "" {
		return s.ProjectPath
	}
	return filepath.Join(s.ProjectPath, s.Subtree)
}

// crosWorkonArray splits a "|"-joined CROS_WORKON_* array metadata value
// back into its elements (see ebuildeval.Processor.Read), broadcasting a
// single element across count entries the way a scalar CROS_WORKON_*
// value applies uniformly to every project.
func crosWorkonArray(value string, count int, name string) ([]string, error) {
	if value == "" {
		return make([]string, count), nil
	}
	elems := strings.Split(value, "|")
	if len(elems) == 1 {
		out := make([]string, count)
		for i := range out {
			out[i] = elems[0]
		}
		return out, nil
	}
	if len(elems) != count {
		return nil, fmt.Errorf("expected %s to have %d entries, got %d", name, count, len(elems))
	}
	return elems, nil
}

// crosWorkonTree parses CROS_WORKON_TREE, which is empty for a live
// ("9999") checkout and otherwise one tree hash per subtree entry
// (flattened across all projects, in declaration order).
func crosWorkonTree(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, "|")
}

// localPath computes the checkout-relative path a CROS_WORKON_LOCALNAME
// entry names: chromeos-base packages resolve it under src/, everyone
// else under src/third_party/, and a leading "../" escapes that prefix
// entirely.
func localPath(packageName, localName string) string {
	if localName == "chromiumos-assets" {
		// The chromiumos-assets ebuild under-specifies its own localname.
		return "platform/chromiumos-assets"
	}
	if strings.HasPrefix(packageName, "chromeos-base/") {
		return localName
	}
	if rest, ok := strings.CutPrefix(localName, "../"); ok {
		return rest
	}
	return filepath.Join("third_party", localName)
}

// extractCrosWorkonSources parses the CROS_WORKON_* metadata of pkg into
// local (unpinned, live-checkout) or repo (pinned-by-tree-hash) sources.
// checkoutRoot is only consulted for live checkouts, to tell whether a
// path names a directory or a single file worth only its parent.
func extractCrosWorkonSources(pkg *resolver.LoadedPackage, checkoutRoot string) ([]LocalSource, []RepoSource, error) {
	metadata := pkg.Metadata()
	rawProjects := metadata["CROS_WORKON_PROJECT"]
	if rawProjects == "" {
		return nil, nil, nil
	}
	projects := strings.Split(rawProjects, "|")

	localNames, err := crosWorkonArray(metadata["CROS_WORKON_LOCALNAME"], len(projects), "CROS_WORKON_LOCALNAME")
	if err != nil {
		return nil, nil, err
	}
	subtrees, err := crosWorkonArray(metadata["CROS_WORKON_SUBTREE"], len(projects), "CROS_WORKON_SUBTREE")
	if err != nil {
		return nil, nil, err
	}
	optionalExprs, err := crosWorkonArray(metadata["CROS_WORKON_OPTIONAL_CHECKOUT"], len(projects), "CROS_WORKON_OPTIONAL_CHECKOUT")
	if err != nil {
		return nil, nil, err
	}
	trees := crosWorkonTree(metadata["CROS_WORKON_TREE"])

	var sourcePaths []string
	var repoSources []RepoSource
	seenTrees := make(map[string]bool)
	treeIndex := 0

	for i, project := range projects {
		local := localPath(pkg.Name(), localNames[i])

		required := true
		if optionalExprs[i] != "" {
			required, err = evalOptionalCheckout(optionalExprs[i], pkg.Uses())
			if err != nil {
				return nil, nil, fmt.Errorf("CROS_WORKON_OPTIONAL_CHECKOUT %q: %w", optionalExprs[i], err)
			}
		}

		var localSubtrees []string
		if subtrees[i] == "" {
			localSubtrees = []string{""}
		} else {
			localSubtrees = strings.Fields(subtrees[i])
		}

		if len(trees) == 0 {
			// Live (9999) checkout: contributes directories straight from
			// the working tree, no pinning.
			if !required {
				continue
			}
			for _, subtree := range localSubtrees {
				subtree = strings.TrimPrefix(subtree, "/")
				if subtree == "" {
					sourcePaths = append(sourcePaths, local)
				} else {
					sourcePaths = append(sourcePaths, filepath.Join(local, subtree))
				}
			}
			continue
		}

		for _, subtree := range localSubtrees {
			if treeIndex >= len(trees) {
				return nil, nil, fmt.Errorf("invalid number of entries in CROS_WORKON_TREE %v", trees)
			}
			treeHash := trees[treeIndex]
			treeIndex++

			if !required {
				continue
			}
			if seenTrees[treeHash] {
				// Two subtrees legitimately hashed identically, or the
				// ebuild declared a duplicate SUBTREE entry; either way
				// one pinned source is enough.
				continue
			}
			seenTrees[treeHash] = true

			repoSources = append(repoSources, RepoSource{
				Name:        fmt.Sprintf("tree-%s-%s", strings.ReplaceAll(project, "/", "-"), treeHash),
				Project:     project,
				TreeHash:    treeHash,
				ProjectPath: local,
				Subtree:     subtree,
			})
		}
	}

	var localSources []LocalSource
	for _, p := range sourcePaths {
		full := filepath.Join(checkoutRoot, p)
		info, err := os.Stat(full)
		if err != nil {
			return nil, nil, fmt.Errorf("stat local source %s: %w", full, err)
		}
		if !info.IsDir() {
			p = filepath.Dir(p)
		}
		localSources = append(localSources, LocalSource{Kind: LocalSourceSrc, Path: p})
	}

	// Kernel packages pull in an extra eclass directory not named by any
	// single ebuild's own inherit list.
	for _, project := range projects {
		if project == "chromiumos/third_party/kernel" {
			localSources = append(localSources, LocalSource{
				Kind: LocalSourceSrc,
				Path: "third_party/chromiumos-overlay/eclass/cros-kernel",
			})
			break
		}
	}

	return localSources, repoSources, nil
}

// applyLocalSourceWorkarounds adds local sources that aren't expressed
// through CROS_WORKON_* at all: packages whose build tooling itself
// lives in a separate well-known checkout.
func applyLocalSourceWorkarounds(pkg *resolver.LoadedPackage, sources []LocalSource) []LocalSource {
	inherits := func(name string) bool {
		for _, e := range pkg.Inherited {
			if e == name {
				return true
			}
		}
		return false
	}

	// The platform eclass calls platform2.py, the dlc eclass calls
	// build_dlc, and gobject-introspection calls platform2_test.py — all
	// three live in chromite.
	if inherits("platform") || inherits("dlc") || pkg.Name() == "dev-libs/gobject-introspection" {
		sources = append(sources, LocalSource{Kind: LocalSourceChromite})
	}

	// A pinned (non-9999) Chrome checkout is fetched out-of-band by
	// version rather than tracked as a live source; we can't run repo
	// hooks here to reproduce a self-contained tarball for a 9999 build,
	// so only the pinned case is supported.
	if inherits("chromium-source") && len(pkg.Version().Main) > 0 && pkg.Version().Main[0] != "9999" {
		sources = append(sources, LocalSource{Kind: LocalSourceChrome, ChromeVersion: strings.Join(pkg.Version().Main, ".")})
	}

	return sources
}

// evalOptionalCheckout evaluates a CROS_WORKON_OPTIONAL_CHECKOUT
// expression, a tiny grammar of "use FLAG" (optionally negated with a
// leading "!") that decides whether a pinned subtree entry is actually
// required for this build.
func evalOptionalCheckout(expr string, use map[string]bool) (bool, error) {
	fields := strings.Fields(expr)
	negate := false
	if len(fields) > 0 && fields[0] == "!" {
		negate = true
		fields = fields[1:]
	} else if len(fields) > 0 && strings.HasPrefix(fields[0], "!") {
		negate = true
		fields[0] = strings.TrimPrefix(fields[0], "!")
	}
	if len(fields) != 2 || fields[0] != "use" {
		return false, fmt.Errorf("unsupported expression %q", expr)
	}
	enabled := use[fields[1]]
	if negate {
		enabled = !enabled
	}
	return enabled, nil
}

// AnalyzeLocalSources computes pkg's local and pinned-repo sources.
// checkoutRoot is the directory live ("9999") checkouts are resolved
// against; it is never consulted for pinned (tree-hash) sources, which
// don't need a live checkout to exist.
func AnalyzeLocalSources(pkg *resolver.LoadedPackage, checkoutRoot string) ([]LocalSource, []RepoSource, error) {
	localSources, repoSources, err := extractCrosWorkonSources(pkg, checkoutRoot)
	if err != nil {
		return nil, nil, err
	}
	localSources = applyLocalSourceWorkarounds(pkg, localSources)

	sort.Slice(repoSources, func(i, j int) bool { return repoSources[i].Name < repoSources[j].Name })
	sort.Slice(localSources, func(i, j int) bool {
		if localSources[i].Kind != localSources[j].Kind {
			return localSources[i].Kind < localSources[j].Kind
		}
		return localSources[i].Path < localSources[j].Path
	})

	return localSources, repoSources, nil
}
