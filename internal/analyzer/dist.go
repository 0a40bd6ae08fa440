package analyzer

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"

	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/manifest"
	"crosbuild.dev/alchemist/internal/resolver"
)

// DistSource is one remote distfile a package fetches via SRC_URI,
// joined against the ebuild directory's Manifest for its size and
// hashes.
type DistSource struct {
	URLs     []string
	Filename string
	Size     int64
	Hashes   map[string]string
}

// Integrity computes this dist source's Subresource-Integrity-style
// string, preferring SHA512, then SHA256, then BLAKE2B.
func (d *DistSource) Integrity() (string, error) {
	dist := &manifest.Dist{Filename: d.Filename, Size: d.Size, Hashes: d.Hashes}
	return dist.Integrity()
}

// AnalyzeDistSources parses pkg's SRC_URI into concrete dist sources,
// resolving each filename against the Manifest file in the ebuild's
// directory. Returns no sources (not an error) for a package with no
// SRC_URI at all.
func AnalyzeDistSources(pkg *resolver.LoadedPackage) ([]*DistSource, error) {
	raw := pkg.Metadata()["SRC_URI"]
	if raw == "" {
		return nil, nil
	}

	deps, err := dependency.ParseURI(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing SRC_URI: %w", pkg.Name(), err)
	}

	deps = dependency.ElideUseConditions(deps, pkg.Uses())
	deps = dependency.Simplify(deps)

	uris, ok := dependency.ParseSimplified(deps)
	if !ok {
		return nil, fmt.Errorf("%s: cannot simplify SRC_URI expression: %s", pkg.Name(), deps.String())
	}
	if len(uris) == 0 {
		return nil, nil
	}

	byFilename := make(map[string][]string)
	for _, uri := range uris {
		filename := ""
		if uri.FileName() != nil {
			filename = *uri.FileName()
		} else {
			parsed, err := url.ParseRequestURI(uri.Uri())
			if err != nil {
				return nil, fmt.Errorf("%s: invalid source URI %q: %w", pkg.Name(), uri.Uri(), err)
			}
			filename = filepath.Base(parsed.Path)
		}
		byFilename[filename] = append(byFilename[filename], uri.Uri())
	}

	m, err := manifest.Load(filepath.Dir(pkg.Path()))
	if err != nil {
		return nil, fmt.Errorf("%s: loading Manifest: %w", pkg.Name(), err)
	}

	var sources []*DistSource
	for filename, urls := range byFilename {
		dist, ok := m.Dists[filename]
		if !ok {
			return nil, fmt.Errorf("%s: %s not found in Manifest", pkg.Name(), filename)
		}
		sources = append(sources, &DistSource{
			URLs:     urls,
			Filename: filename,
			Size:     dist.Size,
			Hashes:   dist.Hashes,
		})
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Filename < sources[j].Filename })
	return sources, nil
}
