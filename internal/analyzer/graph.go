package analyzer

import "fmt"

// Label returns the "category/package-version" string this package is
// addressed by in emitted graphs.
func Label(r *Result) string {
	return fmt.Sprintf("%s-%s", r.Package.Name(), r.Package.Version())
}

// GraphPackage is the JSON-serializable projection of one Result: a
// Result's evaluated packages reduce to other evaluated packages by
// pointer, which doesn't round-trip through JSON, so dependency edges here
// are by label instead.
type GraphPackage struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	EBuildPath string   `json:"ebuild_path"`
	MainSlot   string   `json:"main_slot"`

	BuildDeps       []string `json:"build_deps,omitempty"`
	RuntimeDeps     []string `json:"runtime_deps,omitempty"`
	PostDeps        []string `json:"post_deps,omitempty"`
	BuildHostDeps   []string `json:"build_host_deps,omitempty"`
	InstallHostDeps []string `json:"install_host_deps,omitempty"`

	LocalSources []LocalSource    `json:"local_sources,omitempty"`
	RepoSources  []RepoSource     `json:"repo_sources,omitempty"`
	DistSources  []*GraphDistFile `json:"dist_sources,omitempty"`
}

// GraphDistFile is a DistSource with its integrity string precomputed,
// since Integrity() can fail and a JSON struct field can't carry an error.
type GraphDistFile struct {
	URLs      []string `json:"urls"`
	Filename  string   `json:"filename"`
	Size      int64    `json:"size"`
	Integrity string   `json:"integrity,omitempty"`
}

// ToGraphPackage projects r into its JSON-serializable form. Dependency
// edges that point at packages not themselves present in the overall
// graph (same-label self-loops aside) are still emitted by label; it's
// the caller's job to have analyzed the full transitive closure if it
// wants every edge to resolve.
//
// A dist source with no supported hash fails the whole package rather
// than emitting an empty integrity string: a missing hash is a resolution
// error, fatal to the package being analyzed.
func ToGraphPackage(r *Result) (*GraphPackage, error) {
	g := &GraphPackage{
		Name:       r.Package.Name(),
		Version:    r.Package.Version().String(),
		EBuildPath: r.Package.Path(),
		MainSlot:   r.Package.MainSlot(),
	}

	for _, d := range r.Dependencies.BuildDeps {
		g.BuildDeps = append(g.BuildDeps, fmt.Sprintf("%s-%s", d.Name(), d.Version()))
	}
	for _, d := range r.Dependencies.RuntimeDeps {
		g.RuntimeDeps = append(g.RuntimeDeps, fmt.Sprintf("%s-%s", d.Name(), d.Version()))
	}
	for _, d := range r.Dependencies.PostDeps {
		g.PostDeps = append(g.PostDeps, fmt.Sprintf("%s-%s", d.Name(), d.Version()))
	}
	for _, d := range r.Dependencies.BuildHostDeps {
		g.BuildHostDeps = append(g.BuildHostDeps, fmt.Sprintf("%s-%s", d.Name(), d.Version()))
	}
	for _, d := range r.Dependencies.InstallHostDeps {
		g.InstallHostDeps = append(g.InstallHostDeps, fmt.Sprintf("%s-%s", d.Name(), d.Version()))
	}

	g.LocalSources = r.Sources.LocalSources
	g.RepoSources = r.Sources.RepoSources
	for _, d := range r.Sources.DistSources {
		integrity, err := d.Integrity()
		if err != nil {
			return nil, fmt.Errorf("%s-%s: %w", r.Package.Name(), r.Package.Version(), err)
		}
		g.DistSources = append(g.DistSources, &GraphDistFile{
			URLs:      d.URLs,
			Filename:  d.Filename,
			Size:      d.Size,
			Integrity: integrity,
		})
	}

	return g, nil
}
