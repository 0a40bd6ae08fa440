// Package profile resolves a Portage profile's parent chain and its
// make.defaults/package.use/package.provided contents, the way a profile
// directory under a repository's profiles/ tree works.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"crosbuild.dev/alchemist/internal/config"
	"crosbuild.dev/alchemist/internal/makevars"
	"crosbuild.dev/alchemist/internal/version"
)

const makeDefaults = "make.defaults"

// Resolver looks up a profile referenced by a "parent" file entry, which
// may be a relative path or (in the repository-aware case) an
// overlay-name-qualified reference.
type Resolver interface {
	ResolveProfile(path, base string) (*Profile, error)
}

// Profile is one directory in a profile parent chain.
type Profile struct {
	name    string
	path    string
	parents []*Profile
}

func Load(path string, name string, resolver Resolver) (*Profile, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("profile %s: not found", name)
		}
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}

	parentPaths, err := config.ParseLines(filepath.Join(path, "parent"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("profile %s: reading parents: %w", name, err)
	}

	var parents []*Profile
	for _, parentPath := range parentPaths {
		parent, err := resolver.ResolveProfile(parentPath, path)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		parents = append(parents, parent)
	}

	return &Profile{name: name, path: path, parents: parents}, nil
}

func (p *Profile) Name() string        { return p.name }
func (p *Profile) Path() string        { return p.path }
func (p *Profile) Parents() []*Profile { return append([]*Profile(nil), p.parents...) }

func (p *Profile) Parse() (*ParsedProfile, error) {
	vars := makevars.Vars{}
	if err := p.parseVars(vars); err != nil {
		return nil, err
	}

	overrides := &Overrides{packageUse: make(map[string]string)}
	if err := p.parseOverrides(overrides); err != nil {
		return nil, err
	}

	var provided []*ProvidedPackage
	if err := p.parseProvided(&provided); err != nil {
		return nil, err
	}

	return &ParsedProfile{profile: p, vars: vars, overrides: overrides, provided: provided}, nil
}

func (p *Profile) parseVars(vars makevars.Vars) error {
	for _, parent := range p.parents {
		if err := parent.parseVars(vars); err != nil {
			return err
		}
	}
	if err := makevars.ParseMakeDefaults(filepath.Join(p.path, makeDefaults), vars); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (p *Profile) parseOverrides(overrides *Overrides) error {
	for _, parent := range p.parents {
		if err := parent.parseOverrides(overrides); err != nil {
			return err
		}
	}
	return readPackageUse(filepath.Join(p.path, "package.use"), overrides)
}

func (p *Profile) parseProvided(provided *[]*ProvidedPackage) error {
	for _, parent := range p.parents {
		if err := parent.parseProvided(provided); err != nil {
			return err
		}
	}
	return readPackageProvided(filepath.Join(p.path, "package.provided"), provided)
}

// ParsedProfile is the flattened result of walking a profile's parent
// chain: base-to-derived ordering, most-derived settings applied last.
type ParsedProfile struct {
	profile   *Profile
	vars      makevars.Vars
	overrides *Overrides
	provided  []*ProvidedPackage
}

func (p *ParsedProfile) Vars() makevars.Vars      { return p.vars.Copy() }
func (p *ParsedProfile) Overrides() *Overrides    { return p.overrides }
func (p *ParsedProfile) Provided() []*ProvidedPackage { return p.provided }

type Overrides struct {
	packageUse map[string]string
}

func (o *Overrides) ForPackage(packageName string, ver *version.Version) *PackageOverrides {
	return &PackageOverrides{use: o.packageUse[packageName]}
}

type PackageOverrides struct {
	use string
}

func (po *PackageOverrides) Use() string { return po.use }

type ProvidedPackage struct {
	name string
	ver  *version.Version
}

func (pp *ProvidedPackage) Name() string           { return pp.name }
func (pp *ProvidedPackage) Version() *version.Version { return pp.ver }

func readPackageUse(path string, overrides *Overrides) error {
	lines, err := config.ParseLines(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		packageName := fields[0]
		uses := fields[1:]
		overrides.packageUse[packageName] += " " + strings.Join(uses, " ")
	}
	return nil
}

func readPackageProvided(path string, provided *[]*ProvidedPackage) error {
	lines, err := config.ParseLines(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, line := range lines {
		prefix, ver, err := version.ExtractSuffix(line)
		if err != nil {
			return fmt.Errorf("invalid provided package spec: %s: %w", line, err)
		}
		if !strings.HasSuffix(prefix, "-") {
			return fmt.Errorf("invalid provided package spec: %s", line)
		}
		name := strings.TrimSuffix(prefix, "-")
		*provided = append(*provided, &ProvidedPackage{name: name, ver: ver})
	}
	return nil
}
