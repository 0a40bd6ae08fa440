// Package makeconf implements the config.Source backed by a sysroot's
// /etc/make.conf, /etc/portage/make.conf, and /etc/portage/package.use.
package makeconf

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"crosbuild.dev/alchemist/internal/config"
	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/makevars"
)

type UserConfigSource struct {
	rootDir string
}

var _ config.Source = &UserConfigSource{}

func NewUserConfigSource(rootDir string) *UserConfigSource {
	return &UserConfigSource{rootDir: rootDir}
}

func (s *UserConfigSource) EvalGlobalVars(env makevars.Vars) ([]makevars.Vars, error) {
	var varsList []makevars.Vars
	for _, relPath := range []string{"etc/make.conf", "etc/portage/make.conf"} {
		path := filepath.Join(s.rootDir, relPath)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		vars, err := makevars.Eval(path, env, true)
		if err != nil {
			return nil, err
		}
		varsList = append(varsList, vars)
	}
	return varsList, nil
}

func (s *UserConfigSource) EvalPackageVars(pkg *config.TargetPackage, env makevars.Vars) ([]makevars.Vars, error) {
	varsList, err := s.EvalGlobalVars(env)
	if err != nil {
		return nil, err
	}

	packageUse, err := config.ParsePackageUseList(filepath.Join(s.rootDir, "etc/portage/package.use"))
	if err != nil {
		return nil, err
	}

	target := &dependency.TargetPackage{Name: pkg.Name, Version: pkg.Version}
	var uses []string
	for _, pu := range packageUse {
		if pu.Atom.Match(target) {
			uses = append(uses, pu.Uses...)
		}
	}
	if len(uses) > 0 {
		varsList = append(varsList, makevars.Vars{"USE": strings.Join(uses, " ")})
	}
	return varsList, nil
}

func (s *UserConfigSource) UseMasksAndForces(pkg *config.TargetPackage, masks map[string]bool, forces map[string]bool) error {
	// TODO: parse /etc/portage/profile/* package.use.mask and package.use.force.
	return nil
}

func (s *UserConfigSource) PackageMasks() ([]*dependency.Atom, error) {
	lines, err := config.ParseLines(filepath.Join(s.rootDir, "etc/portage/package.mask"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var atoms []*dependency.Atom
	for _, line := range lines {
		atom, err := dependency.ParseAtom(line)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)
	}
	return atoms, nil
}

func (s *UserConfigSource) ProvidedPackages() ([]*config.TargetPackage, error) {
	return config.ParsePackageProvided(filepath.Join(s.rootDir, "etc/portage/package.provided"))
}
