// Package config defines the collaborator interface that supplies global
// and per-package variables, USE mask/force decisions, package masks, and
// provided packages to the ebuild evaluator and resolver: make.conf,
// profile parent chains, and hard-coded workaround tables all implement
// this same Source interface and are combined with Bundle.
package config

import (
	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/makevars"
	"crosbuild.dev/alchemist/internal/version"
)

// TargetPackage is the minimal package identity needed to evaluate
// per-package configuration, before any ebuild has actually been
// evaluated.
type TargetPackage struct {
	Name    string
	Version *version.Version
}

// Source supplies one layer of Portage configuration (make.conf, a
// profile, a hard-coded workaround table, ...).
type Source interface {
	EvalGlobalVars(env makevars.Vars) ([]makevars.Vars, error)
	EvalPackageVars(pkg *TargetPackage, env makevars.Vars) ([]makevars.Vars, error)
	UseMasksAndForces(pkg *TargetPackage, masks map[string]bool, forces map[string]bool) error
	PackageMasks() ([]*dependency.Atom, error)
	ProvidedPackages() ([]*TargetPackage, error)
}

// Bundle fans a Source call out across every configured layer, in order,
// concatenating results.
type Bundle []Source

var _ Source = Bundle{}

func (ss Bundle) EvalGlobalVars(env makevars.Vars) ([]makevars.Vars, error) {
	var varsList []makevars.Vars
	for _, s := range ss {
		sub, err := s.EvalGlobalVars(env)
		if err != nil {
			return nil, err
		}
		varsList = append(varsList, sub...)
	}
	return varsList, nil
}

func (ss Bundle) EvalPackageVars(pkg *TargetPackage, env makevars.Vars) ([]makevars.Vars, error) {
	var varsList []makevars.Vars
	for _, s := range ss {
		sub, err := s.EvalPackageVars(pkg, env)
		if err != nil {
			return nil, err
		}
		varsList = append(varsList, sub...)
	}
	return varsList, nil
}

func (ss Bundle) UseMasksAndForces(pkg *TargetPackage, masks map[string]bool, forces map[string]bool) error {
	for _, s := range ss {
		if err := s.UseMasksAndForces(pkg, masks, forces); err != nil {
			return err
		}
	}
	return nil
}

func (ss Bundle) PackageMasks() ([]*dependency.Atom, error) {
	var atoms []*dependency.Atom
	for _, s := range ss {
		sub, err := s.PackageMasks()
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, sub...)
	}
	return atoms, nil
}

func (ss Bundle) ProvidedPackages() ([]*TargetPackage, error) {
	var pkgs []*TargetPackage
	for _, s := range ss {
		sub, err := s.ProvidedPackages()
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, sub...)
	}
	return pkgs, nil
}

// HackSource is a Source backed by literal, hand-maintained tables: force
// USE flags that would otherwise come from USE_EXPAND profile machinery
// this repository doesn't model, and packages force-declared as already
// provided by the toolchain.
type HackSource struct {
	use      string
	provided []*TargetPackage
}

var _ Source = &HackSource{}

func NewHackSource(use string, provided []*TargetPackage) *HackSource {
	return &HackSource{use: use, provided: provided}
}

func (s *HackSource) EvalGlobalVars(env makevars.Vars) ([]makevars.Vars, error) {
	env["USE"] = s.use
	return []makevars.Vars{{"USE": s.use}}, nil
}

func (s *HackSource) EvalPackageVars(pkg *TargetPackage, env makevars.Vars) ([]makevars.Vars, error) {
	return s.EvalGlobalVars(env)
}

func (s *HackSource) UseMasksAndForces(pkg *TargetPackage, masks map[string]bool, forces map[string]bool) error {
	return nil
}

func (s *HackSource) PackageMasks() ([]*dependency.Atom, error) { return nil, nil }

func (s *HackSource) ProvidedPackages() ([]*TargetPackage, error) {
	return append([]*TargetPackage(nil), s.provided...), nil
}
