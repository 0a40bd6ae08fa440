// Package ebuildeval evaluates an ebuild file's global scope in a
// throwaway bash subprocess (no build phase ever runs) and returns its
// resulting variables, USE flags, and any bash arrays (CROS_WORKON_* and
// friends) it assigned.
package ebuildeval

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"crosbuild.dev/alchemist/internal/bashvars"
	"crosbuild.dev/alchemist/internal/config"
	"crosbuild.dev/alchemist/internal/makevars"
	"crosbuild.dev/alchemist/internal/packages"
	"crosbuild.dev/alchemist/internal/version"
)

// Info is the result of evaluating one ebuild.
type Info struct {
	Metadata packages.Metadata
	Vars     *bashvars.Vars
	Uses     map[string]bool
}

// PackageBasicData is the identity extracted from an ebuild's path alone,
// before any interpreter runs: the category/package name and version
// parsed from the filename. It survives an evaluation failure because
// nothing about computing it depends on bash succeeding.
type PackageBasicData struct {
	EBuildPath string
	Name       string
	Version    *version.Version
}

// EvaluationError reports a failure evaluating an ebuild. It still
// carries the package's basic data and the interpreter's raw output, so a
// caller that can't get full metadata can still identify and log which
// package failed and why.
type EvaluationError struct {
	Basic  PackageBasicData
	Stderr string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("evaluating %s: %v\n%s", e.Basic.EBuildPath, e.Err, e.Stderr)
	}
	return fmt.Sprintf("evaluating %s: %v", e.Basic.EBuildPath, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

type Processor struct {
	config     config.Source
	eclassDirs []string
}

func NewProcessor(cfg config.Source, eclassDirs []string) *Processor {
	return &Processor{config: cfg, eclassDirs: eclassDirs}
}

func (p *Processor) Read(path string) (*Info, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("reading ebuild metadata: %s: %w", path, err)
	}

	pkg, err := extractPackage(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading ebuild metadata: %s: %w", absPath, err)
	}

	basic := PackageBasicData{EBuildPath: absPath, Name: pkg.Name, Version: pkg.Version}

	env := make(makevars.Vars)
	if _, err := p.config.EvalGlobalVars(env); err != nil {
		return nil, &EvaluationError{Basic: basic, Err: err}
	}
	env.Merge(computePackageVars(pkg))

	vars, output, err := runEBuild(absPath, env, p.eclassDirs)
	if err != nil {
		return nil, &EvaluationError{Basic: basic, Stderr: output, Err: err}
	}

	metadata := make(packages.Metadata, len(vars.Scalars))
	for name, value := range vars.Scalars {
		metadata[name] = value
	}
	for name, values := range vars.Arrays {
		// "|" rather than " ": several CROS_WORKON_* arrays hold elements
		// that are themselves space-separated lists (e.g. a SUBTREE entry
		// naming several paths within one project), so a plain space-join
		// would be ambiguous to split back apart. The analyzer's
		// CROS_WORKON_* parsing undoes this join.
		metadata[name] = strings.Join(values, "|")
	}

	uses, err := computeUseFlags(pkg, p.config, metadata)
	if err != nil {
		return nil, &EvaluationError{Basic: basic, Err: err}
	}

	return &Info{Metadata: metadata, Vars: vars, Uses: uses}, nil
}

func extractPackage(absPath string) (*config.TargetPackage, error) {
	const suffix = ".ebuild"
	if !strings.HasSuffix(absPath, suffix) {
		return nil, fmt.Errorf("must have suffix %s", suffix)
	}

	packageShortNameAndVersion := filepath.Base(strings.TrimSuffix(absPath, suffix))
	packageShortName := filepath.Base(filepath.Dir(absPath))
	categoryName := filepath.Base(filepath.Dir(filepath.Dir(absPath)))

	prefix, ver, err := version.ExtractSuffix(packageShortNameAndVersion)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(prefix, "-") {
		return nil, errors.New("invalid package name")
	}
	if strings.TrimSuffix(prefix, "-") != packageShortName {
		return nil, errors.New("ebuild name mismatch with directory name")
	}

	return &config.TargetPackage{
		Name:    path.Join(categoryName, packageShortName),
		Version: ver,
	}, nil
}

func computePackageVars(pkg *config.TargetPackage) makevars.Vars {
	categoryName := path.Dir(pkg.Name)
	packageShortName := path.Base(pkg.Name)

	return makevars.Vars{
		"P":        fmt.Sprintf("%s-%s", packageShortName, pkg.Version.DropRevision().String()),
		"PF":       fmt.Sprintf("%s-%s", packageShortName, pkg.Version.String()),
		"PN":       packageShortName,
		"CATEGORY": categoryName,
		"PV":       pkg.Version.DropRevision().String(),
		"PR":       fmt.Sprintf("r%s", pkg.Version.Revision),
		"PVR":      pkg.Version.String(),
	}
}

// runEBuild returns the parsed output variables, and separately the raw
// combined stdout/stderr text the interpreter produced (non-empty only
// when something went wrong, since a well-formed ebuild prelude run
// prints nothing), so a caller can attach that text to an EvaluationError
// instead of it only ever reaching the process's own stderr.
func runEBuild(absPath string, env makevars.Vars, eclassDirs []string) (*bashvars.Vars, string, error) {
	tempDir, err := os.MkdirTemp("", "alchemist.*")
	if err != nil {
		return nil, "", err
	}
	defer os.RemoveAll(tempDir)

	workDir := filepath.Join(tempDir, "work")
	if err := os.Mkdir(workDir, 0700); err != nil {
		return nil, "", err
	}

	outPath := filepath.Join(tempDir, "vars.txt")

	vars := make(makevars.Vars)
	vars.Merge(env)
	vars.Merge(makevars.Vars{
		"__xbuild_in_ebuild":      absPath,
		"__xbuild_in_eclass_dirs": strings.Join(eclassDirs, "\n") + "\n",
		"__xbuild_in_output_vars": outPath,
	})

	cmd := exec.Command("bash")
	cmd.Stdin = bytes.NewBuffer(preludeCode)
	cmd.Env = vars.Environ()
	cmd.Dir = workDir
	if out, err := cmd.CombinedOutput(); len(out) > 0 {
		return nil, string(out), errors.New("ebuild printed errors to stdout/stderr")
	} else if err != nil {
		return nil, "", fmt.Errorf("bash: %w", err)
	}

	b, err := os.ReadFile(outPath)
	if err != nil {
		return nil, "", err
	}

	out, err := bashvars.ParseSetOutput(bytes.NewBuffer(b))
	if err != nil {
		return nil, "", fmt.Errorf("reading output: %w", err)
	}

	for name := range out.Scalars {
		if strings.HasPrefix(name, "_xbuild_") {
			delete(out.Scalars, name)
		}
	}
	for name := range out.Arrays {
		if strings.HasPrefix(name, "_xbuild_") {
			delete(out.Arrays, name)
		}
	}
	return out, "", nil
}

// cell is a lazily-populated, concurrency-safe Processor.Read result slot.
type cell struct {
	once sync.Once
	info *Info
	err  error
}

// CachedProcessor memoizes Processor.Read per-path. Unlike a bare map
// guarded only by its own mutex, a goroutine evaluating path A never holds
// the index lock while evaluating path A's ebuild: it only holds it long
// enough to find-or-create that path's cell, so concurrent reads of
// different paths never serialize on each other.
type CachedProcessor struct {
	p *Processor

	mu    sync.Mutex
	cells map[string]*cell
}

func NewCachedProcessor(p *Processor) *CachedProcessor {
	return &CachedProcessor{p: p, cells: make(map[string]*cell)}
}

func (cp *CachedProcessor) Read(path string) (*Info, error) {
	cp.mu.Lock()
	c, ok := cp.cells[path]
	if !ok {
		c = &cell{}
		cp.cells[path] = c
	}
	cp.mu.Unlock()

	c.once.Do(func() {
		c.info, c.err = cp.p.Read(path)
	})
	return c.info, c.err
}
