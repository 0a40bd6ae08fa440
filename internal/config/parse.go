package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/version"
)

// PackageUse is one line of a package.use file: an atom plus the USE
// flags it turns on (or, prefixed with "-", off) for matching packages.
type PackageUse struct {
	Atom *dependency.Atom
	Uses []string
}

func ParseUseList(path string) ([]string, error) {
	lines, err := ParseLines(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return lines, err
}

func ParsePackageUseList(path string) ([]*PackageUse, error) {
	lines, err := ParseLines(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var list []*PackageUse
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		atom, err := dependency.ParseAtom(fields[0])
		if err != nil {
			return nil, err
		}
		list = append(list, &PackageUse{Atom: atom, Uses: fields[1:]})
	}
	return list, nil
}

// ParsePackageProvided parses a package.provided file: lines of
// "category/name-version" naming packages that should be considered
// already installed and never built.
func ParsePackageProvided(path string) ([]*TargetPackage, error) {
	lines, err := ParseLines(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var provided []*TargetPackage
	for _, line := range lines {
		prefix, ver, err := version.ExtractSuffix(line)
		if err != nil {
			return nil, fmt.Errorf("invalid provided package spec %q: %w", line, err)
		}
		if !strings.HasSuffix(prefix, "-") {
			return nil, fmt.Errorf("invalid provided package spec %q", line)
		}
		name := strings.TrimSuffix(prefix, "-")
		provided = append(provided, &TargetPackage{Name: name, Version: ver})
	}
	return provided, nil
}

// ParseLines reads path, stripping blank lines and "#"-comments.
func ParseLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
