// Package naming validates Portage category and package name syntax.
package naming

import (
	"errors"
	"fmt"
	"strings"

	"regexp"

	"crosbuild.dev/alchemist/internal/version"
)

var categoryRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9+_.-]*$`)

func CheckCategory(s string) error {
	if !categoryRe.MatchString(s) {
		return fmt.Errorf("invalid category name %q", s)
	}
	return nil
}

var packageRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9+_-]*$`)

func CheckPackage(s string) error {
	// A package name must not look like it ends in a version suffix, or
	// atom parsing would be ambiguous about where the name ends.
	if prefix, _, err := version.ExtractSuffix(s); err == nil && strings.HasSuffix(prefix, "-") {
		return fmt.Errorf("invalid package name %q: looks like it has a version suffix", s)
	}
	if !packageRe.MatchString(s) {
		return fmt.Errorf("invalid package name %q", s)
	}
	return nil
}

func CheckCategoryAndPackage(s string) error {
	v := strings.SplitN(s, "/", 2)
	if len(v) != 2 {
		return errors.New("invalid category/package name: missing '/'")
	}
	if err := CheckCategory(v[0]); err != nil {
		return err
	}
	return CheckPackage(v[1])
}
