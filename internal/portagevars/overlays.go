// Package portagevars reads the handful of make.conf variables that name
// filesystem locations (overlay roots) rather than build configuration.
package portagevars

import (
	"strings"

	"crosbuild.dev/alchemist/internal/makevars"
)

// Overlays returns the repository root directories named by PORTDIR and
// PORTDIR_OVERLAY, primary repository first.
func Overlays(vars makevars.Vars) []string {
	return append([]string{vars["PORTDIR"]}, strings.Fields(vars["PORTDIR_OVERLAY"])...)
}
