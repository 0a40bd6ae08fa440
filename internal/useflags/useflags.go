// Package useflags computes the final USE flag set for a package by
// combining make.conf, a resolved profile chain, per-package overrides, and
// the ebuild's own IUSE defaults, using Portage's incremental-variable
// merge order.
package useflags

import (
	"strings"

	"crosbuild.dev/alchemist/internal/makevars"
	"crosbuild.dev/alchemist/internal/profile"
	"crosbuild.dev/alchemist/internal/version"
)

type Context struct {
	makeConfSource string
	profileSource  string
	overrides      *profile.Overrides
}

func NewContext(makeConfVars makevars.Vars, p *profile.ParsedProfile) *Context {
	return &Context{
		makeConfSource: makeConfVars["USE"],
		profileSource:  p.Vars()["USE"],
		overrides:      p.Overrides(),
	}
}

// ComputeForPackage merges, in increasing priority, the ebuild's own IUSE
// defaults, the profile chain's USE, make.conf's USE, and any
// package.use override matching packageName.
func (c *Context) ComputeForPackage(packageName string, ver *version.Version, ebuildVars makevars.Vars) map[string]bool {
	po := c.overrides.ForPackage(packageName, ver)
	combined := strings.Join([]string{
		parseIUSE(ebuildVars["IUSE"]),
		c.profileSource,
		c.makeConfSource,
		po.Use(),
	}, " ")
	finalized := makevars.FinalizeIncrementalVar(combined)

	use := make(map[string]bool)
	for _, token := range strings.Fields(finalized) {
		use[token] = true
	}
	return use
}

func parseIUSE(s string) string {
	var use []string
	for _, u := range strings.Fields(s) {
		if strings.HasPrefix(u, "+") {
			use = append(use, u[1:])
		}
	}
	return strings.Join(use, " ")
}
