package ebuildeval

import (
	"sort"
	"strings"

	"crosbuild.dev/alchemist/internal/config"
	"crosbuild.dev/alchemist/internal/makevars"
	"crosbuild.dev/alchemist/internal/packages"
)

func computeUseFlags(pkg *config.TargetPackage, source config.Source, metadata packages.Metadata) (map[string]bool, error) {
	env := make(makevars.Vars)
	varsList, err := source.EvalPackageVars(pkg, env)
	if err != nil {
		return nil, err
	}

	varsList = append([]makevars.Vars{
		{"USE": parseIUSEToUSE(metadata["IUSE"])},
	}, varsList...)

	vars := makevars.Merge(varsList...)

	masks := make(map[string]bool)
	forces := make(map[string]bool)
	if err := source.UseMasksAndForces(pkg, masks, forces); err != nil {
		return nil, err
	}

	// USE flags not declared in IUSE are not hidden here: USE_EXPAND isn't
	// parsed yet, so the effective IUSE can't be computed precisely.
	uses := make(map[string]bool)
	for _, u := range strings.Fields(vars["USE"]) {
		if masks[u] {
			continue
		}
		uses[u] = true
	}
	for u, ok := range forces {
		if !ok || masks[u] {
			continue
		}
		uses[u] = true
	}

	return uses, nil
}

func parseIUSEToUSE(iuse string) string {
	var uses []string
	for _, use := range strings.Fields(iuse) {
		if strings.HasPrefix(use, "+") {
			uses = append(uses, strings.TrimPrefix(use, "+"))
		}
	}
	sort.Strings(uses)
	return strings.Join(uses, " ")
}
