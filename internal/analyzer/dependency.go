// Package analyzer turns a resolved package into its dependency and
// source-code closure: concrete lists of other packages it builds or
// runs against, and the local/pinned/remote sources it's built from.
package analyzer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/resolver"
)

// DependencyKind names one of the five dependency classes a package can
// declare, corresponding to DEPEND/RDEPEND/PDEPEND/BDEPEND/IDEPEND.
type DependencyKind int

const (
	KindBuild DependencyKind = iota
	KindRun
	KindPost
	KindBuildHost
	KindInstallHost
)

func (k DependencyKind) varName() string {
	switch k {
	case KindBuild:
		return "DEPEND"
	case KindRun:
		return "RDEPEND"
	case KindPost:
		return "PDEPEND"
	case KindBuildHost:
		return "BDEPEND"
	case KindInstallHost:
		return "IDEPEND"
	default:
		panic(fmt.Sprintf("unknown dependency kind %d", k))
	}
}

// depAsBDependAllowList is the hand-curated set of packages whose DEPEND
// entries are safe to treat as BDEPEND on ebuilds predating EAPI 7 (which
// has no BDEPEND of its own). Keep in sync with the upstream workaround
// this core preserves byte-for-byte: widening it floods host deps with
// every target-library DEPEND, narrowing it starves the build of tools
// like autoconf and bison that really do run on the host.
var depAsBDependAllowList = map[string]bool{
	"app-misc/jq":                  true,
	"app-portage/elt-patches":      true,
	"dev-lang/perl":                true,
	"dev-perl/XML-Parser":          true,
	"dev-python/m2crypto":          true,
	"dev-python/setuptools":        true,
	"dev-util/cmake":               true,
	"dev-util/meson":               true,
	"dev-util/meson-format-array":  true,
	"dev-util/ninja":               true,
	"dev-vcs/git":                  true,
	"sys-apps/texinfo":             true,
	"sys-devel/autoconf":           true,
	"sys-devel/autoconf-archive":   true,
	"sys-devel/automake":           true,
	"sys-devel/bison":              true,
	"sys-devel/flex":               true,
	"sys-devel/gnuconfig":          true,
	"sys-devel/libtool":            true,
	"sys-devel/m4":                 true,
	"sys-devel/make":               true,
	"virtual/yacc":                 true,
}

type extraDepsKey struct {
	packageName string
	kind        DependencyKind
}

// extraDeps is a hand-maintained table of ebuild workarounds: packages
// whose declared dependencies are wrong or incomplete in ways that only
// show up at build time. Entries are consulted unconditionally; the
// crossCompile-gated ones only fire when analyzing a cross build.
var extraDeps = map[extraDepsKey]string{
	// poppler seems to support building without Boost, but the build
	// fails without it.
	{"app-text/poppler", KindBuild}: "dev-libs/boost",
	// m2crypto fails to build for missing Python.h.
	{"dev-python/m2crypto", KindBuild}: "dev-lang/python:3.8",
	// xau.pc contains "Requires: xproto", so it should be listed as RDEPEND.
	{"x11-libs/libXau", KindRun}: "x11-base/xorg-proto",

	// x11-misc/compose-tables requires the unprefixed cpp located at
	// /usr/bin/cpp, a symlink created by the gcc package.
	{"x11-misc/compose-tables", KindBuildHost}: "sys-devel/gcc",
	{"x11-libs/libX11", KindBuildHost}:         "sys-devel/gcc",
	{"x11-misc/compose-tables", KindBuild}:     "x11-misc/util-macros",

	// The nls use flag claims gettext is optional, but configure still
	// calls aclocal and expects the gettext macros.
	{"media-libs/libexif", KindBuildHost}:      "sys-devel/gettext",
	{"sys-fs/fuse", KindBuildHost}:             "sys-devel/automake sys-devel/gettext",
	{"app-arch/cabextract", KindBuildHost}:     "sys-devel/gettext",
	{"media-libs/libmtp", KindBuildHost}:       "sys-devel/gettext",
	{"media-gfx/zbar", KindBuildHost}:          "sys-devel/gettext virtual/libiconv",

	{"dev-libs/libdaemon", KindBuildHost}: "sys-devel/gnuconfig",
	{"net-misc/iperf", KindBuildHost}:     "sys-devel/gnuconfig",

	{"sys-processes/lsof", KindBuildHost}: "sys-devel/automake sys-apps/which",
	{"sys-process/lsof", KindBuildHost}:   "dev-lang/perl sys-apps/which",

	{"net-libs/libmbim", KindBuildHost}:              "dev-vcs/git",
	{"media-libs/minigbm", KindBuildHost}:             "dev-vcs/git",
	{"media-libs/cros-camera-hal-usb", KindBuildHost}: "dev-vcs/git",
	{"sys-apps/proot", KindBuildHost}:                 "dev-vcs/git",
	{"app-misc/jq", KindBuildHost}:                    "dev-vcs/git",
	{"dev-go/syzkaller", KindBuildHost}:               "dev-vcs/git sys-devel/gcc",

	{"dev-python/jinja", KindBuildHost}: "dev-python/markupsafe",
	{"sys-libs/binutils-libs", KindBuildHost}: "sys-apps/texinfo",
	{"sys-libs/libsepol", KindBuildHost}:      "sys-devel/flex",
	{"sys-fs/lvm2", KindBuildHost}:            "sys-apps/which sys-devel/binutils",

	{"dev-python/jaraco-functools", KindBuildHost}: "dev-python/setuptools_scm",
	{"dev-python/tempora", KindBuildHost}:           "dev-python/setuptools_scm",
	{"dev-python/pyusb", KindBuildHost}:             "dev-python/setuptools_scm",
	{"dev-python/portend", KindBuildHost}:           "dev-python/setuptools_scm",
	{"dev-python/cherrypy", KindBuildHost}:          "dev-python/setuptools_scm",
	{"dev-python/cryptography", KindBuildHost}:      "dev-python/cffi",

	{"dev-libs/opensc", KindBuildHost}: "dev-libs/libxslt app-text/docbook-xsl-stylesheets",

	{"sys-apps/busybox", KindBuildHost}:       "sys-devel/gcc dev-lang/perl",
	{"dev-util/hdctools", KindBuildHost}:      "dev-python/pytest",
	{"media-gfx/perceptualdiff", KindBuildHost}: "dev-util/cmake",
	{"media-libs/opencv", KindBuildHost}:      "dev-libs/protobuf",
	{"dev-util/meson", KindRun}:               "dev-python/setuptools",
	{"dev-libs/xmlrpc-c", KindBuildHost}:      "net-misc/curl",
	{"sys-power/iasl", KindBuildHost}:         "sys-devel/bison sys-devel/flex",
	{"dev-lang/rust-bootstrap", KindBuildHost}: "dev-libs/openssl:PITA",

	{"sys-kernel/chromeos-kernel-5_15", KindBuildHost}: "sys-devel/bc dev-lang/perl app-arch/lz4 sys-apps/dtc dev-embedded/u-boot-tools",
	{"app-crypt/mit-krb5", KindBuildHost}:              "sys-fs/e2fsprogs",
	{"dev-libs/libgudev", KindBuildHost}:                "dev-util/glib-utils",
	{"app-accessibility/brltty", KindBuildHost}:         "dev-lang/tcl",
	{"x11-misc/xkeyboard-config", KindBuildHost}:         "dev-lang/perl",
	{"sys-fs/ecryptfs-utils", KindBuildHost}:            "dev-util/intltool dev-libs/glib",
	{"net-nds/openldap", KindBuildHost}:                 "sys-apps/groff",
	{"sys-apps/groff", KindBuildHost}:                   "", // only cross-gated below

	{"chromeos-base/chrome-icu", KindBuildHost}:     "sys-devel/gcc",
	{"chromeos-base/chromeos-chrome", KindBuildHost}: "sys-devel/gcc sys-process/lsof",
	{"chromeos-base/chromeos-chrome", KindInstallHost}: "dev-python/six",
	{"chromeos-base/autotest", KindInstallHost}:       "dev-python/six",
}

// crossCompileOnlyExtraDeps mirrors extraDeps for entries that only apply
// when analyzing a cross build (the host and target architectures
// differ).
var crossCompileOnlyExtraDeps = map[extraDepsKey]string{
	{"dev-libs/nss", KindBuildHost}:          "dev-libs/nss",
	{"dev-libs/nss", KindInstallHost}:        "dev-libs/nss",
	{"net-libs/rpcsvc-proto", KindBuildHost}: "net-libs/rpcsvc-proto",
	{"sys-libs/libnih", KindBuildHost}:       "sys-libs/libnih",
	{"sys-devel/bc", KindBuildHost}:          "sys-devel/bc",
	{"sys-apps/groff", KindBuildHost}:        "sys-apps/groff",
}

// crossCompileExcludedExtraDeps mirrors extraDeps entries that only apply
// on a native (non-cross) build.
var crossCompileExcludedExtraDeps = map[extraDepsKey]string{
	{"net-libs/rpcsvc-proto", KindBuildHost}: "sys-devel/gcc",
}

func getExtraDependencies(packageName string, kind DependencyKind, crossCompile bool, inherited []string) string {
	key := extraDepsKey{packageName, kind}

	var extra string
	if crossCompile {
		if v, ok := crossCompileOnlyExtraDeps[key]; ok {
			extra = v
		} else {
			extra = extraDeps[key]
		}
	} else {
		if v, ok := crossCompileExcludedExtraDeps[key]; ok {
			extra = v
		} else {
			extra = extraDeps[key]
		}
	}

	// The fcaps eclass sets IDEPEND for EAPI 8+ only; this core targets
	// EAPI 7, so replicate it by hand.
	if kind == KindInstallHost {
		for _, e := range inherited {
			if e == "fcaps" {
				extra = strings.TrimSpace(extra + " sys-libs/libcap")
				break
			}
		}
	}
	return extra
}

// isRustSourcePackage reports whether pkg is a Rust package that declares
// its build inputs only via DEPEND, so those same inputs need to be
// pulled into RDEPEND too (a workaround for ebuilds that under-declare
// their runtime dependencies).
func isRustSourcePackage(pkg *resolver.LoadedPackage) bool {
	inherits := func(name string) bool {
		for _, e := range pkg.Inherited {
			if e == name {
				return true
			}
		}
		return false
	}
	return inherits("cros-rust") && !inherits("cros-workon") && pkg.Metadata()["HAS_SRC_COMPILE"] != "1"
}

// eapiSupportsBDepend reports whether BDEPEND is a distinct dependency
// class under pkg's declared EAPI (added in EAPI 7).
func eapiSupportsBDepend(pkg *resolver.LoadedPackage) bool {
	eapi, err := strconv.Atoi(strings.TrimSpace(pkg.Metadata()["EAPI"]))
	if err != nil {
		// An unparseable or empty EAPI means the oldest format (0).
		return false
	}
	return eapi >= 7
}

// resolveDepString runs one dependency string through the full
// resolution pipeline: elide use conditionals, rewrite leaves against
// the resolver (blockers and provided packages vanish, unsatisfiable
// atoms become a hard Constant(false)), simplify, collapse any-of to its
// first branch, simplify again, and flatten to atoms.
func resolveDepString(raw string, useMap map[string]bool, res *resolver.Resolver) ([]*resolver.LoadedPackage, error) {
	deps, err := dependency.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing dependency string %q: %w", raw, err)
	}

	deps = dependency.ElideUseConditions(deps, useMap)

	deps = dependency.MapLeaves(deps, func(p *dependency.Package) dependency.Expr[*dependency.Package] {
		if p.Blocks() > 0 {
			return dependency.NewConstant[*dependency.Package](true, fmt.Sprintf("block %s ignored", p))
		}
		if len(res.FindProvidedPackages(p.Atom())) > 0 {
			return dependency.NewConstant[*dependency.Package](true, fmt.Sprintf("%s is in package.provided", p))
		}
		if _, err := res.BestPackage(p.Atom()); err != nil {
			return dependency.NewConstant[*dependency.Package](false, fmt.Sprintf("no package satisfies %s", p))
		}
		return dependency.NewLeafExpr(p)
	})

	deps = dependency.Simplify(deps)
	deps = dependency.ApplyAnyOfFirstChild(deps)
	deps = dependency.Simplify(deps)

	leaves, ok := dependency.ParseSimplified(deps)
	if !ok {
		return nil, fmt.Errorf("cannot simplify dependency expression: %s", deps.String())
	}

	var out []*resolver.LoadedPackage
	for _, leaf := range leaves {
		best, err := res.BestPackage(leaf.Atom())
		if err != nil {
			// leaf survived ParseSimplified, which means the rewriter
			// above already proved a match exists.
			return nil, fmt.Errorf("resolving %s after simplification: %w", leaf, err)
		}
		out = append(out, best)
	}
	return out, nil
}

func dedupeSortPackages(pkgs []*resolver.LoadedPackage) []*resolver.LoadedPackage {
	seen := make(map[string]bool)
	var out []*resolver.LoadedPackage
	for _, p := range pkgs {
		key := p.Name() + "-" + p.Version().String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].Version().Compare(out[j].Version()) < 0
	})
	return out
}

func extractDependencies(pkg *resolver.LoadedPackage, kind DependencyKind, res *resolver.Resolver, crossCompile bool) ([]*resolver.LoadedPackage, error) {
	useMap := pkg.Uses()

	varName := kind.varName()
	if kind == KindBuildHost && !eapiSupportsBDepend(pkg) {
		varName = KindBuild.varName()
	}

	bulk, err := resolveDepString(pkg.Metadata()[varName], useMap, res)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", pkg.Name(), kind.varName(), err)
	}

	if kind == KindBuildHost && !eapiSupportsBDepend(pkg) {
		var filtered []*resolver.LoadedPackage
		for _, p := range bulk {
			if depAsBDependAllowList[p.Name()] {
				filtered = append(filtered, p)
			}
		}
		bulk = filtered
	}

	if extra := getExtraDependencies(pkg.Name(), kind, crossCompile, pkg.Inherited); strings.TrimSpace(extra) != "" {
		extraPkgs, err := resolveDepString(extra, useMap, res)
		if err != nil {
			return nil, fmt.Errorf("%s extra %s: %w", pkg.Name(), kind.varName(), err)
		}
		bulk = append(bulk, extraPkgs...)
	}

	return dedupeSortPackages(bulk), nil
}

// PackageDependencies is the concrete dependency closure of one package:
// every list is deduplicated and sorted by (name, version).
type PackageDependencies struct {
	BuildDeps       []*resolver.LoadedPackage
	RuntimeDeps     []*resolver.LoadedPackage
	PostDeps        []*resolver.LoadedPackage
	BuildHostDeps   []*resolver.LoadedPackage
	InstallHostDeps []*resolver.LoadedPackage
}

// AnalyzeDependencies computes pkg's full dependency closure against res.
// crossCompile should be true when the host and target architectures of
// the build differ, which changes a handful of hand-curated workarounds.
func AnalyzeDependencies(pkg *resolver.LoadedPackage, res *resolver.Resolver, crossCompile bool) (*PackageDependencies, error) {
	buildDeps, err := extractDependencies(pkg, KindBuild, res, crossCompile)
	if err != nil {
		return nil, err
	}
	runtimeDeps, err := extractDependencies(pkg, KindRun, res, crossCompile)
	if err != nil {
		return nil, err
	}
	if isRustSourcePackage(pkg) {
		runtimeDeps = dedupeSortPackages(append(append([]*resolver.LoadedPackage{}, runtimeDeps...), buildDeps...))
	}
	postDeps, err := extractDependencies(pkg, KindPost, res, crossCompile)
	if err != nil {
		return nil, err
	}
	buildHostDeps, err := extractDependencies(pkg, KindBuildHost, res, crossCompile)
	if err != nil {
		return nil, err
	}
	installHostDeps, err := extractDependencies(pkg, KindInstallHost, res, crossCompile)
	if err != nil {
		return nil, err
	}

	return &PackageDependencies{
		BuildDeps:       buildDeps,
		RuntimeDeps:     runtimeDeps,
		PostDeps:        postDeps,
		BuildHostDeps:   buildHostDeps,
		InstallHostDeps: installHostDeps,
	}, nil
}
