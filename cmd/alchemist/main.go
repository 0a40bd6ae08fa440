// Command alchemist walks an overlay's ebuilds, evaluates and resolves
// their dependency and source closures, and emits the result as JSON for
// a downstream build-rule generator to consume.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"crosbuild.dev/alchemist/internal/alchemistlog"
	"crosbuild.dev/alchemist/internal/analyzer"
	"crosbuild.dev/alchemist/internal/cliutil"
	"crosbuild.dev/alchemist/internal/dependency"
	"crosbuild.dev/alchemist/internal/resolver"
)

var flagRoot = &cli.StringFlag{
	Name:  "root",
	Usage: "sysroot to resolve against (contains etc/portage/make.profile)",
	Value: "/build/amd64-generic",
}

var flagCheckoutRoot = &cli.StringFlag{
	Name:  "checkout-root",
	Usage: "root of the live source checkout, for resolving cros-workon local sources",
	Value: "/mnt/host/source/src",
}

var flagForceAccept9999 = &cli.BoolFlag{
	Name:  "force-accept-9999",
	Usage: "accept live (9999) cros-workon ebuilds as if run inside the build chroot",
}

var flagCrossCompile = &cli.BoolFlag{
	Name: "cross-compile",
}

var flagOut = &cli.StringFlag{
	Name:  "out",
	Usage: "path to write the JSON graph to (default: stdout)",
}

var flagVerbose = &cli.BoolFlag{
	Name:    "verbose",
	Aliases: []string{"v"},
}

func discoverPackages(res *resolver.Resolver) ([]*resolver.LoadedPackage, error) {
	names, err := res.RepoSet().PackageNames()
	if err != nil {
		return nil, fmt.Errorf("discovering packages: %w", err)
	}

	var pkgs []*resolver.LoadedPackage
	for _, name := range names {
		candidates, err := res.Packages(dependency.NewSimpleAtom(name))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", name, err)
		}
		pkgs = append(pkgs, candidates...)
	}
	return pkgs, nil
}

// analyzeAll evaluates every package in pkgs concurrently, a work-stealing
// pool capped at runtime.NumCPU(), isolating per-package failures into
// collector rather than aborting the run.
func analyzeAll(ctx context.Context, pkgs []*resolver.LoadedPackage, res *resolver.Resolver, checkoutRoot string, crossCompile bool, collector *alchemistlog.Collector) ([]*analyzer.Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	var mu sync.Mutex
	var results []*analyzer.Result

	for _, pkg := range pkgs {
		pkg := pkg
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			result, err := analyzer.Analyze(pkg, res, checkoutRoot, crossCompile)
			if err != nil {
				collector.Fail(fmt.Sprintf("%s-%s", pkg.Name(), pkg.Version()), err)
				return nil
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

var app = &cli.App{
	Name:  "alchemist",
	Usage: "analyze an ebuild overlay into a hermetic build graph",
	Flags: []cli.Flag{
		flagRoot,
		flagCheckoutRoot,
		flagForceAccept9999,
		flagCrossCompile,
		flagOut,
		flagVerbose,
	},
	Action: func(c *cli.Context) error {
		res, err := resolver.NewResolver(c.String(flagRoot.Name), c.Bool(flagForceAccept9999.Name))
		if err != nil {
			return fmt.Errorf("initializing resolver: %w", err)
		}

		collector := &alchemistlog.Collector{Verbose: c.Bool(flagVerbose.Name)}
		res.SetCollector(collector)

		pkgs, err := discoverPackages(res)
		if err != nil {
			return err
		}

		results, err := analyzeAll(c.Context, pkgs, res, c.String(flagCheckoutRoot.Name), c.Bool(flagCrossCompile.Name), collector)
		if err != nil {
			return err
		}

		graph := make(map[string]*analyzer.GraphPackage, len(results))
		for _, result := range results {
			label := analyzer.Label(result)
			gp, err := analyzer.ToGraphPackage(result)
			if err != nil {
				collector.Fail(label, err)
				continue
			}
			graph[label] = gp
		}
		collector.Summary()

		out := os.Stdout
		if path := c.String(flagOut.Name); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(graph); err != nil {
			return fmt.Errorf("writing graph: %w", err)
		}

		if collector.Count() > 0 {
			return cliutil.ExitCode(1)
		}
		return nil
	},
}

func main() {
	cliutil.Exit(app.Run(os.Args))
}
