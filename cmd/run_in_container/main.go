// Command run_in_container executes a command inside a layered,
// namespaced root: an ordered stack of directory/tarball/durable-tree
// layers merged with overlayfs, plus caller-requested bind mounts and an
// optional network namespace.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"crosbuild.dev/alchemist/internal/cliutil"
	"crosbuild.dev/alchemist/internal/container"
)

var flagLayer = &cli.StringSliceFlag{
	Name: "layer",
	Usage: "path to a directory, durable tree, or .tar[.zst] archive to use as " +
		"a root layer; may be repeated, lowest-index first (highest priority)",
}

var flagBindMount = &cli.StringSliceFlag{
	Name:  "bind-mount",
	Usage: "<source>:<target>[:ro] to bind-mount into the container; may be repeated",
}

var flagChdir = &cli.StringFlag{
	Name:  "chdir",
	Value: "/",
}

var flagEnv = &cli.StringSliceFlag{
	Name:  "env",
	Usage: "NAME=VALUE to set in the container environment; may be repeated",
}

var flagAllowNetworkAccess = &cli.BoolFlag{
	Name: "allow-network-access",
}

var flagPrivileged = &cli.BoolFlag{
	Name: "privileged",
}

var flagKeepHostMount = &cli.BoolFlag{
	Name: "keep-host-mount",
}

var flagInitPath = &cli.StringFlag{
	Name:  "init-path",
	Usage: "path to the bundled PID-1 supervisor binary (defaults to initshim next to this binary)",
}

var flagAlreadyInNamespace = &cli.StringFlag{
	// Set by EnterNamespace's own re-exec; carries the path to the
	// already-written Config JSON rather than re-parsing flags, since the
	// child process's argv is the user command, not this CLI's own flags.
	Name:   strings.TrimPrefix(container.AlreadyInNamespaceFlag, "--"),
	Hidden: true,
}

func parseBindMounts(specs []string) ([]container.BindMount, error) {
	var binds []container.BindMount
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid bind mount spec %q, want source:target[:ro]", spec)
		}
		readOnly := false
		if len(parts) == 3 {
			if parts[2] != "ro" {
				return nil, fmt.Errorf("invalid bind mount spec %q: third field must be \"ro\"", spec)
			}
			readOnly = true
		}
		binds = append(binds, container.BindMount{Source: parts[0], Target: parts[1], ReadOnly: readOnly})
	}
	return binds, nil
}

func defaultInitPath() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(self), "initshim"), nil
}

var app = &cli.App{
	Name: "run_in_container",
	Flags: []cli.Flag{
		flagLayer,
		flagBindMount,
		flagChdir,
		flagEnv,
		flagAllowNetworkAccess,
		flagPrivileged,
		flagKeepHostMount,
		flagInitPath,
		flagAlreadyInNamespace,
	},
	Action: func(c *cli.Context) error {
		if configPath := c.String(flagAlreadyInNamespace.Name); configPath != "" {
			cfg, err := container.ReadConfig(configPath)
			if err != nil {
				return err
			}
			cfg.Args = c.Args().Slice()
			return container.ContinueInNamespace(cfg)
		}

		if c.Args().Len() == 0 {
			return errors.New("positional arguments (the command to run) missing")
		}
		binds, err := parseBindMounts(c.StringSlice(flagBindMount.Name))
		if err != nil {
			return err
		}

		cfg := &container.Config{
			LayerPaths:         c.StringSlice(flagLayer.Name),
			BindMounts:         binds,
			Envs:               c.StringSlice(flagEnv.Name),
			Chdir:              c.String(flagChdir.Name),
			AllowNetworkAccess: c.Bool(flagAllowNetworkAccess.Name),
			Privileged:         c.Bool(flagPrivileged.Name),
			KeepHostMount:      c.Bool(flagKeepHostMount.Name),
			Args:               c.Args().Slice(),
		}

		initPath := c.String(flagInitPath.Name)
		if initPath == "" {
			initPath, err = defaultInitPath()
			if err != nil {
				return err
			}
		}

		self, err := os.Executable()
		if err != nil {
			return err
		}

		configFile, err := os.CreateTemp("", "run_in_container-config-*.json")
		if err != nil {
			return err
		}
		configPath := configFile.Name()
		configFile.Close()
		defer os.Remove(configPath)

		if err := container.WriteConfig(configPath, cfg); err != nil {
			return err
		}

		return container.EnterNamespace(cfg, self, initPath, configPath)
	},
}

func main() {
	cliutil.Exit(app.Run(os.Args))
}
