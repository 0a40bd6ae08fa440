package container

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// AlreadyInNamespaceFlag is the marker cmd/run_in_container re-execs
// itself with, telling the child it's already inside the unshared
// namespaces and should proceed straight to building the rootfs instead
// of unsharing again.
const AlreadyInNamespaceFlag = "--already-in-namespace"

// EnterNamespace is phase 1: it unshares the namespaces the container
// needs and re-execs selfPath under initPath (the bundled PID-1
// supervisor), which in turn re-execs selfPath a second time with
// AlreadyInNamespaceFlag set so ContinueInNamespace runs as the
// namespace's own PID 1's child.
//
// Exit codes from the child are propagated verbatim to the caller's
// os.Exit, translating a signal death to 128+signum, matching how a
// shell reports a killed child.
func EnterNamespace(cfg *Config, selfPath, initPath, configPath string) error {
	args := append([]string{selfPath, AlreadyInNamespaceFlag, configPath}, cfg.Args...)

	cmd := exec.Command(initPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	cloneFlags := syscall.CLONE_NEWNS | syscall.CLONE_NEWPID | syscall.CLONE_NEWNET | syscall.CLONE_NEWIPC
	attr := &syscall.SysProcAttr{}

	if !cfg.Privileged {
		// Setting UidMappings/GidMappings with GidMappingsEnableSetgroups
		// left false makes the exec package write "deny" to
		// /proc/[pid]/setgroups before the gid_map, as the kernel
		// requires for an unprivileged single-entry identity map.
		cloneFlags |= syscall.CLONE_NEWUSER
		attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getuid(), Size: 1}}
		attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getgid(), Size: 1}}
	}
	attr.Cloneflags = uintptr(cloneFlags)
	cmd.SysProcAttr = attr

	err := cmd.Run()
	if cmd.ProcessState != nil {
		if status, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				os.Exit(int(status.Signal()) + 128)
			}
			os.Exit(status.ExitStatus())
		}
	}
	return fmt.Errorf("entering namespace: %w", err)
}

// ContinueInNamespace is phase 2: already inside the unshared namespaces,
// it builds the merged overlay root, applies bind mounts and network
// policy, pivots into it, and execs the configured command. On success
// this call never returns.
func ContinueInNamespace(cfg *Config) error {
	pivotDone := false

	stageDir, err := os.MkdirTemp("/tmp", "alchemist-container.*")
	if err != nil {
		return fmt.Errorf("creating stage dir: %w", err)
	}
	defer func() {
		if !pivotDone {
			os.RemoveAll(stageDir)
		}
	}()

	if err := unix.Mount("tmpfs", stageDir, "tmpfs", 0, ""); err != nil {
		return fmt.Errorf("mounting stage tmpfs: %w", err)
	}
	defer func() {
		if !pivotDone {
			unix.Unmount(stageDir, unix.MNT_DETACH)
		}
	}()

	rootDir := filepath.Join(stageDir, "root")
	baseDir := filepath.Join(stageDir, "base")
	lowersDir := filepath.Join(stageDir, "lowers")
	diffDir := filepath.Join(stageDir, "diff")
	workDir := filepath.Join(stageDir, "work")
	tarDir := filepath.Join(stageDir, "tar")

	for _, dir := range []string{rootDir, baseDir, lowersDir, diffDir, workDir, tarDir} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	for _, tmpfsDir := range []string{rootDir, baseDir, lowersDir} {
		if err := unix.Mount("tmpfs", tmpfsDir, "tmpfs", 0, ""); err != nil {
			return fmt.Errorf("mounting tmpfs on %s: %w", tmpfsDir, err)
		}
	}

	for _, name := range []string{"dev", "proc", "sys", "tmp", "host"} {
		if err := os.Mkdir(filepath.Join(baseDir, name), 0o755); err != nil {
			return fmt.Errorf("populating base dir: %w", err)
		}
	}
	for _, bind := range cfg.BindMounts {
		if err := os.MkdirAll(filepath.Join(baseDir, bind.Target), 0o755); err != nil {
			return fmt.Errorf("creating mount point for %s: %w", bind.Target, err)
		}
	}

	lowerDirs := []string{}
	for i, rawPath := range cfg.LayerPaths {
		layer, err := ResolveLayer(rawPath)
		if err != nil {
			return err
		}
		staged, err := stageLayer(i, layer, filepath.Join(tarDir))
		if err != nil {
			return err
		}
		lowerDirs = append(lowerDirs, staged)
	}
	lowerDirs = append(lowerDirs, baseDir)

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}
	var shortened []string
	for _, d := range lowerDirs {
		shortened = append(shortened, shortestLowerPath(d, cwd))
	}

	overlayOptions := fmt.Sprintf("upperdir=%s,workdir=%s,lowerdir=%s", diffDir, workDir, strings.Join(shortened, ":"))
	if err := unix.Mount("none", rootDir, "overlay", 0, overlayOptions); err != nil {
		return fmt.Errorf("mounting overlayfs: %w", err)
	}

	if err := unix.Mount("/dev", filepath.Join(rootDir, "dev"), "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("bind-mounting /dev: %w", err)
	}
	if err := unix.Mount("proc", filepath.Join(rootDir, "proc"), "proc", 0, ""); err != nil {
		return fmt.Errorf("mounting /proc: %w", err)
	}
	if err := unix.Mount("/sys", filepath.Join(rootDir, "sys"), "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("bind-mounting /sys: %w", err)
	}

	for _, bind := range cfg.BindMounts {
		if err := applyBindMount(rootDir, bind); err != nil {
			return err
		}
	}

	if err := unix.PivotRoot(rootDir, filepath.Join(rootDir, "host")); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}
	pivotDone = true

	pivotedStageDir := filepath.Join("/host", stageDir)
	if err := unix.Unmount(pivotedStageDir, unix.MNT_DETACH); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: failed to unmount stage dir: %v\n", err)
	}

	if err := bringUpLoopback(); err != nil {
		return fmt.Errorf("bringing up loopback: %w", err)
	}
	if cfg.AllowNetworkAccess {
		if err := applyNetworkFiles(); err != nil {
			return err
		}
	}

	if !cfg.KeepHostMount {
		if err := unix.Unmount("/host", unix.MNT_DETACH); err != nil {
			return fmt.Errorf("unmounting /host: %w", err)
		}
	}

	for _, e := range os.Environ() {
		name := strings.SplitN(e, "=", 2)[0]
		if strings.HasPrefix(name, "RUNFILES_") || name == "JAVA_RUNFILES" {
			os.Unsetenv(name)
		}
	}

	if cfg.Chdir != "" {
		if err := os.Chdir(cfg.Chdir); err != nil {
			return fmt.Errorf("chdir %s: %w", cfg.Chdir, err)
		}
	}

	exe, err := exec.LookPath(cfg.Args[0])
	if err != nil {
		return err
	}
	env := os.Environ()
	env = append(env, cfg.Envs...)
	return unix.Exec(exe, cfg.Args, env)
}

// applyBindMount creates bind.Target under rootDir (mirroring whether the
// source is a file or directory), bind-mounts bind.Source over it, and
// immediately remounts read-only if requested: a bind mount's
// writability can't be set in the initial mount call, only fixed up
// afterward with MS_REMOUNT.
func applyBindMount(rootDir string, bind BindMount) error {
	target := filepath.Join(rootDir, bind.Target)

	info, err := os.Stat(bind.Source)
	if err != nil {
		return fmt.Errorf("bind-mounting %s: %w", bind.Source, err)
	}
	if info.IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("creating bind target %s: %w", target, err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating bind target parent %s: %w", target, err)
		}
		if f, err := os.OpenFile(target, os.O_CREATE, 0o644); err != nil {
			return fmt.Errorf("creating bind target %s: %w", target, err)
		} else {
			f.Close()
		}
	}

	if err := unix.Mount(bind.Source, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("bind-mounting %s to %s: %w", bind.Source, target, err)
	}
	if bind.ReadOnly {
		if err := unix.Mount("", target, "", unix.MS_REMOUNT|unix.MS_BIND|unix.MS_RDONLY, ""); err != nil {
			return fmt.Errorf("remounting %s read-only: %w", target, err)
		}
	}
	return nil
}

func bringUpLoopback() error {
	cmd := exec.Command("ifconfig", "lo", "up")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// applyNetworkFiles bind-mounts the host's resolver configuration into
// the new root, read-only, when present: a net namespace with network
// access still needs DNS and /etc/hosts to resolve anything. Called after
// pivot_root, so the host's files are reached through the still-mounted
// old root at /host, not through the container's own /etc.
func applyNetworkFiles() error {
	for _, name := range []string{"/etc/resolv.conf", "/etc/hosts"} {
		hostPath := filepath.Join("/host", name)
		if _, err := os.Stat(hostPath); os.IsNotExist(err) {
			continue
		} else if err != nil {
			return fmt.Errorf("checking %s: %w", hostPath, err)
		}
		if err := unix.Mount(hostPath, name, "", unix.MS_BIND, ""); err != nil {
			return fmt.Errorf("bind-mounting %s: %w", name, err)
		}
		if err := unix.Mount("", name, "", unix.MS_REMOUNT|unix.MS_BIND|unix.MS_RDONLY, ""); err != nil {
			return fmt.Errorf("remounting %s read-only: %w", name, err)
		}
	}
	return nil
}

// ExitCodeForError translates a finished child's process state into the
// exit code to exit with: 128+signum for a signaled child, the child's own
// exit code otherwise, and 1 when state is nil (the child never ran).
func ExitCodeForError(state *os.ProcessState) int {
	if state == nil {
		return 1
	}
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return int(status.Signal()) + 128
	}
	return state.ExitCode()
}
