// Command initshim is the bundled single-child PID-1 supervisor the
// container runtime re-execs into before building the rootfs: it starts
// its one child, forwards SIGTERM to it (via internal/processes, which
// also leaves SIGINT alone for the terminal's own foreground-group
// delivery), and exits with the child's own exit status, translating a
// signal death to 128+signum.
package main

import (
	"context"
	"log"
	"os"
	"os/exec"

	"crosbuild.dev/alchemist/internal/container"
	"crosbuild.dev/alchemist/internal/processes"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("initshim: missing child command")
	}

	cmd := exec.Command(os.Args[1], os.Args[2:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := processes.Run(context.Background(), cmd)
	if err == nil {
		os.Exit(0)
	}
	os.Exit(container.ExitCodeForError(cmd.ProcessState))
}
