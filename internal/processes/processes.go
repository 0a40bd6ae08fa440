// Package processes runs a foreground child command the way a PID 1
// process must: forwarding termination signals to it and staying out of
// the way of the terminal's own Ctrl+C delivery.
package processes

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"

	"golang.org/x/sys/unix"
)

func sendSignal(cmd *exec.Cmd, s os.Signal) {
	if err := cmd.Process.Signal(s); err != nil {
		// The child may have already exited.
		log.Printf("failed to send %s to pid %d: %v", s, cmd.Process.Pid, err)
	}
}

func handleSignal(cmd *exec.Cmd, s os.Signal) error {
	switch s {
	case unix.SIGTERM:
		sendSignal(cmd, s)
		return nil
	default:
		return fmt.Errorf("unexpected signal received: %s", s)
	}
}

// Run starts cmd and blocks until it exits, forwarding SIGTERM to it and
// terminating it if ctx is cancelled first. cmd must not have been built
// with CommandContext, which would kill rather than gracefully terminate
// the child on cancellation.
//
// SIGINT is ignored for the duration of the call: the terminal already
// delivers it to the whole foreground process group, so the child
// receives it directly unless it has placed itself in a different group.
func Run(ctx context.Context, cmd *exec.Cmd) error {
	signal.Ignore(unix.SIGINT)
	defer signal.Reset(unix.SIGINT)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM)
	defer signal.Stop(sigs)

	if err := cmd.Start(); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		errc <- cmd.Wait()
	}()

	for {
		select {
		case s := <-sigs:
			if err := handleSignal(cmd, s); err != nil {
				log.Println(err)
			}
		case <-ctx.Done():
			sendSignal(cmd, unix.SIGTERM)
			return <-errc
		case err := <-errc:
			return err
		}
	}
}
