// Package cliutil holds the small conventions cmd/ binaries in this
// module share: exiting with a specific process exit code from deep
// inside an error-returning call chain.
package cliutil

import (
	"errors"
	"fmt"
	"log"
	"os"
)

// ExitCode is an error value that requests a specific process exit code.
// A cli.Action can return it instead of calling os.Exit directly, keeping
// the call chain purely error-returning; Exit unwraps it at the top.
type ExitCode int

func (e ExitCode) Error() string {
	return fmt.Sprintf("exit code %d", int(e))
}

// Exit terminates the program: os.Exit with the code carried by err if it
// wraps an ExitCode, os.Exit(1) after logging any other non-nil error, or
// os.Exit(0). It never returns, and deferred calls above it never run.
func Exit(err error) {
	var code ExitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	if err != nil {
		log.Printf("FATAL: %v", err)
		os.Exit(1)
	}
	os.Exit(0)
}
