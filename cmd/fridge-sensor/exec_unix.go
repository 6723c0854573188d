//go:build unix

package main

import (
	"fmt"
	"os"
	"syscall"
)

// reexec replaces the process with a fresh copy of the executable, which may
// have just been swapped by a firmware update.
func reexec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}
