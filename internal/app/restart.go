package app

import (
	"fmt"
	"os"
	"syscall"
)

// Restart replaces the current process image with a fresh copy of itself,
// keeping the PID and the attached terminal or journal. On success it never
// returns.
func Restart() error {
	bin, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	return syscall.Exec(bin, os.Args, os.Environ())
}
