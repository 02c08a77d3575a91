//go:build unix

package device

import (
	"fmt"
	"os"
	"syscall"
)

func reexec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}
