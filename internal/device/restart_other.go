//go:build !unix

package device

import (
	"fmt"
	"runtime"
)

func reexec() error {
	return fmt.Errorf("re-exec not supported on %s", runtime.GOOS)
}
