//go:build !windows

package engine

import (
	"os"
	"syscall"
)

var stopSignal os.Signal = syscall.SIGTERM
