//go:build windows

package engine

import "os"

var stopSignal os.Signal = os.Interrupt
