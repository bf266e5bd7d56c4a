//go:build windows

package cmd

import "os"

// Windows has no SIGTERM.
var shutdownSignals = []os.Signal{os.Interrupt}
