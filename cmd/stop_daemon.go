package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/pagewatch/pagewatch/internal/config"
	"github.com/urfave/cli"
)

func stopDaemon(ctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	pid, err := ReadPidFile(cfg.ConfigDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("Daemon is not running (PID file not found)")
			return nil
		}
		fmt.Fprintf(os.Stderr, "Error reading PID file: %v\n", err)
		return nil
	}

	fmt.Printf("Stopping daemon (PID %d)...\n", pid)
	if err := killDaemon(pid); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping daemon: %v\n", err)
		return nil
	}
	// The daemon removes its PID file on exit.
	fmt.Println("Daemon stopped successfully")
	return nil
}
