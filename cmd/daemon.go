package cmd

import (
	"fmt"

	"github.com/pagewatch/pagewatch/internal/config"
	"github.com/urfave/cli"
)

func daemon(ctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if err := cfg.EnsureDir(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if pid, err := ReadPidFile(cfg.ConfigDir); err == nil && isProcessRunning(pid) {
		return cli.NewExitError(fmt.Sprintf("daemon already running (PID %d)", pid), 1)
	}

	l, err := newDaemonLogger(cfg)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("open log: %v", err), 1)
	}
	defer l.Close()

	sigCtx, stop := shutdownContext()
	defer stop()

	comps, err := initDaemonComponents(sigCtx, cfg, l)
	if err != nil {
		l.Error("daemon: %v", err)
		return cli.NewExitError(err.Error(), 1)
	}
	defer comps.Close()

	if err := WritePidFile(cfg.ConfigDir); err != nil {
		l.Warning("daemon: write pid file: %v", err)
	}
	defer RemovePidFile(cfg.ConfigDir)

	l.Info("daemon: %s (%s) starting, store=%s", currentBuildArgs.Version, currentBuildArgs.Commit, cfg.Store.Backend)
	if err := comps.Run(sigCtx); err != nil {
		l.Error("daemon: %v", err)
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
