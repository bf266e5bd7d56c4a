package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pagewatch/pagewatch/internal/api"
	"github.com/pagewatch/pagewatch/internal/config"
	"github.com/pagewatch/pagewatch/internal/fetcher"
	"github.com/pagewatch/pagewatch/internal/notify"
	"github.com/pagewatch/pagewatch/internal/sandbox"
	"github.com/pagewatch/pagewatch/internal/server"
	"github.com/pagewatch/pagewatch/internal/store"
	"github.com/pagewatch/pagewatch/pkg/logger"
)

const (
	logFileName     = "daemon.log"
	shutdownTimeout = 5 * time.Second
)

// DaemonComponents holds everything the daemon runs.
type DaemonComponents struct {
	Config   *config.Config
	Store    *store.Store
	Api      *api.Api
	RPC      *server.RPCServer
	Web      *server.WebServer
	Notifier *server.RPCNotifier
	log      logger.Logger
}

// initDaemonComponents opens the store and wires the background core to
// the JSON-RPC server. On error, whatever was opened is closed.
var initDaemonComponents = func(ctx context.Context, cfg *config.Config, l logger.Logger) (*DaemonComponents, error) {
	secret, err := cfg.ResolveSecret(true)
	if err != nil {
		return nil, fmt.Errorf("rpc secret: %w", err)
	}
	st, err := store.Open(ctx, store.Options{
		Backend: cfg.Store.Backend,
		Dir:     cfg.ConfigDir,
		Redis: store.RedisOptions{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	rpcNotifier := server.NewRPCNotifier(l)
	f := fetcher.New(&http.Client{}, l,
		fetcher.WithRetries(cfg.Fetch.Retries),
		fetcher.WithDefaultTimeout(cfg.Fetch.TimeoutMS),
	)
	a := api.New(ctx, api.Options{
		Store:            st,
		Fetcher:          f,
		Executor:         sandbox.NewExecutor(f, l, sandbox.WithTimeout(cfg.Sandbox.Timeout)),
		Notifier:         notify.New(rpcNotifier, l),
		Logger:           l,
		WakeTick:         cfg.Wake.Tick,
		WakeThreshold:    cfg.Wake.Threshold,
		DefaultTimeoutMS: cfg.Fetch.TimeoutMS,
	})
	rs := server.NewRPCServer(&server.RPCConfig{
		Secret:    secret,
		Version:   currentBuildArgs.Version,
		Commit:    currentBuildArgs.Commit,
		BuildType: currentBuildArgs.BuildType,
	}, a)
	return &DaemonComponents{
		Config:   cfg,
		Store:    st,
		Api:      a,
		RPC:      rs,
		Web:      server.NewWebServer(l, cfg.RPC.Addr, rs, rpcNotifier),
		Notifier: rpcNotifier,
		log:      l,
	}, nil
}

// Run listens on the configured address and serves until ctx is done.
func (c *DaemonComponents) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", c.Config.RPC.Addr)
	if err != nil {
		return err
	}
	return c.Serve(ctx, ln)
}

// Serve starts the background core and serves JSON-RPC on ln until ctx
// is done, then shuts the web server down.
func (c *DaemonComponents) Serve(ctx context.Context, ln net.Listener) error {
	if err := c.Api.Start(ctx); err != nil {
		ln.Close()
		return err
	}
	errCh := make(chan error, 1)
	go func() { errCh <- c.Web.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	c.log.Info("daemon: shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.Web.Shutdown(sctx); err != nil {
		return err
	}
	return <-errCh
}

// Close releases the components in reverse order of initialization.
func (c *DaemonComponents) Close() {
	c.RPC.Close()
	if err := c.Api.Close(); err != nil {
		c.log.Warning("daemon: close api: %v", err)
	}
	if err := c.Store.Close(); err != nil {
		c.log.Warning("daemon: close store: %v", err)
	}
	c.log.Info("daemon: stopped")
}

// newDaemonLogger logs to stderr and to daemon.log in the config
// directory.
func newDaemonLogger(cfg *config.Config) (logger.Logger, error) {
	f, err := os.OpenFile(filepath.Join(cfg.ConfigDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return logger.NewMultiLogger(
		logger.NewZerologLogger(os.Stderr, cfg.LogJSON),
		&fileLogger{ZerologLogger: logger.NewZerologLogger(f, true), c: f},
	), nil
}

// fileLogger closes its file with the logger.
type fileLogger struct {
	*logger.ZerologLogger
	c io.Closer
}

func (f *fileLogger) Close() error {
	return errors.Join(f.ZerologLogger.Close(), f.c.Close())
}
