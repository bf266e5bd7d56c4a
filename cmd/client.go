package cmd

import (
	"context"
	"os"

	"github.com/pagewatch/pagewatch/internal/config"
	"github.com/pagewatch/pagewatch/pkg/pwcli"
	"github.com/urfave/cli"
)

// skipDaemonEnv stops the client commands from spawning a daemon.
const skipDaemonEnv = "PAGEWATCH_NO_SPAWN"

// overrides holds the global flags that replace configured values.
type overrides struct {
	addr   string
	secret string
}

var clientOverrides overrides

// apply replaces the configured address and secret with the flags.
func (o overrides) apply(cfg *config.Config) {
	if o.addr != "" {
		cfg.RPC.Addr = o.addr
	}
	if o.secret != "" {
		cfg.RPC.Secret = o.secret
	}
}

// newClientFunc connects to the daemon, starting it when needed. Tests
// replace it to talk to an in-process daemon.
var newClientFunc = func(ctx context.Context) (*pwcli.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	clientOverrides.apply(cfg)
	secret, err := cfg.ResolveSecret(true)
	if err != nil {
		return nil, err
	}
	client := pwcli.NewClient(cfg.Endpoint(), secret)
	if os.Getenv(skipDaemonEnv) == "" {
		if err := client.EnsureDaemon(ctx); err != nil {
			client.Close()
			return nil, err
		}
	}
	client.CheckVersionMismatch(ctx, os.Stderr, currentBuildArgs.Version)
	return client, nil
}

// cliContext is the context of a client command; urfave/cli v1 carries
// none.
func cliContext(*cli.Context) context.Context {
	return context.Background()
}
