package nativehost

import (
	"context"
	"fmt"
	"os"

	"github.com/pagewatch/pagewatch/internal/config"
	"github.com/pagewatch/pagewatch/internal/nativehost"
	"github.com/pagewatch/pagewatch/pkg/logger"
	"github.com/pagewatch/pagewatch/pkg/pwcli"
	"github.com/urfave/cli"
)

// newClientFunc connects to the daemon, starting it when needed. Tests
// replace it.
var newClientFunc = func(ctx context.Context) (nativehost.Client, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	secret, err := cfg.ResolveSecret(true)
	if err != nil {
		return nil, nil, err
	}
	client := pwcli.NewClient(cfg.Endpoint(), secret)
	if err := client.EnsureDaemon(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, client.Close, nil
}

// run serves the browser on stdin and stdout. Anything else written to
// stdout would corrupt the framing, so logs go to stderr.
func run(c *cli.Context) error {
	l := logger.NewZerologLogger(os.Stderr, true).WithComponent("nativehost")
	ctx := context.Background()

	client, closeClient, err := newClientFunc(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to daemon: %v\n", err)
		return cli.NewExitError("failed to connect to daemon", 1)
	}
	defer closeClient()

	if err := nativehost.NewHost(client, l).Run(ctx); err != nil {
		l.Error("native host: %v", err)
		return cli.NewExitError("native host error", 1)
	}
	return nil
}
