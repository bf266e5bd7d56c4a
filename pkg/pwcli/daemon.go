package pwcli

import (
	"context"
	"fmt"
	"time"
)

const (
	daemonStartTimeout = 5 * time.Second
	daemonPollInterval = 100 * time.Millisecond
	daemonProbeTimeout = 500 * time.Millisecond
)

// EnsureDaemon checks whether the daemon answers and spawns it if not.
func (c *Client) EnsureDaemon(ctx context.Context) error {
	if c.isDaemonRunning(ctx) {
		return nil
	}
	if err := spawnDaemon(); err != nil {
		return err
	}
	return c.waitForDaemon(ctx, daemonStartTimeout)
}

func (c *Client) isDaemonRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, daemonProbeTimeout)
	defer cancel()
	_, err := c.GetDaemonVersion(ctx)
	return err == nil
}

// waitForDaemon polls until the daemon answers or timeout expires.
func (c *Client) waitForDaemon(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.isDaemonRunning(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(daemonPollInterval):
		}
	}
	return fmt.Errorf("daemon failed to start within %v", timeout)
}
