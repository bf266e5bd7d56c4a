package cmd

import (
	"context"
	"os/signal"
)

// shutdownContext is cancelled by the first shutdown signal.
func shutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), shutdownSignals...)
}
