package nativehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pagewatch/pagewatch/internal/api"
	"github.com/pagewatch/pagewatch/pkg/logger"
)

// Client forwards an action to the daemon. *pwcli.Client implements it.
type Client interface {
	Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

// Host bridges the extension's native messages to the daemon. Requests
// are handled concurrently and replies may arrive out of order; the id
// field correlates them.
type Host struct {
	client Client
	stdin  io.Reader
	stdout io.Writer
	log    logger.Logger

	wmu sync.Mutex
	wg  sync.WaitGroup
}

// NewHost creates a host on os.Stdin and os.Stdout. l must not write to
// stdout.
func NewHost(client Client, l logger.Logger) *Host {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Host{
		client: client,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		log:    l,
	}
}

// Run reads requests until stdin is closed, then waits for the requests
// in flight. Cancelling ctx aborts the forwarded calls.
func (h *Host) Run(ctx context.Context) error {
	defer h.wg.Wait()
	for {
		data, err := ReadMessage(h.stdin)
		if errors.Is(err, io.EOF) {
			return nil // Browser closed connection
		}
		if err != nil {
			return err
		}
		req, err := ParseRequest(data)
		if err != nil {
			if err := h.write(MakeErrorResponse(0, fmt.Errorf("invalid request: %w", err))); err != nil {
				return err
			}
			continue
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			if err := h.write(h.handleRequest(ctx, req)); err != nil {
				h.log.Error("nativehost: write reply %d: %v", req.ID, err)
			}
		}()
	}
}

func (h *Host) write(msg []byte) error {
	h.wmu.Lock()
	defer h.wmu.Unlock()
	return WriteMessage(h.stdout, msg)
}

// handleRequest forwards a known action and encodes the reply.
func (h *Host) handleRequest(ctx context.Context, req *Request) []byte {
	if !api.IsAction(req.Action) {
		return MakeErrorResponse(req.ID, fmt.Errorf("unknown action: %s", req.Action))
	}
	if len(req.Message) > 0 && !json.Valid(req.Message) {
		return MakeErrorResponse(req.ID, fmt.Errorf("invalid %s message", req.Action))
	}
	result, err := h.client.Call(ctx, req.Action, req.Message)
	if err != nil {
		h.log.Warning("nativehost: %s: %v", req.Action, err)
		return MakeErrorResponse(req.ID, err)
	}
	return MakeSuccessResponse(req.ID, result)
}
