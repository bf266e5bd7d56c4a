package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pagewatch/pagewatch/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WebServer serves /jsonrpc, /jsonrpc/ws and /metrics.
type WebServer struct {
	addr     string
	log      logger.Logger
	rpc      *RPCServer
	notifier *RPCNotifier
	server   *http.Server
	mu       sync.Mutex
}

// NewWebServer creates a WebServer listening on addr. notifier receives
// every WebSocket client; a nil notifier gets a private one.
func NewWebServer(l logger.Logger, addr string, rpc *RPCServer, notifier *RPCNotifier) *WebServer {
	if l == nil {
		l = logger.NewNopLogger()
	}
	if notifier == nil {
		notifier = NewRPCNotifier(l)
	}
	return &WebServer{addr: addr, log: l, rpc: rpc, notifier: notifier}
}

func (s *WebServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /jsonrpc", requireToken(s.rpc.secret, s.rpc.bridge))
	mux.Handle("GET /jsonrpc/ws", requireToken(s.rpc.secret, http.HandlerFunc(s.serveWS)))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start listens on the configured address and serves until Shutdown.
func (s *WebServer) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve serves on l until Shutdown.
func (s *WebServer) Serve(l net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.log.Info("rpc: listening on %s", l.Addr())
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil // Expected during shutdown
	}
	return err
}

// Shutdown gracefully stops the web server.
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
