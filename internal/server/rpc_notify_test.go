package server

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/pagewatch/pagewatch/internal/notify"
	"github.com/pagewatch/pagewatch/pkg/logger"
)

// newTestServer creates a jrpc2 server with push support backed by an
// io.Pipe-based channel. The client channel must be drained or closed
// to avoid blocking the server's push operations.
func newTestServer(t *testing.T) (channel.Channel, *jrpc2.Server, func()) {
	t.Helper()
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	cli := channel.Line(cr, cw)
	srvCh := channel.Line(sr, sw)

	srv := jrpc2.NewServer(handler.Map{}, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(srvCh)

	cleanup := func() {
		cli.Close()
		_ = srv.Wait()
	}
	return cli, srv, cleanup
}

// recvPush reads one push message from the client side of a pipe.
func recvPush(t *testing.T, cli channel.Channel) map[string]any {
	t.Helper()
	type recv struct {
		data []byte
		err  error
	}
	ch := make(chan recv, 1)
	go func() {
		data, err := cli.Recv()
		ch <- recv{data, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("recv: %v", r.err)
		}
		var msg map[string]any
		if err := json.Unmarshal(r.data, &msg); err != nil {
			t.Fatalf("unmarshal push: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
		return nil
	}
}

func TestRPCNotifier_RegisterUnregister(t *testing.T) {
	n := NewRPCNotifier(nil)
	_, srv, cleanup := newTestServer(t)
	defer cleanup()

	n.Register(srv)
	n.Register(srv)
	if n.Count() != 1 {
		t.Fatalf("expected 1 server, got %d", n.Count())
	}
	n.Unregister(srv)
	n.Unregister(srv)
	if n.Count() != 0 {
		t.Fatalf("expected 0 servers, got %d", n.Count())
	}
}

func TestRPCNotifier_PublishNoServers(t *testing.T) {
	n := NewRPCNotifier(nil)
	n.Publish(notify.MethodBadge, notify.Badge{Count: 1})
}

func TestRPCNotifier_PublishDelivers(t *testing.T) {
	n := NewRPCNotifier(nil)
	cli, srv, cleanup := newTestServer(t)
	defer cleanup()
	n.Register(srv)

	go n.Publish(notify.MethodShow, notify.Notification{ID: "task_t1_notification", TaskID: "t1"})
	msg := recvPush(t, cli)
	if msg["method"] != notify.MethodShow {
		t.Fatalf("expected %s, got %v", notify.MethodShow, msg["method"])
	}
	params, _ := msg["params"].(map[string]any)
	if params["taskId"] != "t1" {
		t.Fatalf("unexpected params %v", msg["params"])
	}
	if _, hasID := msg["id"]; hasID {
		t.Fatal("push notifications must not carry an id")
	}
}

func TestRPCNotifier_DropsDisconnectedServer(t *testing.T) {
	mock := logger.NewMockLogger()
	n := NewRPCNotifier(mock)
	_, srv, cleanup := newTestServer(t)
	n.Register(srv)
	cleanup()

	n.Publish(notify.MethodClear, map[string]string{"id": "x"})
	if n.Count() != 0 {
		t.Fatalf("expected failed server to be dropped, got %d", n.Count())
	}
	if len(mock.WarningCalls()) != 1 {
		t.Fatalf("expected one warning, got %v", mock.WarningCalls())
	}
}

func TestRPCNotifier_ConcurrentRegisterUnregister(t *testing.T) {
	n := NewRPCNotifier(nil)
	var servers []*jrpc2.Server
	for i := 0; i < 5; i++ {
		_, srv, cleanup := newTestServer(t)
		defer cleanup()
		servers = append(servers, srv)
	}

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(s *jrpc2.Server) {
			defer wg.Done()
			n.Register(s)
			n.Unregister(s)
		}(srv)
	}
	wg.Wait()
	if n.Count() != 0 {
		t.Fatalf("expected 0 servers, got %d", n.Count())
	}
}

// The notifier is the publisher used by notify.Notifier.
var _ notify.Publisher = (*RPCNotifier)(nil)

