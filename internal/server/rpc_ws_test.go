package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cws "github.com/coder/websocket"
	"github.com/pagewatch/pagewatch/internal/api"
	"github.com/pagewatch/pagewatch/internal/notify"
)

func dialWS(t *testing.T, ctx context.Context, srvURL, token string) (*cws.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srvURL, "http") + "/jsonrpc/ws"
	var opts *cws.DialOptions
	if token != "" {
		opts = &cws.DialOptions{HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}}}
	}
	return cws.Dial(ctx, wsURL, opts)
}

func readJSON(t *testing.T, ctx context.Context, conn *cws.Conn) map[string]any {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("WebSocket read failed: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestWebSocketEndpoint_AuthRequired(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, token := range []string{"", "wrong-token"} {
		_, resp, err := dialWS(t, ctx, srv.URL, token)
		if err == nil {
			t.Fatalf("expected error for token %q", token)
		}
		if resp != nil && resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	}
}

func TestWebSocketEndpoint_Requests(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := dialWS(t, ctx, srv.URL, testSecret)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close(cws.StatusNormalClosure, "")

	for i := 1; i <= 3; i++ {
		data, _ := json.Marshal(map[string]any{
			"jsonrpc": "2.0",
			"method":  api.ActionGetVersion,
			"id":      i,
		})
		if err := conn.Write(ctx, cws.MessageText, data); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
		resp := readJSON(t, ctx, conn)
		if int(resp["id"].(float64)) != i {
			t.Fatalf("expected id %d, got %v", i, resp["id"])
		}
		if resultOf(t, resp)["version"] != "1.0.0" {
			t.Fatalf("unexpected result %v", resp["result"])
		}
	}
}

func TestWebSocketEndpoint_ReceivesPush(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := dialWS(t, ctx, srv.URL, testSecret)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close(cws.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for env.notifier.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	env.notifier.Publish(notify.MethodBadge, notify.Badge{Count: 2, Text: "2"})
	msg := readJSON(t, ctx, conn)
	if msg["method"] != notify.MethodBadge {
		t.Fatalf("expected badge push, got %v", msg)
	}
	if msg["params"].(map[string]any)["text"] != "2" {
		t.Fatalf("unexpected params %v", msg["params"])
	}
}
