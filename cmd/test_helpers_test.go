package cmd

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pagewatch/pagewatch/internal/config"
	"github.com/pagewatch/pagewatch/pkg/logger"
	"github.com/pagewatch/pagewatch/pkg/pwcli"
	"github.com/urfave/cli"
)

const testSecret = "cmd-test-secret"

// captureOutput captures stdout and stderr during function execution.
func captureOutput(f func()) (stdout, stderr string) {
	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	outCh := make(chan string)
	errCh := make(chan string)
	go func() {
		var b bytes.Buffer
		io.Copy(&b, rOut)
		outCh <- b.String()
	}()
	go func() {
		var b bytes.Buffer
		io.Copy(&b, rErr)
		errCh <- b.String()
	}()

	f()

	wOut.Close()
	wErr.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr
	return <-outCh, <-errCh
}

// assertContains checks if output contains the expected substring.
func assertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// assertErrorFormat checks for "pagewatch: cmd[action]:".
func assertErrorFormat(t *testing.T, output, cmd, action string) {
	t.Helper()
	pattern := "pagewatch: " + cmd + "[" + action + "]:"
	if !strings.Contains(output, pattern) {
		t.Errorf("expected error format %q, got:\n%s", pattern, output)
	}
}

// newContext creates a CLI context for testing commands. flags are
// registered on the set before args are parsed.
func newContext(args []string, name string, flags ...cli.Flag) *cli.Context {
	app := cli.NewApp()
	app.Name = "pagewatch"
	app.HelpName = "pagewatch"
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	for _, f := range flags {
		f.Apply(set)
	}
	_ = set.Parse(args)
	normalizeTestFlags(flags, set)
	ctx := cli.NewContext(app, set, nil)
	ctx.Command = cli.Command{Name: name}
	return ctx
}

// normalizeTestFlags mirrors urfave/cli's normalizeFlags: a value given
// through one alias ("-X") is copied to the flag's other names ("method").
func normalizeTestFlags(flags []cli.Flag, set *flag.FlagSet) {
	visited := map[string]bool{}
	set.Visit(func(f *flag.Flag) { visited[f.Name] = true })
	for _, f := range flags {
		parts := strings.Split(f.GetName(), ",")
		var ff *flag.Flag
		for _, name := range parts {
			if name = strings.TrimSpace(name); visited[name] {
				ff = set.Lookup(name)
			}
		}
		if ff == nil {
			continue
		}
		for _, name := range parts {
			name = strings.TrimSpace(name)
			if other := set.Lookup(name); !visited[name] && other != nil && other.Value.String() != ff.Value.String() {
				_ = set.Set(name, ff.Value.String())
			}
		}
	}
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		ConfigDir: dir,
		Store:     config.Store{Backend: "file"},
		RPC:       config.RPC{Addr: "127.0.0.1:0", Secret: testSecret},
		Fetch:     config.Fetch{Retries: 1, TimeoutMS: 2000},
		Sandbox:   config.Sandbox{Timeout: 5 * time.Second},
	}
}

// startTestDaemon serves a daemon on a loopback port and points the
// client commands at it.
func startTestDaemon(t *testing.T) *DaemonComponents {
	t.Helper()
	comps, err := initDaemonComponents(context.Background(), testConfig(t.TempDir()), logger.NewNopLogger())
	if err != nil {
		t.Fatalf("initDaemonComponents: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- comps.Serve(ctx, ln) }()

	endpoint := "http://" + ln.Addr().String() + "/jsonrpc"
	prev := newClientFunc
	newClientFunc = func(context.Context) (*pwcli.Client, error) {
		return pwcli.NewClient(endpoint, testSecret), nil
	}
	t.Cleanup(func() {
		newClientFunc = prev
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
		comps.Close()
	})
	return comps
}
