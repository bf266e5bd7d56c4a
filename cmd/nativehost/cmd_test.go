package nativehost

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/pagewatch/pagewatch/internal/nativehost"
	"github.com/urfave/cli"
)

func newContext(args map[string]string, name string, flags []cli.Flag) *cli.Context {
	app := cli.NewApp()
	app.Name = "pagewatch"
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	for _, f := range flags {
		if sf, ok := f.(cli.StringFlag); ok {
			set.String(sf.Name, sf.Value, sf.Usage)
		}
	}
	for k, v := range args {
		_ = set.Set(k, v)
	}
	ctx := cli.NewContext(app, set, nil)
	ctx.Command = cli.Command{Name: name}
	return ctx
}

// captureOutput captures stdout during function execution.
func captureOutput(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	f()
	w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	io.Copy(&buf, r)
	r.Close()
	return buf.String()
}

func withHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := homeDir
	homeDir = dir
	t.Cleanup(func() { homeDir = prev })
	return dir
}

func skipUnsupported(t *testing.T) {
	t.Helper()
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
	default:
		t.Skipf("native messaging is not supported on %s", runtime.GOOS)
	}
}

func TestInstallMissingExtensionIDs(t *testing.T) {
	ctx := newContext(nil, "install", installFlags)
	var err error
	captureOutput(func() { err = install(ctx) })
	var exitErr cli.ExitCoder
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit error with code 1, got %v", err)
	}
}

func TestInstallUnknownBrowser(t *testing.T) {
	ctx := newContext(map[string]string{
		"browser":             "netscape",
		"chrome-extension-id": "abc",
	}, "install", installFlags)
	var err error
	captureOutput(func() { err = install(ctx) })
	if err == nil {
		t.Fatal("expected error for unknown browser")
	}
}

func TestInstallStatusUninstall(t *testing.T) {
	skipUnsupported(t)
	withHome(t)

	ctx := newContext(map[string]string{
		"browser":             "chrome",
		"chrome-extension-id": "abc",
	}, "install", installFlags)
	var err error
	out := captureOutput(func() { err = install(ctx) })
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if !strings.Contains(out, "Installed manifests:") || !strings.Contains(out, nativehost.HostName+".json") {
		t.Fatalf("unexpected install output:\n%s", out)
	}

	out = captureOutput(func() { err = status(newContext(nil, "status", nil)) })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "chrome: Installed") || !strings.Contains(out, "firefox: Not installed") {
		t.Fatalf("unexpected status output:\n%s", out)
	}

	out = captureOutput(func() { err = uninstall(newContext(map[string]string{"browser": "chrome"}, "uninstall", browserFlags)) })
	if err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	out = captureOutput(func() { _ = status(newContext(nil, "status", nil)) })
	if !strings.Contains(out, "chrome: Not installed") {
		t.Fatalf("manifest still installed:\n%s", out)
	}
}

func TestUninstallUnknownBrowser(t *testing.T) {
	ctx := newContext(map[string]string{"browser": "netscape"}, "uninstall", browserFlags)
	var err error
	captureOutput(func() { err = uninstall(ctx) })
	if err == nil {
		t.Fatal("expected error for unknown browser")
	}
}

func TestSelectBrowsers(t *testing.T) {
	got, err := selectBrowsers("all", "chromeid", "")
	if err != nil {
		t.Fatalf("selectBrowsers: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected the four Chromium browsers, got %v", got)
	}
	for _, b := range got {
		if b == nativehost.BrowserFirefox {
			t.Fatal("firefox selected without an extension id")
		}
	}
	got, _ = selectBrowsers("all", "", "ff@example.com")
	if len(got) != 1 || got[0] != nativehost.BrowserFirefox {
		t.Fatalf("expected firefox only, got %v", got)
	}
}

func TestRunDaemonUnavailable(t *testing.T) {
	prev := newClientFunc
	newClientFunc = func(context.Context) (nativehost.Client, func() error, error) {
		return nil, nil, errors.New("connection refused")
	}
	defer func() { newClientFunc = prev }()

	err := run(newContext(nil, "run", nil))
	if err == nil || !strings.Contains(err.Error(), "failed to connect to daemon") {
		t.Fatalf("expected connect error, got %v", err)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"install": false, "uninstall": false, "run": false, "status": false}
	for _, c := range Commands {
		if _, ok := want[c.Name]; ok {
			want[c.Name] = true
		}
		if c.Name == "run" && !c.Hidden {
			t.Error("run command should be hidden")
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %s not registered", name)
		}
	}
}
