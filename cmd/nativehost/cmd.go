// Package nativehost provides the CLI commands of the native messaging
// host integration.
package nativehost

import (
	"github.com/pagewatch/pagewatch/internal/nativehost"
	"github.com/urfave/cli"
)

// Commands contains all native-host related subcommands.
var Commands = []cli.Command{
	{
		Name:   "install",
		Action: install,
		Usage:  "install native messaging manifest for browsers",
		Flags:  installFlags,
	},
	{
		Name:   "uninstall",
		Action: uninstall,
		Usage:  "remove native messaging manifest from browsers",
		Flags:  browserFlags,
	},
	{
		Name:   "run",
		Action: run,
		Usage:  "run native messaging host (called by browser)",
		Hidden: true,
	},
	{
		Name:   "status",
		Action: status,
		Usage:  "show installation status for all browsers",
	},
}

var browserFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "browser",
		Usage: "browser (chrome, firefox, chromium, edge, brave, all)",
		Value: "all",
	},
}

var installFlags = append([]cli.Flag{
	cli.StringFlag{
		Name:  "chrome-extension-id",
		Usage: "Chrome extension ID (required for Chromium-based browsers)",
	},
	cli.StringFlag{
		Name:  "firefox-extension-id",
		Usage: "Firefox extension ID (required for Firefox)",
	},
}, browserFlags...)

// homeDir overrides the home directory in tests.
var homeDir string

// selectBrowsers expands the --browser flag. With "all", browsers whose
// extension ID is missing are skipped.
func selectBrowsers(name string, chromeID, firefoxID string) ([]nativehost.Browser, error) {
	if name != "all" {
		b, err := nativehost.ParseBrowser(name)
		if err != nil {
			return nil, err
		}
		return []nativehost.Browser{b}, nil
	}
	var out []nativehost.Browser
	for _, b := range nativehost.SupportedBrowsers() {
		if b == nativehost.BrowserFirefox && firefoxID == "" {
			continue
		}
		if b != nativehost.BrowserFirefox && chromeID == "" {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
