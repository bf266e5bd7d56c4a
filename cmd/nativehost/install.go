package nativehost

import (
	"fmt"
	"os"

	"github.com/pagewatch/pagewatch/internal/nativehost"
	"github.com/urfave/cli"
)

func install(c *cli.Context) error {
	chromeID := c.String("chrome-extension-id")
	firefoxID := c.String("firefox-extension-id")
	if chromeID == "" && firefoxID == "" {
		return cli.NewExitError("at least one extension ID is required (--chrome-extension-id or --firefox-extension-id)", 1)
	}
	browsers, err := selectBrowsers(c.String("browser"), chromeID, firefoxID)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	hostPath, err := os.Executable()
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("failed to get executable path: %v", err), 1)
	}
	installer := &nativehost.ManifestInstaller{
		HostPath:           hostPath,
		ChromeExtensionID:  chromeID,
		FirefoxExtensionID: firefoxID,
		BaseDir:            homeDir,
	}

	var installed, failed []string
	for _, b := range browsers {
		path, err := installer.Install(b)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", b, err))
			continue
		}
		installed = append(installed, fmt.Sprintf("%s: %s", b, path))
	}
	report("Installed manifests:", installed, failed)
	if len(installed) == 0 {
		return cli.NewExitError("installation failed", 1)
	}
	return nil
}

func report(title string, done, failed []string) {
	if len(done) > 0 {
		fmt.Println(title)
		for _, m := range done {
			fmt.Printf("  %s\n", m)
		}
	}
	if len(failed) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range failed {
			fmt.Printf("  %s\n", e)
		}
	}
}
