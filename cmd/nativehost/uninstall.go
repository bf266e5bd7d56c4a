package nativehost

import (
	"fmt"

	"github.com/pagewatch/pagewatch/internal/nativehost"
	"github.com/urfave/cli"
)

func uninstall(c *cli.Context) error {
	browsers := nativehost.SupportedBrowsers()
	if name := c.String("browser"); name != "all" {
		b, err := nativehost.ParseBrowser(name)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		browsers = []nativehost.Browser{b}
	}
	installer := &nativehost.ManifestInstaller{BaseDir: homeDir}

	var removed, failed []string
	for _, b := range browsers {
		path, err := installer.Uninstall(b)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", b, err))
			continue
		}
		removed = append(removed, fmt.Sprintf("%s: %s", b, path))
	}
	report("Removed manifests:", removed, failed)
	if len(removed) == 0 {
		return cli.NewExitError("uninstall failed", 1)
	}
	return nil
}
