package nativehost

import (
	"fmt"

	"github.com/pagewatch/pagewatch/internal/nativehost"
	"github.com/urfave/cli"
)

func status(c *cli.Context) error {
	installer := &nativehost.ManifestInstaller{BaseDir: homeDir}

	fmt.Println("Native Messaging Host Status")
	fmt.Println("============================")
	fmt.Printf("Host Name: %s\n\n", nativehost.HostName)

	for _, b := range nativehost.SupportedBrowsers() {
		path, ok, err := installer.Installed(b)
		if err != nil {
			fmt.Printf("%s: %v\n", b, err)
			continue
		}
		if !ok {
			fmt.Printf("%s: Not installed\n", b)
			continue
		}
		fmt.Printf("%s: Installed\n", b)
		fmt.Printf("  Path: %s\n", path)
	}
	return nil
}
