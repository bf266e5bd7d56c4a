package cmd

import (
	"fmt"

	"github.com/pagewatch/pagewatch/cmd/common"
	"github.com/urfave/cli"
)

func badge(ctx *cli.Context) error {
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "badge", "new_client", err)
		return nil
	}
	defer client.Close()
	res, err := client.UpdateBadge(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "badge", "update", err)
		return nil
	}
	text := res.Badge.Text
	if text == "" {
		text = "(empty)"
	}
	fmt.Printf("%s: %s\n", res.Badge.Title, text)
	return nil
}
