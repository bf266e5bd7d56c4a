package cmd

import (
	"fmt"

	"github.com/pagewatch/pagewatch/cmd/common"
	"github.com/urfave/cli"
)

func check(ctx *cli.Context) error {
	id, err := taskIDArg(ctx)
	if err != nil || id == "" {
		return err
	}
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "check", "new_client", err)
		return nil
	}
	defer client.Close()
	res, err := client.CheckTask(cliContext(ctx), id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "check", "check_task", err)
		return nil
	}
	if !res.Success {
		return cli.NewExitError(fmt.Sprintf("check failed: %s", res.Error), 1)
	}
	msg := res.Message
	if msg == "" {
		msg = "done"
	}
	fmt.Printf("Checked task %s: %s\n", id, msg)
	return nil
}
