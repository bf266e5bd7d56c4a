package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/pagewatch/pagewatch/cmd/common"
	"github.com/pagewatch/pagewatch/internal/task"
	"github.com/urfave/cli"
)

func listAlarms(ctx *cli.Context) error {
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "alarms", "new_client", err)
		return nil
	}
	defer client.Close()
	res, err := client.ListAlarms(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "alarms", "list", err)
		return nil
	}
	if ctx.Bool("json") {
		return common.PrintJSON(os.Stdout, res.Alarms)
	}
	if len(res.Alarms) == 0 {
		fmt.Println("pagewatch: no alarms scheduled")
		return nil
	}
	for _, al := range res.Alarms {
		id, _ := task.IDFromAlarm(al.Name)
		fmt.Printf("%s\tevery %gm\tnext %s\n", id, al.PeriodInMinutes, al.ScheduledTime.Local().Format(time.DateTime))
	}
	return nil
}

func rebuildAlarms(ctx *cli.Context) error {
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "alarms", "new_client", err)
		return nil
	}
	defer client.Close()
	if err := client.SetupAllAlarm(cliContext(ctx)); err != nil {
		common.PrintRuntimeErr(ctx, "alarms", "rebuild", err)
		return nil
	}
	fmt.Println("Alarms rebuilt.")
	return nil
}

func clearAlarms(ctx *cli.Context) error {
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "alarms", "new_client", err)
		return nil
	}
	defer client.Close()
	if err := client.RemoveAllAlarm(cliContext(ctx)); err != nil {
		common.PrintRuntimeErr(ctx, "alarms", "clear", err)
		return nil
	}
	fmt.Println("Alarms cleared.")
	return nil
}

func removeAlarm(ctx *cli.Context) error {
	id, err := taskIDArg(ctx)
	if err != nil || id == "" {
		return err
	}
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "alarms", "new_client", err)
		return nil
	}
	defer client.Close()
	if err := client.RemoveAlarm(cliContext(ctx), id); err != nil {
		common.PrintRuntimeErr(ctx, "alarms", "remove", err)
		return nil
	}
	fmt.Printf("Alarm of task %s removed.\n", id)
	return nil
}
