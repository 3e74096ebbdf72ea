package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"m-cpulimit/libcpulimit/config"

	"github.com/urfave/cli"
)

// m-cpulimit ps 命令
var ListCommand = cli.Command{
	Name:      "ps",
	Usage:     `show all the running limiters in list`,
	UsageText: `m-cpulimit ps`,

	Action: func(context *cli.Context) error {
		if err := listLimiters(); err != nil {
			return fmt.Errorf("list limiters error: %v", err)
		}
		return nil
	},
}

// 查询 m-cpulimit 状态目录下的所有目录，根据 config.json 文件获取 limiter 信息
func listLimiters() error {
	confs, err := config.ListConfigs()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 12, 1, 3, ' ', 0)
	_, err = fmt.Fprintf(w, "LIMITER ID\tPID\tLIMIT\tCHILDREN\tCOMMAND\tCREATED\tSTATUS\tNAME\n")
	if err != nil {
		return fmt.Errorf("failed to execute fmt.Fprintf: %v", err)
	}
	for _, item := range confs {
		status := item.Status
		// limiter 进程已经不存在，状态文件是残留的
		if !processAlive(item.LimiterPid) {
			status = config.StatusStopped
		}
		_, err = fmt.Fprintf(w, "%s\t%d\t%.2f%%\t%v\t%s\t%s\t%s\t%s\n",
			shortID(item.ID),
			item.Pid,
			item.Limit,
			item.IncludeChildren,
			strings.Join(item.CmdArray, " "),
			item.CreatedTime,
			status,
			item.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to execute fmt.Fprintf: %v", err)
		}
	}
	w.Flush()

	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
