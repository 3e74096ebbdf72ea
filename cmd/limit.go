package cmd

import (
	"fmt"

	"m-cpulimit/libcpulimit/config"

	"github.com/urfave/cli"
)

// m-cpulimit limit 命令
var LimitCommand = cli.Command{
	Name:      "limit",
	Usage:     `limit the cpu usage of a running process`,
	UsageText: `m-cpulimit limit -pid PID | -exe NAME -l PERCENT [-i]`,
	Flags: append([]cli.Flag{
		cli.IntFlag{
			Name:  "pid, p", // 目标进程 PID
			Usage: "pid of the target process",
		},
		cli.StringFlag{
			Name:  "exe, e", // 目标进程名称
			Usage: "name or path of the target executable",
		},
	}, limitFlags...),

	// m-cpulimit limit 命令的入口点
	// 1. 生成 limiter 配置
	// 2. 确定目标进程
	// 3. 前台运行 limiter，直到目标退出或被中断
	Action: func(context *cli.Context) error {
		conf, err := config.CreateConfig(context)
		if err != nil {
			return fmt.Errorf("create config error: %v", err)
		}

		if conf.Pid == 0 && context.String("exe") != "" {
			pid, err := findPidByName(context.String("exe"))
			if err != nil {
				return err
			}
			conf.Pid = pid
		}
		if conf.Pid <= 0 {
			return fmt.Errorf("missing target, use -pid or -exe")
		}

		return runLimiter(conf)
	},
}
