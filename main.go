package main

import (
	"os"

	"github.com/urfave/cli"

	log "github.com/sirupsen/logrus"

	"m-cpulimit/cmd"
	"m-cpulimit/libcpulimit/config"
)

const (
	usage = `a user-space cpu limiter.

m-cpulimit keeps the cpu usage of a process (and optionally its children) below a target
by stopping and continuing it with SIGSTOP/SIGCONT. No root privileges or cgroups needed.`
)

// main 函数是整个程序的入口
// 使用的是 github.com/urfave/cli 框架来构建命令行工具
func main() {
	app := cli.NewApp()
	app.Name = "m-cpulimit"
	app.Usage = usage

	// 添加 limit 等子命令
	app.Commands = []cli.Command{
		cmd.LimitCommand,
		cmd.RunCommand,
		cmd.ListCommand,
		cmd.SetCommand,
		cmd.UsageCommand,
	}
	// 全局 flag
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug", // 启用 debug 模式
			Usage: "enable debug mode",
		},
		cli.StringFlag{
			Name:  "root", // 状态目录
			Usage: "directory for limiter state, default /run/m-cpulimit",
		},
	}
	app.Before = func(context *cli.Context) error {
		// 设置日志格式
		log.SetFormatter(&log.TextFormatter{
			ForceColors:   true,
			FullTimestamp: true,
		})
		// 设置日志级别
		if context.Bool("debug") {
			log.SetLevel(log.DebugLevel)
		}

		log.SetOutput(os.Stdout)

		config.SetStatePath(context.String("root"))
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
