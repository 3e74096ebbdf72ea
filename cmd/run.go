package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"m-cpulimit/libcpulimit"
	"m-cpulimit/libcpulimit/config"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// m-cpulimit run 命令
var RunCommand = cli.Command{
	Name:      "run",
	Usage:     `run a command under a cpu limit`,
	UsageText: `m-cpulimit run -l PERCENT [-i] -- [command]`,
	Flags:     limitFlags,

	// m-cpulimit run 命令的入口点
	// 1. 判断参数是否含有 command
	// 2. 启动 command
	// 3. 限制 command 的 CPU 使用率，并等待其运行结束
	Action: func(context *cli.Context) error {
		if len(context.Args()) < 1 {
			return fmt.Errorf("missing command")
		}

		conf, err := config.CreateConfig(context)
		if err != nil {
			return fmt.Errorf("create config error: %v", err)
		}

		return run(conf)
	},
}

func run(conf *config.Config) error {
	cmd := exec.Command(conf.CmdArray[0], conf.CmdArray[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command %v error: %v", conf.CmdArray, err)
	}
	conf.Pid = cmd.Process.Pid
	log.Debugf("command %v started, pid: %d", conf.CmdArray, conf.Pid)

	// 等待 command 结束并回收，之后 limiter 会发现目标退出
	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	// command 可能在 limiter 启动前就已经退出
	if err := runLimiter(conf); err != nil && !errors.Is(err, libcpulimit.ErrTargetNotFound) {
		log.Errorf("%v", err)
	}

	if err := <-exited; err != nil {
		return fmt.Errorf("command %v: %v", conf.CmdArray, err)
	}
	return nil
}
