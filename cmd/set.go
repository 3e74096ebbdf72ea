package cmd

import (
	"fmt"
	"strconv"

	"m-cpulimit/libcpulimit/config"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sys/unix"
)

// 通知 limiter 重新读取状态文件，测试中可以替换
var notifyLimiter = func(pid int) error {
	return unix.Kill(pid, unix.SIGHUP)
}

// m-cpulimit set 命令
var SetCommand = cli.Command{
	Name:      "set",
	Usage:     `change the cpu limit of a running limiter`,
	UsageText: `m-cpulimit set [limiter name | ID | pid] PERCENT`,

	// 更新状态文件中的 limit，然后通知 limiter 重新读取
	Action: func(context *cli.Context) error {
		if len(context.Args()) != 2 {
			return fmt.Errorf("usage: %s", context.Command.UsageText)
		}

		limit, err := strconv.ParseFloat(context.Args().Get(1), 64)
		if err != nil {
			return fmt.Errorf("invalid cpu limit %q", context.Args().Get(1))
		}
		return setLimit(context.Args().Get(0), limit)
	},
}

// setLimit 在写入状态文件之前检查 limit，写入后通知失败时恢复原值
func setLimit(ref string, limit float64) error {
	conf, err := config.FindConfig(ref)
	if err != nil {
		return err
	}
	if !processAlive(conf.LimiterPid) {
		return fmt.Errorf("limiter %s is not running", conf.Name)
	}
	if err := conf.CheckLimit(limit); err != nil {
		return err
	}

	old := conf.Limit
	conf.Limit = limit
	if err := config.RecordConfig(conf); err != nil {
		return err
	}
	if err := notifyLimiter(conf.LimiterPid); err != nil {
		conf.Limit = old
		if err := config.RecordConfig(conf); err != nil {
			log.Warnf("restore limit of %s error: %v", conf.Name, err)
		}
		return fmt.Errorf("notify limiter %d error: %v", conf.LimiterPid, err)
	}
	log.Infof("limiter %s: limit set to %.2f%%", conf.Name, limit)
	return nil
}
