package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"m-cpulimit/libcpulimit"
	"m-cpulimit/libcpulimit/config"

	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sys/unix"
)

// limit 和 run 命令共用的 flag
var limitFlags = []cli.Flag{
	cli.Float64Flag{
		Name:  "limit, l", // CPU 使用率限制
		Usage: "cpu limit in percent of one cpu.	eg: -l 50",
	},
	cli.BoolFlag{
		Name:  "include-children, i", // 同时限制子孙进程
		Usage: "also limit the children of the target",
	},
	cli.BoolFlag{
		Name:  "allow-threads", // 允许限制多线程进程
		Usage: "allow limiting multithreaded processes",
	},
	cli.DurationFlag{
		Name:  "slice", // 控制周期
		Usage: "length of one control cycle.	eg: -slice 100ms",
	},
	cli.StringFlag{
		Name:  "name", // limiter 名称
		Usage: "limiter name.	eg: -name my-limiter",
	},
	cli.StringFlag{
		Name:  "config, c", // YAML 配置文件
		Usage: "load options from a yaml file",
	},
}

// 启动 limiter 并阻塞，直到目标进程退出或收到 SIGINT/SIGTERM
// 收到 SIGHUP 时重新读取状态文件中的 limit
func runLimiter(conf *config.Config) error {
	logger := log.WithField("limiter", conf.Name)

	l, err := libcpulimit.Start(conf.Pid, conf.Limit, conf.IncludeChildren,
		libcpulimit.WithSlice(conf.Slice),
		libcpulimit.WithAllowThreads(conf.AllowThreads),
		libcpulimit.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("start limiter error: %w", err)
	}
	logger.Infof("limiting to %.2f%% (%v cpus available)", conf.Limit, l.CPUs())

	// 记录状态信息，供 ps 和 set 命令使用
	conf.LimiterPid = os.Getpid()
	conf.CPUs = l.CPUs()
	conf.Status = config.StatusRunning
	if err := config.RecordConfig(conf); err != nil {
		logger.Warnf("record limiter state error: %v", err)
	} else {
		defer config.DeleteConfig(conf)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGINT, unix.SIGTERM, unix.SIGHUP)
	defer signal.Stop(sigs)

	for {
		select {
		case <-l.Done():
			if err := l.Wait(); err != nil {
				return fmt.Errorf("limiter terminated: %w", err)
			}
			logger.Infof("limiter terminated: %v", l.Reason())
			return nil
		case sig := <-sigs:
			if sig == unix.SIGHUP {
				reloadLimit(l, conf, logger)
				continue
			}
			logger.Infof("received %v, stop limiting", sig)
			l.Stop()
			return nil
		}
	}
}

// 从状态文件重新读取 limit 并更新 limiter
// limiter 拒绝新值时保持原来的 limit，并把状态文件改回去
func reloadLimit(l *libcpulimit.Limiter, conf *config.Config, logger *log.Entry) {
	fresh, err := config.GetConfigFromID(conf.ID)
	if err != nil {
		logger.Warnf("reload limit error: %v", err)
		return
	}
	if fresh.Limit == conf.Limit {
		return
	}
	if err := l.SetTarget(fresh.Limit); err != nil {
		logger.Warnf("set limit %.2f%% error: %v", fresh.Limit, err)
		// 状态文件恢复为正在生效的 limit
		if err := config.RecordConfig(conf); err != nil {
			logger.Warnf("restore limit error: %v", err)
		}
		return
	}
	conf.Limit = fresh.Limit
	logger.Infof("limit changed to %.2f%%", conf.Limit)
}

// 根据进程名或可执行文件路径查找进程
func findPidByName(name string) (int, error) {
	procs, err := process.Processes()
	if err != nil {
		return 0, fmt.Errorf("list processes error: %v", err)
	}

	self := int32(os.Getpid())
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		if n, err := p.Name(); err == nil && n == name {
			return int(p.Pid), nil
		}
		if exe, err := p.Exe(); err == nil && (exe == name || filepath.Base(exe) == name) {
			return int(p.Pid), nil
		}
	}
	return 0, fmt.Errorf("no process named %s: %w", name, libcpulimit.ErrTargetNotFound)
}

// 判断进程是否存活
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
