package config

import (
	"fmt"
	"time"
)

// limiter 的运行状态
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// 包含了一个 limiter 的所有配置信息
type Config struct {
	// limiter 的运行状态
	Status string `json:"status"`

	// 被限流进程的 PID
	Pid int `json:"pid"`

	// limiter 自身的 PID，set 命令通过它发送 SIGHUP
	LimiterPid int `json:"limiterPid"`

	// limiter 的唯一标识符
	ID string `json:"ID"`

	// limiter 名称
	Name string `json:"name"`

	// CPU 使用率限制，以单核的百分比表示
	Limit float64 `json:"limit"`

	// limiter 启动时的可用核数 N，limit 的合法范围为 (0, 100*N]
	CPUs float64 `json:"cpus"`

	// 是否同时限制子孙进程
	IncludeChildren bool `json:"includeChildren"`

	// 是否允许限制多线程进程
	AllowThreads bool `json:"allowThreads"`

	// 控制周期的长度，为 0 时使用默认值
	Slice time.Duration `json:"slice"`

	// run 命令启动的命令
	CmdArray []string `json:"CmdArray"`

	// limiter 的创建时间
	CreatedTime string `json:"createdTime"`
}

// CheckLimit 检查 limit 是否在 (0, 100*N] 内，N 未知时只检查下限
func (c *Config) CheckLimit(limit float64) error {
	if !(limit > 0) {
		return fmt.Errorf("invalid cpu limit %v", limit)
	}
	if c.CPUs > 0 && limit > 100*c.CPUs {
		return fmt.Errorf("invalid cpu limit %v: limiter %s allows at most %v", limit, c.Name, 100*c.CPUs)
	}
	return nil
}

// FileConfig 是 --config 指定的 YAML 配置文件
// 命令行参数的优先级高于配置文件
type FileConfig struct {
	Limit           *float64 `yaml:"limit"`
	IncludeChildren *bool    `yaml:"include_children"`
	AllowThreads    *bool    `yaml:"allow_threads"`
	Slice           string   `yaml:"slice"`
}
