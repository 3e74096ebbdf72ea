// Package actuator 通过 SIGSTOP/SIGCONT 暂停和恢复进程
package actuator

import (
	"errors"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Actuator 是暂停/恢复进程集合的抽象接口
type Actuator interface {
	// 暂停每个存活的成员，返回实际被暂停的成员
	Suspend(pids []int) []int

	// 恢复成员，已经退出的成员直接忽略
	Resume(pids []int)
}

// 允许测试替换 kill 系统调用
var kill = unix.Kill

// Signal 使用 kill(2) 实现 Actuator
type Signal struct{}

func NewSignal() *Signal {
	return &Signal{}
}

func (s *Signal) Suspend(pids []int) []int {
	stopped := make([]int, 0, len(pids))
	for _, pid := range pids {
		if err := kill(pid, unix.SIGSTOP); err != nil {
			logSignalError(pid, unix.SIGSTOP, err)
			continue
		}
		stopped = append(stopped, pid)
	}
	return stopped
}

func (s *Signal) Resume(pids []int) {
	for _, pid := range pids {
		if err := kill(pid, unix.SIGCONT); err != nil {
			logSignalError(pid, unix.SIGCONT, err)
		}
	}
}

func logSignalError(pid int, sig unix.Signal, err error) {
	// 进程在两次信号之间退出是正常情况
	if errors.Is(err, unix.ESRCH) {
		log.Debugf("send %v to %d: process already exited", unix.SignalName(sig), pid)
		return
	}
	log.Warnf("send %v to %d error: %v", unix.SignalName(sig), pid, err)
}
