package proc

import (
	"sync"

	"github.com/tklauser/go-sysconf"
)

// 绝大多数 Linux 系统上 USER_HZ 都是 100
const defaultClockTicks = 100

// 允许测试替换 sysconf 调用
var sysconfClockTicks = func() (int64, error) {
	return sysconf.Sysconf(sysconf.SC_CLK_TCK)
}

var clockTicksOnce = sync.OnceValue(func() int64 {
	hz, err := sysconfClockTicks()
	if err != nil || hz <= 0 {
		return defaultClockTicks
	}
	return hz
})

// ClockTicks 返回每秒的 tick 数（_SC_CLK_TCK），只读取一次
func ClockTicks() int64 {
	return clockTicksOnce()
}
