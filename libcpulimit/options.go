package libcpulimit

import (
	"time"

	"m-cpulimit/libcpulimit/actuator"
	"m-cpulimit/libcpulimit/proc"

	log "github.com/sirupsen/logrus"
)

type options struct {
	src          proc.Source
	act          actuator.Actuator
	clock        Clock
	slice        time.Duration
	cpus         float64
	hz           int64
	allowThreads bool
	hook         func(Cycle)
	logger       *log.Entry
}

type Option func(*options)

// WithSource 替换进程记账信息的来源，默认读取 /proc
func WithSource(src proc.Source) Option {
	return func(o *options) { o.src = src }
}

// WithActuator 替换暂停/恢复的实现，默认发送 SIGSTOP/SIGCONT
func WithActuator(act actuator.Actuator) Option {
	return func(o *options) { o.act = act }
}

func WithClock(clock Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithSlice 设置控制周期的长度，启动后不可修改
func WithSlice(slice time.Duration) Option {
	return func(o *options) {
		if slice > 0 {
			o.slice = slice
		}
	}
}

// WithCPUs 设置可用核数 N，限流目标的合法范围为 (0, 100*N]
func WithCPUs(n float64) Option {
	return func(o *options) { o.cpus = n }
}

// WithClockTicks 设置每秒的 tick 数，默认读取 _SC_CLK_TCK
func WithClockTicks(hz int64) Option {
	return func(o *options) { o.hz = hz }
}

// WithAllowThreads 允许限流多线程进程
func WithAllowThreads(allow bool) Option {
	return func(o *options) { o.allowThreads = allow }
}

// WithCycleHook 在每个周期计算完运行/暂停时长后调用 fn，fn 不能阻塞
func WithCycleHook(fn func(Cycle)) Option {
	return func(o *options) { o.hook = fn }
}

func WithLogger(logger *log.Entry) Option {
	return func(o *options) { o.logger = logger }
}
