// Package libcpulimit 通过周期性地暂停和恢复进程，把进程（及其子孙进程）的 CPU 使用率限制在目标值以下
package libcpulimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"m-cpulimit/libcpulimit/actuator"
	"m-cpulimit/libcpulimit/cgroup"
	"m-cpulimit/libcpulimit/constant"
	"m-cpulimit/libcpulimit/controller"
	"m-cpulimit/libcpulimit/group"
	"m-cpulimit/libcpulimit/proc"
	"m-cpulimit/libcpulimit/sampler"

	log "github.com/sirupsen/logrus"
)

var (
	ErrTargetNotFound    = errors.New("target process not found")
	ErrUnsupportedTarget = errors.New("unsupported target process")
	ErrInvalidTarget     = errors.New("invalid cpu limit")
)

type State int32

const (
	// 限流循环正在运行
	Active State = iota
	// 已请求停止，等待恢复进程
	Stopping
	// 循环已退出
	Terminated
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Reason 表示限流循环退出的原因
type Reason int32

const (
	// 循环仍在运行
	ReasonNone Reason = iota
	// 调用了 Stop
	ReasonStopped
	// 根进程退出
	ReasonExited
	// 根进程变得不受支持
	ReasonUnsupported
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonStopped:
		return "stopped"
	case ReasonExited:
		return "exited"
	case ReasonUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("reason(%d)", int32(r))
}

// Cycle 描述一个控制周期
type Cycle struct {
	Seq     int
	At      time.Time
	Target  float64
	Usage   float64
	Run     time.Duration
	Suspend time.Duration
	Members []int
}

// Limiter 在后台 goroutine 中对一个进程集合执行限流
type Limiter struct {
	root int
	cpus float64

	// 以 math.Float64bits 存放，单位为相对单核的比例
	target atomic.Uint64
	usage  atomic.Uint64

	state   atomic.Int32
	reason  atomic.Int32
	members atomic.Pointer[[]int]

	group   *group.Group
	sampler *sampler.Sampler
	ctrl    *controller.Controller
	act     actuator.Actuator
	clock   Clock
	hook    func(Cycle)
	log     *log.Entry

	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	stopOnce sync.Once
}

// Start 开始限制 root 的 CPU 使用率，percent 以单核的百分比表示
func Start(root int, percent float64, withChildren bool, opts ...Option) (*Limiter, error) {
	o := options{
		slice: constant.DefaultSlice,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		o.src = proc.NewFS(constant.ProcRoot)
	}
	if o.act == nil {
		o.act = actuator.NewSignal()
	}
	if o.clock == nil {
		o.clock = realClock{}
	}
	if o.hz <= 0 {
		o.hz = proc.ClockTicks()
	}
	if o.logger == nil {
		o.logger = log.NewEntry(log.StandardLogger())
	}
	if o.cpus <= 0 {
		o.cpus = cgroup.EffectiveCPUs(root)
	}

	if err := checkTarget(percent, o.cpus); err != nil {
		return nil, err
	}

	logger := o.logger.WithField("pid", root)
	g, err := group.New(o.src, root, group.Options{
		Children:     withChildren,
		AllowThreads: o.allowThreads,
		Logger:       logger,
	})
	if err != nil {
		return nil, targetError(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Limiter{
		root:    root,
		cpus:    o.cpus,
		group:   g,
		sampler: sampler.New(o.src, o.hz),
		ctrl:    controller.New(o.slice),
		act:     o.act,
		clock:   o.clock,
		hook:    o.hook,
		log:     logger,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	l.target.Store(math.Float64bits(percent / 100))
	members := g.Members()
	l.members.Store(&members)

	l.log.Debugf("start limiting to %.2f%% (children: %v, cpus: %.2f, slice: %v)", percent, withChildren, o.cpus, o.slice)
	go l.loop(ctx)

	return l, nil
}

func checkTarget(percent, cpus float64) error {
	// NaN 也会在这里被拒绝
	if !(percent > 0) || percent > 100*cpus {
		return fmt.Errorf("%w: %v is not in (0, %v]", ErrInvalidTarget, percent, 100*cpus)
	}
	return nil
}

func targetError(err error) error {
	if errors.Is(err, proc.ErrUnsupported) {
		return fmt.Errorf("%w: %v", ErrUnsupportedTarget, err)
	}
	if errors.Is(err, proc.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrTargetNotFound, err)
	}
	return err
}

func (l *Limiter) loop(ctx context.Context) {
	defer close(l.done)
	defer l.state.Store(int32(Terminated))

	// 除了根进程退出或不受支持，循环只会因为 ctx 被取消而退出
	reason := ReasonStopped
	defer func() { l.reason.Store(int32(reason)) }()

	var (
		snap     sampler.Snapshot
		st       controller.State
		smoothed float64
	)

	for seq := 0; ; seq++ {
		if ctx.Err() != nil {
			return
		}

		// 在本周期的任何暂停动作之前检测根进程是否退出
		if err := l.group.Refresh(); err != nil {
			empty := []int{}
			l.members.Store(&empty)
			if errors.Is(err, proc.ErrUnsupported) {
				reason = ReasonUnsupported
				l.err = targetError(err)
				l.log.Warnf("stop limiting: %v", err)
			} else {
				reason = ReasonExited
				l.log.Infof("target process exited")
			}
			return
		}

		pids := l.group.Members()
		l.members.Store(&pids)

		now := l.clock.Now()
		res := l.sampler.Sample(pids, snap, now)
		snap = res.Snapshot
		if res.Elapsed > 0 {
			smoothed = sampler.Smooth(smoothed, res.Usage)
			l.usage.Store(math.Float64bits(smoothed))
		}

		target := math.Float64frombits(l.target.Load())
		run, suspend, next := l.ctrl.Next(target, res.Usage, st)
		st = next

		l.log.Debugf("cycle %d: members %v usage %.4f target %.4f run %v suspend %v", seq, pids, res.Usage, target, run, suspend)
		if l.hook != nil {
			l.hook(Cycle{
				Seq:     seq,
				At:      now,
				Target:  target,
				Usage:   res.Usage,
				Run:     run,
				Suspend: suspend,
				Members: pids,
			})
		}

		if err := l.clock.Sleep(ctx, run); err != nil {
			return
		}
		if suspend == 0 {
			continue
		}
		if err := l.suspendFor(ctx, pids, suspend); err != nil {
			return
		}
	}
}

// suspendFor 暂停进程集合 d 时长，无论睡眠是否被取消都会恢复实际被暂停的进程
func (l *Limiter) suspendFor(ctx context.Context, pids []int, d time.Duration) error {
	stopped := l.act.Suspend(pids)
	defer l.act.Resume(stopped)

	return l.clock.Sleep(ctx, d)
}

// SetTarget 修改限流目标，在下一个周期开始时生效
// 超出 (0, 100*N] 的值会被拒绝，当前目标保持不变
func (l *Limiter) SetTarget(percent float64) error {
	if err := checkTarget(percent, l.cpus); err != nil {
		return err
	}
	l.target.Store(math.Float64bits(percent / 100))
	l.log.Debugf("set limit to %.2f%%", percent)
	return nil
}

// Target 返回当前的限流目标（百分比）
func (l *Limiter) Target() float64 {
	return math.Float64frombits(l.target.Load()) * 100
}

// Usage 返回平滑后的 CPU 使用率，1.0 表示一个核
func (l *Limiter) Usage() float64 {
	return math.Float64frombits(l.usage.Load())
}

// Members 返回最近一个周期的进程集合
func (l *Limiter) Members() []int {
	return append([]int(nil), *l.members.Load()...)
}

func (l *Limiter) Root() int {
	return l.root
}

// CPUs 返回可用核数 N
func (l *Limiter) CPUs() float64 {
	return l.cpus
}

func (l *Limiter) State() State {
	return State(l.state.Load())
}

// Done 在循环退出后关闭
func (l *Limiter) Done() <-chan struct{} {
	return l.done
}

// Wait 阻塞直到循环退出
// 根进程退出或调用 Stop 时返回 nil，根进程变得不受支持时返回 ErrUnsupportedTarget
// 需要区分前两种情况时使用 Reason
func (l *Limiter) Wait() error {
	<-l.done
	return l.err
}

// Reason 返回循环退出的原因，循环仍在运行时返回 ReasonNone
// Stop 与根进程退出同时发生时，以循环实际观察到的为准
func (l *Limiter) Reason() Reason {
	return Reason(l.reason.Load())
}

// Stop 请求停止并等待循环恢复所有被暂停的进程后退出，可以重复调用
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		l.state.CompareAndSwap(int32(Active), int32(Stopping))
		l.cancel()
	})
	<-l.done
}
