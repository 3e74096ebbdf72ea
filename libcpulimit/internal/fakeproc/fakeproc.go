// Package fakeproc 提供测试用的进程表、虚拟时钟和信号执行器
// 进程只在未被暂停时按 Busy 比例消耗 CPU 时间，时间只在 Clock.Sleep 中推进
package fakeproc

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"m-cpulimit/libcpulimit/proc"
)

const pfKthread = 0x00200000

type Process struct {
	Pid       int
	Ppid      int
	Comm      string
	State     byte
	Threads   int64
	StartTime uint64
	Kthread   bool

	// 运行时实际使用 CPU 的比例，1 表示一直忙
	Busy float64

	// 由 SIGSTOP/SIGCONT 控制
	Stopped bool

	cpu time.Duration
}

// Source 实现 proc.Source
type Source struct {
	mu    sync.Mutex
	hz    int64
	procs map[int]*Process
}

func New(hz int64) *Source {
	return &Source{hz: hz, procs: map[int]*Process{}}
}

func (s *Source) Add(p Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.State == 0 {
		p.State = 'R'
	}
	if p.Threads == 0 {
		p.Threads = 1
	}
	if p.StartTime == 0 {
		p.StartTime = uint64(p.Pid)
	}
	if p.Comm == "" {
		p.Comm = fmt.Sprintf("proc-%d", p.Pid)
	}
	s.procs[p.Pid] = &p
}

func (s *Source) Remove(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.procs, pid)
}

func (s *Source) Update(pid int, fn func(p *Process)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.procs[pid]; ok {
		fn(p)
	}
}

// AddCPU 直接给进程增加 CPU 时间
func (s *Source) AddCPU(pid int, d time.Duration) {
	s.Update(pid, func(p *Process) { p.cpu += d })
}

func (s *Source) Stopped(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[pid]
	return ok && p.Stopped
}

func (s *Source) Exists(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.procs[pid]
	return ok
}

// Advance 让所有未暂停的进程运行 d
func (s *Source) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.procs {
		if !p.Stopped && p.Busy > 0 {
			p.cpu += time.Duration(float64(d) * p.Busy)
		}
	}
}

func (s *Source) Pids() ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pids := make([]int, 0, len(s.procs))
	for pid := range s.procs {
		pids = append(pids, pid)
	}
	slices.Sort(pids)
	return pids, nil
}

func (s *Source) Stat(pid int) (*proc.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[pid]
	if !ok {
		return nil, fmt.Errorf("%w: pid %d", proc.ErrNotFound, pid)
	}
	st := &proc.Stat{
		Pid:        p.Pid,
		Comm:       p.Comm,
		State:      p.State,
		Ppid:       p.Ppid,
		Utime:      uint64(p.cpu) * uint64(s.hz) / uint64(time.Second),
		NumThreads: p.Threads,
		StartTime:  p.StartTime,
	}
	if p.Kthread {
		st.Flags |= pfKthread
	}
	return st, nil
}

// Clock 是虚拟时钟，Sleep 会立即推进时间并让进程运行
type Clock struct {
	mu     sync.Mutex
	src    *Source
	now    time.Time
	start  time.Time
	events []event
}

type event struct {
	at time.Duration
	fn func()
}

func NewClock(src *Source) *Clock {
	start := time.Unix(1700000000, 0)
	return &Clock{src: src, now: start, start: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Elapsed 返回自时钟创建以来经过的虚拟时间
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(c.start)
}

// At 注册一个在虚拟时间 at 到达时执行的回调
func (c *Clock) At(at time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event{at: at, fn: fn})
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.src.Advance(d)
	c.now = c.now.Add(d)
	elapsed := c.now.Sub(c.start)
	var due []func()
	rest := c.events[:0]
	for _, ev := range c.events {
		if ev.at <= elapsed {
			due = append(due, ev.fn)
		} else {
			rest = append(rest, ev)
		}
	}
	c.events = rest
	c.mu.Unlock()

	for _, fn := range due {
		fn()
	}

	// 给测试 goroutine 观察和调用 Stop 的机会
	runtime.Gosched()
	return ctx.Err()
}

// Actuator 记录暂停和恢复的调用，并修改 Source 中进程的状态
type Actuator struct {
	mu       sync.Mutex
	src      *Source
	stopped  map[int]int
	suspends int
	resumes  int
}

func NewActuator(src *Source) *Actuator {
	return &Actuator{src: src, stopped: map[int]int{}}
}

func (a *Actuator) Suspend(pids []int) []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.suspends++
	done := make([]int, 0, len(pids))
	for _, pid := range pids {
		if !a.src.Exists(pid) {
			continue
		}
		a.src.Update(pid, func(p *Process) { p.Stopped = true })
		a.stopped[pid]++
		done = append(done, pid)
	}
	return done
}

func (a *Actuator) Resume(pids []int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resumes++
	for _, pid := range pids {
		a.src.Update(pid, func(p *Process) { p.Stopped = false })
		if a.stopped[pid] > 0 {
			a.stopped[pid]--
		}
	}
}

// Outstanding 返回仍处于暂停状态的 PID
func (a *Actuator) Outstanding() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	var pids []int
	for pid, n := range a.stopped {
		if n > 0 {
			pids = append(pids, pid)
		}
	}
	slices.Sort(pids)
	return pids
}

// Calls 返回 Suspend 和 Resume 的调用次数
func (a *Actuator) Calls() (suspends, resumes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.suspends, a.resumes
}
