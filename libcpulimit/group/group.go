// Package group 维护被限流的进程集合：一个根进程，以及可选的全部子孙进程
package group

import (
	"fmt"
	"slices"

	"m-cpulimit/libcpulimit/proc"

	log "github.com/sirupsen/logrus"
)

type Options struct {
	// 是否追踪根进程的子孙进程
	Children bool

	// 是否允许多线程进程
	AllowThreads bool

	// 为空时使用 logrus 的全局 logger
	Logger *log.Entry
}

// Group 是一组被当作整体限流的进程
// 成员以 pid -> starttime 的形式保存，starttime 用来识别被复用的 PID
type Group struct {
	src     proc.Source
	root    int
	opts    Options
	members map[int]uint64
	alive   bool
	log     *log.Entry
}

// New 创建以 root 为根的进程集合
// root 必须是一个存活且受支持的进程，否则返回 ErrNotFound 或 ErrUnsupported
func New(src proc.Source, root int, opts Options) (*Group, error) {
	if root <= 0 {
		return nil, fmt.Errorf("%w: invalid pid %d", proc.ErrNotFound, root)
	}

	st, err := src.Stat(root)
	if err != nil {
		return nil, err
	}
	if err := st.Validate(opts.AllowThreads); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	g := &Group{
		src:     src,
		root:    root,
		opts:    opts,
		members: map[int]uint64{root: st.StartTime},
		alive:   true,
		log:     logger,
	}

	if opts.Children {
		if err := g.discover(); err != nil {
			g.log.Warnf("discover children of %d error: %v", root, err)
		}
	}
	return g, nil
}

// Refresh 校验现有成员，并在开启子进程追踪时发现新的子孙进程
// 根进程退出时返回 ErrNotFound，根进程变得不受支持时返回 ErrUnsupported，此后集合不再存活
func (g *Group) Refresh() error {
	if !g.alive {
		return fmt.Errorf("%w: root pid %d", proc.ErrNotFound, g.root)
	}

	for pid, start := range g.members {
		err := g.check(pid, start)
		if err == nil {
			continue
		}
		if pid == g.root {
			g.alive = false
			g.members = map[int]uint64{}
			return err
		}
		g.log.Debugf("drop child %d of %d: %v", pid, g.root, err)
		delete(g.members, pid)
	}

	if g.opts.Children {
		if err := g.discover(); err != nil {
			g.log.Warnf("discover children of %d error: %v", g.root, err)
		}
	}
	return nil
}

func (g *Group) check(pid int, start uint64) error {
	st, err := g.src.Stat(pid)
	if err != nil {
		return err
	}
	// PID 已经被另一个进程复用
	if st.StartTime != start {
		return fmt.Errorf("%w: pid %d was reused", proc.ErrNotFound, pid)
	}
	return st.Validate(g.opts.AllowThreads)
}

// discover 遍历所有进程，把祖先链上包含任一成员的进程加入集合
func (g *Group) discover() error {
	pids, err := g.src.Pids()
	if err != nil {
		return err
	}

	// 每次刷新只读取一遍所有进程的 ppid
	stats := make(map[int]*proc.Stat, len(pids))
	for _, pid := range pids {
		if st, err := g.src.Stat(pid); err == nil {
			stats[pid] = st
		}
	}

	for pid, st := range stats {
		if _, ok := g.members[pid]; ok {
			continue
		}
		if !g.descends(pid, stats) {
			continue
		}
		if err := st.Validate(g.opts.AllowThreads); err != nil {
			g.log.Debugf("skip child %d of %d: %v", pid, g.root, err)
			continue
		}
		g.members[pid] = st.StartTime
		g.log.Debugf("track child %d (%s) of %d", pid, st.Comm, g.root)
	}
	return nil
}

func (g *Group) descends(pid int, stats map[int]*proc.Stat) bool {
	cur := stats[pid].Ppid
	// 步数上限用来截断 ppid 表中可能出现的环
	for steps := 0; cur > 0 && steps <= len(stats); steps++ {
		if _, ok := g.members[cur]; ok {
			return true
		}
		parent, ok := stats[cur]
		if !ok || parent.Ppid == cur {
			return false
		}
		cur = parent.Ppid
	}
	return false
}

func (g *Group) Root() int {
	return g.root
}

// Alive 在根进程被移出集合后返回 false
func (g *Group) Alive() bool {
	return g.alive
}

// Members 返回按 PID 排序的全部成员
func (g *Group) Members() []int {
	pids := make([]int, 0, len(g.members))
	for pid := range g.members {
		pids = append(pids, pid)
	}
	slices.Sort(pids)
	return pids
}

func (g *Group) Len() int {
	return len(g.members)
}
