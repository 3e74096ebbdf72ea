package proc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// 进程记账文件无法打开：进程已退出或从未存在过
	ErrNotFound = errors.New("process not found")

	// 记账文件的格式无法解析，或者进程类型不在支持范围内
	ErrUnsupported = errors.New("unsupported process")
)

// PF_KTHREAD，见 include/linux/sched.h
const pfKthread = 0x00200000

// Stat 是 /proc/<pid>/stat 中与 CPU 限流相关的字段
type Stat struct {
	Pid        int
	Comm       string
	State      byte
	Ppid       int
	Flags      uint64
	Utime      uint64
	Stime      uint64
	NumThreads int64
	StartTime  uint64
}

// Ticks 返回用户态与内核态的累计 tick 之和
func (s *Stat) Ticks() uint64 {
	return s.Utime + s.Stime
}

// Exited 判断进程是否已经退出但尚未被父进程回收
func (s *Stat) Exited() bool {
	switch s.State {
	case 'Z', 'X', 'x':
		return true
	}
	return false
}

// Validate 检查进程是否可以被限流
// allowThreads 为 false 时，多线程进程也会被视为不支持
func (s *Stat) Validate(allowThreads bool) error {
	if s.Exited() {
		return fmt.Errorf("%w: pid %d has exited", ErrNotFound, s.Pid)
	}
	if s.Flags&pfKthread != 0 {
		return fmt.Errorf("%w: pid %d is a kernel thread", ErrUnsupported, s.Pid)
	}
	if !allowThreads && s.NumThreads > 1 {
		return fmt.Errorf("%w: pid %d has %d threads", ErrUnsupported, s.Pid, s.NumThreads)
	}
	return nil
}

// ParseStat 解析一行 /proc/<pid>/stat 的内容
// 第二个字段 comm 可以包含空格和括号，因此以最后一个 ')' 作为它的结束位置
func ParseStat(data string) (*Stat, error) {
	open := strings.IndexByte(data, '(')
	end := strings.LastIndexByte(data, ')')
	if open < 0 || end < open {
		return nil, fmt.Errorf("%w: malformed stat record", ErrUnsupported)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(data[:open]))
	if err != nil {
		return nil, fmt.Errorf("%w: bad pid field: %v", ErrUnsupported, err)
	}

	// rest[0] 对应 man proc 中的第 3 个字段 state
	rest := strings.Fields(data[end+1:])
	if len(rest) < 20 {
		return nil, fmt.Errorf("%w: stat record of pid %d has only %d fields", ErrUnsupported, pid, len(rest)+2)
	}
	field := func(n int) string {
		return rest[n-3]
	}

	st := &Stat{
		Pid:   pid,
		Comm:  data[open+1 : end],
		State: field(3)[0],
	}

	if st.Ppid, err = strconv.Atoi(field(4)); err != nil {
		return nil, fmt.Errorf("%w: bad ppid field: %v", ErrUnsupported, err)
	}
	if st.Flags, err = strconv.ParseUint(field(9), 10, 64); err != nil {
		return nil, fmt.Errorf("%w: bad flags field: %v", ErrUnsupported, err)
	}
	if st.Utime, err = strconv.ParseUint(field(14), 10, 64); err != nil {
		return nil, fmt.Errorf("%w: bad utime field: %v", ErrUnsupported, err)
	}
	if st.Stime, err = strconv.ParseUint(field(15), 10, 64); err != nil {
		return nil, fmt.Errorf("%w: bad stime field: %v", ErrUnsupported, err)
	}
	if st.NumThreads, err = strconv.ParseInt(field(20), 10, 64); err != nil {
		return nil, fmt.Errorf("%w: bad num_threads field: %v", ErrUnsupported, err)
	}
	if st.StartTime, err = strconv.ParseUint(field(22), 10, 64); err != nil {
		return nil, fmt.Errorf("%w: bad starttime field: %v", ErrUnsupported, err)
	}

	return st, nil
}
