package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Source 是进程记账信息的来源，测试中可以替换为假的实现
type Source interface {
	// 列出当前所有的进程 PID
	Pids() ([]int, error)

	// 读取单个进程的记账信息
	Stat(pid int) (*Stat, error)
}

// FS 从 procfs 中读取进程信息
type FS struct {
	root string
}

// 允许测试替换文件读取
var readFile = os.ReadFile

func NewFS(root string) *FS {
	return &FS{root: root}
}

func (fs *FS) Root() string {
	return fs.root
}

func (fs *FS) Stat(pid int) (*Stat, error) {
	data, err := readFile(filepath.Join(fs.root, strconv.Itoa(pid), "stat"))
	if err != nil {
		// 无论是 ENOENT 还是 ESRCH，都说明这个进程已经不在了
		return nil, fmt.Errorf("%w: pid %d: %v", ErrNotFound, pid, err)
	}

	st, err := ParseStat(string(data))
	if err != nil {
		return nil, err
	}
	if st.Pid != pid {
		return nil, fmt.Errorf("%w: stat record of pid %d reports pid %d", ErrUnsupported, pid, st.Pid)
	}
	return st, nil
}

func (fs *FS) Pids() ([]int, error) {
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		return nil, fmt.Errorf("read dir %s error: %v", fs.root, err)
	}

	pids := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// 只关心名字为纯数字的目录，解析失败的直接忽略
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// Sample 是一次 CPU 时间采样
type Sample struct {
	Pid int

	// 进程启动以来累计消耗的 tick 数
	Ticks uint64

	// 进程的启动时间，用来区分被复用的 PID
	StartTime uint64

	// 采样的时间点
	At time.Time
}

// ReadSample 读取进程当前的累计 CPU 时间
func ReadSample(src Source, pid int, at time.Time) (Sample, error) {
	st, err := src.Stat(pid)
	if err != nil {
		return Sample{}, err
	}
	if st.Exited() {
		return Sample{}, fmt.Errorf("%w: pid %d has exited", ErrNotFound, pid)
	}
	return Sample{
		Pid:       pid,
		Ticks:     st.Ticks(),
		StartTime: st.StartTime,
		At:        at,
	}, nil
}
