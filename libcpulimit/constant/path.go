package constant

import "time"

const (
	// cgroupV2 在宿主机上的统一挂载点
	CgroupV2UnifiedMountPoint = "/sys/fs/cgroup"

	// procfs 的挂载点，每个进程的 CPU 记账信息都在 /proc/<pid>/stat 中
	ProcRoot = "/proc"

	// m-cpulimit 状态信息的根目录
	StatePath = "/run/m-cpulimit"

	// limiter Config 文件名
	ConfigName = "config.json"
)

// 一个控制周期（slice）的默认长度
const DefaultSlice = 100 * time.Millisecond
