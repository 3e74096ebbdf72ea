// Package cgroup 计算目标进程实际可用的 CPU 核数
package cgroup

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	v2 "m-cpulimit/libcpulimit/cgroup/v2"
	"m-cpulimit/libcpulimit/constant"

	log "github.com/sirupsen/logrus"
)

// 以下变量允许测试替换
var (
	numCPU            = runtime.NumCPU
	isCgroup2         = IsCgroup2UnifiedMode
	procRoot          = constant.ProcRoot
	unifiedMountPoint = constant.CgroupV2UnifiedMountPoint
)

// EffectiveCPUs 返回 pid 可以使用的核数
// 取 runtime.NumCPU() 与 pid 所在 cgroup v2 层级上最严格的 cpu.max 配额中较小的一个
func EffectiveCPUs(pid int) float64 {
	n := float64(numCPU())
	if !isCgroup2() {
		return n
	}

	path, err := PathOf(pid)
	if err != nil {
		log.Debugf("get cgroup of %d error: %v", pid, err)
		return n
	}

	cpu := v2.NewCpuController(unifiedMountPoint)
	if limit, ok := cpu.Limit(path); ok && limit < n {
		log.Debugf("cgroup %s limits pid %d to %.2f cpus", path, pid, limit)
		return limit
	}
	return n
}

// PathOf 从 /proc/<pid>/cgroup 中读取 pid 在 cgroup v2 层级中的路径
func PathOf(pid int) (string, error) {
	data, err := os.ReadFile(filepath.Join(procRoot, strconv.Itoa(pid), "cgroup"))
	if err != nil {
		return "", err
	}

	// cgroup v2 的记录格式为 "0::/path"
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 3)
		if len(parts) == 3 && parts[0] == "0" && parts[1] == "" {
			return parts[2], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no cgroup v2 entry for pid %d", pid)
}
