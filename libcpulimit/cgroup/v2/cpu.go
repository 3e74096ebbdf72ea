package v2

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
)

type CpuController struct {
	mountPoint string
}

func NewCpuController(mountPoint string) *CpuController {
	return &CpuController{mountPoint: mountPoint}
}

func (s *CpuController) Name() string {
	return "cpu"
}

// Get 读取 cgroupPath 下的 cpu.max，quota 为 -1 表示没有限制
func (s *CpuController) Get(cgroupPath string) (quota, period int64, err error) {
	file := path.Join(s.mountPoint, cgroupPath, "cpu.max")
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, 0, fmt.Errorf("os.ReadFile() from file %v fail: %v", file, err)
	}

	// cpu.max 的格式为 "$MAX $PERIOD"，$MAX 可以是 "max"
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("malformed cpu.max %q", strings.TrimSpace(string(data)))
	}
	if period, err = strconv.ParseInt(fields[1], 10, 64); err != nil || period <= 0 {
		return 0, 0, fmt.Errorf("malformed cpu.max period %q", fields[1])
	}
	if fields[0] == "max" {
		return -1, period, nil
	}
	if quota, err = strconv.ParseInt(fields[0], 10, 64); err != nil || quota <= 0 {
		return 0, 0, fmt.Errorf("malformed cpu.max quota %q", fields[0])
	}
	return quota, period, nil
}

// Limit 从 cgroupPath 一直向上查找到根，返回最严格的 quota/period
// 整个层级都没有限制时 ok 为 false
func (s *CpuController) Limit(cgroupPath string) (limit float64, ok bool) {
	for p := path.Clean("/" + cgroupPath); ; p = path.Dir(p) {
		if quota, period, err := s.Get(p); err == nil && quota > 0 {
			v := float64(quota) / float64(period)
			if !ok || v < limit {
				limit, ok = v, true
			}
		}
		if p == "/" {
			break
		}
	}
	return limit, ok
}
