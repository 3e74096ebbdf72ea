// Package sampler 把一组进程的累计 CPU tick 转换为相对单核的使用率
package sampler

import (
	"time"

	"m-cpulimit/libcpulimit/proc"
)

// Snapshot 记录上一次采样时每个成员的累计 tick
type Snapshot struct {
	At      time.Time
	Samples map[int]proc.Sample
}

// Result 是一次采样的结果
type Result struct {
	// CPU 时间 / 墙钟时间，1.0 表示占满一个核
	Usage float64

	// 两次采样之间的墙钟时间，为 0 说明本次没有可用的测量窗口
	Elapsed time.Duration

	Snapshot Snapshot

	// 本次无法读取的成员
	Missing []int
}

type Sampler struct {
	src proc.Source
	hz  float64
}

func New(src proc.Source, hz int64) *Sampler {
	return &Sampler{src: src, hz: float64(hz)}
}

// Sample 读取 pids 中每个成员的 tick，并与 prev 比较得到使用率
// prev 中不存在的成员视为新成员，本周期贡献为 0
func (s *Sampler) Sample(pids []int, prev Snapshot, now time.Time) Result {
	res := Result{
		Snapshot: Snapshot{
			At:      now,
			Samples: make(map[int]proc.Sample, len(pids)),
		},
	}

	var delta uint64
	for _, pid := range pids {
		cur, err := proc.ReadSample(s.src, pid, now)
		if err != nil {
			res.Missing = append(res.Missing, pid)
			continue
		}
		res.Snapshot.Samples[pid] = cur

		old, ok := prev.Samples[pid]
		// PID 复用或 tick 回退时，重新以本次采样为基准
		if !ok || old.StartTime != cur.StartTime || cur.Ticks < old.Ticks {
			continue
		}
		delta += cur.Ticks - old.Ticks
	}

	if prev.At.IsZero() || !now.After(prev.At) || len(res.Snapshot.Samples) == 0 {
		return res
	}

	res.Elapsed = now.Sub(prev.At)
	res.Usage = float64(delta) / (s.hz * res.Elapsed.Seconds())
	return res
}

// 平滑系数，与原版 cpulimit 的 0.8/0.2 加权一致
const smoothing = 0.2

// Smooth 对使用率做指数平滑，用于对外展示
func Smooth(old, cur float64) float64 {
	return (1-smoothing)*old + smoothing*cur
}
