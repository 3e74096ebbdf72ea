// Package controller 根据测得的使用率计算下一个周期的运行和暂停时长
package controller

import (
	"math"
	"time"
)

const (
	// 每个周期修正量相对误差的增益
	Gain = 0.5

	// 单个周期内修正量的上限，以 slice 的比例表示
	MaxStep = 0.25

	// 累计修正量的上限，以 slice 的比例表示
	MaxAccumulated = 0.9
)

// State 在周期之间传递
type State struct {
	// 是否已经有过一次计算
	Primed bool

	// 上一个周期是否处于限流模式（target < 1）
	Limited bool

	// 上一个周期实际使用的暂停时长
	Suspend time.Duration

	// 上一个周期的误差 target - measured
	Error float64

	// 暂停时长的累计修正量（积分项）
	// 每个周期加上 -Gain*误差*slice，暂停时长被截断时回退到截断后的值，避免积分饱和
	Accumulated time.Duration
}

type Controller struct {
	slice  time.Duration
	minRun time.Duration
}

func New(slice time.Duration) *Controller {
	minRun := slice / 100
	if minRun <= 0 {
		minRun = 1
	}
	return &Controller{slice: slice, minRun: minRun}
}

func (c *Controller) Slice() time.Duration {
	return c.slice
}

// MinRun 是每个周期保证给进程的最短运行时间
func (c *Controller) MinRun() time.Duration {
	return c.minRun
}

// Next 计算下一个周期的运行时长和暂停时长，二者之和总是等于 slice
// target 和 measured 都是相对单核的比例；measured 是上一个周期测得的使用率
func (c *Controller) Next(target, measured float64, st State) (run, suspend time.Duration, next State) {
	// 不低于一个核，不需要限流
	if target >= 1 {
		return c.slice, 0, State{Primed: true}
	}

	slice := float64(c.slice)
	baseline := time.Duration(math.Round(slice * (1 - target)))

	var (
		accumulated time.Duration
		errValue    float64
	)
	// 首个周期，或者刚从非限流模式切换过来时，测量值不能反映当前的占空比
	if st.Primed && st.Limited {
		errValue = target - measured
		step := -Gain * errValue * slice
		step = clamp(step, -MaxStep*slice, MaxStep*slice)
		accumulated = st.Accumulated + time.Duration(math.Round(step))
		accumulated = time.Duration(clamp(float64(accumulated), -MaxAccumulated*slice, MaxAccumulated*slice))
	}

	suspend = baseline + accumulated
	if suspend < 0 {
		suspend = 0
	}
	if limit := c.slice - c.minRun; suspend > limit {
		suspend = limit
	}
	// 暂停时长被截断后，修正量不再继续累积
	accumulated = suspend - baseline

	run = c.slice - suspend
	next = State{
		Primed:      true,
		Limited:     true,
		Suspend:     suspend,
		Error:       errValue,
		Accumulated: accumulated,
	}
	return run, suspend, next
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
