package sampler

import (
	"math"
	"slices"
	"testing"
	"time"

	"m-cpulimit/libcpulimit/internal/fakeproc"
)

func TestSampleFirstCallHasNoWindow(t *testing.T) {
	src := fakeproc.New(100)
	src.Add(fakeproc.Process{Pid: 10, Ppid: 1})
	src.AddCPU(10, time.Second)

	res := New(src, 100).Sample([]int{10}, Snapshot{}, time.Unix(10, 0))
	if res.Usage != 0 || res.Elapsed != 0 {
		t.Fatalf("expected no measurement on first sample, got %+v", res)
	}
	if got := res.Snapshot.Samples[10].Ticks; got != 100 {
		t.Fatalf("expected 100 ticks in snapshot, got %d", got)
	}
}

func TestSampleAggregatesMembers(t *testing.T) {
	src := fakeproc.New(100)
	src.Add(fakeproc.Process{Pid: 10, Ppid: 1})
	src.Add(fakeproc.Process{Pid: 11, Ppid: 10})
	s := New(src, 100)

	start := time.Unix(10, 0)
	first := s.Sample([]int{10, 11}, Snapshot{}, start)

	src.AddCPU(10, 300*time.Millisecond)
	src.AddCPU(11, 200*time.Millisecond)
	res := s.Sample([]int{10, 11}, first.Snapshot, start.Add(time.Second))

	if res.Elapsed != time.Second {
		t.Fatalf("unexpected elapsed %v", res.Elapsed)
	}
	if math.Abs(res.Usage-0.5) > 1e-9 {
		t.Fatalf("expected usage 0.5, got %.4f", res.Usage)
	}
}

func TestSampleNewMemberContributesZero(t *testing.T) {
	src := fakeproc.New(100)
	src.Add(fakeproc.Process{Pid: 10, Ppid: 1})
	s := New(src, 100)

	start := time.Unix(10, 0)
	first := s.Sample([]int{10}, Snapshot{}, start)

	// 新子进程自带大量历史 CPU 时间，不应计入本周期
	src.Add(fakeproc.Process{Pid: 11, Ppid: 10})
	src.AddCPU(11, 5*time.Second)
	src.AddCPU(10, 100*time.Millisecond)

	res := s.Sample([]int{10, 11}, first.Snapshot, start.Add(time.Second))
	if math.Abs(res.Usage-0.1) > 1e-9 {
		t.Fatalf("expected usage 0.1, got %.4f", res.Usage)
	}
	if _, ok := res.Snapshot.Samples[11]; !ok {
		t.Fatalf("new member should be in the snapshot")
	}
}

func TestSampleHandlesVanishedAndReusedMembers(t *testing.T) {
	src := fakeproc.New(100)
	src.Add(fakeproc.Process{Pid: 10, Ppid: 1})
	src.Add(fakeproc.Process{Pid: 11, Ppid: 10, StartTime: 40})
	src.Add(fakeproc.Process{Pid: 12, Ppid: 10})
	s := New(src, 100)

	start := time.Unix(10, 0)
	first := s.Sample([]int{10, 11, 12}, Snapshot{}, start)

	src.Remove(12)
	src.Remove(11)
	src.Add(fakeproc.Process{Pid: 11, Ppid: 10, StartTime: 80})
	src.AddCPU(11, 2*time.Second)

	res := s.Sample([]int{10, 11, 12}, first.Snapshot, start.Add(time.Second))
	if res.Usage != 0 {
		t.Fatalf("expected zero usage, got %.4f", res.Usage)
	}
	if !slices.Equal(res.Missing, []int{12}) {
		t.Fatalf("expected pid 12 missing, got %v", res.Missing)
	}
}

func TestSampleNoMembers(t *testing.T) {
	src := fakeproc.New(100)
	start := time.Unix(10, 0)
	prev := Snapshot{At: start}

	res := New(src, 100).Sample([]int{10}, prev, start.Add(time.Second))
	if res.Usage != 0 || res.Elapsed != 0 || len(res.Missing) != 1 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestSmooth(t *testing.T) {
	if got := Smooth(0, 1); math.Abs(got-0.2) > 1e-9 {
		t.Fatalf("expected 0.2, got %f", got)
	}
	if got := Smooth(0.5, 0.5); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %f", got)
	}
}
