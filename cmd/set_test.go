package cmd

import (
	"errors"
	"math"
	"os"
	"os/exec"
	"testing"

	"m-cpulimit/libcpulimit"
	"m-cpulimit/libcpulimit/config"

	log "github.com/sirupsen/logrus"
)

func useStatePath(t *testing.T) {
	t.Helper()
	old := config.StatePath()
	config.SetStatePath(t.TempDir())
	t.Cleanup(func() { config.SetStatePath(old) })
}

func stubNotify(t *testing.T, err error) *[]int {
	t.Helper()
	var notified []int
	old := notifyLimiter
	notifyLimiter = func(pid int) error {
		notified = append(notified, pid)
		return err
	}
	t.Cleanup(func() { notifyLimiter = old })
	return &notified
}

func recordLimiter(t *testing.T, limit, cpus float64) *config.Config {
	t.Helper()
	conf := &config.Config{
		ID:         "0123456789abcdef",
		Name:       "brave_bell",
		Pid:        4242,
		LimiterPid: os.Getpid(),
		Limit:      limit,
		CPUs:       cpus,
		Status:     config.StatusRunning,
	}
	if err := config.RecordConfig(conf); err != nil {
		t.Fatalf("RecordConfig() error: %v", err)
	}
	return conf
}

func recordedLimit(t *testing.T, id string) float64 {
	t.Helper()
	conf, err := config.GetConfigFromID(id)
	if err != nil {
		t.Fatalf("GetConfigFromID() error: %v", err)
	}
	return conf.Limit
}

func TestSetLimitRejectsOutOfRange(t *testing.T) {
	useStatePath(t)
	notified := stubNotify(t, nil)
	conf := recordLimiter(t, 20, 1)

	for _, limit := range []float64{0, -10, 100.5, 500, math.NaN()} {
		if err := setLimit("brave_bell", limit); err == nil {
			t.Fatalf("setLimit(%v) succeeded, want error", limit)
		}
	}
	if got := recordedLimit(t, conf.ID); got != 20 {
		t.Fatalf("rejected value reached the record: %v", got)
	}
	if len(*notified) != 0 {
		t.Fatalf("limiter notified for rejected values: %v", *notified)
	}
}

func TestSetLimitRecordsAndNotifies(t *testing.T) {
	useStatePath(t)
	notified := stubNotify(t, nil)
	conf := recordLimiter(t, 20, 2)

	if err := setLimit("4242", 150); err != nil {
		t.Fatalf("setLimit() error: %v", err)
	}
	if got := recordedLimit(t, conf.ID); got != 150 {
		t.Fatalf("recorded limit = %v, want 150", got)
	}
	if len(*notified) != 1 || (*notified)[0] != os.Getpid() {
		t.Fatalf("expected one notification to %d, got %v", os.Getpid(), *notified)
	}
}

func TestSetLimitRestoresRecordWhenNotifyFails(t *testing.T) {
	useStatePath(t)
	stubNotify(t, errors.New("no such process"))
	conf := recordLimiter(t, 20, 1)

	if err := setLimit(conf.Name, 50); err == nil {
		t.Fatal("setLimit() succeeded although the limiter was not notified")
	}
	if got := recordedLimit(t, conf.ID); got != 20 {
		t.Fatalf("recorded limit = %v, want 20 restored", got)
	}
}

func TestReloadLimitKeepsRunningTarget(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("procfs not available")
	}
	useStatePath(t)

	target := exec.Command("sleep", "30")
	if err := target.Start(); err != nil {
		t.Skipf("start sleep: %v", err)
	}
	t.Cleanup(func() {
		target.Process.Kill()
		target.Wait()
	})

	l, err := libcpulimit.Start(target.Process.Pid, 20, false, libcpulimit.WithCPUs(1))
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer l.Stop()

	conf := recordLimiter(t, 20, l.CPUs())
	logger := log.NewEntry(log.StandardLogger())

	// 状态文件被写入了 limiter 不接受的值
	bad := *conf
	bad.Limit = 500
	if err := config.RecordConfig(&bad); err != nil {
		t.Fatal(err)
	}
	reloadLimit(l, conf, logger)
	if math.Abs(l.Target()-20) > 1e-9 || conf.Limit != 20 {
		t.Fatalf("running target changed to %v (conf %v)", l.Target(), conf.Limit)
	}
	if got := recordedLimit(t, conf.ID); got != 20 {
		t.Fatalf("record shows %v, want the running limit 20", got)
	}

	good := *conf
	good.Limit = 50
	if err := config.RecordConfig(&good); err != nil {
		t.Fatal(err)
	}
	reloadLimit(l, conf, logger)
	if math.Abs(l.Target()-50) > 1e-9 || conf.Limit != 50 {
		t.Fatalf("running target = %v (conf %v), want 50", l.Target(), conf.Limit)
	}
}
