package cmd

import (
	"errors"
	"os"
	"testing"
	"time"

	"m-cpulimit/libcpulimit"
)

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Fatal("own process reported dead")
	}
	if processAlive(0) || processAlive(-1) {
		t.Fatal("invalid pid reported alive")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("shortID() = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("shortID() = %q", got)
	}
}

func TestFindPidByNameMissing(t *testing.T) {
	_, err := findPidByName("m-cpulimit-no-such-process")
	if !errors.Is(err, libcpulimit.ErrTargetNotFound) {
		t.Fatalf("findPidByName() error = %v, want ErrTargetNotFound", err)
	}
}

func TestShowUsageSelf(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("procfs not available")
	}
	if err := showUsage(os.Getpid(), false, 10*time.Millisecond, 2); err != nil {
		t.Fatalf("showUsage() error: %v", err)
	}
}
