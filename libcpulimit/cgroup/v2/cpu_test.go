package v2

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeCpuMax(t *testing.T, root, cgroupPath, content string) {
	t.Helper()
	dir := filepath.Join(root, cgroupPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cpu.max"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGet(t *testing.T) {
	root := t.TempDir()
	writeCpuMax(t, root, "a", "50000 100000\n")
	writeCpuMax(t, root, "b", "max 100000\n")
	writeCpuMax(t, root, "c", "garbage\n")

	c := NewCpuController(root)
	if quota, period, err := c.Get("/a"); err != nil || quota != 50000 || period != 100000 {
		t.Fatalf("unexpected a: %d %d %v", quota, period, err)
	}
	if quota, period, err := c.Get("/b"); err != nil || quota != -1 || period != 100000 {
		t.Fatalf("unexpected b: %d %d %v", quota, period, err)
	}
	if _, _, err := c.Get("/c"); err == nil {
		t.Fatalf("expected error for malformed cpu.max")
	}
	if _, _, err := c.Get("/missing"); err == nil {
		t.Fatalf("expected error for missing cpu.max")
	}
}

func TestLimitTakesStrictestAncestor(t *testing.T) {
	root := t.TempDir()
	writeCpuMax(t, root, "parent", "150000 100000\n")
	writeCpuMax(t, root, "parent/child", "max 100000\n")
	writeCpuMax(t, root, "parent/child/leaf", "300000 100000\n")

	limit, ok := NewCpuController(root).Limit("/parent/child/leaf")
	if !ok || math.Abs(limit-1.5) > 1e-9 {
		t.Fatalf("expected 1.5 cpus, got %v %v", limit, ok)
	}
}

func TestLimitUnlimited(t *testing.T) {
	root := t.TempDir()
	writeCpuMax(t, root, "free", "max 100000\n")

	if _, ok := NewCpuController(root).Limit("/free"); ok {
		t.Fatalf("expected no limit")
	}
}
