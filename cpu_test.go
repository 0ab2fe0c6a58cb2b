package cgroups

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func uint64p(v uint64) *uint64 { return &v }
func int64p(v int64) *int64    { return &v }

func TestCPUApplyLegacy(t *testing.T) {
	c, dir := newTestController(t, Cpu, false)
	err := c.Apply(&Resources{
		CPU: &CPU{
			Shares: uint64p(512),
			Quota:  int64p(50000),
			Period: uint64p(100000),
		},
	})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	for file, want := range map[string]string{
		"cpu.shares":        "512",
		"cpu.cfs_quota_us":  "50000",
		"cpu.cfs_period_us": "100000",
	} {
		if got := mustRead(t, dir, file); got != want {
			t.Errorf("%s = %q, want %q", file, got, want)
		}
	}
}

func TestCPUApplyLegacyUnlimitedQuota(t *testing.T) {
	c, dir := newTestController(t, Cpu, false)
	if err := c.Apply(&Resources{CPU: &CPU{Quota: int64p(-1)}}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if got := mustRead(t, dir, "cpu.cfs_quota_us"); got != "-1" {
		t.Errorf("cpu.cfs_quota_us = %q, want -1", got)
	}
}

func TestCPUApplyLegacyRealtime(t *testing.T) {
	c, dir := newTestController(t, Cpu, false)
	err := c.Apply(&Resources{
		CPU: &CPU{
			RealtimeRuntime: int64p(950000),
			RealtimePeriod:  uint64p(1000000),
		},
	})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if got := mustRead(t, dir, "cpu.rt_runtime_us"); got != "950000" {
		t.Errorf("cpu.rt_runtime_us = %q", got)
	}
	if got := mustRead(t, dir, "cpu.rt_period_us"); got != "1000000" {
		t.Errorf("cpu.rt_period_us = %q", got)
	}
}

func TestCPUApplyUnified(t *testing.T) {
	c, dir := newTestController(t, Cpu, true)
	err := c.Apply(&Resources{
		CPU: &CPU{
			Shares: uint64p(1024),
			Quota:  int64p(50000),
			Period: uint64p(100000),
		},
	})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if got := mustRead(t, dir, "cpu.weight"); got != "100" {
		t.Errorf("cpu.weight = %q, want 100", got)
	}
	if got := mustRead(t, dir, "cpu.max"); got != "50000 100000" {
		t.Errorf("cpu.max = %q, want %q", got, "50000 100000")
	}
}

func TestCPUApplyUnifiedUnlimited(t *testing.T) {
	c, dir := newTestController(t, Cpu, true)
	if err := c.Apply(&Resources{CPU: &CPU{Quota: int64p(-1)}}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if got := mustRead(t, dir, "cpu.max"); got != "max 100000" {
		t.Errorf("cpu.max = %q, want %q", got, "max 100000")
	}
}

func TestSharesToWeight(t *testing.T) {
	for _, tc := range []struct {
		shares, weight uint64
	}{
		{0, 100},
		{2, 1},
		{1024, 100},
		{262144, 10000},
	} {
		if got := sharesToWeight(tc.shares); got != tc.weight {
			t.Errorf("sharesToWeight(%d) = %d, want %d", tc.shares, got, tc.weight)
		}
	}
}

func TestSplitCPUMax(t *testing.T) {
	quota, period := splitCPUMax("max 100000")
	if quota != math.MaxInt64 || period != 100000 {
		t.Errorf("splitCPUMax(max 100000) = %d %d", quota, period)
	}
	quota, period = splitCPUMax("50000 100000")
	if quota != 50000 || period != 100000 {
		t.Errorf("splitCPUMax(50000 100000) = %d %d", quota, period)
	}
}

func TestCPUStatLegacy(t *testing.T) {
	c, dir := newTestController(t, Cpu, false)
	for file, content := range map[string]string{
		"cpu.shares":        "512\n",
		"cpu.cfs_period_us": "100000\n",
		"cpu.cfs_quota_us":  "-1\n",
		"cpu.stat":          "nr_periods 100\nnr_throttled 4\nthrottled_time 9000\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stats := &Stats{}
	if err := c.Stat(stats); err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	cpu := stats.CPU
	if cpu.Shares != 512 || cpu.Period != 100000 {
		t.Errorf("shares/period = %d/%d", cpu.Shares, cpu.Period)
	}
	// The kernel's -1 sentinel reads back unchanged.
	if cpu.Quota != -1 {
		t.Errorf("Quota = %d, want -1", cpu.Quota)
	}
	if cpu.Throttling.Periods != 100 || cpu.Throttling.ThrottledPeriods != 4 || cpu.Throttling.ThrottledTime != 9000 {
		t.Errorf("Throttling = %+v", cpu.Throttling)
	}
}

func TestCPUStatUnified(t *testing.T) {
	c, dir := newTestController(t, Cpu, true)
	for file, content := range map[string]string{
		"cpu.max":    "max 100000\n",
		"cpu.weight": "100\n",
		"cpu.stat":   "usage_usec 8000\nnr_periods 20\nnr_throttled 2\nthrottled_usec 150\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stats := &Stats{}
	if err := c.Stat(stats); err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	cpu := stats.CPU
	if cpu.Quota != math.MaxInt64 {
		t.Errorf("Quota = %d, want MaxInt64 for the max sentinel", cpu.Quota)
	}
	if cpu.Period != 100000 || cpu.Shares != 100 || cpu.Usage != 8000 {
		t.Errorf("period/weight/usage = %d/%d/%d", cpu.Period, cpu.Shares, cpu.Usage)
	}
	if cpu.Throttling.ThrottledTime != 150 {
		t.Errorf("ThrottledTime = %d, want 150", cpu.Throttling.ThrottledTime)
	}
}

func TestCpusetApplyAndStat(t *testing.T) {
	for _, v2 := range []bool{false, true} {
		c, dir := newTestController(t, Cpuset, v2)
		err := c.Apply(&Resources{CPU: &CPU{Cpus: "0-3", Mems: "0"}})
		if err != nil {
			t.Fatalf("v2=%v Apply error: %v", v2, err)
		}
		if got := mustRead(t, dir, "cpuset.cpus"); got != "0-3" {
			t.Errorf("v2=%v cpuset.cpus = %q", v2, got)
		}
		if got := mustRead(t, dir, "cpuset.mems"); got != "0" {
			t.Errorf("v2=%v cpuset.mems = %q", v2, got)
		}
		stats := &Stats{}
		if err := c.Stat(stats); err != nil {
			t.Fatalf("v2=%v Stat error: %v", v2, err)
		}
		if stats.CPU.Cpus != "0-3" || stats.CPU.Mems != "0" {
			t.Errorf("v2=%v Stat cpus/mems = %q/%q", v2, stats.CPU.Cpus, stats.CPU.Mems)
		}
	}
}

func TestCpusetApplyEmptyWritesNothing(t *testing.T) {
	c, dir := newTestController(t, Cpuset, false)
	if err := c.Apply(&Resources{CPU: &CPU{Shares: uint64p(100)}}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("cpuset wrote %d files for a bandwidth-only CPU group", len(entries))
	}
}
