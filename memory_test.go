package cgroups

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryApplyLegacy(t *testing.T) {
	c, dir := newTestController(t, Mem, false)
	disable := true
	err := c.Apply(&Resources{
		Memory: &Memory{
			Limit:      int64p(1 << 30),
			SoftLimit:  int64p(1 << 29),
			SwapLimit:  int64p(1 << 31),
			Swappiness: uint64p(10),
			DisableOOM: &disable,
		},
	})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	for file, want := range map[string]string{
		"memory.limit_in_bytes":       "1073741824",
		"memory.soft_limit_in_bytes":  "536870912",
		"memory.memsw.limit_in_bytes": "2147483648",
		"memory.swappiness":           "10",
		"memory.oom_control":          "1",
	} {
		if got := mustRead(t, dir, file); got != want {
			t.Errorf("%s = %q, want %q", file, got, want)
		}
	}
}

func TestMemoryApplyUnified(t *testing.T) {
	c, dir := newTestController(t, Mem, true)
	err := c.Apply(&Resources{
		Memory: &Memory{
			Limit:     int64p(100 << 20),
			SoftLimit: int64p(50 << 20),
			SwapLimit: int64p(150 << 20),
		},
	})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if got := mustRead(t, dir, "memory.max"); got != "104857600" {
		t.Errorf("memory.max = %q", got)
	}
	if got := mustRead(t, dir, "memory.low"); got != "52428800" {
		t.Errorf("memory.low = %q", got)
	}
	// memsw counts memory+swap, memory.swap.max counts swap alone.
	if got := mustRead(t, dir, "memory.swap.max"); got != "52428800" {
		t.Errorf("memory.swap.max = %q, want %q", got, "52428800")
	}
}

func TestMemoryApplyUnifiedUnlimited(t *testing.T) {
	c, dir := newTestController(t, Mem, true)
	if err := c.Apply(&Resources{Memory: &Memory{Limit: int64p(-1)}}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if got := mustRead(t, dir, "memory.max"); got != "max" {
		t.Errorf("memory.max = %q, want max", got)
	}
}

func TestMemoryApplyUnifiedIgnoresLegacyOnlyKnobs(t *testing.T) {
	c, dir := newTestController(t, Mem, true)
	disable := true
	err := c.Apply(&Resources{
		Memory: &Memory{
			KernelLimit: int64p(1 << 20),
			Swappiness:  uint64p(0),
			DisableOOM:  &disable,
		},
	})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("legacy-only knobs produced %d writes on the unified hierarchy", len(entries))
	}
}

func TestMemoryStatLegacy(t *testing.T) {
	c, dir := newTestController(t, Mem, false)
	for file, content := range map[string]string{
		"memory.usage_in_bytes":     "4096\n",
		"memory.max_usage_in_bytes": "8192\n",
		"memory.failcnt":            "3\n",
		"memory.limit_in_bytes":     "1073741824\n",
		"memory.oom_control":        "oom_kill_disable 1\nunder_oom 0\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stats := &Stats{}
	if err := c.Stat(stats); err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	m := stats.Memory
	if m.Usage != 4096 || m.MaxUsage != 8192 || m.Failcnt != 3 || m.Limit != 1073741824 {
		t.Errorf("MemoryStat = %+v", m)
	}
	if !m.OOMDisable {
		t.Error("OOMDisable = false, want true")
	}
}

func TestMemoryStatUnifiedMaxSentinel(t *testing.T) {
	c, dir := newTestController(t, Mem, true)
	for file, content := range map[string]string{
		"memory.current": "4096\n",
		"memory.max":     "max\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stats := &Stats{}
	if err := c.Stat(stats); err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	if stats.Memory.Usage != 4096 {
		t.Errorf("Usage = %d", stats.Memory.Usage)
	}
	if stats.Memory.Limit != math.MaxUint64 {
		t.Errorf("Limit = %d, want MaxUint64 for the max sentinel", stats.Memory.Limit)
	}
}
