package cgroups

import (
	"strconv"
)

type memoryController struct {
	controllerBase
}

func (c *memoryController) Apply(res *Resources) error {
	mem := res.Memory
	if mem == nil {
		return nil
	}
	if c.v2 {
		return c.applyUnified(mem)
	}
	if mem.Limit != nil {
		if err := writeValue(c.dir, "memory.limit_in_bytes", strconv.FormatInt(*mem.Limit, 10)); err != nil {
			return err
		}
	}
	if mem.SoftLimit != nil {
		if err := writeValue(c.dir, "memory.soft_limit_in_bytes", strconv.FormatInt(*mem.SoftLimit, 10)); err != nil {
			return err
		}
	}
	if mem.SwapLimit != nil {
		if err := writeValue(c.dir, "memory.memsw.limit_in_bytes", strconv.FormatInt(*mem.SwapLimit, 10)); err != nil {
			return err
		}
	}
	if mem.KernelLimit != nil {
		if err := writeValue(c.dir, "memory.kmem.limit_in_bytes", strconv.FormatInt(*mem.KernelLimit, 10)); err != nil {
			return err
		}
	}
	if mem.Swappiness != nil {
		if err := writeValue(c.dir, "memory.swappiness", strconv.FormatUint(*mem.Swappiness, 10)); err != nil {
			return err
		}
	}
	if mem.DisableOOM != nil && *mem.DisableOOM {
		if err := writeValue(c.dir, "memory.oom_control", "1"); err != nil {
			return err
		}
	}
	return nil
}

func (c *memoryController) applyUnified(mem *Memory) error {
	// Kernel memory accounting, swappiness and the OOM killer toggle
	// have no unified-hierarchy files and are ignored here.
	if mem.Limit != nil {
		if err := writeValue(c.dir, "memory.max", formatLimit(*mem.Limit)); err != nil {
			return err
		}
	}
	if mem.SoftLimit != nil {
		if err := writeValue(c.dir, "memory.low", formatLimit(*mem.SoftLimit)); err != nil {
			return err
		}
	}
	if mem.SwapLimit != nil {
		// v1 memsw counts memory+swap while memory.swap.max counts swap
		// alone, so the limit is carried over minus the memory limit.
		swap := *mem.SwapLimit
		if mem.Limit != nil && swap > 0 && *mem.Limit > 0 {
			swap -= *mem.Limit
		}
		if err := writeValue(c.dir, "memory.swap.max", formatLimit(swap)); err != nil {
			return err
		}
	}
	return nil
}

// formatLimit writes non-positive limits as the unified hierarchy's
// "max" sentinel.
func formatLimit(v int64) string {
	if v <= 0 {
		return "max"
	}
	return strconv.FormatInt(v, 10)
}

func (c *memoryController) Stat(stats *Stats) error {
	if c.v2 {
		return c.statUnified(stats)
	}
	out := &MemoryStat{}
	for file, field := range map[string]*uint64{
		"memory.usage_in_bytes":        &out.Usage,
		"memory.max_usage_in_bytes":    &out.MaxUsage,
		"memory.failcnt":               &out.Failcnt,
		"memory.limit_in_bytes":        &out.Limit,
		"memory.soft_limit_in_bytes":   &out.SoftLimit,
		"memory.memsw.limit_in_bytes":  &out.SwapLimit,
		"memory.memsw.usage_in_bytes":  &out.SwapUsage,
		"memory.kmem.limit_in_bytes":   &out.Kernel,
		"memory.swappiness":            &out.Swappiness,
	} {
		v, err := readUint(c.dir, file)
		if err != nil {
			return err
		}
		*field = v
	}
	kv, err := readKV(c.dir, "memory.oom_control")
	if err != nil {
		return err
	}
	out.OOMDisable = kv["oom_kill_disable"] == 1
	stats.Memory = out
	return nil
}

func (c *memoryController) statUnified(stats *Stats) error {
	out := &MemoryStat{}
	for file, field := range map[string]*uint64{
		"memory.current":      &out.Usage,
		"memory.peak":         &out.MaxUsage,
		"memory.max":          &out.Limit,
		"memory.low":          &out.SoftLimit,
		"memory.swap.max":     &out.SwapLimit,
		"memory.swap.current": &out.SwapUsage,
	} {
		v, err := readUint(c.dir, file)
		if err != nil {
			return err
		}
		*field = v
	}
	stats.Memory = out
	return nil
}
