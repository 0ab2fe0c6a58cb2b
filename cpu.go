package cgroups

import (
	"math"
	"strconv"
	"strings"
)

type cpuController struct {
	controllerBase
}

func (c *cpuController) Apply(res *Resources) error {
	cpu := res.CPU
	if cpu == nil {
		return nil
	}
	if c.v2 {
		return c.applyUnified(cpu)
	}
	if cpu.Shares != nil {
		if err := writeValue(c.dir, "cpu.shares", strconv.FormatUint(*cpu.Shares, 10)); err != nil {
			return err
		}
	}
	// The kernel rejects a quota/period pair that is momentarily
	// inconsistent, so the period always lands first.
	if cpu.Period != nil {
		if err := writeValue(c.dir, "cpu.cfs_period_us", strconv.FormatUint(*cpu.Period, 10)); err != nil {
			return err
		}
	}
	if cpu.Quota != nil {
		if err := writeValue(c.dir, "cpu.cfs_quota_us", strconv.FormatInt(*cpu.Quota, 10)); err != nil {
			return err
		}
	}
	if cpu.RealtimePeriod != nil {
		if err := writeValue(c.dir, "cpu.rt_period_us", strconv.FormatUint(*cpu.RealtimePeriod, 10)); err != nil {
			return err
		}
	}
	if cpu.RealtimeRuntime != nil {
		if err := writeValue(c.dir, "cpu.rt_runtime_us", strconv.FormatInt(*cpu.RealtimeRuntime, 10)); err != nil {
			return err
		}
	}
	return nil
}

func (c *cpuController) applyUnified(cpu *CPU) error {
	if cpu.Shares != nil {
		if err := writeValue(c.dir, "cpu.weight", strconv.FormatUint(sharesToWeight(*cpu.Shares), 10)); err != nil {
			return err
		}
	}
	if cpu.Quota != nil || cpu.Period != nil {
		// cpu.max takes "quota period" in one write, which sidesteps the
		// v1 ordering problem entirely.
		if err := writeValue(c.dir, "cpu.max", cpuMax(cpu.Quota, cpu.Period)); err != nil {
			return err
		}
	}
	return nil
}

// sharesToWeight converts v1 cpu.shares [2..262144] into the v2
// cpu.weight range [1..10000], keeping the default 1024 at 100.
func sharesToWeight(shares uint64) uint64 {
	if shares == 0 {
		return 100
	}
	return 1 + ((shares-2)*9999)/262142
}

func cpuMax(quota *int64, period *uint64) string {
	max := "max"
	if quota != nil && *quota > 0 {
		max = strconv.FormatInt(*quota, 10)
	}
	p := uint64(100000)
	if period != nil && *period != 0 {
		p = *period
	}
	return max + " " + strconv.FormatUint(p, 10)
}

func (c *cpuController) Stat(stats *Stats) error {
	if stats.CPU == nil {
		stats.CPU = &CPUStat{}
	}
	if c.v2 {
		return c.statUnified(stats.CPU)
	}
	shares, err := readUint(c.dir, "cpu.shares")
	if err != nil {
		return err
	}
	period, err := readUint(c.dir, "cpu.cfs_period_us")
	if err != nil {
		return err
	}
	quota, err := readInt(c.dir, "cpu.cfs_quota_us")
	if err != nil {
		return err
	}
	stats.CPU.Shares = shares
	stats.CPU.Period = period
	stats.CPU.Quota = quota
	kv, err := readKV(c.dir, "cpu.stat")
	if err != nil {
		return err
	}
	stats.CPU.Throttling = ThrottlingStat{
		Periods:          kv["nr_periods"],
		ThrottledPeriods: kv["nr_throttled"],
		ThrottledTime:    kv["throttled_time"],
	}
	return nil
}

func (c *cpuController) statUnified(out *CPUStat) error {
	max, err := readValue(c.dir, "cpu.max")
	if err == nil {
		quota, period := splitCPUMax(max)
		out.Quota = quota
		out.Period = period
	}
	weight, err := readUint(c.dir, "cpu.weight")
	if err != nil {
		return err
	}
	out.Shares = weight
	kv, err := readKV(c.dir, "cpu.stat")
	if err != nil {
		return err
	}
	out.Usage = kv["usage_usec"]
	out.Throttling = ThrottlingStat{
		Periods:          kv["nr_periods"],
		ThrottledPeriods: kv["nr_throttled"],
		ThrottledTime:    kv["throttled_usec"],
	}
	return nil
}

// splitCPUMax parses the "quota period" layout of cpu.max, keeping the
// kernel's "max" sentinel as the maximum representable quota.
func splitCPUMax(s string) (int64, uint64) {
	var (
		quota  int64
		period uint64
	)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, 0
	}
	if fields[0] == "max" {
		quota = math.MaxInt64
	} else {
		quota, _ = strconv.ParseInt(fields[0], 10, 64)
	}
	if len(fields) > 1 {
		period, _ = strconv.ParseUint(fields[1], 10, 64)
	}
	return quota, period
}
