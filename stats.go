package cgroups

// Stats is a read-only snapshot of a cgroup. Groups are populated by the
// controllers present in the hierarchy; numeric fields for statistics
// files the kernel omits are left at zero. Unlimited values keep the
// kernel's own sentinel so that a limit written as unlimited reads back
// unchanged.
type Stats struct {
	CPU     *CPUStat
	Memory  *MemoryStat
	Pids    *PidsStat
	Blkio   *BlkioStat
	Hugetlb map[string]HugetlbStat
	Devices []DeviceRule
	NetCls  *NetClsStat
	NetPrio *NetPrioStat
	Freezer State
	Rdma    *RdmaStat
}

type CPUStat struct {
	Shares uint64
	Period uint64
	// Quota keeps the kernel sentinel: -1 on legacy hierarchies,
	// math.MaxInt64 for "max" on the unified hierarchy.
	Quota      int64
	Cpus       string
	Mems       string
	Usage      uint64
	Throttling ThrottlingStat
}

type ThrottlingStat struct {
	Periods          uint64
	ThrottledPeriods uint64
	ThrottledTime    uint64
}

type MemoryStat struct {
	Usage      uint64
	MaxUsage   uint64
	Failcnt    uint64
	Limit      uint64
	SoftLimit  uint64
	SwapLimit  uint64
	SwapUsage  uint64
	Kernel     uint64
	Swappiness uint64
	OOMDisable bool
}

type PidsStat struct {
	Current uint64
	// Limit is math.MaxUint64 when the kernel reports "max".
	Limit uint64
}

type BlkioStat struct {
	Weight         uint16
	IoServiceBytes []BlkioEntry
	IoServiced     []BlkioEntry
}

type BlkioEntry struct {
	Major int64
	Minor int64
	Op    string
	Value uint64
}

type HugetlbStat struct {
	Usage    uint64
	MaxUsage uint64
	Failcnt  uint64
}

type NetClsStat struct {
	ClassID uint32
}

type NetPrioStat struct {
	Priorities []NetPrioEntry
}

type RdmaStat struct {
	Current []RdmaEntry
	Limit   []RdmaEntry
}
