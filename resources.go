package cgroups

import (
	"fmt"
	"strconv"
)

// Resources is a partial resource specification. Every field is optional:
// a nil pointer, empty string or empty slice means "do not touch this knob".
// Applying an all-unset Resources value writes no file.
type Resources struct {
	CPU       *CPU
	Memory    *Memory
	Pids      *Pids
	BlkIO     *BlkIO
	Devices   []DeviceRule
	HugePages []HugePage
	Network   *Network
	// Freezer is the target freezer state; Unknown leaves it untouched.
	Freezer State
	Rdma    []RdmaEntry
}

// CPU holds both cpu and cpuset knobs; the cpu controller consumes the
// bandwidth fields, the cpuset controller consumes Cpus and Mems.
type CPU struct {
	Shares          *uint64
	Quota           *int64
	Period          *uint64
	RealtimeRuntime *int64
	RealtimePeriod  *uint64
	Cpus            string
	Mems            string
}

type Memory struct {
	Limit       *int64
	SoftLimit   *int64
	SwapLimit   *int64
	KernelLimit *int64
	Swappiness  *uint64
	DisableOOM  *bool
}

type Pids struct {
	// Max is the maximum number of processes. Values <= 0 mean unlimited
	// and are written as the kernel's "max" sentinel.
	Max int64
}

type BlkIO struct {
	Weight *uint16
	// Throttle entries are applied in insertion order; a later entry for
	// the same device overrides an earlier one.
	ThrottleReadBps   []ThrottleDevice
	ThrottleWriteBps  []ThrottleDevice
	ThrottleReadIOPS  []ThrottleDevice
	ThrottleWriteIOPS []ThrottleDevice
}

type ThrottleDevice struct {
	Major int64
	Minor int64
	Rate  uint64
}

func (t ThrottleDevice) String() string {
	return fmt.Sprintf("%d:%d %d", t.Major, t.Minor, t.Rate)
}

// DeviceType is the kernel's single-character device class.
type DeviceType string

const (
	DeviceAll   DeviceType = "a"
	DeviceChar  DeviceType = "c"
	DeviceBlock DeviceType = "b"
)

// DeviceRule is one entry for the devices cgroup. Rules are order
// sensitive: the kernel evaluates later writes against earlier ones, so
// Apply preserves the caller-provided order exactly.
type DeviceRule struct {
	Allow  bool
	Type   DeviceType
	Major  int64 // -1 matches any major number
	Minor  int64 // -1 matches any minor number
	Access string
}

func (d DeviceRule) String() string {
	t := d.Type
	if t == "" {
		t = DeviceAll
	}
	return fmt.Sprintf("%s %s:%s %s", t, deviceNumber(d.Major), deviceNumber(d.Minor), d.Access)
}

func deviceNumber(n int64) string {
	if n == -1 {
		return "*"
	}
	return strconv.FormatInt(n, 10)
}

type HugePage struct {
	// PageSize is the kernel's textual page size, e.g. "2MB" or "1GB".
	PageSize string
	Limit    uint64
}

type Network struct {
	ClassID    *uint32
	Priorities []NetPrioEntry
}

type NetPrioEntry struct {
	Interface string
	Priority  uint32
}

// State represents the freezer target state of a cgroup.
type State string

const (
	Unknown State = ""
	Thawed  State = "thawed"
	Frozen  State = "frozen"
)

type RdmaEntry struct {
	Device     string
	HcaHandles uint32
	HcaObjects uint32
}

func (r RdmaEntry) String() string {
	return fmt.Sprintf("%s hca_handle=%d hca_object=%d", r.Device, r.HcaHandles, r.HcaObjects)
}
