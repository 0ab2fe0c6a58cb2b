package cgroups

import (
	"os"
	"strconv"
)

// Name is a typed name for a cgroup subsystem
type Name string

const (
	Devices   Name = "devices"
	Hugetlb   Name = "hugetlb"
	Freezer   Name = "freezer"
	Pid       Name = "pids"
	NetCLS    Name = "net_cls"
	NetPrio   Name = "net_prio"
	PerfEvent Name = "perf_event"
	Cpuset    Name = "cpuset"
	Cpu       Name = "cpu"
	Mem       Name = "memory"
	Blkio     Name = "blkio"
	Rdma      Name = "rdma"

	// IO is the unified-hierarchy name of the blkio controller; it is
	// normalized to Blkio during detection.
	IO Name = "io"
)

// subsystemOrder is the order controllers are created and applied in.
// The cgroup writeback feature requires blkcg membership before memcg,
// so blkio stays ahead of memory.
var subsystemOrder = []Name{
	Blkio,
	Mem,
	Pid,
	Cpuset,
	Cpu,
	Devices,
	Freezer,
	NetCLS,
	PerfEvent,
	NetPrio,
	Hugetlb,
	Rdma,
}

// subsystemOption maps a cgroup mount super-option to a subsystem name.
// Options such as "rw" or "name=systemd" are not subsystems.
func subsystemOption(opt string) (Name, bool) {
	name := Name(opt)
	for _, s := range subsystemOrder {
		if s == name {
			return name, true
		}
	}
	return "", false
}

// Controller is one subsystem of a cgroup node. Each variant owns exactly
// one directory and translates its slice of a Resources value into the
// subsystem's own file protocol.
type Controller interface {
	Name() Name
	// Path is the absolute directory this controller writes into.
	Path() string
	// Apply translates the relevant Resources subgroup into control file
	// writes. A controller whose subgroup is entirely unset performs no
	// file access.
	Apply(res *Resources) error
	// Stat parses the subsystem's statistics files into stats. Missing
	// optional files yield zero values, not errors.
	Stat(stats *Stats) error
	// AddProc writes pid into the controller's cgroup.procs file.
	AddProc(pid int) error
	// AddTask writes pid into the v1 tasks file; on the unified
	// hierarchy thread-level membership degrades to AddProc.
	AddTask(pid int) error
}

// controllerBase carries the directory and version switch every
// controller shares. It holds no cross-controller state.
type controllerBase struct {
	name Name
	dir  string
	v2   bool
}

func (c *controllerBase) Name() Name {
	return c.name
}

func (c *controllerBase) Path() string {
	return c.dir
}

func (c *controllerBase) AddProc(pid int) error {
	return writeValue(c.dir, cgroupProcs, strconv.Itoa(pid))
}

func (c *controllerBase) AddTask(pid int) error {
	file := cgroupTasks
	if c.v2 {
		file = cgroupProcs
	}
	return writeValue(c.dir, file, strconv.Itoa(pid))
}

func (c *controllerBase) create() error {
	return os.MkdirAll(c.dir, defaultDirPerm)
}

// newController builds the controller variant for name rooted at dir.
func newController(name Name, dir string, v2 bool) Controller {
	base := controllerBase{name: name, dir: dir, v2: v2}
	switch name {
	case Blkio:
		return &blkioController{base}
	case Mem:
		return &memoryController{base}
	case Pid:
		return &pidsController{base}
	case Cpuset:
		return &cpusetController{base}
	case Cpu:
		return &cpuController{base}
	case Devices:
		return &devicesController{base}
	case Freezer:
		return &freezerController{base}
	case NetCLS:
		return &netClsController{base}
	case NetPrio:
		return &netPrioController{base}
	case PerfEvent:
		return &perfEventController{base}
	case Hugetlb:
		return &hugetlbController{base}
	case Rdma:
		return &rdmaController{base}
	}
	return nil
}

// controllersFor instantiates one controller per subsystem the hierarchy
// supports, in application order, rooted at the given group path.
func controllersFor(h *Hierarchy, group string) []Controller {
	v2 := h.kind != Legacy
	var out []Controller
	for _, name := range h.subsystems {
		if c := newController(name, h.PathFor(name, group), v2); c != nil {
			out = append(out, c)
		}
	}
	return out
}
