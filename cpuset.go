package cgroups

import "os"

// cpusetController consumes the Cpus and Mems fields of the CPU group.
// The filenames are the same on both hierarchy versions.
type cpusetController struct {
	controllerBase
}

func (c *cpusetController) Apply(res *Resources) error {
	cpu := res.CPU
	if cpu == nil {
		return nil
	}
	if cpu.Cpus != "" {
		if err := writeValue(c.dir, "cpuset.cpus", cpu.Cpus); err != nil {
			return err
		}
	}
	if cpu.Mems != "" {
		if err := writeValue(c.dir, "cpuset.mems", cpu.Mems); err != nil {
			return err
		}
	}
	return nil
}

func (c *cpusetController) Stat(stats *Stats) error {
	if stats.CPU == nil {
		stats.CPU = &CPUStat{}
	}
	cpus, err := readValue(c.dir, "cpuset.cpus")
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	mems, err := readValue(c.dir, "cpuset.mems")
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	stats.CPU.Cpus = cpus
	stats.CPU.Mems = mems
	return nil
}
