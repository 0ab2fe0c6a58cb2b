package cgroups

import (
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// FromSpec converts an already-decoded OCI resource block into the
// library's Resources value. Deserializing the OCI JSON itself stays
// with the caller; this only bridges the two shapes, field for field,
// preserving rule and throttle-entry order.
func FromSpec(spec *specs.LinuxResources) *Resources {
	if spec == nil {
		return &Resources{}
	}
	res := &Resources{}
	if c := spec.CPU; c != nil {
		cpu := &CPU{
			Shares:          c.Shares,
			Quota:           c.Quota,
			Period:          c.Period,
			RealtimeRuntime: c.RealtimeRuntime,
			RealtimePeriod:  c.RealtimePeriod,
			Cpus:            c.Cpus,
			Mems:            c.Mems,
		}
		res.CPU = cpu
	}
	if m := spec.Memory; m != nil {
		mem := &Memory{
			Limit:       m.Limit,
			SoftLimit:   m.Reservation,
			SwapLimit:   m.Swap,
			KernelLimit: m.Kernel, //nolint:staticcheck // deprecated upstream, still a v1 knob
			DisableOOM:  m.DisableOOMKiller,
		}
		if m.Swappiness != nil {
			s := *m.Swappiness
			mem.Swappiness = &s
		}
		res.Memory = mem
	}
	if p := spec.Pids; p != nil {
		res.Pids = &Pids{Max: p.Limit}
	}
	if b := spec.BlockIO; b != nil {
		blkio := &BlkIO{
			Weight:            b.Weight,
			ThrottleReadBps:   throttleFromSpec(b.ThrottleReadBpsDevice),
			ThrottleWriteBps:  throttleFromSpec(b.ThrottleWriteBpsDevice),
			ThrottleReadIOPS:  throttleFromSpec(b.ThrottleReadIOPSDevice),
			ThrottleWriteIOPS: throttleFromSpec(b.ThrottleWriteIOPSDevice),
		}
		res.BlkIO = blkio
	}
	for _, d := range spec.Devices {
		rule := DeviceRule{
			Allow:  d.Allow,
			Type:   DeviceType(d.Type),
			Major:  -1,
			Minor:  -1,
			Access: d.Access,
		}
		if d.Major != nil {
			rule.Major = *d.Major
		}
		if d.Minor != nil {
			rule.Minor = *d.Minor
		}
		res.Devices = append(res.Devices, rule)
	}
	for _, h := range spec.HugepageLimits {
		res.HugePages = append(res.HugePages, HugePage{
			PageSize: h.Pagesize,
			Limit:    h.Limit,
		})
	}
	if n := spec.Network; n != nil {
		net := &Network{ClassID: n.ClassID}
		for _, prio := range n.Priorities {
			net.Priorities = append(net.Priorities, NetPrioEntry{
				Interface: prio.Name,
				Priority:  prio.Priority,
			})
		}
		res.Network = net
	}
	if r := spec.Rdma; r != nil {
		for device, limit := range r {
			entry := RdmaEntry{Device: device}
			if limit.HcaHandles != nil {
				entry.HcaHandles = *limit.HcaHandles
			}
			if limit.HcaObjects != nil {
				entry.HcaObjects = *limit.HcaObjects
			}
			res.Rdma = append(res.Rdma, entry)
		}
	}
	return res
}

func throttleFromSpec(devices []specs.LinuxThrottleDevice) []ThrottleDevice {
	var out []ThrottleDevice
	for _, d := range devices {
		out = append(out, ThrottleDevice{
			Major: d.Major,
			Minor: d.Minor,
			Rate:  d.Rate,
		})
	}
	return out
}
