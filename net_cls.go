package cgroups

import "strconv"

// netClsController tags packets of member tasks with a class identifier.
// v1 only.
type netClsController struct {
	controllerBase
}

func (n *netClsController) Apply(res *Resources) error {
	net := res.Network
	if net == nil || net.ClassID == nil {
		return nil
	}
	return writeValue(n.dir, "net_cls.classid", strconv.FormatUint(uint64(*net.ClassID), 10))
}

func (n *netClsController) Stat(stats *Stats) error {
	classid, err := readUint(n.dir, "net_cls.classid")
	if err != nil {
		return err
	}
	stats.NetCls = &NetClsStat{
		ClassID: uint32(classid),
	}
	return nil
}
