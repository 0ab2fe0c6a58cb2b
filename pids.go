package cgroups

import "strconv"

type pidsController struct {
	controllerBase
}

func (p *pidsController) Apply(res *Resources) error {
	pids := res.Pids
	if pids == nil {
		return nil
	}
	// pids.max has the same name and encoding on both hierarchies.
	limit := "max"
	if pids.Max > 0 {
		limit = strconv.FormatInt(pids.Max, 10)
	}
	return writeValue(p.dir, "pids.max", limit)
}

func (p *pidsController) Stat(stats *Stats) error {
	current, err := readUint(p.dir, "pids.current")
	if err != nil {
		return err
	}
	max, err := readUint(p.dir, "pids.max")
	if err != nil {
		return err
	}
	stats.Pids = &PidsStat{
		Current: current,
		Limit:   max,
	}
	return nil
}
