package cgroups

import (
	"os"
	"strings"
)

const (
	legacyStateFile   = "freezer.state"
	unifiedFreezeFile = "cgroup.freeze"
)

type freezerController struct {
	controllerBase
}

func (f *freezerController) Apply(res *Resources) error {
	switch res.Freezer {
	case Frozen:
		return f.write(true)
	case Thawed:
		return f.write(false)
	}
	return nil
}

func (f *freezerController) write(freeze bool) error {
	if f.v2 {
		v := "0"
		if freeze {
			v = "1"
		}
		return writeValue(f.dir, unifiedFreezeFile, v)
	}
	v := "THAWED"
	if freeze {
		v = "FROZEN"
	}
	return writeValue(f.dir, legacyStateFile, v)
}

func (f *freezerController) Stat(stats *Stats) error {
	state, err := f.state()
	if err != nil {
		return err
	}
	stats.Freezer = state
	return nil
}

func (f *freezerController) state() (State, error) {
	if f.v2 {
		v, err := readValue(f.dir, unifiedFreezeFile)
		if err != nil {
			if os.IsNotExist(err) {
				return Unknown, nil
			}
			return Unknown, err
		}
		switch v {
		case "1":
			return Frozen, nil
		case "0":
			return Thawed, nil
		}
		return Unknown, nil
	}
	v, err := readValue(f.dir, legacyStateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return Unknown, nil
		}
		return Unknown, err
	}
	// FREEZING means the kernel is still converging on FROZEN.
	switch strings.ToUpper(v) {
	case "FROZEN", "FREEZING":
		return Frozen, nil
	case "THAWED":
		return Thawed, nil
	}
	return Unknown, nil
}
