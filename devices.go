package cgroups

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// devicesController implements the v1 device whitelist. The unified
// hierarchy replaced the file interface with BPF programs, so this
// controller never appears in a Unified hierarchy's supported set.
type devicesController struct {
	controllerBase
}

func (d *devicesController) Apply(res *Resources) error {
	// Device cgroup semantics are order sensitive: a later rule can
	// widen or narrow what an earlier one established, so rules go out
	// strictly in caller order.
	for _, rule := range res.Devices {
		file := "devices.deny"
		if rule.Allow {
			file = "devices.allow"
		}
		if err := appendValue(d.dir, file, rule.String()); err != nil {
			return err
		}
	}
	return nil
}

func (d *devicesController) Stat(stats *Stats) error {
	f, err := os.Open(filepath.Join(d.dir, "devices.list"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		rule, err := parseDeviceRule(line)
		if err != nil {
			return err
		}
		stats.Devices = append(stats.Devices, rule)
	}
	return s.Err()
}

// parseDeviceRule parses one devices.list line, e.g. "c 1:3 rwm".
func parseDeviceRule(line string) (DeviceRule, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return DeviceRule{}, parseError("devices.list", line)
	}
	devtype := DeviceType(fields[0])
	switch devtype {
	case DeviceAll, DeviceChar, DeviceBlock:
	default:
		return DeviceRule{}, parseError("devices.list", line)
	}
	major, minor, err := splitDeviceNumber(fields[1])
	if err != nil {
		return DeviceRule{}, parseError("devices.list", line)
	}
	for _, c := range fields[2] {
		if c != 'r' && c != 'w' && c != 'm' {
			return DeviceRule{}, parseError("devices.list", line)
		}
	}
	return DeviceRule{
		// devices.list enumerates what is allowed.
		Allow:  true,
		Type:   devtype,
		Major:  major,
		Minor:  minor,
		Access: fields[2],
	}, nil
}
