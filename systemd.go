package cgroups

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

// UnitStarter is the transient-unit surface of the init system. The wire
// protocol itself belongs to the dbus client; this interface only models
// the two calls the delegated backend consumes, which also keeps tests
// honest without a running bus.
type UnitStarter interface {
	// Start creates a transient unit and returns the control group path
	// the init system assigned to it, relative to the hierarchy root.
	Start(name string, properties []systemdDbus.Property) (string, error)
	// Stop removes the unit.
	Stop(name string) error
}

// DetectDelegated connects to the system bus and returns a Delegated
// hierarchy over the default unified mountpoint. It fails when the host
// is not in unified mode or systemd is not running.
func DetectDelegated() (*Hierarchy, error) {
	if !IsUnifiedMode() {
		return nil, fmt.Errorf("%w: delegation requires the unified hierarchy", ErrMountPointNotExist)
	}
	if !isRunningSystemd() {
		return nil, fmt.Errorf("%w: systemd is not running", ErrDelegationFailed)
	}
	conn, err := systemdDbus.NewWithContext(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDelegationFailed, err)
	}
	return NewDelegated(unifiedMountpoint, &systemdClient{conn: conn})
}

// isRunningSystemd mirrors sd_booted(3): systemd mounts a tmpfs at
// /run/systemd/system early during boot.
func isRunningSystemd() bool {
	fi, err := os.Lstat("/run/systemd/system")
	if err != nil {
		return false
	}
	return fi.IsDir()
}

type systemdClient struct {
	conn *systemdDbus.Conn
}

func (s *systemdClient) Start(name string, properties []systemdDbus.Property) (string, error) {
	ctx := context.Background()
	ch := make(chan string, 1)
	if _, err := s.conn.StartTransientUnitContext(ctx, name, "replace", properties, ch); err != nil {
		return "", err
	}
	if result := <-ch; result != "done" {
		return "", fmt.Errorf("start transient unit %s: job %s", name, result)
	}
	// The unit's ControlGroup property is authoritative for where the
	// kernel placed it; never reconstruct the path from the unit name.
	prop, err := s.conn.GetUnitTypePropertyContext(ctx, name, unitType(name), "ControlGroup")
	if err != nil {
		return "", err
	}
	path, ok := prop.Value.Value().(string)
	if !ok || path == "" {
		return "", fmt.Errorf("unit %s reported no control group", name)
	}
	return path, nil
}

func (s *systemdClient) Stop(name string) error {
	ctx := context.Background()
	ch := make(chan string, 1)
	if _, err := s.conn.StopUnitContext(ctx, name, "replace", ch); err != nil {
		return err
	}
	if result := <-ch; result != "done" {
		return fmt.Errorf("stop transient unit %s: job %s", name, result)
	}
	return nil
}

func unitType(name string) string {
	if strings.HasSuffix(name, ".slice") {
		return "Slice"
	}
	return "Scope"
}

func newProp(name string, units interface{}) systemdDbus.Property {
	return systemdDbus.Property{
		Name:  name,
		Value: dbus.MakeVariant(units),
	}
}

// transientProperties translates the slice of a Resources value systemd
// can set at unit creation time into dbus properties. Knobs systemd has
// no property for are applied through the controller files afterwards.
func transientProperties(name string, res *Resources) []systemdDbus.Property {
	properties := []systemdDbus.Property{
		systemdDbus.PropDescription("cgroups transient unit " + name),
		newProp("DefaultDependencies", false),
		newProp("MemoryAccounting", true),
		newProp("CPUAccounting", true),
		newProp("TasksAccounting", true),
		newProp("IOAccounting", true),
	}
	if strings.HasSuffix(name, ".slice") {
		properties = append(properties, systemdDbus.PropWants("system.slice"))
	} else {
		// Scopes always support delegation.
		properties = append(properties,
			systemdDbus.PropSlice("system.slice"),
			newProp("Delegate", true),
		)
	}
	if res == nil {
		return properties
	}
	if mem := res.Memory; mem != nil {
		if mem.Limit != nil && *mem.Limit > 0 {
			properties = append(properties, newProp("MemoryMax", uint64(*mem.Limit)))
		}
		if mem.SoftLimit != nil && *mem.SoftLimit > 0 {
			properties = append(properties, newProp("MemoryLow", uint64(*mem.SoftLimit)))
		}
	}
	if pids := res.Pids; pids != nil && pids.Max > 0 {
		properties = append(properties, newProp("TasksMax", uint64(pids.Max)))
	}
	if cpu := res.CPU; cpu != nil {
		if cpu.Shares != nil {
			properties = append(properties, newProp("CPUWeight", sharesToWeight(*cpu.Shares)))
		}
		if cpu.Quota != nil && cpu.Period != nil && *cpu.Period != 0 {
			// systemd expects microseconds of CPU per wall second,
			// rounded up to 10ms so children can still express the
			// quota they were promised.
			quotaPerSec := uint64(math.MaxUint64)
			if *cpu.Quota > 0 {
				quotaPerSec = uint64(*cpu.Quota*1000000) / *cpu.Period
				if quotaPerSec%10000 != 0 {
					quotaPerSec = ((quotaPerSec / 10000) + 1) * 10000
				}
			}
			properties = append(properties, newProp("CPUQuotaPerSecUSec", quotaPerSec))
		}
		// AllowedCPUs/AllowedMemoryNodes want a bitmask encoding; the
		// cpuset files are written directly after creation instead.
	}
	if blkio := res.BlkIO; blkio != nil && blkio.Weight != nil {
		properties = append(properties, newProp("IOWeight", uint64(*blkio.Weight)))
	}
	logrus.WithField("unit", name).Debugf("transient unit carries %d properties", len(properties))
	return properties
}

// isUnitExists recognizes the bus error systemd raises on a unit name
// collision.
func isUnitExists(err error) bool {
	var derr dbus.Error
	if errors.As(err, &derr) {
		return derr.Name == "org.freedesktop.systemd1.UnitExists"
	}
	return false
}
