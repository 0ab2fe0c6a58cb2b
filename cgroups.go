package cgroups

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// ErrNotCreated is returned when operations reach a delegated cgroup
// whose transient unit has not been started yet.
var ErrNotCreated = errors.New("cgroups: cgroup has not been created")

// Cgroup is one named node within a hierarchy: a composable set of
// per-subsystem controllers sharing a relative path. It holds no open
// file handles and performs no locking; concurrent writers to the same
// group coordinate externally.
type Cgroup struct {
	hierarchy *Hierarchy
	// name is the caller-chosen group path, or the unit name on a
	// delegated hierarchy.
	name string
	// path is the effective path relative to the hierarchy root. For
	// delegated groups it is only known once the init system has
	// created the unit and reported its control group back.
	path        string
	controllers []Controller
}

type creator interface {
	create() error
}

// New returns a descriptor for the named group. It touches no disk; the
// group may or may not exist yet. On a delegated hierarchy, name is the
// transient unit name (e.g. "app-abc.scope") and controllers resolve
// only after Create.
func New(h *Hierarchy, name string) (*Cgroup, error) {
	if h.kind == Delegated {
		if name == "" {
			return nil, ErrInvalidGroupPath
		}
		return &Cgroup{hierarchy: h, name: name}, nil
	}
	group, err := normalizeGroup(name)
	if err != nil {
		return nil, err
	}
	return &Cgroup{
		hierarchy:   h,
		name:        name,
		path:        group,
		controllers: controllersFor(h, group),
	}, nil
}

// Load opens an existing group without creating anything. On a delegated
// hierarchy the argument is the already-resolved control group path as
// reported by the init system, not the unit name.
func Load(h *Hierarchy, name string) (*Cgroup, error) {
	group, err := normalizeGroup(name)
	if err != nil {
		return nil, err
	}
	c := &Cgroup{
		hierarchy:   h,
		name:        name,
		path:        group,
		controllers: controllersFor(h, group),
	}
	for _, ctrl := range c.controllers {
		if _, err := os.Lstat(ctrl.Path()); err != nil {
			return nil, fmt.Errorf("cgroups: load %s: %w", name, err)
		}
	}
	return c, nil
}

// normalizeGroup validates a slash-delimited group path and returns it
// relative to the hierarchy root.
func normalizeGroup(g string) (string, error) {
	if g == "" {
		return "", ErrInvalidGroupPath
	}
	if !strings.HasPrefix(g, "/") {
		g = "/" + g
	}
	if filepath.Clean(g) != g || strings.HasPrefix(g, unifiedMountpoint) {
		return "", ErrInvalidGroupPath
	}
	return strings.TrimPrefix(g, "/"), nil
}

// Name returns the caller-chosen group path or unit name.
func (c *Cgroup) Name() string {
	return c.name
}

// RelativePath returns the group's path relative to the hierarchy root.
// Empty until a delegated group has been created.
func (c *Cgroup) RelativePath() string {
	if c.path == "" {
		return ""
	}
	return "/" + c.path
}

// Controller returns the named controller, or nil when the hierarchy
// does not support it.
func (c *Cgroup) Controller(name Name) Controller {
	for _, ctrl := range c.controllers {
		if ctrl.Name() == name {
			return ctrl
		}
	}
	return nil
}

// Create makes the group exist on disk: one mkdir per subsystem mount on
// legacy hierarchies, a single mkdir on the unified hierarchy, or a
// transient unit call on a delegated one. It is idempotent for the
// directory cases. A non-nil res is applied once the directories exist;
// on delegated hierarchies the resources are additionally offered to the
// init system as unit properties at creation time.
func (c *Cgroup) Create(res *Resources) error {
	if c.hierarchy.kind == Delegated {
		if err := c.createDelegated(res); err != nil {
			return err
		}
	} else {
		var merr *multierror.Error
		for _, ctrl := range c.controllers {
			if cr, ok := ctrl.(creator); ok {
				if err := cr.create(); err != nil {
					merr = multierror.Append(merr, controllerError(ctrl.Name(), ctrl.Path(), err))
				}
			}
		}
		if err := merr.ErrorOrNil(); err != nil {
			return err
		}
	}
	if res == nil {
		return nil
	}
	return c.Apply(res)
}

func (c *Cgroup) createDelegated(res *Resources) error {
	if c.path != "" {
		// The unit is already up; fall through to Apply for idempotency.
		return nil
	}
	path, err := c.hierarchy.systemd.Start(c.name, transientProperties(c.name, res))
	if err != nil {
		if isUnitExists(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, c.name)
		}
		return fmt.Errorf("%w: %s: %v", ErrDelegationFailed, c.name, err)
	}
	group, err := normalizeGroup(path)
	if err != nil {
		return fmt.Errorf("%w: unit %s reported control group %q", ErrDelegationFailed, c.name, path)
	}
	logrus.WithFields(logrus.Fields{
		"unit": c.name,
		"path": path,
	}).Debug("transient unit started")
	c.path = group
	c.controllers = controllersFor(c.hierarchy, group)
	return nil
}

// Apply dispatches res to every controller present in this group. A
// controller whose Resources subgroup is entirely unset performs no file
// access; subsystems this host does not support are skipped silently.
// Per-controller failures are aggregated rather than short-circuited so
// the caller sees the full blast radius of a partially applied set.
func (c *Cgroup) Apply(res *Resources) error {
	if res == nil {
		return nil
	}
	if c.controllers == nil {
		return ErrNotCreated
	}
	for _, name := range requestedSubsystems(res) {
		if !c.hierarchy.Supports(name) {
			logrus.WithFields(logrus.Fields{
				"group":     c.name,
				"subsystem": name,
			}).Debug("subsystem not present on this host, skipping")
		}
	}
	var merr *multierror.Error
	for _, ctrl := range c.controllers {
		if err := ctrl.Apply(res); err != nil {
			merr = multierror.Append(merr, controllerError(ctrl.Name(), ctrl.Path(), err))
		}
	}
	return merr.ErrorOrNil()
}

// AddProc writes pid into the group's cgroup.procs file on every
// subsystem mount, with the same aggregate-failure policy as Apply.
func (c *Cgroup) AddProc(pid int) error {
	return c.addMember(pid, Controller.AddProc)
}

// AddTask writes pid into the v1 tasks files; on unified hierarchies it
// is equivalent to AddProc.
func (c *Cgroup) AddTask(pid int) error {
	return c.addMember(pid, Controller.AddTask)
}

func (c *Cgroup) addMember(pid int, add func(Controller, int) error) error {
	if c.controllers == nil {
		return ErrNotCreated
	}
	var merr *multierror.Error
	seen := make(map[string]struct{}, len(c.controllers))
	for _, ctrl := range c.controllers {
		// All controllers share one directory on the unified hierarchy.
		if _, done := seen[ctrl.Path()]; done {
			continue
		}
		seen[ctrl.Path()] = struct{}{}
		if err := add(ctrl, pid); err != nil {
			merr = multierror.Append(merr, controllerError(ctrl.Name(), ctrl.Path(), err))
		}
	}
	return merr.ErrorOrNil()
}

// Stat reads every controller's statistics files into one snapshot.
// Controllers that fail to parse contribute to an aggregate error, but
// the snapshot still carries everything that was readable.
func (c *Cgroup) Stat() (*Stats, error) {
	if c.controllers == nil {
		return nil, ErrNotCreated
	}
	stats := &Stats{}
	var merr *multierror.Error
	for _, ctrl := range c.controllers {
		if err := ctrl.Stat(stats); err != nil {
			merr = multierror.Append(merr, controllerError(ctrl.Name(), ctrl.Path(), err))
		}
	}
	return stats, merr.ErrorOrNil()
}

// Processes lists the PIDs currently resident in the group.
func (c *Cgroup) Processes() ([]int, error) {
	if len(c.controllers) == 0 {
		return nil, ErrNotCreated
	}
	return readProcs(c.controllers[0].Path(), cgroupProcs)
}

// Freeze suspends every task in the group.
func (c *Cgroup) Freeze() error {
	return c.Apply(&Resources{Freezer: Frozen})
}

// Thaw resumes a frozen group.
func (c *Cgroup) Thaw() error {
	return c.Apply(&Resources{Freezer: Thawed})
}

// Delete removes the group: directories in reverse of creation order, or
// a unit stop on a delegated hierarchy. A kernel refusal because tasks
// or child groups remain surfaces as ErrBusy, never retried here; blind
// retries would mask caller bugs.
func (c *Cgroup) Delete() error {
	if c.hierarchy.kind == Delegated {
		if c.path == "" {
			return ErrNotCreated
		}
		if err := c.hierarchy.systemd.Stop(c.name); err != nil {
			return fmt.Errorf("%w: stop %s: %v", ErrDelegationFailed, c.name, err)
		}
		return nil
	}
	var merr *multierror.Error
	seen := make(map[string]struct{}, len(c.controllers))
	for i := len(c.controllers) - 1; i >= 0; i-- {
		ctrl := c.controllers[i]
		if _, done := seen[ctrl.Path()]; done {
			continue
		}
		seen[ctrl.Path()] = struct{}{}
		err := os.Remove(ctrl.Path())
		switch {
		case err == nil, os.IsNotExist(err):
		case isBusy(err):
			merr = multierror.Append(merr, fmt.Errorf("%w: %s", ErrBusy, ctrl.Path()))
		default:
			merr = multierror.Append(merr, controllerError(ctrl.Name(), ctrl.Path(), err))
		}
	}
	return merr.ErrorOrNil()
}

// requestedSubsystems names the subsystems a Resources value touches.
func requestedSubsystems(res *Resources) []Name {
	var names []Name
	if res.CPU != nil {
		names = append(names, Cpu)
		if res.CPU.Cpus != "" || res.CPU.Mems != "" {
			names = append(names, Cpuset)
		}
	}
	if res.Memory != nil {
		names = append(names, Mem)
	}
	if res.Pids != nil {
		names = append(names, Pid)
	}
	if res.BlkIO != nil {
		names = append(names, Blkio)
	}
	if len(res.Devices) > 0 {
		names = append(names, Devices)
	}
	if len(res.HugePages) > 0 {
		names = append(names, Hugetlb)
	}
	if res.Network != nil {
		if res.Network.ClassID != nil {
			names = append(names, NetCLS)
		}
		if len(res.Network.Priorities) > 0 {
			names = append(names, NetPrio)
		}
	}
	if res.Freezer != Unknown {
		names = append(names, Freezer)
	}
	if len(res.Rdma) > 0 {
		names = append(names, Rdma)
	}
	return names
}
