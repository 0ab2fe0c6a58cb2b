package cgroups

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/sys/mountinfo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Kind tells how cgroups are laid out on the host. It is immutable once
// a Hierarchy has been constructed.
type Kind int

const (
	// Legacy is cgroup v1: one mount per subsystem.
	Legacy Kind = iota
	// Unified is cgroup v2: a single mount with controllers enabled
	// through cgroup.controllers.
	Unified
	// Delegated is cgroup v2 managed through transient units of a
	// running init system.
	Delegated
)

func (k Kind) String() string {
	switch k {
	case Legacy:
		return "legacy"
	case Unified:
		return "unified"
	case Delegated:
		return "delegated"
	}
	return "unknown"
}

// Hierarchy describes the cgroup mount layout of the host. It performs no
// I/O after construction and may be shared across any number of Cgroup
// descriptors.
type Hierarchy struct {
	kind       Kind
	root       string
	mounts     map[Name]string
	subsystems []Name
	systemd    UnitStarter
}

// Detect inspects the mount table and models whichever cgroup layout the
// host exposes. A unified mount wins over legacy per-subsystem mounts.
// It fails with ErrMountPointNotExist only when neither layout is found.
func Detect() (*Hierarchy, error) {
	if IsUnifiedMode() {
		return NewUnified(unifiedMountpoint)
	}
	mounts, err := mountinfo.GetMounts(mountinfo.FSTypeFilter("cgroup", "cgroup2"))
	if err != nil {
		return nil, fmt.Errorf("cgroups: reading mount table: %w", err)
	}
	return fromMounts(mounts)
}

func fromMounts(mounts []*mountinfo.Info) (*Hierarchy, error) {
	legacy := make(map[Name]string)
	for _, m := range mounts {
		switch m.FSType {
		case "cgroup2":
			return NewUnified(m.Mountpoint)
		case "cgroup":
			for _, opt := range strings.Split(m.VFSOptions, ",") {
				if name, ok := subsystemOption(opt); ok {
					if _, dup := legacy[name]; !dup {
						legacy[name] = m.Mountpoint
					}
				}
			}
		}
	}
	if len(legacy) == 0 {
		return nil, ErrMountPointNotExist
	}
	return NewLegacy(legacy), nil
}

// NewLegacy builds a v1 hierarchy from explicit per-subsystem mountpoints.
// Subsystems absent from mounts are simply unsupported.
func NewLegacy(mounts map[Name]string) *Hierarchy {
	h := &Hierarchy{
		kind:   Legacy,
		mounts: make(map[Name]string, len(mounts)),
	}
	for _, name := range subsystemOrder {
		if mp, ok := mounts[name]; ok {
			h.mounts[name] = mp
			h.subsystems = append(h.subsystems, name)
			if h.root == "" {
				h.root = filepath.Dir(mp)
			}
		}
	}
	return h
}

// NewUnified builds a v2 hierarchy rooted at the given mountpoint,
// reading the enabled controller set from cgroup.controllers. The freezer
// is core functionality in v2 rather than a listed controller, so it is
// always present.
func NewUnified(root string) (*Hierarchy, error) {
	data, err := os.ReadFile(filepath.Join(root, cgroupControllers))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMountPointNotExist, root)
	}
	h := &Hierarchy{
		kind: Unified,
		root: root,
	}
	enabled := map[Name]bool{Freezer: true}
	for _, c := range strings.Fields(string(data)) {
		name := Name(c)
		if name == IO {
			name = Blkio
		}
		enabled[name] = true
	}
	for _, name := range subsystemOrder {
		if enabled[name] {
			h.subsystems = append(h.subsystems, name)
		}
	}
	return h, nil
}

// NewDelegated builds a v2 hierarchy whose cgroups are created through
// transient units of the init system instead of direct mkdir calls. Only
// path resolution differs from Unified; controller I/O is shared.
func NewDelegated(root string, starter UnitStarter) (*Hierarchy, error) {
	h, err := NewUnified(root)
	if err != nil {
		return nil, err
	}
	h.kind = Delegated
	h.systemd = starter
	return h, nil
}

// Kind returns the detected layout.
func (h *Hierarchy) Kind() Kind {
	return h.kind
}

// Subsystems returns the subsystems available on this hierarchy in
// application order.
func (h *Hierarchy) Subsystems() []Name {
	out := make([]Name, len(h.subsystems))
	copy(out, h.subsystems)
	return out
}

// Supports answers whether resources for the named subsystem would
// actually be applied on this host. Apply silently skips unsupported
// subsystems; this is the query that makes the skip observable.
func (h *Hierarchy) Supports(name Name) bool {
	for _, s := range h.subsystems {
		if s == name {
			return true
		}
	}
	return false
}

// PathFor computes the absolute on-disk directory for a subsystem and a
// relative group path. It performs no I/O and cannot fail; callers filter
// unsupported subsystems through Supports beforehand.
func (h *Hierarchy) PathFor(name Name, group string) string {
	if h.kind == Legacy {
		if mp, ok := h.mounts[name]; ok {
			return filepath.Join(mp, group)
		}
		return filepath.Join(h.root, string(name), group)
	}
	return filepath.Join(h.root, group)
}

// IsUnifiedMode reports whether the default mountpoint carries a cgroup2
// superblock, the same probe systemd itself uses.
func IsUnifiedMode() bool {
	var st unix.Statfs_t
	if err := unix.Statfs(unifiedMountpoint, &st); err != nil {
		logrus.WithError(err).Debugf("statfs %s", unifiedMountpoint)
		return false
	}
	return st.Type == unix.CGROUP2_SUPER_MAGIC
}
