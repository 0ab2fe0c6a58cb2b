package cgroups

import (
	"errors"
	"fmt"
)

var (
	// ErrMountPointNotExist is returned by Detect when neither a legacy
	// nor a unified cgroup mount can be found on the host.
	ErrMountPointNotExist = errors.New("cgroups: cgroup mountpoint does not exist")
	// ErrControllerNotActive is returned when a controller is not supported or enabled
	ErrControllerNotActive = errors.New("cgroups: controller is not supported")
	// ErrInvalidFormat is returned when a statistics file does not match
	// its documented line format
	ErrInvalidFormat = errors.New("cgroups: parsing file with invalid format failed")
	// ErrInvalidGroupPath is returned for group paths that are not clean,
	// absolute and rooted below the hierarchy mountpoint
	ErrInvalidGroupPath = errors.New("cgroups: invalid group path")
	// ErrBusy is returned by Delete when the kernel refuses to remove a
	// cgroup that still has member tasks or child cgroups
	ErrBusy = errors.New("cgroups: cgroup still has tasks or children")
	// ErrDelegationFailed is returned when the transient unit call to the
	// init system fails and the cgroup was left uncreated
	ErrDelegationFailed = errors.New("cgroups: transient unit delegation failed")
	// ErrAlreadyExists is returned when a transient unit name collides
	// with a unit the init system already runs
	ErrAlreadyExists = errors.New("cgroups: unit already exists")
	// ErrNotDelegated is returned when transient unit operations are
	// requested on a hierarchy that was not set up for delegation
	ErrNotDelegated = errors.New("cgroups: hierarchy is not delegated")
)

// ControllerError attaches the failing subsystem and its directory to a
// controller-level failure so aggregated apply errors remain diagnosable.
type ControllerError struct {
	Subsystem Name
	Path      string
	Err       error
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("cgroups: %s controller at %s: %v", e.Subsystem, e.Path, e.Err)
}

func (e *ControllerError) Unwrap() error {
	return e.Err
}

func controllerError(name Name, path string, err error) error {
	if err == nil {
		return nil
	}
	return &ControllerError{
		Subsystem: name,
		Path:      path,
		Err:       err,
	}
}

func parseError(file, line string) error {
	return fmt.Errorf("%w: %s: %q", ErrInvalidFormat, file, line)
}
