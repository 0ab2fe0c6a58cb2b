package cgroups

import (
	"bufio"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = os.FileMode(0o644)

	cgroupProcs       = "cgroup.procs"
	cgroupTasks       = "tasks"
	cgroupControllers = "cgroup.controllers"

	unifiedMountpoint = "/sys/fs/cgroup"
)

// writeValue overwrites a control file with the kernel's expected text
// encoding. A write interrupted by EINTR is retried once.
func writeValue(dir, file, value string) error {
	path := filepath.Join(dir, file)
	err := os.WriteFile(path, []byte(value), defaultFilePerm)
	if errors.Is(err, unix.EINTR) {
		err = os.WriteFile(path, []byte(value), defaultFilePerm)
	}
	return err
}

// appendValue writes one command line to a command-style control file such
// as devices.allow. The kernel treats every write as a command and ignores
// the offset, so appending keeps the caller-provided rule order observable.
func appendValue(dir, file, value string) error {
	path := filepath.Join(dir, file)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return err
	}
	_, err = f.WriteString(value + "\n")
	if err1 := f.Close(); err == nil {
		err = err1
	}
	return err
}

func readValue(dir, file string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readUint reads a single numeric control file. A missing file yields
// zero, mirroring kernels that omit optional counters.
func readUint(dir, file string) (uint64, error) {
	v, err := readValue(dir, file)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return parseUint(v, file)
}

// parseUint understands the sentinels the kernel uses for unlimited
// values: "max" on the unified hierarchy and -1 on legacy hierarchies.
func parseUint(s, file string) (uint64, error) {
	if s == "max" {
		return math.MaxUint64, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		i, ierr := strconv.ParseInt(s, 10, 64)
		if ierr != nil || i >= 0 {
			return 0, parseError(file, s)
		}
		return math.MaxUint64, nil
	}
	return v, nil
}

func readInt(dir, file string) (int64, error) {
	v, err := readValue(dir, file)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if v == "max" {
		return math.MaxInt64, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, parseError(file, v)
	}
	return i, nil
}

// readKV parses a key-space-value statistics file such as cpu.stat or
// memory.oom_control into a flat map. A missing file yields an empty map.
func readKV(dir, file string) (map[string]uint64, error) {
	f, err := os.Open(filepath.Join(dir, file))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]uint64{}, nil
		}
		return nil, err
	}
	defer f.Close()

	out := make(map[string]uint64)
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		key, value, ok := strings.Cut(line, " ")
		if !ok {
			return nil, parseError(file, line)
		}
		v, err := parseUint(value, file)
		if err != nil {
			return nil, parseError(file, line)
		}
		out[key] = v
	}
	return out, s.Err()
}

// readProcs returns the PIDs listed in a membership file.
func readProcs(dir, file string) ([]int, error) {
	f, err := os.Open(filepath.Join(dir, file))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pids []int
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, parseError(file, line)
		}
		pids = append(pids, pid)
	}
	return pids, s.Err()
}

// splitDeviceNumber parses a "major:minor" pair.
func splitDeviceNumber(s string) (int64, int64, error) {
	maj, min, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, errors.New("missing colon")
	}
	major, err := parseDeviceNumber(maj)
	if err != nil {
		return 0, 0, err
	}
	minor, err := parseDeviceNumber(min)
	if err != nil {
		return 0, 0, err
	}
	return major, minor, nil
}

func parseDeviceNumber(s string) (int64, error) {
	if s == "*" {
		return -1, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func isBusy(err error) bool {
	return errors.Is(err, unix.EBUSY) || errors.Is(err, unix.ENOTEMPTY)
}
