package cgroups

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustRead(t *testing.T, dir, file string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		t.Fatalf("read %s: %v", file, err)
	}
	return string(data)
}

// snapshotDir maps every regular file under dir to its content.
func snapshotDir(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out[path] = string(data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return out
}

func TestUnifiedEndToEnd(t *testing.T) {
	h, root := fakeUnified(t, "cpu memory pids")
	cg, err := New(h, "/test/group1")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := cg.Create(nil); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	dir := filepath.Join(root, "test/group1")
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("group directory missing: %v", err)
	}

	limit := int64(104857600)
	err = cg.Apply(&Resources{
		Memory: &Memory{Limit: &limit},
		Pids:   &Pids{Max: 50},
	})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if got := mustRead(t, dir, "memory.max"); got != "104857600" {
		t.Errorf("memory.max = %q, want %q", got, "104857600")
	}
	if got := mustRead(t, dir, "pids.max"); got != "50" {
		t.Errorf("pids.max = %q, want %q", got, "50")
	}
	// The cpu subsystem was supported but not requested: no cpu file
	// may exist.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "cpu") {
			t.Errorf("unexpected write to cpu file %s", e.Name())
		}
	}
}

func TestApplyEmptyResourcesWritesNothing(t *testing.T) {
	h, root := fakeUnified(t, "cpu memory pids")
	cg, err := New(h, "/empty")
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.Create(nil); err != nil {
		t.Fatal(err)
	}
	if err := cg.Apply(&Resources{}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(root, "empty"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("empty Resources touched %d files", len(entries))
	}
}

func TestApplyIdempotent(t *testing.T) {
	h, root := fakeUnified(t, "cpu memory pids")
	cg, err := New(h, "/idem")
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.Create(nil); err != nil {
		t.Fatal(err)
	}
	limit := int64(1 << 20)
	shares := uint64(512)
	res := &Resources{
		CPU:    &CPU{Shares: &shares},
		Memory: &Memory{Limit: &limit},
		Pids:   &Pids{Max: 10},
	}
	if err := cg.Apply(res); err != nil {
		t.Fatal(err)
	}
	first := snapshotDir(t, root)
	if err := cg.Apply(res); err != nil {
		t.Fatalf("second Apply error: %v", err)
	}
	second := snapshotDir(t, root)
	if len(first) != len(second) {
		t.Fatalf("second apply changed file count: %d != %d", len(first), len(second))
	}
	for path, content := range first {
		if second[path] != content {
			t.Errorf("%s changed between identical applies: %q != %q", path, content, second[path])
		}
	}
}

func TestApplySkipsUnsupportedSubsystem(t *testing.T) {
	// Only memory is mounted; a Resources value also asking for pids and
	// devices must apply the memory part and silently skip the rest.
	h, _ := fakeLegacy(t, Mem)
	cg, err := New(h, "/compat")
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.Create(nil); err != nil {
		t.Fatal(err)
	}
	limit := int64(4096)
	err = cg.Apply(&Resources{
		Memory:  &Memory{Limit: &limit},
		Pids:    &Pids{Max: 5},
		Devices: []DeviceRule{{Allow: true, Type: DeviceAll, Major: -1, Minor: -1, Access: "rwm"}},
	})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if !h.Supports(Mem) {
		t.Error("Supports(memory) = false after apply")
	}
	if h.Supports(Pid) {
		t.Error("Supports(pids) = true for unmounted subsystem")
	}
	got := mustRead(t, h.PathFor(Mem, "compat"), "memory.limit_in_bytes")
	if got != "4096" {
		t.Errorf("memory.limit_in_bytes = %q, want 4096", got)
	}
}

func TestApplyAggregatesFailures(t *testing.T) {
	// Point the memory and pids mounts at regular files so every write
	// fails with ENOTDIR; the error must name both subsystems instead
	// of stopping at the first.
	root := t.TempDir()
	for _, name := range []string{"memory", "pids"} {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h := NewLegacy(map[Name]string{
		Mem: filepath.Join(root, "memory"),
		Pid: filepath.Join(root, "pids"),
	})
	cg, err := New(h, "/broken")
	if err != nil {
		t.Fatal(err)
	}
	limit := int64(1)
	err = cg.Apply(&Resources{
		Memory: &Memory{Limit: &limit},
		Pids:   &Pids{Max: 1},
	})
	if err == nil {
		t.Fatal("Apply succeeded against file-backed mounts")
	}
	msg := err.Error()
	for _, want := range []string{"memory", "pids"} {
		if !strings.Contains(msg, want) {
			t.Errorf("aggregate error %q does not name %s", msg, want)
		}
	}
	var cerr *ControllerError
	if !errors.As(err, &cerr) {
		t.Errorf("aggregate error does not unwrap to *ControllerError: %v", err)
	}
}

func TestDeleteBusy(t *testing.T) {
	h, root := fakeUnified(t, "cpu memory pids")
	cg, err := New(h, "/busy")
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.Create(nil); err != nil {
		t.Fatal(err)
	}
	// A resident member makes rmdir fail the same way the kernel does.
	dir := filepath.Join(root, "busy")
	if err := os.Mkdir(filepath.Join(dir, "child"), 0o755); err != nil {
		t.Fatal(err)
	}
	err = cg.Delete()
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Delete error = %v, want ErrBusy", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("busy Delete removed the directory: %v", err)
	}
}

func TestDeleteEmptyGroup(t *testing.T) {
	h, root := fakeUnified(t, "cpu memory pids")
	cg, err := New(h, "/gone")
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.Create(nil); err != nil {
		t.Fatal(err)
	}
	if err := cg.Delete(); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "gone")); !os.IsNotExist(err) {
		t.Fatalf("group directory still present: %v", err)
	}
}

func TestDeleteLegacyRemovesEverySubsystemDir(t *testing.T) {
	h, _ := fakeLegacy(t, Mem, Pid, Cpu)
	cg, err := New(h, "/multi")
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.Create(nil); err != nil {
		t.Fatal(err)
	}
	if err := cg.Delete(); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	for _, name := range []Name{Mem, Pid, Cpu} {
		if _, err := os.Stat(h.PathFor(name, "multi")); !os.IsNotExist(err) {
			t.Errorf("%s directory still present", name)
		}
	}
}

func TestAddProcAndProcesses(t *testing.T) {
	h, root := fakeUnified(t, "cpu memory pids")
	cg, err := New(h, "/procs")
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.Create(nil); err != nil {
		t.Fatal(err)
	}
	if err := cg.AddProc(1234); err != nil {
		t.Fatalf("AddProc error: %v", err)
	}
	got := mustRead(t, filepath.Join(root, "procs"), cgroupProcs)
	if got != "1234" {
		t.Errorf("cgroup.procs = %q, want %q", got, "1234")
	}
	pids, err := cg.Processes()
	if err != nil {
		t.Fatalf("Processes error: %v", err)
	}
	if len(pids) != 1 || pids[0] != 1234 {
		t.Errorf("Processes = %v, want [1234]", pids)
	}
}

func TestAddTaskLegacyWritesTasksFile(t *testing.T) {
	h, _ := fakeLegacy(t, Cpu)
	cg, err := New(h, "/tasks")
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.Create(nil); err != nil {
		t.Fatal(err)
	}
	if err := cg.AddTask(42); err != nil {
		t.Fatalf("AddTask error: %v", err)
	}
	got := mustRead(t, h.PathFor(Cpu, "tasks"), cgroupTasks)
	if got != "42" {
		t.Errorf("tasks = %q, want %q", got, "42")
	}
}

func TestNewRejectsBadGroupPaths(t *testing.T) {
	h, _ := fakeUnified(t, "cpu")
	for _, bad := range []string{"", "/test/../escape", "/sys/fs/cgroup/test", "/test/"} {
		if _, err := New(h, bad); !errors.Is(err, ErrInvalidGroupPath) {
			t.Errorf("New(%q) error = %v, want ErrInvalidGroupPath", bad, err)
		}
	}
	if _, err := New(h, "relative/group"); err != nil {
		t.Errorf("New(relative/group) error = %v, want nil", err)
	}
}

func TestLoadMissingGroup(t *testing.T) {
	h, _ := fakeUnified(t, "cpu memory")
	if _, err := Load(h, "/absent"); err == nil {
		t.Fatal("Load of a nonexistent group succeeded")
	}
	cg, err := New(h, "/present")
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.Create(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(h, "/present"); err != nil {
		t.Fatalf("Load error: %v", err)
	}
}

func TestCreateWithInitialResources(t *testing.T) {
	h, root := fakeUnified(t, "cpu memory pids")
	cg, err := New(h, "/init")
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.Create(&Resources{Pids: &Pids{Max: 7}}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got := mustRead(t, filepath.Join(root, "init"), "pids.max"); got != "7" {
		t.Errorf("pids.max = %q, want 7", got)
	}
}
