package update

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/adamancini/hoist/internal/process"
	"github.com/adamancini/hoist/internal/sentinel"
	"github.com/adamancini/hoist/internal/version"
)

// fakeProcs is a process.Controller that never touches real processes.
type fakeProcs struct {
	mu           sync.Mutex
	running      map[int32]string // pid -> executable
	terminated   []int32
	terminateErr error
	spawned      []spawnCall
	spawnErr     error
}

type spawnCall struct {
	exe  string
	args []string
}

var _ process.Controller = (*fakeProcs)(nil)

func newFakeProcs() *fakeProcs {
	return &fakeProcs{running: make(map[int32]string)}
}

func (f *fakeProcs) RunningUnder(_ context.Context, dir string) ([]int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pids []int32
	for pid, exe := range f.running {
		if process.IsSubpath(dir, exe) {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (f *fakeProcs) TerminateAndWait(_ context.Context, pids []int32, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminateErr != nil {
		return f.terminateErr
	}
	for _, pid := range pids {
		delete(f.running, pid)
		f.terminated = append(f.terminated, pid)
	}
	return nil
}

func (f *fakeProcs) SpawnDetached(exe string, args []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spawnErr != nil {
		return f.spawnErr
	}
	f.spawned = append(f.spawned, spawnCall{exe: exe, args: args})
	return nil
}

// newTestManager opens a manager on wd that runs from outside of it and
// uses procs for process control.
func newTestManager(t *testing.T, wd, current string, procs *fakeProcs, opts ...ManagerOption) *Manager {
	t.Helper()
	base := []ManagerOption{
		WithExecutablePath(""),
		WithProcessController(procs),
	}
	m, err := NewManager(wd, version.MustParse(current), append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// installDir creates wd/name with files and, unless sentinelVersion is
// empty, a sentinel for that version.
func installDir(t *testing.T, wd, name, sentinelVersion string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(wd, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if sentinelVersion != "" {
		if err := sentinel.Write(dir, version.MustParse(sentinelVersion)); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return string(data)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
