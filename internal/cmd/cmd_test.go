package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adamancini/hoist/internal/sentinel"
	"github.com/adamancini/hoist/internal/update"
	"github.com/adamancini/hoist/internal/version"
)

// fakeProcs reports busy pids for the first busyCalls lookups and records
// spawned executables.
type fakeProcs struct {
	mu        sync.Mutex
	busyCalls int
	calls     int
	spawned   []string
}

func (p *fakeProcs) RunningUnder(context.Context, string) ([]int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.busyCalls {
		return []int32{42}, nil
	}
	return nil, nil
}

func (p *fakeProcs) TerminateAndWait(context.Context, []int32, time.Duration) error { return nil }

func (p *fakeProcs) SpawnDetached(exe string, args []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spawned = append(p.spawned, strings.Join(append([]string{exe}, args...), " "))
	return nil
}

const cmdHoistfile = `version: 1
app:
  name: notes
  version: "1.0"
  executable: notes
source:
  type: static
  version: "1.1"
  url: %s/notes-1.1.zip
download:
  filename_pattern: 'notes-.*\.zip'
`

type testEnv struct {
	config  string
	workDir string
	procs   *fakeProcs
	client  *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("notes")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("notes 1.1")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	archive := buf.Bytes()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notes-1.1.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	config := filepath.Join(dir, "Hoistfile")
	if err := os.WriteFile(config, []byte(fmt.Sprintf(cmdHoistfile, srv.URL)), 0o644); err != nil {
		t.Fatal(err)
	}
	return &testEnv{
		config:  config,
		workDir: filepath.Join(dir, "work"),
		procs:   &fakeProcs{},
		client:  srv.Client(),
	}
}

// run executes one command line against the environment.
func (e *testEnv) run(t *testing.T, terminal bool, stdin string, args ...string) (string, error) {
	t.Helper()

	noExe := ""
	opts := newRootOptions()
	opts.runtime.Processes = e.procs
	opts.runtime.HTTPClient = e.client
	opts.runtime.Executable = &noExe
	opts.isTerminal = func() bool { return terminal }

	root := newRootCmd(opts, buildInfo{version: "dev"})
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.config, "--workdir", e.workDir, "-q"}, args...))

	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (e *testEnv) runJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	out, err := e.run(t, false, "", append(args, "-o", "json")...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	var res map[string]any
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("%v: invalid json %q: %v", args, out, err)
	}
	return res
}

func installVersion(t *testing.T, dir, v string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes"), []byte("notes "+v), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := sentinel.Write(dir, version.MustParse(v)); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateLifecycle(t *testing.T) {
	e := newTestEnv(t)

	if res := e.runJSON(t, "check"); res["state"] != "new_version_available" || res["latest"] != "1.1" {
		t.Fatalf("check = %v", res)
	}

	res := e.runJSON(t, "update")
	if res["installed"] != true || res["version"] != "1.1" {
		t.Fatalf("update = %v", res)
	}
	if _, ok := sentinel.Read(filepath.Join(e.workDir, "1.1")); !ok {
		t.Fatal("update directory has no sentinel")
	}

	if res := e.runJSON(t, "check"); res["state"] != "update_already_installed" {
		t.Errorf("check after update = %v", res)
	}
	if res := e.runJSON(t, "update"); res["installed"] != false {
		t.Errorf("second update = %v", res)
	}
	if res := e.runJSON(t, "status"); res["update"] != "1.1" || res["locked"] != true {
		t.Errorf("status = %v", res)
	}

	if res := e.runJSON(t, "apply"); res["applied"] != true || res["version"] != "1.1" {
		t.Fatalf("apply = %v", res)
	}
	data, err := os.ReadFile(filepath.Join(e.workDir, update.DefaultLatestDirectory, "notes"))
	if err != nil || string(data) != "notes 1.1" {
		t.Fatalf("latest executable = %q, %v", data, err)
	}

	if _, err := e.run(t, false, "", "start", "--", "--safe-mode"); err != nil {
		t.Fatalf("start: %v", err)
	}
	want := filepath.Join(e.workDir, update.DefaultLatestDirectory, "notes") + " --safe-mode"
	if len(e.procs.spawned) != 1 || e.procs.spawned[0] != want {
		t.Errorf("spawned = %v, want [%s]", e.procs.spawned, want)
	}
}

func TestRunAppliesThenStarts(t *testing.T) {
	e := newTestEnv(t)
	installVersion(t, filepath.Join(e.workDir, update.DefaultLatestDirectory), "1.0")
	installVersion(t, filepath.Join(e.workDir, "1.1"), "1.1")
	e.procs.busyCalls = 2

	res := e.runJSON(t, "run", "--wait", "5s")
	if res["applied"] != true || res["version"] != "1.1" {
		t.Fatalf("run = %v", res)
	}
	if len(e.procs.spawned) != 1 {
		t.Errorf("spawned = %v, want one start", e.procs.spawned)
	}
}

func TestRunStartsInstalledVersionWhenApplyFails(t *testing.T) {
	e := newTestEnv(t)
	installVersion(t, filepath.Join(e.workDir, update.DefaultLatestDirectory), "1.0")
	installVersion(t, filepath.Join(e.workDir, "1.1"), "1.1")
	e.procs.busyCalls = 1000

	res := e.runJSON(t, "run", "--wait", "0s")
	if res["applied"] != false {
		t.Errorf("run = %v, want nothing applied", res)
	}
	if len(e.procs.spawned) != 1 {
		t.Errorf("spawned = %v, want the installed version started", e.procs.spawned)
	}
	if _, ok := sentinel.Read(filepath.Join(e.workDir, "1.1")); !ok {
		t.Error("update directory should still be waiting")
	}
}

func TestPruneAndUnlink(t *testing.T) {
	e := newTestEnv(t)
	installVersion(t, filepath.Join(e.workDir, update.DefaultLatestDirectory), "1.0")
	installVersion(t, filepath.Join(e.workDir, "0.9"), "0.9")
	installVersion(t, filepath.Join(e.workDir, "1.1"), "1.1")

	// Declining on a terminal keeps everything.
	out, err := e.run(t, true, "n\n", "prune")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "aborted") {
		t.Errorf("prune output = %q, want aborted", out)
	}
	if _, err := os.Stat(filepath.Join(e.workDir, "0.9")); err != nil {
		t.Fatalf("0.9 should survive an aborted prune: %v", err)
	}

	res := e.runJSON(t, "prune")
	if removed, _ := res["removed"].([]any); len(removed) != 1 || removed[0] != "0.9" {
		t.Errorf("prune = %v, want [0.9] removed", res)
	}
	if _, err := os.Stat(filepath.Join(e.workDir, "1.1")); err != nil {
		t.Errorf("pending update should survive prune: %v", err)
	}

	if _, err := e.run(t, false, "", "unlink"); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Errorf("unlink without a terminal error = %v, want --yes hint", err)
	}

	res = e.runJSON(t, "unlink", "--yes")
	if removed, _ := res["removed"].([]any); len(removed) != 2 {
		t.Errorf("unlink = %v, want two entries removed", res)
	}
	for _, name := range []string{update.DefaultLatestDirectory, "1.1"} {
		if _, err := os.Stat(filepath.Join(e.workDir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should have been unlinked", name)
		}
	}
}

func TestLauncherArgs(t *testing.T) {
	e := newTestEnv(t)
	installVersion(t, filepath.Join(e.workDir, update.DefaultLatestDirectory), "1.0")

	opts := newRootOptions()
	noExe := ""
	opts.runtime.Processes = e.procs
	opts.runtime.Executable = &noExe

	// Flag values are bound when the command is built, so set them by parsing.
	root := newRootCmd(opts, buildInfo{version: "dev"})
	root.SetErr(&bytes.Buffer{})
	if err := root.ParseFlags([]string{"--config", e.config, "--workdir", e.workDir, "--verbose"}); err != nil {
		t.Fatal(err)
	}
	a, err := opts.load(root)
	if err != nil {
		t.Fatal(err)
	}
	m, err := a.manager()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Close() }()

	got := strings.Join(a.launcherArgs(m, []string{"file.txt"}), " ")
	want := "--config " + e.config + " --workdir " + e.workDir + " --app-version 1.0 --verbose -- file.txt"
	if got != want {
		t.Errorf("launcherArgs() = %q, want %q", got, want)
	}
}

func TestMissingHoistfile(t *testing.T) {
	e := newTestEnv(t)
	e.config = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := e.run(t, false, "", "status"); err == nil {
		t.Error("status with a missing Hoistfile should fail")
	}
}

func TestApplyNoKill(t *testing.T) {
	e := newTestEnv(t)
	installVersion(t, filepath.Join(e.workDir, update.DefaultLatestDirectory), "1.0")
	installVersion(t, filepath.Join(e.workDir, "1.1"), "1.1")
	e.procs.busyCalls = 1

	_, err := e.run(t, false, "", "apply", "--no-kill")
	if !errors.Is(err, update.ErrProcessesRunning) {
		t.Errorf("apply --no-kill error = %v, want ErrProcessesRunning", err)
	}
}

func TestVersionCommand(t *testing.T) {
	opts := newRootOptions()
	root := newRootCmd(opts, buildInfo{version: "1.2.3", commit: "abc123", date: "2026-01-02"})
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{"version", "-o", "json"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}

	var res versionResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Version != "1.2.3" || res.Commit != "abc123" || res.Date != "2026-01-02" {
		t.Errorf("version = %+v", res)
	}
	p := update.Detect()
	if res.Platform != p.OS+"/"+p.Arch {
		t.Errorf("platform = %q", res.Platform)
	}
}

func TestBuildInfoString(t *testing.T) {
	if got := (buildInfo{version: "dev"}).String(); got != "dev (built from source)" {
		t.Errorf("String() = %q", got)
	}
	if got := (buildInfo{version: "1.0.0", commit: "abc", date: "today"}).String(); got != "1.0.0 (commit: abc, built: today)" {
		t.Errorf("String() = %q", got)
	}
}
