// Package update manages the versions of an application installed in a
// working directory and downloads new ones.
//
// The working directory holds one directory per downloaded version, named
// by its version number, plus the latest directory (by default "current")
// from which the application is always started. Each directory carries a
// sentinel file naming the version it holds; directories without a valid
// sentinel are never trusted. A lock file serialises every process that
// mutates the tree.
//
// The main executable downloads updates with an Updater and hands over to
// a launcher with Manager.LaunchLatest. The launcher promotes the newest
// update with Manager.ApplyLatest and starts the application again with
// Manager.StartLatest.
package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/adamancini/hoist/internal/lock"
	"github.com/adamancini/hoist/internal/process"
	"github.com/adamancini/hoist/internal/sentinel"
	"github.com/adamancini/hoist/internal/version"
)

const (
	// DefaultLatestDirectory is the name of the directory the application
	// is started from.
	DefaultLatestDirectory = "current"

	// TempDirectory holds scratch space for downloads, launcher copies and
	// replaced directories awaiting deletion.
	TempDirectory = ".tmp"

	defaultKillTimeout = 5 * time.Second
)

type (
	// Installed is a validated version directory.
	Installed struct {
		Version version.Number
		Path    string
	}

	// Status summarises the working directory.
	Status struct {
		WorkDir         string
		Current         version.Number
		LatestDirectory string
		// Latest is the version in the latest directory, zero when it has
		// no valid sentinel.
		Latest version.Number
		// Update is the newest validated update directory, nil if none.
		Update *Installed
		Locked bool
	}

	// Manager owns a working directory while it holds its lock.
	Manager struct {
		workDir     string
		latestName  string
		current     version.Number
		retained    []string
		launcher    *Launcher
		procs       process.Controller
		logger      *log.Logger
		killTimeout time.Duration
		exePath     string
		exeSet      bool

		mu   sync.Mutex
		lock *lock.Lock
	}

	// ManagerOption configures a Manager.
	ManagerOption func(*Manager) error
)

// WithLatestDirectory sets the name of the directory the application runs
// from. It must be a plain name that does not parse as a version.
func WithLatestDirectory(name string) ManagerOption {
	return func(m *Manager) error {
		if !isPlainName(name) || name == TempDirectory || name == lock.DefaultFilename {
			return fmt.Errorf("invalid latest directory name %q", name)
		}
		if _, err := version.Parse(name); err == nil {
			return fmt.Errorf("latest directory name %q must not be a version number", name)
		}
		m.latestName = name
		return nil
	}
}

// WithRetainedFiles sets paths, relative to the latest directory, that are
// carried over into each promoted update unless the update ships its own
// copy. Directories are retained as a whole.
func WithRetainedFiles(paths ...string) ManagerOption {
	return func(m *Manager) error {
		for _, p := range paths {
			clean := filepath.Clean(filepath.FromSlash(p))
			if p == "" || filepath.IsAbs(clean) || clean == "." || clean == ".." ||
				strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
				return fmt.Errorf("retained path %q must be relative to the application directory", p)
			}
			m.retained = append(m.retained, clean)
		}
		return nil
	}
}

// WithLauncher sets the launcher started by LaunchLatest.
func WithLauncher(l *Launcher) ManagerOption {
	return func(m *Manager) error {
		m.launcher = l
		return nil
	}
}

// WithProcessController replaces the process capability, mainly for tests.
func WithProcessController(c process.Controller) ManagerOption {
	return func(m *Manager) error {
		m.procs = c
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) error {
		m.logger = l
		return nil
	}
}

// WithKillTimeout bounds how long terminated processes may take to exit.
func WithKillTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) error {
		if d <= 0 {
			return fmt.Errorf("kill timeout must be positive")
		}
		m.killTimeout = d
		return nil
	}
}

// WithExecutablePath overrides the path of the running executable, which
// otherwise comes from the operating system. An empty path means the
// process runs from outside the working directory.
func WithExecutablePath(path string) ManagerOption {
	return func(m *Manager) error {
		m.exePath = path
		m.exeSet = true
		return nil
	}
}

// NewManager creates workDir if needed and acquires its lock. current is
// the version of the running application. The lock is held until Close or
// ReleaseLock.
func NewManager(workDir string, current version.Number, opts ...ManagerOption) (*Manager, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("invalid working directory %q: %w", workDir, err)
	}

	m := &Manager{
		workDir:     abs,
		latestName:  DefaultLatestDirectory,
		current:     current,
		logger:      log.New(io.Discard),
		killTimeout: defaultKillTimeout,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.procs == nil {
		m.procs = process.NewSystem(process.WithLogger(m.logger))
	}
	if !m.exeSet {
		if exe, err := process.CurrentExecutable(); err == nil {
			m.exePath = exe
		} else {
			m.logger.Debug("could not determine running executable", "err", err)
		}
	}

	if err := os.MkdirAll(m.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	if err := m.AcquireLock(); err != nil {
		return nil, err
	}

	m.repairLatestSentinel()
	m.cleanTemp()
	return m, nil
}

// WorkDir returns the absolute working directory.
func (m *Manager) WorkDir() string { return m.workDir }

// CurrentVersion returns the version of the running application.
func (m *Manager) CurrentVersion() version.Number { return m.current }

// LatestDirectory returns the name of the latest directory.
func (m *Manager) LatestDirectory() string { return m.latestName }

// LatestPath returns the absolute path of the latest directory.
func (m *Manager) LatestPath() string { return filepath.Join(m.workDir, m.latestName) }

// Logger returns the manager's logger.
func (m *Manager) Logger() *log.Logger { return m.logger }

// AcquireLock takes the working directory lock if it is not already held.
func (m *Manager) AcquireLock() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lock != nil && m.lock.Held() {
		return nil
	}
	l, err := lock.Acquire(filepath.Join(m.workDir, lock.DefaultFilename))
	if err != nil {
		if errors.Is(err, lock.ErrAlreadyLocked) {
			return fmt.Errorf("%w: %w", ErrLocked, err)
		}
		return fmt.Errorf("failed to acquire update lock: %w", err)
	}
	m.lock = l
	m.logger.Debug("acquired update lock", "path", l.Path())
	return nil
}

// ReleaseLock releases the working directory lock. The manager must not
// mutate the working directory again until AcquireLock succeeds.
func (m *Manager) ReleaseLock() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lock == nil {
		return nil
	}
	err := m.lock.Release()
	m.lock = nil
	if err != nil {
		return fmt.Errorf("failed to release update lock: %w", err)
	}
	m.logger.Debug("released update lock")
	return nil
}

// HasLock reports whether the manager holds the lock.
func (m *Manager) HasLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lock != nil && m.lock.Held()
}

// Close releases the lock.
func (m *Manager) Close() error {
	return m.ReleaseLock()
}

// LatestVersion returns the version in the latest directory.
func (m *Manager) LatestVersion() (version.Number, bool) {
	return sentinel.Read(m.LatestPath())
}

// LatestAvailableUpdate returns the newest validated version directory,
// not counting the latest directory. It returns nil when there is none or
// when two directories hold the same version (such as 2.1 and 2.1.0), in
// which case the working directory is inconsistent and the update should
// be downloaded again.
func (m *Manager) LatestAvailableUpdate() (*Installed, error) {
	if err := m.AcquireLock(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(m.workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read working directory: %w", err)
	}

	var best *Installed
	seen := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() || e.Name() == m.latestName || e.Name() == TempDirectory {
			continue
		}
		v, err := version.Parse(e.Name())
		if err != nil {
			continue
		}
		dir := filepath.Join(m.workDir, e.Name())
		if !sentinel.Matches(dir, v) {
			m.logger.Debug("skipping unvalidated directory", "dir", dir)
			continue
		}

		// Compare by normalised form so 2.1 and 2.1.0 collide.
		key := canonical(v)
		if other, ok := seen[key]; ok {
			m.logger.Warn("two directories hold the same version", "a", other, "b", e.Name())
			return nil, nil
		}
		seen[key] = e.Name()

		if best == nil || v.Greater(best.Version) {
			best = &Installed{Version: v, Path: dir}
		}
	}
	return best, nil
}

// ApplyLatest promotes the newest update into the latest directory if it
// is newer than what the latest directory holds, or if the latest directory
// is missing or unvalidated. Processes running from either directory are
// terminated when kill is set; otherwise their presence fails the call.
// It returns the applied version and whether anything was applied.
func (m *Manager) ApplyLatest(ctx context.Context, kill bool) (version.Number, bool, error) {
	update, err := m.LatestAvailableUpdate()
	if err != nil {
		return version.Number{}, false, err
	}
	if update == nil {
		return version.Number{}, false, nil
	}
	latestDir := m.LatestPath()
	if latest, ok := sentinel.Read(latestDir); ok && !latest.Less(update.Version) {
		return version.Number{}, false, nil
	}

	// 1. Stop everything running from the directories we are about to move
	for _, dir := range []string{latestDir, update.Path} {
		if err := m.stopProcesses(ctx, dir, kill); err != nil {
			return version.Number{}, false, err
		}
	}

	// 2. Carry retained files over and move the old latest directory aside
	var trash string
	if _, err := os.Lstat(latestDir); err == nil {
		if err := m.moveRetained(latestDir, update.Path); err != nil {
			return version.Number{}, false, err
		}
		trash, err = m.tempDir("replaced-")
		if err != nil {
			return version.Number{}, false, err
		}
		// The trash directory was created empty; rename needs it gone.
		if err := os.Remove(trash); err != nil {
			return version.Number{}, false, fmt.Errorf("failed to prepare trash directory: %w", err)
		}
		if err := os.Rename(latestDir, trash); err != nil {
			return version.Number{}, false, fmt.Errorf("failed to move %s aside: %w", latestDir, err)
		}
	} else if !os.IsNotExist(err) {
		return version.Number{}, false, fmt.Errorf("failed to stat %s: %w", latestDir, err)
	}

	// 3. Promote the update
	if err := os.Rename(update.Path, latestDir); err != nil {
		return version.Number{}, false, fmt.Errorf("failed to promote %s: %w", update.Path, err)
	}

	// 4. Remove the old version
	if trash != "" {
		if err := os.RemoveAll(trash); err != nil {
			m.logger.Warn("failed to remove replaced directory", "dir", trash, "err", err)
		}
	}

	m.logger.Info("applied update", "version", update.Version, "dir", latestDir)
	return update.Version, true, nil
}

// LaunchLatest starts the launcher if a version newer than the running one
// is installed, either as an update directory or in the latest directory
// while this process runs from elsewhere. The launcher and its files are
// copied into the temp directory first, the lock is released, and the
// launcher is started detached with args. It returns true when the
// launcher was started, in which case the caller should exit.
func (m *Manager) LaunchLatest(args []string) (bool, error) {
	if m.launcher == nil {
		return false, ErrNoLauncher
	}
	update, err := m.LatestAvailableUpdate()
	if err != nil {
		return false, err
	}
	latest, haveLatest := m.LatestVersion()
	runningLatest := m.exePath != "" && process.IsSubpath(m.LatestPath(), m.exePath)

	newer := (update != nil && update.Version.Greater(m.current)) ||
		(!runningLatest && haveLatest && latest.Greater(m.current))
	if !newer {
		return false, nil
	}

	l, err := m.launcher.resolve(filepath.Dir(m.exePath))
	if err != nil {
		return false, err
	}
	dir, err := m.tempDir("launcher-")
	if err != nil {
		return false, err
	}
	exe, err := l.CopyTo(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return false, err
	}

	if err := m.ReleaseLock(); err != nil {
		return false, err
	}
	if err := m.procs.SpawnDetached(exe, args); err != nil {
		if lockErr := m.AcquireLock(); lockErr != nil {
			m.logger.Warn("failed to reacquire update lock", "err", lockErr)
		}
		return false, fmt.Errorf("failed to start launcher: %w", err)
	}
	m.logger.Info("started launcher", "exe", exe)
	return true, nil
}

// StartLatest releases the lock and starts executable, a path relative to
// the latest directory, detached with args. It does not apply updates.
func (m *Manager) StartLatest(executable string, args []string) error {
	clean := filepath.Clean(filepath.FromSlash(executable))
	if executable == "" || filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("executable %q must be relative to the latest directory", executable)
	}
	if info, err := os.Stat(m.LatestPath()); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotInstalled, m.LatestPath())
	}
	exe := filepath.Join(m.LatestPath(), clean)
	if _, err := os.Stat(exe); err != nil {
		return fmt.Errorf("executable not found in latest directory: %w", err)
	}

	if err := m.ReleaseLock(); err != nil {
		return err
	}
	if err := m.procs.SpawnDetached(exe, args); err != nil {
		return fmt.Errorf("failed to start %s: %w", exe, err)
	}
	m.logger.Info("started application", "exe", exe)
	return nil
}

// Prune deletes everything in the working directory except the lock file,
// the latest directory, the running version's directory, the directory the
// running executable lives in and the newest update. Processes running
// from deleted directories are terminated first.
func (m *Manager) Prune(ctx context.Context) error {
	keep, err := m.pruneKeep()
	if err != nil {
		return err
	}
	return m.removeEntries(ctx, keep)
}

// PruneCandidates lists the entries Prune would delete.
func (m *Manager) PruneCandidates() ([]string, error) {
	keep, err := m.pruneKeep()
	if err != nil {
		return nil, err
	}
	return m.candidates(keep)
}

// Unlink deletes everything in the working directory except the lock file
// and the directory the running executable lives in. Automatic updates are
// effectively disabled afterwards.
func (m *Manager) Unlink(ctx context.Context) error {
	keep, err := m.unlinkKeep()
	if err != nil {
		return err
	}
	return m.removeEntries(ctx, keep)
}

// UnlinkCandidates lists the entries Unlink would delete.
func (m *Manager) UnlinkCandidates() ([]string, error) {
	keep, err := m.unlinkKeep()
	if err != nil {
		return nil, err
	}
	return m.candidates(keep)
}

func (m *Manager) pruneKeep() (map[string]bool, error) {
	update, err := m.LatestAvailableUpdate()
	if err != nil {
		return nil, err
	}

	keep := map[string]bool{
		lock.DefaultFilename: true,
		m.latestName:         true,
	}
	if !m.current.IsZero() {
		keep[m.current.String()] = true
	}
	if update != nil {
		keep[filepath.Base(update.Path)] = true
	}
	if root := m.executableRoot(); root != "" {
		keep[root] = true
	}
	return keep, nil
}

func (m *Manager) unlinkKeep() (map[string]bool, error) {
	if err := m.AcquireLock(); err != nil {
		return nil, err
	}
	keep := map[string]bool{lock.DefaultFilename: true}
	if root := m.executableRoot(); root != "" {
		keep[root] = true
	}
	return keep, nil
}

// Status reports the state of the working directory.
func (m *Manager) Status() (*Status, error) {
	update, err := m.LatestAvailableUpdate()
	if err != nil {
		return nil, err
	}
	latest, _ := m.LatestVersion()
	return &Status{
		WorkDir:         m.workDir,
		Current:         m.current,
		LatestDirectory: m.latestName,
		Latest:          latest,
		Update:          update,
		Locked:          m.HasLock(),
	}, nil
}

func (m *Manager) candidates(keep map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(m.workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read working directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !keep[e.Name()] {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (m *Manager) removeEntries(ctx context.Context, keep map[string]bool) error {
	names, err := m.candidates(keep)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		path := filepath.Join(m.workDir, name)
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			if err := m.stopProcesses(ctx, path, true); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
			continue
		}
		m.logger.Debug("removed", "path", path)
	}
	return errors.Join(errs...)
}

// stopProcesses makes sure nothing runs from dir before it is moved or
// deleted.
func (m *Manager) stopProcesses(ctx context.Context, dir string, kill bool) error {
	if m.exePath != "" && process.IsSubpath(dir, m.exePath) {
		return fmt.Errorf("%w: %s", ErrRunningFromTarget, dir)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	pids, err := m.procs.RunningUnder(ctx, dir)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return nil
	}
	if !kill {
		return fmt.Errorf("%w: %s (pids %v)", ErrProcessesRunning, dir, pids)
	}
	m.logger.Info("terminating processes", "dir", dir, "pids", pids)
	if err := m.procs.TerminateAndWait(ctx, pids, m.killTimeout); err != nil {
		return fmt.Errorf("failed to stop processes in %s: %w", dir, err)
	}
	return nil
}

// moveRetained moves each retained path from src to dst unless dst already
// has it.
func (m *Manager) moveRetained(src, dst string) error {
	for _, rel := range m.retained {
		from := filepath.Join(src, rel)
		if _, err := os.Lstat(from); err != nil {
			continue
		}
		to := filepath.Join(dst, rel)
		if _, err := os.Lstat(to); err == nil {
			m.logger.Debug("update ships its own copy of retained path", "path", rel)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return fmt.Errorf("failed to retain %s: %w", rel, err)
		}
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("failed to retain %s: %w", rel, err)
		}
		m.logger.Debug("retained", "path", rel)
	}
	return nil
}

// tempDir creates a fresh directory below the working directory's temp
// directory, on the same filesystem as the version directories.
func (m *Manager) tempDir(prefix string) (string, error) {
	root := filepath.Join(m.workDir, TempDirectory)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	dir, err := os.MkdirTemp(root, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	return dir, nil
}

// executableRoot returns the top-level working directory entry containing
// the running executable, or "" if it runs from elsewhere.
func (m *Manager) executableRoot() string {
	if m.exePath == "" || !process.IsSubpath(m.workDir, m.exePath) {
		return ""
	}
	rel, err := filepath.Rel(m.workDir, m.exePath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		rel, err = filepath.Rel(resolvePath(m.workDir), resolvePath(m.exePath))
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			return ""
		}
	}
	return strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
}

// repairLatestSentinel records the running version in the latest directory
// when this process runs from it.
func (m *Manager) repairLatestSentinel() {
	latestDir := m.LatestPath()
	if m.current.IsZero() || m.exePath == "" || !process.IsSubpath(latestDir, m.exePath) {
		return
	}
	if sentinel.Matches(latestDir, m.current) {
		return
	}
	if err := sentinel.Write(latestDir, m.current); err != nil {
		m.logger.Debug("failed to write latest sentinel", "err", err)
		return
	}
	m.logger.Debug("wrote latest sentinel", "version", m.current)
}

// cleanTemp removes leftovers of earlier runs from the temp directory,
// except the copy of the running launcher.
func (m *Manager) cleanTemp() {
	root := filepath.Join(m.workDir, TempDirectory)
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		path := filepath.Join(root, e.Name())
		if m.exePath != "" && process.IsSubpath(path, m.exePath) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			m.logger.Debug("failed to clean temp entry", "path", path, "err", err)
		}
	}
}

// canonical renders v without trailing zero components.
func canonical(v version.Number) string {
	c := v.Components()
	for len(c) > 1 && c[len(c)-1] == 0 {
		c = c[:len(c)-1]
	}
	return version.New(c...).String()
}

func resolvePath(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return p
}
