// Package process finds, terminates and spawns the processes that run out
// of managed version directories.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gops "github.com/shirou/gopsutil/v4/process"
)

// ErrTimeout is returned when terminated processes do not exit in time.
var ErrTimeout = errors.New("timed out waiting for processes to exit")

const pollInterval = 50 * time.Millisecond

// Test seams.
var (
	osExecutable = os.Executable
	evalSymlinks = filepath.EvalSymlinks
)

type (
	// Controller is the process capability used by the update manager.
	Controller interface {
		// RunningUnder returns the PIDs of processes whose executable lives
		// inside dir. The calling process is never included.
		RunningUnder(ctx context.Context, dir string) ([]int32, error)
		// TerminateAndWait asks each process to exit and waits up to
		// timeout for all of them to be gone.
		TerminateAndWait(ctx context.Context, pids []int32, timeout time.Duration) error
		// SpawnDetached starts exe with args so that it outlives the caller.
		SpawnDetached(exe string, args []string) error
	}

	// System implements Controller for the local machine.
	System struct {
		logger *log.Logger
		self   int32
	}

	// Option configures a System.
	Option func(*System)
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *System) {
		s.logger = l
	}
}

// NewSystem returns a Controller for the local machine.
func NewSystem(opts ...Option) *System {
	s := &System{
		logger: log.New(io.Discard),
		self:   int32(os.Getpid()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunningUnder lists processes whose executable is inside dir. Processes
// whose executable cannot be read (other users, kernel threads) are skipped.
func (s *System) RunningUnder(ctx context.Context, dir string) ([]int32, error) {
	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	var pids []int32
	for _, p := range procs {
		if p.Pid == s.self {
			continue
		}
		exe, err := p.ExeWithContext(ctx)
		if err != nil || exe == "" {
			continue
		}
		if IsSubpath(dir, exe) {
			pids = append(pids, p.Pid)
		}
	}
	if len(pids) > 0 {
		s.logger.Debug("found running processes", "dir", dir, "pids", pids)
	}
	return pids, nil
}

// TerminateAndWait sends a termination request to every pid and polls
// until they have exited. Processes still alive at the deadline are killed
// and ErrTimeout is returned.
func (s *System) TerminateAndWait(ctx context.Context, pids []int32, timeout time.Duration) error {
	pids = slices.DeleteFunc(slices.Clone(pids), func(pid int32) bool { return pid == s.self })
	if len(pids) == 0 {
		return nil
	}

	for _, pid := range pids {
		p, err := gops.NewProcessWithContext(ctx, pid)
		if err != nil {
			continue
		}
		if err := p.TerminateWithContext(ctx); err != nil {
			s.logger.Debug("terminate failed", "pid", pid, "err", err)
		}
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := s.alive(ctx, pids)
		if len(remaining) == 0 {
			s.logger.Info("terminated processes", "pids", pids)
			return nil
		}
		if time.Now().After(deadline) {
			for _, pid := range remaining {
				if p, err := gops.NewProcessWithContext(ctx, pid); err == nil {
					_ = p.KillWithContext(ctx)
				}
			}
			return fmt.Errorf("%w: pids %v still running after %s", ErrTimeout, remaining, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (s *System) alive(ctx context.Context, pids []int32) []int32 {
	var remaining []int32
	for _, pid := range pids {
		p, err := gops.NewProcessWithContext(ctx, pid)
		if err != nil {
			continue
		}
		running, err := p.IsRunningWithContext(ctx)
		if err != nil || !running {
			continue
		}
		if status, err := p.StatusWithContext(ctx); err == nil && slices.Contains(status, gops.Zombie) {
			continue
		}
		remaining = append(remaining, pid)
	}
	return remaining
}

// SpawnDetached starts exe in its own directory, detached from the
// caller's session and standard streams.
func (s *System) SpawnDetached(exe string, args []string) error {
	if _, err := os.Stat(exe); err != nil {
		return fmt.Errorf("cannot start %s: %w", exe, err)
	}
	cmd := exec.Command(exe, args...)
	cmd.Dir = filepath.Dir(exe)
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", exe, err)
	}
	s.logger.Info("started process", "exe", exe, "pid", cmd.Process.Pid)
	return cmd.Process.Release()
}

// CurrentExecutable returns the resolved path of the running executable.
func CurrentExecutable() (string, error) {
	exe, err := osExecutable()
	if err != nil {
		return "", err
	}
	if resolved, err := evalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Abs(exe)
}

// IsSubpath reports whether child is parent or lies inside it.
// Symlinks are resolved where possible; comparison is case-insensitive on
// Windows and macOS.
func IsSubpath(parent, child string) bool {
	parent = normalize(parent)
	child = normalize(child)
	if parent == "" || child == "" {
		return false
	}
	if child == parent {
		return true
	}
	prefix := parent
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(child, prefix)
}

// resolveExisting resolves symlinks in the longest existing prefix of p and
// appends the rest unchanged.
func resolveExisting(p string) string {
	var rest []string
	cur := p
	for {
		if resolved, err := evalSymlinks(cur); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

func normalize(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return ""
	}
	abs = resolveExisting(filepath.Clean(abs))
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		abs = strings.ToLower(abs)
	}
	return abs
}
