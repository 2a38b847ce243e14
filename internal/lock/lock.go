// Package lock provides an exclusive, non-blocking, process-scoped lock file.
//
// The lock is the open OS handle, not the file's existence: if the owning
// process dies the operating system drops the handle and the next Acquire
// succeeds even when a stale file is still on disk.
package lock

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultFilename is the lock file name inside a working directory.
const DefaultFilename = "update.lock"

// ErrAlreadyLocked is returned when another handle holds the lock.
var ErrAlreadyLocked = errors.New("lock is already held")

// Lock is a held lock file. The zero value is not usable; use Acquire.
type Lock struct {
	path string

	mu       sync.Mutex
	released bool
	handle   handle
}

// Acquire takes the lock at path, creating the file if needed.
// It never blocks: if the lock is held elsewhere it returns an error
// wrapping ErrAlreadyLocked.
func Acquire(path string) (*Lock, error) {
	h, err := acquire(path)
	if err != nil {
		if errors.Is(err, ErrAlreadyLocked) {
			return nil, fmt.Errorf("%s: %w", path, ErrAlreadyLocked)
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	return &Lock{path: path, handle: h}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Held reports whether the lock has not been released yet.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.released
}

// Release deletes the lock file and drops the handle.
// Releasing twice is a no-op.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true
	return release(l.path, l.handle)
}
