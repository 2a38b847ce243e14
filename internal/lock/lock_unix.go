//go:build !windows

package lock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

type handle = *os.File

const maxAttempts = 8

func acquire(path string) (*os.File, error) {
	for range maxAttempts {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, err
		}
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			_ = f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, ErrAlreadyLocked
			}
			return nil, fmt.Errorf("flock: %w", err)
		}

		// A releasing holder unlinks the file before closing it. If that
		// happened between our open and flock we hold a lock on an orphaned
		// inode and must start over.
		same, err := sameFile(f, path)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if same {
			return f, nil
		}
		_ = f.Close()
	}
	return nil, fmt.Errorf("lock file kept changing after %d attempts", maxAttempts)
}

func sameFile(f *os.File, path string) (bool, error) {
	var held, onDisk unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &held); err != nil {
		return false, fmt.Errorf("fstat: %w", err)
	}
	if err := unix.Stat(path, &onDisk); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, nil
		}
		return false, fmt.Errorf("stat: %w", err)
	}
	return held.Dev == onDisk.Dev && held.Ino == onDisk.Ino, nil
}

func release(path string, f *os.File) error {
	// Unlink while still holding the lock so nobody can lock the old inode.
	removeErr := os.Remove(path)
	if removeErr != nil && os.IsNotExist(removeErr) {
		removeErr = nil
	}
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	closeErr := f.Close()
	return errors.Join(removeErr, closeErr)
}
