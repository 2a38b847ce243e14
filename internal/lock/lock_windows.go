//go:build windows

package lock

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

type handle = windows.Handle

func acquire(path string) (windows.Handle, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return windows.InvalidHandle, err
	}
	// Share mode 0 denies every other open of the file until we close it.
	h, err := windows.CreateFile(
		name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_ALWAYS,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_SHARING_VIOLATION) {
			return windows.InvalidHandle, ErrAlreadyLocked
		}
		return windows.InvalidHandle, err
	}
	return h, nil
}

func release(path string, h windows.Handle) error {
	closeErr := windows.CloseHandle(h)
	removeErr := os.Remove(path)
	if removeErr != nil && os.IsNotExist(removeErr) {
		removeErr = nil
	}
	return errors.Join(closeErr, removeErr)
}
