//go:build !windows

package process

import "syscall"

// detachedAttr starts the child in a new session so it survives the
// parent's terminal closing.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
