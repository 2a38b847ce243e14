// Package shell creates application shortcuts in the desktop environment's
// launcher: start menu entries on Windows and XDG desktop entries on Linux.
package shell

import (
	"errors"
	"strings"
)

// ErrUnsupported is returned on platforms without shortcut support.
var ErrUnsupported = errors.New("shortcuts are not supported on this platform")

// Integration creates and inspects launcher shortcuts.
type Integration interface {
	// CreateShortcut creates or replaces a shortcut called name pointing
	// at target. category is an optional folder in the launcher menu.
	CreateShortcut(target, name, category string) error
	// HasShortcut reports whether a shortcut called name exists.
	HasShortcut(name, category string) (bool, error)
}

// Unsupported is the Integration used where no backend exists.
type Unsupported struct{}

// CreateShortcut always returns ErrUnsupported.
func (Unsupported) CreateShortcut(string, string, string) error { return ErrUnsupported }

// HasShortcut always returns ErrUnsupported.
func (Unsupported) HasShortcut(string, string) (bool, error) { return false, ErrUnsupported }

// sanitize strips characters that are not allowed in file names.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
}
