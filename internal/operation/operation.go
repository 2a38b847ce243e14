// Package operation provides the steps run against extracted release
// content: content operations check or reshape the temporary extraction
// directory before it is trusted, post-update operations act on the final
// version directory.
package operation

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/adamancini/hoist/internal/archive"
	"github.com/adamancini/hoist/internal/shell"
)

type (
	// Operation acts on a directory of release content.
	Operation interface {
		Apply(dir string) error
	}

	// Func adapts a function to the Operation interface.
	Func func(dir string) error

	// Shortcut creates a launcher shortcut to a file inside the directory.
	Shortcut struct {
		// Target is the shortcut target, relative to the directory unless
		// absolute.
		Target string
		// Name is the shortcut's display name.
		Name string
		// Category is the optional menu folder.
		Category string
		// OnlyUpdate skips creation when no shortcut exists yet, so a
		// shortcut the user deleted is not recreated.
		OnlyUpdate bool
		// Shell creates the shortcut; shell.Default() when nil.
		Shell shell.Integration
	}

	ignoreFailure struct {
		op     Operation
		logger *log.Logger
	}
)

// Apply calls f.
func (f Func) Apply(dir string) error { return f(dir) }

// Flatten moves the contents of the directory's single top-level folder up
// one level. It fails unless there is exactly one top-level entry and it is
// a directory.
func Flatten() Operation {
	return Func(archive.FlattenRoot)
}

// RequireFiles fails unless every relative path exists in the directory.
func RequireFiles(paths ...string) Operation {
	return Func(func(dir string) error {
		var errs []error
		for _, p := range paths {
			if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p))); err != nil {
				errs = append(errs, fmt.Errorf("required file %s: %w", p, err))
			}
		}
		return errors.Join(errs...)
	})
}

// IgnoreFailure wraps op so that its failure is logged at warn level and
// otherwise ignored.
func IgnoreFailure(op Operation, logger *log.Logger) Operation {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ignoreFailure{op: op, logger: logger}
}

func (o *ignoreFailure) Apply(dir string) error {
	if err := o.op.Apply(dir); err != nil {
		o.logger.Warn("ignoring failed operation", "dir", dir, "err", err)
	}
	return nil
}

// Apply creates or refreshes the shortcut.
func (s Shortcut) Apply(dir string) error {
	integration := s.Shell
	if integration == nil {
		integration = shell.Default()
	}

	target := s.Target
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, filepath.FromSlash(target))
	}
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("shortcut target: %w", err)
	}

	if s.OnlyUpdate {
		exists, err := integration.HasShortcut(s.Name, s.Category)
		if err != nil {
			return fmt.Errorf("failed to check shortcut %q: %w", s.Name, err)
		}
		if !exists {
			return nil
		}
	}
	if err := integration.CreateShortcut(target, s.Name, s.Category); err != nil {
		return fmt.Errorf("failed to create shortcut %q: %w", s.Name, err)
	}
	return nil
}

// Run applies ops to dir in order and stops at the first failure.
func Run(dir string, ops ...Operation) error {
	for i, op := range ops {
		if err := op.Apply(dir); err != nil {
			return fmt.Errorf("operation %d: %w", i+1, err)
		}
	}
	return nil
}
