package archive

import (
	"fmt"
	"os"
	"path/filepath"
)

// FlattenRoot moves the contents of dir's single subdirectory up into dir
// and removes the then empty subdirectory. It fails unless dir contains
// exactly one entry and that entry is a directory.
func FlattenRoot(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return fmt.Errorf("cannot flatten %s: expected exactly one top-level directory, found %d entries", dir, len(entries))
	}

	// Rename the root aside first so a child with the same name as the
	// root does not collide with it.
	root := filepath.Join(dir, entries[0].Name())
	staging, err := os.MkdirTemp(dir, ".flatten-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	moved := filepath.Join(staging, "root")
	if err := os.Rename(root, moved); err != nil {
		return fmt.Errorf("failed to move %s: %w", root, err)
	}

	children, err := os.ReadDir(moved)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", moved, err)
	}
	for _, child := range children {
		from := filepath.Join(moved, child.Name())
		to := filepath.Join(dir, child.Name())
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("failed to move %s: %w", child.Name(), err)
		}
	}
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("failed to remove staging directory: %w", err)
	}
	return nil
}
