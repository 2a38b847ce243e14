package update

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Launcher describes the small companion executable that applies updates
// and starts the application. It is copied out of the version directories
// before it runs so it never executes from a directory it replaces.
type Launcher struct {
	dir   string
	name  string
	files []string
}

// NewLauncher returns a launcher for executable. A relative executable is
// resolved against the running executable's directory when launched.
// files are companion files (shared libraries, config) that live next to
// the executable and are copied with it; they must be plain file names.
func NewLauncher(executable string, files ...string) (*Launcher, error) {
	name := filepath.Base(executable)
	if executable == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid launcher executable %q", executable)
	}
	for _, f := range files {
		if !isPlainName(f) {
			return nil, fmt.Errorf("launcher file %q must be a plain file name", f)
		}
	}
	dir := filepath.Dir(executable)
	if dir == "." && !strings.ContainsAny(executable, `/\`) {
		dir = ""
	}
	return &Launcher{dir: dir, name: name, files: append([]string(nil), files...)}, nil
}

// Executable returns the launcher path as configured.
func (l *Launcher) Executable() string {
	if l.dir == "" {
		return l.name
	}
	return filepath.Join(l.dir, l.name)
}

// Files returns the companion file names.
func (l *Launcher) Files() []string {
	return append([]string(nil), l.files...)
}

// resolve returns a copy of l whose directory is absolute, using base for
// relative launchers.
func (l *Launcher) resolve(base string) (*Launcher, error) {
	if filepath.IsAbs(l.dir) {
		return l, nil
	}
	if base == "" {
		return nil, fmt.Errorf("cannot resolve relative launcher %s: unknown executable directory", l.Executable())
	}
	cp := *l
	cp.dir = filepath.Join(base, l.dir)
	return &cp, nil
}

// CopyTo copies the executable and every existing companion file into dir
// and returns the path of the copied executable. Missing companion files
// are skipped; a missing executable is an error.
func (l *Launcher) CopyTo(dir string) (string, error) {
	if !filepath.IsAbs(l.dir) {
		return "", fmt.Errorf("launcher directory of %s is not absolute", l.Executable())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	target := filepath.Join(dir, l.name)
	if err := copyFile(filepath.Join(l.dir, l.name), target); err != nil {
		return "", fmt.Errorf("failed to copy launcher: %w", err)
	}
	for _, f := range l.files {
		err := copyFile(filepath.Join(l.dir, f), filepath.Join(dir, f))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to copy launcher file %s: %w", f, err)
		}
	}
	return target, nil
}

// copyFile copies src to dst keeping src's permission bits.
func copyFile(src, dst string) error {
	// Open source file
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	// Get source file info for permissions
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst) // Clean up partial copy
		return err
	}
	return out.Close()
}

func isPlainName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
