package shell

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DesktopEntries writes freedesktop.org .desktop files into Dir.
// The category becomes a subdirectory and the Categories key.
type DesktopEntries struct {
	Dir string
}

// NewDesktopEntries returns an integration rooted at dir.
func NewDesktopEntries(dir string) *DesktopEntries {
	return &DesktopEntries{Dir: dir}
}

// XDGApplicationsDir returns $XDG_DATA_HOME/applications, falling back to
// ~/.local/share/applications.
func XDGApplicationsDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "applications"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "applications"), nil
}

func (d *DesktopEntries) path(name, category string) string {
	file := sanitize(name) + ".desktop"
	if category == "" {
		return filepath.Join(d.Dir, file)
	}
	return filepath.Join(d.Dir, sanitize(category), file)
}

// CreateShortcut writes the desktop entry for target.
func (d *DesktopEntries) CreateShortcut(target, name, category string) error {
	if name == "" {
		return errors.New("shortcut name is required")
	}
	if !filepath.IsAbs(target) {
		return fmt.Errorf("shortcut target must be absolute: %s", target)
	}

	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", name)
	fmt.Fprintf(&b, "Exec=%s\n", quoteExec(target))
	fmt.Fprintf(&b, "Path=%s\n", filepath.Dir(target))
	if category != "" {
		fmt.Fprintf(&b, "Categories=%s;\n", category)
	}
	b.WriteString("Terminal=false\n")

	p := d.path(name, category)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create shortcut directory: %w", err)
	}
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write shortcut: %w", err)
	}
	return nil
}

// HasShortcut reports whether the desktop entry exists.
func (d *DesktopEntries) HasShortcut(name, category string) (bool, error) {
	_, err := os.Stat(d.path(name, category))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// quoteExec quotes a path for the Exec key per the desktop entry spec.
func quoteExec(p string) string {
	if !strings.ContainsAny(p, " \t\"'\\$`") {
		return p
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(p) + `"`
}
