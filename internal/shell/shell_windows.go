//go:build windows

package shell

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// StartMenu creates .lnk shortcuts under the user's start menu programs
// folder through the WScript.Shell COM object.
type StartMenu struct {
	Dir string
}

// Default returns the start menu integration for the current user.
func Default() Integration {
	dir, err := windows.KnownFolderPath(windows.FOLDERID_Programs, windows.KF_FLAG_CREATE)
	if err != nil {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return Unsupported{}
		}
		dir = filepath.Join(appData, "Microsoft", "Windows", "Start Menu", "Programs")
	}
	return &StartMenu{Dir: dir}
}

func (s *StartMenu) path(name, category string) string {
	file := sanitize(name) + ".lnk"
	if category == "" {
		return filepath.Join(s.Dir, file)
	}
	return filepath.Join(s.Dir, sanitize(category), file)
}

// CreateShortcut writes the .lnk file for target.
func (s *StartMenu) CreateShortcut(target, name, category string) error {
	if name == "" {
		return errors.New("shortcut name is required")
	}
	p := s.path(name, category)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create shortcut directory: %w", err)
	}

	script := fmt.Sprintf(
		"$s = (New-Object -ComObject WScript.Shell).CreateShortcut(%s); $s.TargetPath = %s; $s.WorkingDirectory = %s; $s.Save()",
		psQuote(p), psQuote(target), psQuote(filepath.Dir(target)),
	)
	cmd := exec.Command("powershell.exe", "-NoProfile", "-NonInteractive", "-Command", script)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create shortcut: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// HasShortcut reports whether the .lnk file exists.
func (s *StartMenu) HasShortcut(name, category string) (bool, error) {
	_, err := os.Stat(s.path(name, category))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
