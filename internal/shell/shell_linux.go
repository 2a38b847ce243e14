//go:build linux

package shell

// Default returns the XDG desktop entry integration for the current user.
func Default() Integration {
	dir, err := XDGApplicationsDir()
	if err != nil {
		return Unsupported{}
	}
	return NewDesktopEntries(dir)
}
