//go:build !linux && !windows

package shell

// Default returns Unsupported.
func Default() Integration {
	return Unsupported{}
}
