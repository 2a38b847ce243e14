package update

import (
	"runtime"
	"strings"
)

// Platform identifies the operating system and architecture an update
// artifact is built for.
type Platform struct {
	OS   string
	Arch string
}

// Detect returns the current platform (OS and architecture)
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// Expand substitutes {os} and {arch} in s, e.g. a filename pattern like
// `myapp-[0-9.]+-{os}-{arch}\.zip`.
func (p Platform) Expand(s string) string {
	return strings.NewReplacer("{os}", p.OS, "{arch}", p.Arch).Replace(s)
}

// IsSupported reports whether self-update can run on this platform.
// Process control and locking are available on windows, darwin and linux.
func (p Platform) IsSupported() bool {
	supportedPlatforms := map[string][]string{
		"darwin":  {"amd64", "arm64"},
		"linux":   {"amd64", "arm64", "386", "arm"},
		"windows": {"amd64", "arm64", "386"},
	}

	archs, ok := supportedPlatforms[p.OS]
	if !ok {
		return false
	}

	for _, arch := range archs {
		if p.Arch == arch {
			return true
		}
	}

	return false
}
