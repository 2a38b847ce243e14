// Package config handles Hoistfile parsing and location resolution.
//
// A Hoistfile describes one application: where its versions live on disk,
// where releases come from and how a downloaded release is checked before
// it is installed.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adamancini/hoist/internal/types"
)

// EnvConfig names the environment variable that points at a Hoistfile.
const EnvConfig = "HOIST_CONFIG"

// DefaultTagPrefix is stripped from GitHub release tags before parsing.
const DefaultTagPrefix = "v"

// ErrNotFound is returned by Find when no Hoistfile exists in any of the
// searched locations.
var ErrNotFound = errors.New("no Hoistfile found")

// fileNames lists the accepted Hoistfile names in lookup order.
var fileNames = []string{
	"Hoistfile",
	"Hoistfile.yaml",
	"Hoistfile.yml",
	"Hoistfile.toml",
	"Hoistfile.json",
	".Hoistfile",
	".Hoistfile.yaml",
	".Hoistfile.yml",
	".Hoistfile.toml",
	".Hoistfile.json",
}

// Hoistfile is the configuration of one self-updating application.
type Hoistfile struct {
	Version          int        `yaml:"version" toml:"version" json:"version"`
	App              App        `yaml:"app" toml:"app" json:"app"`
	WorkingDirectory string     `yaml:"working_directory,omitempty" toml:"working_directory,omitempty" json:"working_directory,omitempty"`
	LatestDirectory  string     `yaml:"latest_directory,omitempty" toml:"latest_directory,omitempty" json:"latest_directory,omitempty"`
	Retain           []string   `yaml:"retain,omitempty" toml:"retain,omitempty" json:"retain,omitempty"`
	Source           Source     `yaml:"source" toml:"source" json:"source"`
	Download         Download   `yaml:"download" toml:"download" json:"download"`
	Verify           Verify     `yaml:"verify,omitempty" toml:"verify,omitempty" json:"verify,omitempty"`
	Content          Content    `yaml:"content,omitempty" toml:"content,omitempty" json:"content,omitempty"`
	PostUpdate       PostUpdate `yaml:"post_update,omitempty" toml:"post_update,omitempty" json:"post_update,omitempty"`
}

// App identifies the application and its executables.
type App struct {
	Name    string `yaml:"name" toml:"name" json:"name"`
	Version string `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty"`
	// Executable is relative to the latest directory.
	Executable string `yaml:"executable,omitempty" toml:"executable,omitempty" json:"executable,omitempty"`
	// Launcher is relative to the running executable's directory unless
	// absolute.
	Launcher      string   `yaml:"launcher,omitempty" toml:"launcher,omitempty" json:"launcher,omitempty"`
	LauncherFiles []string `yaml:"launcher_files,omitempty" toml:"launcher_files,omitempty" json:"launcher_files,omitempty"`
}

// Source selects the release retriever.
type Source struct {
	Type      types.SourceType `yaml:"type" toml:"type" json:"type"`
	Owner     string           `yaml:"owner,omitempty" toml:"owner,omitempty" json:"owner,omitempty"`
	Repo      string           `yaml:"repo,omitempty" toml:"repo,omitempty" json:"repo,omitempty"`
	APIURL    string           `yaml:"api_url,omitempty" toml:"api_url,omitempty" json:"api_url,omitempty"`
	Token     string           `yaml:"token,omitempty" toml:"token,omitempty" json:"token,omitempty"`
	TagPrefix *string          `yaml:"tag_prefix,omitempty" toml:"tag_prefix,omitempty" json:"tag_prefix,omitempty"`
	// Version and URL describe the single release of a static source.
	Version string `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty"`
	URL     string `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"`
}

// Download controls which artifact is fetched and from where.
type Download struct {
	// FilenamePattern must match the artifact's file name in full.
	// {os} and {arch} are replaced with the running platform.
	FilenamePattern         string            `yaml:"filename_pattern" toml:"filename_pattern" json:"filename_pattern"`
	URLPattern              string            `yaml:"url_pattern,omitempty" toml:"url_pattern,omitempty" json:"url_pattern,omitempty"`
	FilenameContainsVersion *bool             `yaml:"filename_contains_version,omitempty" toml:"filename_contains_version,omitempty" json:"filename_contains_version,omitempty"`
	Archive                 types.ArchiveType `yaml:"archive,omitempty" toml:"archive,omitempty" json:"archive,omitempty"`
	// Overrides maps a file name to a URL template with {version}.
	Overrides     map[string]string `yaml:"overrides,omitempty" toml:"overrides,omitempty" json:"overrides,omitempty"`
	AllowInsecure bool              `yaml:"allow_insecure,omitempty" toml:"allow_insecure,omitempty" json:"allow_insecure,omitempty"`
}

// Verify lists the checks a download must pass.
type Verify struct {
	Checksums string     `yaml:"checksums,omitempty" toml:"checksums,omitempty" json:"checksums,omitempty"`
	Signature *Signature `yaml:"signature,omitempty" toml:"signature,omitempty" json:"signature,omitempty"`
}

// Signature configures a detached signature check.
type Signature struct {
	// Message is the signed file; empty means the artifact itself.
	Message    string   `yaml:"message,omitempty" toml:"message,omitempty" json:"message,omitempty"`
	Signature  string   `yaml:"signature" toml:"signature" json:"signature"`
	PublicKeys []string `yaml:"public_keys" toml:"public_keys" json:"public_keys"`
}

// Content configures the operations run on extracted content.
type Content struct {
	Flatten bool     `yaml:"flatten,omitempty" toml:"flatten,omitempty" json:"flatten,omitempty"`
	Require []string `yaml:"require,omitempty" toml:"require,omitempty" json:"require,omitempty"`
}

// PostUpdate configures the operations run on an installed version.
type PostUpdate struct {
	Shortcuts []Shortcut `yaml:"shortcuts,omitempty" toml:"shortcuts,omitempty" json:"shortcuts,omitempty"`
}

// Shortcut describes a menu shortcut to refresh after an update.
type Shortcut struct {
	Target        string `yaml:"target" toml:"target" json:"target"`
	Name          string `yaml:"name" toml:"name" json:"name"`
	Category      string `yaml:"category,omitempty" toml:"category,omitempty" json:"category,omitempty"`
	OnlyUpdate    bool   `yaml:"only_update,omitempty" toml:"only_update,omitempty" json:"only_update,omitempty"`
	IgnoreFailure bool   `yaml:"ignore_failure,omitempty" toml:"ignore_failure,omitempty" json:"ignore_failure,omitempty"`
}

// ContainsVersion reports whether artifact file names must contain the
// release version. Defaults to true.
func (d Download) ContainsVersion() bool {
	return d.FilenameContainsVersion == nil || *d.FilenameContainsVersion
}

// Prefix returns the tag prefix, DefaultTagPrefix when unset.
func (s Source) Prefix() string {
	if s.TagPrefix == nil {
		return DefaultTagPrefix
	}
	return *s.TagPrefix
}

// Find searches for a Hoistfile in the standard locations and returns the
// path of the first one found.
//
// Search order: the explicit path, $HOIST_CONFIG, the directory of the
// running executable, $XDG_CONFIG_HOME/hoist, ~/.hoist.
func Find(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified Hoistfile not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	for _, dir := range searchDirs() {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	return "", ErrNotFound
}

func searchDirs() []string {
	var dirs []string

	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		dirs = append(dirs, filepath.Dir(exe))
	}

	home, _ := os.UserHomeDir()
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" && home != "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	if xdgConfig != "" {
		dirs = append(dirs, filepath.Join(xdgConfig, "hoist"))
	}
	if home != "" {
		dirs = append(dirs, filepath.Join(home, ".hoist"))
	}
	return dirs
}

// Load reads, parses and validates a Hoistfile.
func Load(path string) (*Hoistfile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Hoistfile: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	hoistfile, err := parse(content, format)
	if err != nil {
		return nil, err
	}

	if err := Validate(hoistfile); err != nil {
		return nil, err
	}

	return hoistfile, nil
}

// ResolveWorkingDirectory returns the configured working directory, or the
// per-user data directory of the application when none is set.
func (h *Hoistfile) ResolveWorkingDirectory() (string, error) {
	if h.WorkingDirectory != "" {
		return filepath.Abs(h.WorkingDirectory)
	}
	if h.App.Name == "" {
		return "", errors.New("working directory: app name is required for the default location")
	}
	base, err := userDataDir()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	return filepath.Join(base, h.App.Name), nil
}

// userDataDir is %LocalAppData% on Windows, ~/Library/Application Support
// on macOS and $XDG_DATA_HOME elsewhere.
func userDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		return os.UserCacheDir()
	case "darwin":
		return os.UserConfigDir()
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}
