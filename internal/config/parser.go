package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/adamancini/hoist/internal/types"
)

// Format represents the file format of a Hoistfile.
type Format int

const (
	FormatUnknown Format = iota
	FormatYAML
	FormatTOML
	FormatJSON
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// tomlTable matches a TOML table header such as [app] or [[post_update.shortcuts]].
var tomlTable = regexp.MustCompile(`^\[\[?[A-Za-z0-9_."-]+\]\]?$`)

// DetectFormat determines the format of a Hoistfile from its name, or
// from its content when the name has no known extension.
func DetectFormat(path string, content []byte) Format {
	return detectFormat(path, content)
}

// detectFormat determines the file format based on extension or content.
func detectFormat(path string, content []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	}

	// Content sniffing for extensionless files
	return sniffFormat(content)
}

// sniffFormat guesses the format from the first significant line.
func sniffFormat(content []byte) Format {
	trimmed := strings.TrimSpace(string(content))
	if strings.HasPrefix(trimmed, "{") {
		return FormatJSON
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || line == "---" {
			continue
		}
		if tomlTable.MatchString(line) {
			return FormatTOML
		}
		eq := strings.Index(line, "=")
		colon := strings.Index(line, ":")
		switch {
		case eq >= 0 && (colon < 0 || eq < colon):
			return FormatTOML
		case colon >= 0:
			return FormatYAML
		}
		if strings.HasPrefix(line, "[") {
			return FormatJSON
		}
		return FormatUnknown
	}

	return FormatUnknown
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns in content.
// An unset variable without a default expands to the empty string.
func expandEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		parts := envVarPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := os.Getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// parse expands environment variables in content, decodes it according
// to format and fills in defaults.
func parse(content []byte, format Format) (*Hoistfile, error) {
	content = expandEnvVars(content)

	var h Hoistfile
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(content, &h); err != nil {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(content, &h); err != nil {
			return nil, fmt.Errorf("TOML parse error: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(content, &h); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown file format")
	}

	applyDefaults(&h)
	return &h, nil
}

// Parse decodes a Hoistfile from content in the given format and
// validates it.
func Parse(content []byte, format Format) (*Hoistfile, error) {
	h, err := parse(content, format)
	if err != nil {
		return nil, err
	}
	if err := Validate(h); err != nil {
		return nil, err
	}
	return h, nil
}

func applyDefaults(h *Hoistfile) {
	if h.Version == 0 {
		h.Version = 1
	}
	h.Source.Type = types.SourceType(strings.ToLower(string(h.Source.Type)))
	h.Download.Archive = types.ArchiveType(strings.ToLower(string(h.Download.Archive)))
	if h.Download.Archive == "tgz" {
		h.Download.Archive = types.ArchiveTarGz
	}
	h.Download.Archive = h.Download.Archive.Default()

	if h.Source.Type.IsGitHub() && h.Source.Token == "" {
		h.Source.Token = os.Getenv("GITHUB_TOKEN")
	}
}
