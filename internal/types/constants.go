// Package types provides type-safe constants shared by the hoist packages.
//
// This package centralizes the enumerated types used throughout the codebase,
// replacing magic strings with typed constants that provide compile-time safety
// and validation methods.
//
// SYNC REQUIREMENT: These types must stay in sync with:
//   - internal/config/validate.go (runtime validation)
//   - internal/templates/*.yaml (Hoistfile templates)
package types

import (
	"fmt"
	"strings"
)

// SourceType represents where release information comes from.
type SourceType string

const (
	// SourceTypeGitHub queries the GitHub releases API.
	SourceTypeGitHub SourceType = "github"
	// SourceTypeStatic uses a fixed version and download URL.
	SourceTypeStatic SourceType = "static"
)

// AllSourceTypes returns all valid source types.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceTypeGitHub, SourceTypeStatic}
}

// Validate checks if the SourceType is a valid value.
func (s SourceType) Validate() error {
	switch s {
	case SourceTypeGitHub, SourceTypeStatic:
		return nil
	case "":
		return fmt.Errorf("source type is required")
	default:
		return fmt.Errorf("invalid source type '%s' (must be github or static)", s)
	}
}

// String returns the string representation of the SourceType.
func (s SourceType) String() string {
	return string(s)
}

// IsGitHub returns true if the source type is GitHub.
func (s SourceType) IsGitHub() bool {
	return s == SourceTypeGitHub
}

// IsStatic returns true if the source type is static.
func (s SourceType) IsStatic() bool {
	return s == SourceTypeStatic
}

// ParseSourceType parses a string into a SourceType.
// Returns an error if the string is not a valid source type.
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(strings.ToLower(s))
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

// ArchiveType selects the extraction backend for a downloaded artifact.
type ArchiveType string

const (
	// ArchiveAuto picks the backend from the artifact's file extension.
	ArchiveAuto ArchiveType = "auto"
	// ArchiveZip extracts ZIP archives.
	ArchiveZip ArchiveType = "zip"
	// ArchiveTarGz extracts gzip-compressed tarballs.
	ArchiveTarGz ArchiveType = "tar.gz"
)

// AllArchiveTypes returns all valid archive types.
func AllArchiveTypes() []ArchiveType {
	return []ArchiveType{ArchiveAuto, ArchiveZip, ArchiveTarGz}
}

// Validate checks if the ArchiveType is a valid value.
// Empty is valid and means auto.
func (a ArchiveType) Validate() error {
	switch a {
	case ArchiveAuto, ArchiveZip, ArchiveTarGz, "":
		return nil
	default:
		return fmt.Errorf("invalid archive type '%s' (must be auto, zip, or tar.gz)", a)
	}
}

// String returns the string representation of the ArchiveType.
func (a ArchiveType) String() string {
	return string(a)
}

// Default returns ArchiveAuto if empty, otherwise the current value.
func (a ArchiveType) Default() ArchiveType {
	if a == "" {
		return ArchiveAuto
	}
	return a
}

// ParseArchiveType parses a string into an ArchiveType.
// Accepts "tgz" as an alias for tar.gz.
func ParseArchiveType(s string) (ArchiveType, error) {
	s = strings.ToLower(s)
	if s == "tgz" {
		s = string(ArchiveTarGz)
	}
	at := ArchiveType(s)
	if err := at.Validate(); err != nil {
		return "", err
	}
	return at.Default(), nil
}

// UpdateState classifies the newest release relative to what is installed.
type UpdateState int

const (
	// StateUpToDate means the newest release is the running version.
	StateUpToDate UpdateState = iota
	// StateAlreadyInstalled means the newest release is already on disk
	// as a validated update directory.
	StateAlreadyInstalled
	// StateLatestIsOlder means the newest release is older than the
	// running version.
	StateLatestIsOlder
	// StateNewVersionAvailable means the newest release should be installed.
	StateNewVersionAvailable
)

var updateStateNames = map[UpdateState]string{
	StateUpToDate:            "up_to_date",
	StateAlreadyInstalled:    "update_already_installed",
	StateLatestIsOlder:       "latest_is_older",
	StateNewVersionAvailable: "new_version_available",
}

// String returns the snake_case name of the state.
func (s UpdateState) String() string {
	if name, ok := updateStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UpdateState(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler so states render by name
// in json and yaml output.
func (s UpdateState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseUpdateState parses the snake_case name of a state.
func ParseUpdateState(s string) (UpdateState, error) {
	for state, name := range updateStateNames {
		if name == strings.ToLower(s) {
			return state, nil
		}
	}
	return 0, fmt.Errorf("invalid update state '%s'", s)
}
