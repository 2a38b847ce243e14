// Package version implements variable-length numeric version numbers.
//
// A Number is an ordered list of non-negative integers such as 1.2.3.
// Comparison pads the shorter number with zeros, so "1.2" and "1.2.0"
// compare equal while "1.2.1" is greater than "1.2".
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalid is wrapped by every ParseError.
var ErrInvalid = errors.New("invalid version number")

// ParseError describes why a version string could not be parsed.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Input, e.Reason)
}

// Unwrap returns ErrInvalid so callers can use errors.Is.
func (e *ParseError) Unwrap() error { return ErrInvalid }

// Number is an immutable version number. The zero value has no components
// and compares equal to any all-zero version.
type Number struct {
	components []int
}

// New creates a version number from its components.
// It panics if a component is negative.
func New(components ...int) Number {
	for _, c := range components {
		if c < 0 {
			panic(fmt.Sprintf("version: negative component %d", c))
		}
	}
	cp := make([]int, len(components))
	copy(cp, components)
	return Number{components: cp}
}

// Parse parses a dotted version string such as "1.2.3".
func Parse(s string) (Number, error) {
	return ParseWithPrefix(s, "")
}

// ParseWithPrefix parses a version string that must start with prefix,
// e.g. ParseWithPrefix("v1.2.3", "v").
func ParseWithPrefix(s, prefix string) (Number, error) {
	if !strings.HasPrefix(s, prefix) {
		return Number{}, &ParseError{Input: s, Reason: fmt.Sprintf("missing prefix %q", prefix)}
	}
	rest := s[len(prefix):]
	if rest == "" {
		return Number{}, &ParseError{Input: s, Reason: "no components"}
	}

	parts := strings.Split(rest, ".")
	components := make([]int, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			return Number{}, &ParseError{Input: s, Reason: fmt.Sprintf("component %d is empty", i)}
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return Number{}, &ParseError{Input: s, Reason: fmt.Sprintf("component %d contains non-digit %q", i, c)}
			}
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return Number{}, &ParseError{Input: s, Reason: fmt.Sprintf("component %d out of range", i)}
		}
		components = append(components, n)
	}

	return Number{components: components}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Number {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Components returns a copy of the components.
func (v Number) Components() []int {
	cp := make([]int, len(v.components))
	copy(cp, v.components)
	return cp
}

// IsZero reports whether v has no components.
func (v Number) IsZero() bool {
	return len(v.components) == 0
}

// Compare compares two versions
// Returns:
//   - 1 if v > other
//   - 0 if v == other
//   - -1 if v < other
func (v Number) Compare(other Number) int {
	n := min(len(v.components), len(other.components))
	for i := 0; i < n; i++ {
		if v.components[i] != other.components[i] {
			if v.components[i] > other.components[i] {
				return 1
			}
			return -1
		}
	}

	// Any non-zero trailing component makes the longer version greater.
	if len(v.components) > n {
		for _, c := range v.components[n:] {
			if c > 0 {
				return 1
			}
		}
	}
	if len(other.components) > n {
		for _, c := range other.components[n:] {
			if c > 0 {
				return -1
			}
		}
	}
	return 0
}

// Equal returns true if v == other
func (v Number) Equal(other Number) bool {
	return v.Compare(other) == 0
}

// Less returns true if v < other
func (v Number) Less(other Number) bool {
	return v.Compare(other) < 0
}

// Greater returns true if v > other
func (v Number) Greater(other Number) bool {
	return v.Compare(other) > 0
}

// String returns the dotted representation, e.g. "1.2.3".
func (v Number) String() string {
	return v.Join(".")
}

// Join returns the components joined with separator.
func (v Number) Join(separator string) string {
	parts := make([]string, len(v.components))
	for i, c := range v.components {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, separator)
}

// MarshalText implements encoding.TextMarshaler.
func (v Number) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Number) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
