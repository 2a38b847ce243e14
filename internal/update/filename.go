package update

import (
	"regexp"

	"github.com/adamancini/hoist/internal/version"
)

// filenameVersionPattern matches v as a whole token: it may not be
// preceded or followed by another digit, nor by a dot that touches a digit,
// so 1.2.3 is not found inside 11.2.3 or 1.2.34.
func filenameVersionPattern(v string) *regexp.Regexp {
	return regexp.MustCompile(`(^|^[^0-9]|[^0-9]\.|[^.0-9])` + regexp.QuoteMeta(v) + `([^.0-9]|\.[^0-9]|[^0-9]$|$)`)
}

// FilenameContainsVersion reports whether filename names version v.
func FilenameContainsVersion(filename string, v version.Number) bool {
	if v.IsZero() {
		return false
	}
	return filenameVersionPattern(v.String()).MatchString(filename)
}
