package release

import (
	"context"
	"fmt"
	"regexp"

	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/version"
)

// Static always reports one fixed version and URL. It suits self-hosted
// release channels and tests.
type Static struct {
	version version.Number
	url     types.FileURL
}

// NewStatic returns a retriever for v at u.
func NewStatic(v version.Number, u types.FileURL) *Static {
	return &Static{version: v, url: u}
}

// Latest returns the configured release if its filename matches.
func (s *Static) Latest(_ context.Context, filenamePattern *regexp.Regexp) (version.Number, types.FileURL, error) {
	if !filenamePattern.MatchString(s.url.Filename()) {
		return version.Number{}, types.FileURL{}, fmt.Errorf("%w: %s does not match %s",
			ErrNoMatchingAsset, s.url.Filename(), filenamePattern)
	}
	return s.version, s.url, nil
}

// URLPattern matches URLs under the configured base URL.
func (s *Static) URLPattern() *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(s.url.BaseURL()) + ".*")
}
