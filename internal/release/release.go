// Package release discovers the newest published release and the download
// URL of the artifact to install.
package release

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/version"
)

var (
	// ErrNoMatchingAsset is returned when no artifact matches the filename pattern.
	ErrNoMatchingAsset = errors.New("no release asset matches the filename pattern")

	// ErrAmbiguousAsset is returned when several artifacts match the pattern.
	ErrAmbiguousAsset = errors.New("more than one release asset matches the filename pattern")
)

type (
	// Retriever yields the newest release artifact.
	Retriever interface {
		// Latest returns the newest version and the URL of the artifact whose
		// filename fully matches filenamePattern.
		Latest(ctx context.Context, filenamePattern *regexp.Regexp) (version.Number, types.FileURL, error)
		// URLPattern matches every URL this retriever may legitimately
		// return. Downloads outside it are rejected.
		URLPattern() *regexp.Regexp
	}

	// Asset is one downloadable file of a release.
	Asset struct {
		Name string
		URL  string
	}

	// Release is a parsed release feed entry.
	Release struct {
		Tag     string
		Version version.Number
		Assets  []Asset
	}
)

// CompileFilenamePattern compiles pattern so that it must match a whole
// filename.
func CompileFilenamePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, errors.New("filename pattern is empty")
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid filename pattern %q: %w", pattern, err)
	}
	return re, nil
}

// FindAsset returns the single asset whose name matches pattern.
func (r *Release) FindAsset(pattern *regexp.Regexp) (types.FileURL, error) {
	var matches []Asset
	for _, a := range r.Assets {
		if pattern.MatchString(a.Name) {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 0:
		return types.FileURL{}, fmt.Errorf("%w: %s in release %s", ErrNoMatchingAsset, pattern, r.Tag)
	case 1:
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return types.FileURL{}, fmt.Errorf("%w: %v", ErrAmbiguousAsset, names)
	}

	u, err := types.ParseFileURL(matches[0].URL)
	if err != nil {
		return types.FileURL{}, err
	}
	if u.Filename() != matches[0].Name {
		return types.FileURL{}, fmt.Errorf("asset %q has mismatched download url %s", matches[0].Name, u)
	}
	return u, nil
}
