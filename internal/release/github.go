package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/adamancini/hoist/internal/fetch"
	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/version"
)

const defaultAPIURL = "https://api.github.com"

type (
	// GitHub retrieves the latest published release of a repository.
	GitHub struct {
		owner      string
		repo       string
		apiURL     string
		tagPrefix  string
		token      string
		downloader *fetch.Downloader
	}

	// GitHubOption configures a GitHub retriever.
	GitHubOption func(*GitHub)

	githubRelease struct {
		TagName    string        `json:"tag_name"`
		Draft      bool          `json:"draft"`
		Prerelease bool          `json:"prerelease"`
		Assets     []githubAsset `json:"assets"`
	}

	githubAsset struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	}
)

// WithAPIURL overrides the GitHub API base URL, primarily for test servers.
func WithAPIURL(u string) GitHubOption {
	return func(g *GitHub) {
		g.apiURL = strings.TrimRight(u, "/")
	}
}

// WithToken sets a GitHub token sent with API requests only.
func WithToken(token string) GitHubOption {
	return func(g *GitHub) {
		g.token = token
	}
}

// WithTagPrefix sets the literal prefix stripped from tags before parsing
// them as versions. The default is "v".
func WithTagPrefix(prefix string) GitHubOption {
	return func(g *GitHub) {
		g.tagPrefix = prefix
	}
}

// WithDownloader sets the downloader used to query the API. Its
// cancellation flag and scheme policy apply to the query.
func WithDownloader(d *fetch.Downloader) GitHubOption {
	return func(g *GitHub) {
		g.downloader = d
	}
}

// NewGitHub returns a retriever for github.com/owner/repo.
func NewGitHub(owner, repo string, opts ...GitHubOption) *GitHub {
	g := &GitHub{
		owner:     owner,
		repo:      repo,
		apiURL:    defaultAPIURL,
		tagPrefix: "v",
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.downloader == nil {
		g.downloader = fetch.New()
	}
	return g
}

// Latest queries /repos/{owner}/{repo}/releases/latest.
func (g *GitHub) Latest(ctx context.Context, filenamePattern *regexp.Regexp) (version.Number, types.FileURL, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", g.apiURL, g.owner, g.repo)
	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		header.Set("Authorization", "Bearer "+g.token)
	}
	data, err := g.downloader.BytesWithHeader(ctx, url, header)
	if err != nil {
		return version.Number{}, types.FileURL{}, fmt.Errorf("failed to get latest release: %w", err)
	}
	rel, err := ParseGitHubRelease(data, g.tagPrefix)
	if err != nil {
		return version.Number{}, types.FileURL{}, err
	}
	u, err := rel.FindAsset(filenamePattern)
	if err != nil {
		return version.Number{}, types.FileURL{}, err
	}
	return rel.Version, u, nil
}

// URLPattern matches release downloads of this repository.
func (g *GitHub) URLPattern() *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^https://github\.com/%s/%s/releases/download/.*`,
		regexp.QuoteMeta(g.owner), regexp.QuoteMeta(g.repo)))
}

// ParseGitHubRelease decodes a GitHub release API response.
func ParseGitHubRelease(data []byte, tagPrefix string) (*Release, error) {
	var gr githubRelease
	if err := json.Unmarshal(data, &gr); err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}
	if gr.TagName == "" {
		return nil, fmt.Errorf("release has no tag_name")
	}
	if gr.Draft || gr.Prerelease {
		return nil, fmt.Errorf("release %s is a draft or prerelease", gr.TagName)
	}
	v, err := version.ParseWithPrefix(gr.TagName, tagPrefix)
	if err != nil {
		return nil, fmt.Errorf("invalid release tag: %w", err)
	}

	rel := &Release{Tag: gr.TagName, Version: v}
	for _, a := range gr.Assets {
		if a.Name == "" || a.BrowserDownloadURL == "" {
			continue
		}
		rel.Assets = append(rel.Assets, Asset{Name: a.Name, URL: a.BrowserDownloadURL})
	}
	return rel, nil
}
