package update

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/adamancini/hoist/internal/archive"
	"github.com/adamancini/hoist/internal/fetch"
	"github.com/adamancini/hoist/internal/operation"
	"github.com/adamancini/hoist/internal/release"
	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/verify"
	"github.com/adamancini/hoist/internal/version"
)

type (
	// Info describes the newest release and how it relates to what is
	// installed.
	Info struct {
		State   types.UpdateState
		Version version.Number
		URL     types.FileURL
	}

	// URLFunc computes the download URL of a file for a release version.
	URLFunc func(v version.Number) string

	// Updater downloads releases into the working directory of its Manager.
	Updater struct {
		manager *Manager

		source                  release.Retriever
		filenamePattern         *regexp.Regexp
		urlPattern              *regexp.Regexp
		filenameContainsVersion bool
		extractor               archive.Extractor
		verifiers               []verify.Verifier
		contentOps              []operation.Operation
		postOps                 []operation.Operation
		overrides               map[string]URLFunc
		downloader              *fetch.Downloader

		inProgress sync.Mutex
	}

	// UpdaterOption configures an Updater.
	UpdaterOption func(*Updater) error
)

// WithSource sets the release retriever. Its URL pattern becomes the
// trusted URL pattern unless WithURLPattern is given.
func WithSource(r release.Retriever) UpdaterOption {
	return func(u *Updater) error {
		u.source = r
		return nil
	}
}

// WithFilenamePattern sets the regular expression the artifact's file
// name must match in full.
func WithFilenamePattern(pattern string) UpdaterOption {
	return func(u *Updater) error {
		re, err := release.CompileFilenamePattern(pattern)
		if err != nil {
			return err
		}
		u.filenamePattern = re
		return nil
	}
}

// WithURLPattern overrides the trusted URL pattern. Download URLs must
// match it from the start.
func WithURLPattern(pattern string) UpdaterOption {
	return func(u *Updater) error {
		if !strings.HasPrefix(pattern, "^") {
			pattern = "^" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid url pattern: %w", err)
		}
		u.urlPattern = re
		return nil
	}
}

// WithFilenameContainsVersion controls whether the artifact's file name
// must contain the release version. It is on by default; turning it off
// lets a feed install an artifact under a version it does not carry.
func WithFilenameContainsVersion(enabled bool) UpdaterOption {
	return func(u *Updater) error {
		u.filenameContainsVersion = enabled
		return nil
	}
}

// WithArchiveType selects the archive format. The default detects it from
// the file extension.
func WithArchiveType(t types.ArchiveType) UpdaterOption {
	return func(u *Updater) error {
		ex, err := archive.ForType(t)
		if err != nil {
			return err
		}
		u.extractor = ex
		return nil
	}
}

// WithExtractor sets a custom archive extractor.
func WithExtractor(e archive.Extractor) UpdaterOption {
	return func(u *Updater) error {
		u.extractor = e
		return nil
	}
}

// WithVerifier adds verifiers, run in order after download.
func WithVerifier(v ...verify.Verifier) UpdaterOption {
	return func(u *Updater) error {
		u.verifiers = append(u.verifiers, v...)
		return nil
	}
}

// WithContentOperation adds operations run on the extracted content before
// it is moved into the working directory.
func WithContentOperation(op ...operation.Operation) UpdaterOption {
	return func(u *Updater) error {
		u.contentOps = append(u.contentOps, op...)
		return nil
	}
}

// WithPostUpdateOperation adds operations run on the version directory
// after it was created.
func WithPostUpdateOperation(op ...operation.Operation) UpdaterOption {
	return func(u *Updater) error {
		u.postOps = append(u.postOps, op...)
		return nil
	}
}

// WithFileURL downloads filename from the URL fn returns instead of from
// next to the artifact.
func WithFileURL(filename string, fn URLFunc) UpdaterOption {
	return func(u *Updater) error {
		if !isPlainName(filename) {
			return fmt.Errorf("invalid override file name %q", filename)
		}
		if u.overrides == nil {
			u.overrides = make(map[string]URLFunc)
		}
		u.overrides[filename] = fn
		return nil
	}
}

// WithFileURLTemplate is WithFileURL with a template in which {version} is
// replaced by the release version.
func WithFileURLTemplate(filename, template string) UpdaterOption {
	return WithFileURL(filename, func(v version.Number) string {
		return strings.ReplaceAll(template, "{version}", v.String())
	})
}

// WithDownloader sets the downloader. Its cancellation flag is the one
// Cancel toggles.
func WithDownloader(d *fetch.Downloader) UpdaterOption {
	return func(u *Updater) error {
		u.downloader = d
		return nil
	}
}

// NewUpdater returns an Updater that installs into m's working directory.
func NewUpdater(m *Manager, opts ...UpdaterOption) (*Updater, error) {
	if m == nil {
		return nil, errors.New("updater requires a manager")
	}
	u := &Updater{
		manager:                 m,
		filenameContainsVersion: true,
		extractor:               archive.Auto{},
	}
	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, err
		}
	}
	if u.downloader == nil {
		u.downloader = fetch.New(fetch.WithLogger(m.logger))
	}
	if !u.filenameContainsVersion {
		m.logger.Warn("filename version check is disabled; a release feed can install an artifact under any version")
	}
	return u, nil
}

// Manager returns the updater's manager.
func (u *Updater) Manager() *Manager { return u.manager }

// Cancel sets the cancellation flag and returns its previous value. While
// set, every download fails with fetch.ErrCancelled. It must be reset
// before the next update.
func (u *Updater) Cancel(cancel bool) bool { return u.downloader.Cancel(cancel) }

// Cancelled reports the cancellation flag.
func (u *Updater) Cancelled() bool { return u.downloader.Cancelled() }

// GetLatest asks the source for the newest release and classifies it.
// A release that is already validated in either the latest directory or a
// version directory is reported as StateAlreadyInstalled, even when it is
// newer than the running version.
func (u *Updater) GetLatest(ctx context.Context) (*Info, error) {
	if u.source == nil {
		return nil, ErrNoSource
	}
	if u.filenamePattern == nil {
		return nil, ErrNoFilenamePattern
	}

	v, url, err := u.source.Latest(ctx, u.filenamePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve latest release: %w", err)
	}
	if err := u.checkURL(v, url); err != nil {
		return nil, err
	}

	info := &Info{Version: v, URL: url}
	installed, err := u.manager.LatestAvailableUpdate()
	if err != nil {
		return nil, err
	}
	current := u.manager.CurrentVersion()
	switch {
	case installed != nil && installed.Version.Equal(v):
		info.State = types.StateAlreadyInstalled
	case v.Equal(current):
		info.State = types.StateUpToDate
	case v.Less(current):
		info.State = types.StateLatestIsOlder
	default:
		info.State = types.StateNewVersionAvailable
		if latest, ok := u.manager.LatestVersion(); ok && latest.Equal(v) {
			info.State = types.StateAlreadyInstalled
		}
	}
	u.manager.logger.Debug("latest release", "version", v, "url", url, "state", info.State)
	return info, nil
}

// Update downloads, verifies and extracts the release described by info
// into its version directory and returns that directory. Only one update
// runs at a time per Updater.
func (u *Updater) Update(ctx context.Context, info *Info) (string, error) {
	if info == nil {
		return "", errors.New("no release to update to")
	}
	if !u.inProgress.TryLock() {
		return "", ErrUpdateInProgress
	}
	defer u.inProgress.Unlock()

	if u.filenamePattern == nil {
		return "", ErrNoFilenamePattern
	}
	if err := u.checkURL(info.Version, info.URL); err != nil {
		return "", err
	}
	if err := u.manager.AcquireLock(); err != nil {
		return "", err
	}
	return u.run(ctx, info.Version, info.URL)
}

// UpdateLatest runs GetLatest and installs the result if it is a new
// version. Any other state is returned as ErrUpToDate, ErrLatestIsOlder or
// ErrAlreadyInstalled.
func (u *Updater) UpdateLatest(ctx context.Context) (string, *Info, error) {
	info, err := u.GetLatest(ctx)
	if err != nil {
		return "", nil, err
	}
	switch info.State {
	case types.StateNewVersionAvailable:
	case types.StateUpToDate:
		return "", info, ErrUpToDate
	case types.StateLatestIsOlder:
		return "", info, fmt.Errorf("%w: %s < %s", ErrLatestIsOlder, info.Version, u.manager.CurrentVersion())
	case types.StateAlreadyInstalled:
		return "", info, ErrAlreadyInstalled
	default:
		return "", info, fmt.Errorf("unknown update state %s", info.State)
	}
	dir, err := u.Update(ctx, info)
	return dir, info, err
}

// checkURL validates a (version, url) pair against the configured
// patterns.
func (u *Updater) checkURL(v version.Number, url types.FileURL) error {
	if url.IsZero() {
		return errors.New("release has no download url")
	}
	if u.filenamePattern != nil && !u.filenamePattern.MatchString(url.Filename()) {
		return fmt.Errorf("%w: %s", ErrFilenamePattern, url.Filename())
	}
	trusted := u.urlPattern
	if trusted == nil && u.source != nil {
		trusted = u.source.URLPattern()
	}
	if trusted == nil {
		return fmt.Errorf("%w: no trusted url pattern configured", ErrURLNotTrusted)
	}
	if loc := trusted.FindStringIndex(url.URL()); loc == nil || loc[0] != 0 {
		return fmt.Errorf("%w: %s", ErrURLNotTrusted, url)
	}
	if u.filenameContainsVersion && !FilenameContainsVersion(url.Filename(), v) {
		return fmt.Errorf("%w: %s is not version %s", ErrFilenameVersionMismatch, url.Filename(), v)
	}
	return u.downloader.CheckURL(url.URL())
}
