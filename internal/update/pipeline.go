package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/adamancini/hoist/internal/operation"
	"github.com/adamancini/hoist/internal/sentinel"
	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/verify"
	"github.com/adamancini/hoist/internal/version"
)

// maxParallelDownloads bounds concurrent downloads of additional files.
const maxParallelDownloads = 4

// run installs release v from url into <workdir>/<v>:
//
//	fetch -> verify -> extract -> content ops -> rename -> post ops -> sentinel
//
// Every step runs in a fresh scratch directory below the temp directory,
// which is removed on return. A failure before the rename leaves the
// working directory untouched; a failure after it removes the new
// directory again.
func (u *Updater) run(ctx context.Context, v version.Number, url types.FileURL) (string, error) {
	logger := u.manager.logger
	target := filepath.Join(u.manager.WorkDir(), v.String())

	if !isPlainName(url.Filename()) {
		return "", fmt.Errorf("invalid artifact file name %q", url.Filename())
	}
	if err := u.clearTarget(ctx, target, v); err != nil {
		return "", err
	}

	scratch, err := u.manager.tempDir("update-")
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Debug("failed to remove scratch directory", "dir", scratch, "err", err)
		}
	}()
	downloads := filepath.Join(scratch, "download")
	if err := os.Mkdir(downloads, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	// 1. Fetch the additional files first, then the artifact
	files, err := u.fetchAdditional(ctx, v, url, downloads)
	if err != nil {
		return "", err
	}
	primary := filepath.Join(downloads, url.Filename())
	if _, dup := files[url.Filename()]; dup {
		return "", fmt.Errorf("artifact %s is also required as an additional file", url.Filename())
	}
	if err := u.fetch(ctx, v, url, url.Filename(), primary); err != nil {
		return "", err
	}

	// 2. Verify
	if err := verify.All(primary, files, u.verifiers...); err != nil {
		if errors.Is(err, verify.ErrVerificationFailed) {
			logger.Error("update verification failed, possible security event", "version", v, "url", url, "err", err)
		}
		return "", err
	}
	if len(u.verifiers) > 0 {
		logger.Info("update verified", "version", v, "verifiers", len(u.verifiers))
	}

	// 3. Extract
	content := filepath.Join(scratch, "content")
	if err := u.extractor.Extract(primary, content); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", url.Filename(), err)
	}

	// 4. Content operations
	if err := operation.Run(content, u.contentOps...); err != nil {
		return "", &OperationError{Stage: StageContent, Err: err}
	}

	// 5. Relocate
	if _, err := os.Lstat(target); err == nil {
		return "", fmt.Errorf("%w: %s", ErrTargetExists, target)
	}
	if err := os.Rename(content, target); err != nil {
		return "", fmt.Errorf("failed to move update into place: %w", err)
	}

	// 6. Post-update operations
	if err := operation.Run(target, u.postOps...); err != nil {
		u.discard(target)
		return "", &OperationError{Stage: StagePostUpdate, Err: err}
	}

	// 7. Sentinel
	if err := sentinel.Write(target, v); err != nil {
		u.discard(target)
		return "", err
	}

	logger.Info("update installed", "version", v, "dir", target)
	return target, nil
}

// clearTarget makes sure target can be created. A validated directory for
// v means the update is already installed; anything else there is the
// remains of an interrupted run and is removed, unless a process still runs
// from it.
func (u *Updater) clearTarget(ctx context.Context, target string, v version.Number) error {
	if _, err := os.Lstat(target); os.IsNotExist(err) {
		return nil
	}
	if sentinel.Matches(target, v) {
		return fmt.Errorf("%w: %s", ErrAlreadyInstalled, target)
	}
	if err := u.manager.stopProcesses(ctx, target, false); err != nil {
		return err
	}
	u.manager.logger.Debug("removing incomplete version directory", "dir", target)
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to clear incomplete version directory: %w", err)
	}
	return nil
}

// fetchAdditional downloads every file the verifiers need, in parallel.
func (u *Updater) fetchAdditional(ctx context.Context, v version.Number, url types.FileURL, dir string) (verify.Files, error) {
	names := verify.RequiredFiles(u.verifiers...)
	files := make(verify.Files, len(names))
	for _, name := range names {
		if !isRelativeName(name) {
			return nil, fmt.Errorf("invalid additional file name %q", name)
		}
		files[name] = filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(files[name]), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create download directory: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDownloads)
	for _, name := range names {
		g.Go(func() error {
			return u.fetch(gctx, v, url.Sibling(name), name, files[name])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// fetch downloads the file called name to dst, honouring URL overrides.
func (u *Updater) fetch(ctx context.Context, v version.Number, url types.FileURL, name, dst string) error {
	src := url.URL()
	if fn, ok := u.overrides[name]; ok {
		src = fn(v)
	}
	if err := u.downloader.Fetch(ctx, src, dst); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	return nil
}

func (u *Updater) discard(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		u.manager.logger.Warn("failed to remove failed update", "dir", dir, "err", err)
	}
}

// isRelativeName reports whether name is a clean slash separated path that
// stays below the download directory, e.g. "checksums/SHA256SUMS".
func isRelativeName(name string) bool {
	if name == "" || strings.ContainsAny(name, `\:`) || path.IsAbs(name) || path.Clean(name) != name {
		return false
	}
	return name != "." && name != ".." && !strings.HasPrefix(name, "../")
}
