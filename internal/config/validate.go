package config

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adamancini/hoist/internal/release"
	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/update"
	"github.com/adamancini/hoist/internal/verify"
	"github.com/adamancini/hoist/internal/version"
)

// ValidationError represents a Hoistfile validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in a Hoistfile.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation errors:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the Hoistfile for required fields and valid values. The
// returned error is a ValidationErrors listing every problem.
func Validate(h *Hoistfile) error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if h.Version != 1 {
		add("version", "unsupported version %d (must be 1)", h.Version)
	}

	validateApp(h.App, add)

	if h.LatestDirectory != "" {
		if !isPlainName(h.LatestDirectory) {
			add("latest_directory", "must be a plain directory name")
		} else if _, err := version.Parse(h.LatestDirectory); err == nil {
			add("latest_directory", "must not be a version number")
		}
	}
	for i, p := range h.Retain {
		if !isRelative(p) {
			add(fmt.Sprintf("retain[%d]", i), "must be a relative path inside the version directory")
		}
	}

	validateSource(h.Source, add)
	validateDownload(h.Download, add)
	validateVerify(h.Verify, add)

	for i, p := range h.Content.Require {
		if !isRelative(p) {
			add(fmt.Sprintf("content.require[%d]", i), "must be a relative path")
		}
	}
	for i, s := range h.PostUpdate.Shortcuts {
		field := fmt.Sprintf("post_update.shortcuts[%d]", i)
		if s.Target == "" {
			add(field+".target", "is required")
		}
		if s.Name == "" {
			add(field+".name", "is required")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type addFunc func(field, format string, args ...any)

func validateApp(a App, add addFunc) {
	switch {
	case a.Name == "":
		add("app.name", "is required")
	case !isPlainName(a.Name):
		add("app.name", "must not contain path separators")
	}
	if a.Version != "" {
		if _, err := version.Parse(a.Version); err != nil {
			add("app.version", "%v", err)
		}
	}
	if a.Executable != "" && !isRelative(a.Executable) {
		add("app.executable", "must be relative to the latest directory")
	}
	if a.Launcher == "" && len(a.LauncherFiles) > 0 {
		add("app.launcher_files", "requires app.launcher")
	}
	for i, f := range a.LauncherFiles {
		if !isPlainName(f) {
			add(fmt.Sprintf("app.launcher_files[%d]", i), "must be a file name next to the launcher")
		}
	}
}

func validateSource(s Source, add addFunc) {
	if err := s.Type.Validate(); err != nil {
		add("source.type", "%v", err)
		return
	}

	switch {
	case s.Type.IsGitHub():
		if s.Owner == "" {
			add("source.owner", "is required for github sources")
		}
		if s.Repo == "" {
			add("source.repo", "is required for github sources")
		}
		if s.Version != "" || s.URL != "" {
			add("source", "version and url are only valid for static sources")
		}
	case s.Type.IsStatic():
		if s.Version == "" {
			add("source.version", "is required for static sources")
		} else if _, err := version.Parse(s.Version); err != nil {
			add("source.version", "%v", err)
		}
		if s.URL == "" {
			add("source.url", "is required for static sources")
		} else if _, err := types.ParseFileURL(update.Detect().Expand(s.URL)); err != nil {
			add("source.url", "%v", err)
		}
	}
}

func validateDownload(d Download, add addFunc) {
	if d.FilenamePattern == "" {
		add("download.filename_pattern", "is required")
	} else if _, err := release.CompileFilenamePattern(update.Detect().Expand(d.FilenamePattern)); err != nil {
		add("download.filename_pattern", "%v", err)
	}
	if d.URLPattern != "" {
		if _, err := regexp.Compile(d.URLPattern); err != nil {
			add("download.url_pattern", "%v", err)
		}
	}
	if err := d.Archive.Validate(); err != nil {
		add("download.archive", "%v", err)
	}
	for name, tmpl := range d.Overrides {
		field := fmt.Sprintf("download.overrides[%s]", name)
		if !isPlainName(name) {
			add(field, "key must be a file name")
		}
		if tmpl == "" {
			add(field, "URL template is required")
		}
	}
}

func validateVerify(v Verify, add addFunc) {
	if v.Checksums != "" && !isDownloadName(v.Checksums) {
		add("verify.checksums", "must be a relative path below the release directory")
	}
	if v.Signature == nil {
		return
	}
	s := v.Signature
	if s.Message != "" && !isDownloadName(s.Message) {
		add("verify.signature.message", "must be a relative path below the release directory")
	}
	if s.Signature == "" {
		add("verify.signature.signature", "is required")
	} else if !isDownloadName(s.Signature) {
		add("verify.signature.signature", "must be a relative path below the release directory")
	}
	if len(s.PublicKeys) == 0 {
		add("verify.signature.public_keys", "at least one public key is required")
	}
	for i, key := range s.PublicKeys {
		if _, err := verify.ParsePublicKey([]byte(key)); err != nil {
			add(fmt.Sprintf("verify.signature.public_keys[%d]", i), "%v", err)
		}
	}
}

func isPlainName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// isDownloadName accepts names of files fetched next to the artifact, which
// may live in a subdirectory of the release, e.g. "checksums/SHA256SUMS".
func isDownloadName(s string) bool {
	return isRelative(s) && !strings.ContainsAny(s, `\:`) && path.Clean(s) == s
}

func isRelative(p string) bool {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return false
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}
