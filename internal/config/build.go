package config

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/adamancini/hoist/internal/fetch"
	"github.com/adamancini/hoist/internal/operation"
	"github.com/adamancini/hoist/internal/process"
	"github.com/adamancini/hoist/internal/release"
	"github.com/adamancini/hoist/internal/shell"
	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/update"
	"github.com/adamancini/hoist/internal/verify"
	"github.com/adamancini/hoist/internal/version"
)

// ErrNoVersion is returned when neither the Hoistfile nor the caller
// supplies the running version.
var ErrNoVersion = errors.New("running version unknown: set app.version or pass --app-version")

// Runtime carries values that complement or override a Hoistfile when the
// engine is assembled.
type Runtime struct {
	Logger *log.Logger
	// Version overrides app.version.
	Version string
	// WorkDir overrides working_directory.
	WorkDir    string
	HTTPClient *http.Client
	// Processes and Shell replace the operating system capabilities.
	Processes process.Controller
	Shell     shell.Integration
	// Executable overrides the path of the running executable. Nil keeps
	// the operating system's answer.
	Executable *string
}

func (r Runtime) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.New(io.Discard)
}

// RunningVersion returns the version of the running application.
func (h *Hoistfile) RunningVersion(override string) (version.Number, error) {
	raw := override
	if raw == "" {
		raw = h.App.Version
	}
	if raw == "" {
		return version.Number{}, ErrNoVersion
	}
	return version.Parse(raw)
}

// NewManager opens the working directory described by the Hoistfile. The
// returned Manager holds the working directory lock.
func (h *Hoistfile) NewManager(rt Runtime) (*update.Manager, error) {
	current, err := h.RunningVersion(rt.Version)
	if err != nil {
		return nil, err
	}

	workDir := rt.WorkDir
	if workDir == "" {
		if workDir, err = h.ResolveWorkingDirectory(); err != nil {
			return nil, err
		}
	}

	opts := []update.ManagerOption{update.WithLogger(rt.logger())}
	if h.LatestDirectory != "" {
		opts = append(opts, update.WithLatestDirectory(h.LatestDirectory))
	}
	if len(h.Retain) > 0 {
		opts = append(opts, update.WithRetainedFiles(h.Retain...))
	}
	if h.App.Launcher != "" {
		l, err := update.NewLauncher(h.App.Launcher, h.App.LauncherFiles...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, update.WithLauncher(l))
	}
	if rt.Processes != nil {
		opts = append(opts, update.WithProcessController(rt.Processes))
	}
	if rt.Executable != nil {
		opts = append(opts, update.WithExecutablePath(*rt.Executable))
	}

	return update.NewManager(workDir, current, opts...)
}

// NewUpdater assembles an Updater for m from the source, download, verify,
// content and post_update sections.
func (h *Hoistfile) NewUpdater(m *update.Manager, rt Runtime) (*update.Updater, error) {
	logger := rt.logger()
	platform := update.Detect()

	fetchOpts := []fetch.Option{
		fetch.WithLogger(logger),
		fetch.WithAllowInsecure(h.Download.AllowInsecure),
		fetch.WithUserAgent("hoist/" + h.App.Name),
	}
	if rt.HTTPClient != nil {
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(rt.HTTPClient))
	}
	downloader := fetch.New(fetchOpts...)

	source, err := h.retriever(downloader)
	if err != nil {
		return nil, err
	}

	opts := []update.UpdaterOption{
		update.WithSource(source),
		update.WithDownloader(downloader),
		update.WithFilenamePattern(platform.Expand(h.Download.FilenamePattern)),
		update.WithFilenameContainsVersion(h.Download.ContainsVersion()),
		update.WithArchiveType(h.Download.Archive.Default()),
	}
	if h.Download.URLPattern != "" {
		opts = append(opts, update.WithURLPattern(h.Download.URLPattern))
	}
	for name, tmpl := range h.Download.Overrides {
		opts = append(opts, update.WithFileURLTemplate(platform.Expand(name), platform.Expand(tmpl)))
	}

	verifiers, err := h.verifiers()
	if err != nil {
		return nil, err
	}
	if len(verifiers) > 0 {
		opts = append(opts, update.WithVerifier(verifiers...))
	}

	if h.Content.Flatten {
		opts = append(opts, update.WithContentOperation(operation.Flatten()))
	}
	if len(h.Content.Require) > 0 {
		opts = append(opts, update.WithContentOperation(operation.RequireFiles(h.Content.Require...)))
	}

	for _, s := range h.PostUpdate.Shortcuts {
		var op operation.Operation = operation.Shortcut{
			Target:     s.Target,
			Name:       s.Name,
			Category:   s.Category,
			OnlyUpdate: s.OnlyUpdate,
			Shell:      rt.Shell,
		}
		if s.IgnoreFailure {
			op = operation.IgnoreFailure(op, logger)
		}
		opts = append(opts, update.WithPostUpdateOperation(op))
	}

	return update.NewUpdater(m, opts...)
}

func (h *Hoistfile) retriever(d *fetch.Downloader) (release.Retriever, error) {
	s := h.Source
	switch s.Type {
	case types.SourceTypeGitHub:
		opts := []release.GitHubOption{
			release.WithDownloader(d),
			release.WithTagPrefix(s.Prefix()),
		}
		if s.APIURL != "" {
			opts = append(opts, release.WithAPIURL(s.APIURL))
		}
		if s.Token != "" {
			opts = append(opts, release.WithToken(s.Token))
		}
		return release.NewGitHub(s.Owner, s.Repo, opts...), nil
	case types.SourceTypeStatic:
		v, err := version.Parse(s.Version)
		if err != nil {
			return nil, fmt.Errorf("source.version: %w", err)
		}
		u, err := types.ParseFileURL(update.Detect().Expand(s.URL))
		if err != nil {
			return nil, fmt.Errorf("source.url: %w", err)
		}
		return release.NewStatic(v, u), nil
	default:
		return nil, fmt.Errorf("source.type: %w", s.Type.Validate())
	}
}

func (h *Hoistfile) verifiers() ([]verify.Verifier, error) {
	var out []verify.Verifier
	if h.Verify.Checksums != "" {
		out = append(out, verify.NewSHA256Sums(h.Verify.Checksums))
	}
	if s := h.Verify.Signature; s != nil {
		sig, err := verify.NewSignature(s.Message, s.Signature, s.PublicKeys...)
		if err != nil {
			return nil, fmt.Errorf("verify.signature: %w", err)
		}
		out = append(out, sig)
	}
	return out, nil
}
