package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/config"
	"github.com/adamancini/hoist/internal/interactive"
	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/update"
)

// rootOptions holds the global flags of one command tree.
type rootOptions struct {
	configPath   string
	outputFormat string
	workDir      string
	appVersion   string
	verbose      bool
	quiet        bool

	// runtime is the base for every engine built by the commands. Tests
	// replace its process controller, shell and HTTP client.
	runtime config.Runtime
	// isTerminal reports whether prompts can be shown.
	isTerminal func() bool
}

func newRootOptions() *rootOptions {
	return &rootOptions{isTerminal: interactive.IsTerminal}
}

// app is what a command needs after the Hoistfile has been loaded.
type app struct {
	opts      *rootOptions
	path      string
	hoistfile *config.Hoistfile
	logger    *log.Logger
	out       *output.Writer
}

// newLogger returns the CLI logger: Debug with --verbose, Error with
// --quiet and Info otherwise.
func (o *rootOptions) newLogger(w io.Writer) *log.Logger {
	level := log.InfoLevel
	switch {
	case o.quiet:
		level = log.ErrorLevel
	case o.verbose:
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "hoist",
		Level:           level,
		ReportTimestamp: o.verbose,
	})
}

// load locates and parses the Hoistfile.
func (o *rootOptions) load(cmd *cobra.Command) (*app, error) {
	format, err := output.ParseFormat(o.outputFormat)
	if err != nil {
		return nil, err
	}

	path, err := config.Find(o.configPath)
	if err != nil {
		return nil, err
	}
	h, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logger := o.newLogger(cmd.ErrOrStderr())
	logger.Debug("loaded Hoistfile", "path", path, "app", h.App.Name)

	return &app{
		opts:      o,
		path:      path,
		hoistfile: h,
		logger:    logger,
		out:       output.NewWriter(cmd.OutOrStdout(), format),
	}, nil
}

func (a *app) runtime() config.Runtime {
	rt := a.opts.runtime
	rt.Logger = a.logger
	rt.Version = a.opts.appVersion
	rt.WorkDir = a.opts.workDir
	return rt
}

// manager opens the working directory. Callers must Close it.
func (a *app) manager() (*update.Manager, error) {
	return a.hoistfile.NewManager(a.runtime())
}

func (a *app) updater(m *update.Manager) (*update.Updater, error) {
	return a.hoistfile.NewUpdater(m, a.runtime())
}

// withManager loads the Hoistfile, opens the working directory and runs fn.
func (o *rootOptions) withManager(cmd *cobra.Command, fn func(a *app, m *update.Manager) error) error {
	a, err := o.load(cmd)
	if err != nil {
		return err
	}
	m, err := a.manager()
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return fn(a, m)
}
