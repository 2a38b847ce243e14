package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/update"
	"github.com/adamancini/hoist/internal/version"
)

const applyRetryInterval = 250 * time.Millisecond

type runResult struct {
	Applied    bool           `json:"applied" yaml:"applied"`
	Version    version.Number `json:"version,omitempty" yaml:"version,omitempty"`
	Executable string         `json:"executable" yaml:"executable"`
}

func (r runResult) String() string {
	if r.Applied {
		return output.Success("applied %s and started %s", r.Version, r.Executable)
	}
	return output.Success("started %s", r.Executable)
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start [-- args...]",
		Short: "Start the application from the latest directory",
		Long: `Start runs app.executable from the latest directory, detached, without
applying updates.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(a *app, m *update.Manager) error {
				exe, err := a.executable()
				if err != nil {
					return err
				}
				if err := m.StartLatest(exe, args); err != nil {
					return err
				}
				return a.out.Write(runResult{Executable: filepath.Join(m.LatestPath(), exe)})
			})
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [-- args...]",
		Short: "Apply the newest update, then start the application",
		Long: `Run is what the launcher does: wait for the application to exit, promote
the newest installed update and start app.executable from the latest
directory. If the update cannot be applied the installed version is
started anyway.`,
	}
	bindRunFlags(cmd, opts)
	return cmd
}

// newLauncherCmd is the root command of hoist-launcher.
func newLauncherCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hoist-launcher [-- args...]",
		Short:        "Apply the newest update and start the application",
		SilenceUsage: true,
	}
	addGlobalFlags(cmd, opts)
	bindRunFlags(cmd, opts)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, opts *rootOptions) {
	var kill bool
	var wait time.Duration

	cmd.Flags().BoolVar(&kill, "kill", false, "Terminate processes still running from the old version")
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for the application to exit")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return opts.withManager(cmd, func(a *app, m *update.Manager) error {
			res, err := a.applyAndStart(cmd.Context(), m, kill, wait, args)
			if err != nil {
				return err
			}
			return a.out.Write(res)
		})
	}
}

func (a *app) executable() (string, error) {
	if a.hoistfile.App.Executable == "" {
		return "", fmt.Errorf("%s: app.executable is required to start the application", a.path)
	}
	return a.hoistfile.App.Executable, nil
}

// applyAndStart promotes the newest update, retrying while processes of
// the old version are still exiting, and starts the application.
func (a *app) applyAndStart(ctx context.Context, m *update.Manager, kill bool, wait time.Duration, args []string) (runResult, error) {
	exe, err := a.executable()
	if err != nil {
		return runResult{}, err
	}

	v, applied, err := a.applyWithin(ctx, m, kill, wait)
	if err != nil {
		if ctx.Err() != nil {
			return runResult{}, err
		}
		a.logger.Warn("could not apply update, starting the installed version", "err", err)
	}

	if err := m.StartLatest(exe, args); err != nil {
		return runResult{}, err
	}
	return runResult{Applied: applied, Version: v, Executable: filepath.Join(m.LatestPath(), exe)}, nil
}

func (a *app) applyWithin(ctx context.Context, m *update.Manager, kill bool, wait time.Duration) (version.Number, bool, error) {
	deadline := time.Now().Add(wait)
	for {
		v, applied, err := m.ApplyLatest(ctx, kill)
		if !errors.Is(err, update.ErrProcessesRunning) || time.Now().After(deadline) {
			return v, applied, err
		}
		a.logger.Debug("waiting for the application to exit", "err", err)
		select {
		case <-ctx.Done():
			return version.Number{}, false, ctx.Err()
		case <-time.After(applyRetryInterval):
		}
	}
}
