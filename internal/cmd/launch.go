package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/update"
)

type launchResult struct {
	Launched bool `json:"launched" yaml:"launched"`
}

func (r launchResult) String() string {
	if !r.Launched {
		return output.Success("no newer version installed, nothing to launch")
	}
	return output.Success("launcher started, exit the application to finish the update")
}

func newLaunchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "launch [-- args...]",
		Short: "Start the launcher if a newer version is installed",
		Long: `Launch copies the launcher configured in app.launcher out of the working
directory and starts it detached when a version newer than the running one
is installed. The launcher waits for the application to exit, applies the
update and starts the new version with the given arguments.

Examples:
  hoist launch
  hoist launch -- --open-last-file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(a *app, m *update.Manager) error {
				launched, err := m.LaunchLatest(a.launcherArgs(m, args))
				if err != nil {
					return err
				}
				return a.out.Write(launchResult{Launched: launched})
			})
		},
	}
}

// launcherArgs passes the Hoistfile and working directory on to the
// launcher, which runs from a temporary copy and cannot find them itself.
func (a *app) launcherArgs(m *update.Manager, args []string) []string {
	out := []string{
		"--config", a.path,
		"--workdir", m.WorkDir(),
		"--app-version", m.CurrentVersion().String(),
	}
	if a.opts.verbose {
		out = append(out, "--verbose")
	}
	out = append(out, "--")
	return append(out, args...)
}
