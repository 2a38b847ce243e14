package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/update"
	"github.com/adamancini/hoist/internal/version"
)

type updateResult struct {
	Version   version.Number    `json:"version" yaml:"version"`
	State     types.UpdateState `json:"state" yaml:"state"`
	Installed bool              `json:"installed" yaml:"installed"`
	Directory string            `json:"directory,omitempty" yaml:"directory,omitempty"`
}

func (r updateResult) String() string {
	if r.Installed {
		return output.Success("installed %s into %s", r.Version, r.Directory) +
			"\n" + output.MutedStyle.Render("It is applied the next time the application starts through its launcher.")
	}
	switch r.State {
	case types.StateAlreadyInstalled:
		return output.Success("%s is already installed", r.Version)
	case types.StateLatestIsOlder:
		return output.Warning("the newest release %s is older than the running version", r.Version)
	default:
		return output.Success("up to date")
	}
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Download, verify and install the newest release",
		Long: `Update downloads the newest release next to the running version, verifies
it, extracts it and marks it complete. The running application is not
touched; the update is promoted by 'hoist apply' or the launcher.

Interrupting the command (Ctrl-C) cancels the download.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(a *app, m *update.Manager) error {
				u, err := a.updater(m)
				if err != nil {
					return err
				}

				dir, info, err := u.UpdateLatest(cmd.Context())
				switch {
				case err == nil:
					a.logger.Info("update installed", "version", info.Version, "dir", dir)
					return a.out.Write(updateResult{Version: info.Version, State: info.State, Installed: true, Directory: dir})
				case info != nil && (errors.Is(err, update.ErrUpToDate) ||
					errors.Is(err, update.ErrAlreadyInstalled) ||
					errors.Is(err, update.ErrLatestIsOlder)):
					return a.out.Write(updateResult{Version: info.Version, State: info.State})
				default:
					return err
				}
			})
		},
	}
}
