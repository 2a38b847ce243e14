package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/update"
	"github.com/adamancini/hoist/internal/version"
)

type checkResult struct {
	App     string            `json:"app" yaml:"app"`
	Current version.Number    `json:"current" yaml:"current"`
	Latest  version.Number    `json:"latest" yaml:"latest"`
	State   types.UpdateState `json:"state" yaml:"state"`
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
}

func (r checkResult) String() string {
	report := output.Report("Update check: "+r.App,
		output.Field{Label: "Running", Value: r.Current.String()},
		output.Field{Label: "Latest", Value: r.Latest.String()},
		output.Field{Label: "Download", Value: r.URL},
	)
	switch r.State {
	case types.StateNewVersionAvailable:
		return report + "\n" + output.Success("%s is available, run 'hoist update'", r.Latest)
	case types.StateAlreadyInstalled:
		return report + "\n" + output.Success("%s is installed and applies on the next launch", r.Latest)
	case types.StateLatestIsOlder:
		return report + "\n" + output.Warning("the newest release is older than the running version")
	default:
		return report + "\n" + output.Success("up to date")
	}
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check whether a newer release is available",
		Long: `Check queries the release source and compares the newest release with the
running version and with what is already installed. Nothing is downloaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(a *app, m *update.Manager) error {
				u, err := a.updater(m)
				if err != nil {
					return err
				}
				info, err := u.GetLatest(cmd.Context())
				if err != nil {
					return err
				}
				return a.out.Write(checkResult{
					App:     a.hoistfile.App.Name,
					Current: m.CurrentVersion(),
					Latest:  info.Version,
					State:   info.State,
					URL:     info.URL.URL(),
				})
			})
		},
	}
}
