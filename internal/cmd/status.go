package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/update"
	"github.com/adamancini/hoist/internal/version"
)

type statusResult struct {
	App             string         `json:"app" yaml:"app"`
	WorkDir         string         `json:"working_directory" yaml:"working_directory"`
	Running         version.Number `json:"running" yaml:"running"`
	LatestDirectory string         `json:"latest_directory" yaml:"latest_directory"`
	Latest          version.Number `json:"latest,omitempty" yaml:"latest,omitempty"`
	Update          version.Number `json:"update,omitempty" yaml:"update,omitempty"`
	UpdatePath      string         `json:"update_path,omitempty" yaml:"update_path,omitempty"`
	Locked          bool           `json:"locked" yaml:"locked"`
}

func (r statusResult) String() string {
	locked := "no"
	if r.Locked {
		locked = "held by this process"
	}
	return output.Report("Status: "+r.App,
		output.Field{Label: "Working directory", Value: r.WorkDir},
		output.Field{Label: "Running", Value: r.Running.String()},
		output.Field{Label: "Latest (" + r.LatestDirectory + ")", Value: r.Latest.String()},
		output.Field{Label: "Pending update", Value: r.Update.String()},
		output.Field{Label: "Lock", Value: locked},
	)
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show installed versions",
		Long: `Status shows the running version, the version in the latest directory and
the newest installed update waiting to be applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(a *app, m *update.Manager) error {
				s, err := m.Status()
				if err != nil {
					return err
				}
				res := statusResult{
					App:             a.hoistfile.App.Name,
					WorkDir:         s.WorkDir,
					Running:         s.Current,
					LatestDirectory: s.LatestDirectory,
					Latest:          s.Latest,
					Locked:          s.Locked,
				}
				if s.Update != nil {
					res.Update = s.Update.Version
					res.UpdatePath = s.Update.Path
				}
				return a.out.Write(res)
			})
		},
	}
}
