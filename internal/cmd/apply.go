package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/update"
	"github.com/adamancini/hoist/internal/version"
)

type applyResult struct {
	Applied bool           `json:"applied" yaml:"applied"`
	Version version.Number `json:"version" yaml:"version"`
	Path    string         `json:"path" yaml:"path"`
}

func (r applyResult) String() string {
	if !r.Applied {
		return output.Success("nothing to apply")
	}
	return output.Success("%s is now in %s", r.Version, r.Path)
}

func newApplyCmd(opts *rootOptions) *cobra.Command {
	var noKill bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Promote the newest installed update to the latest directory",
		Long: `Apply moves the newest installed update into the latest directory and
carries retained files over from the version it replaces.

Processes running from the affected directories are terminated first
unless --no-kill is given, in which case apply fails while they run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(a *app, m *update.Manager) error {
				v, applied, err := m.ApplyLatest(cmd.Context(), !noKill)
				if err != nil {
					return err
				}
				return a.out.Write(applyResult{Applied: applied, Version: v, Path: m.LatestPath()})
			})
		},
	}

	cmd.Flags().BoolVar(&noKill, "no-kill", false, "Fail instead of terminating running processes")
	return cmd
}
