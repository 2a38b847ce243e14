package cmd

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/update"
)

type versionResult struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Date      string `json:"date,omitempty" yaml:"date,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
	Supported bool   `json:"supported" yaml:"supported"`
}

func (r versionResult) String() string {
	report := output.Report("hoist "+r.Version,
		output.Field{Label: "Commit", Value: r.Commit},
		output.Field{Label: "Built", Value: r.Date},
		output.Field{Label: "Go", Value: r.GoVersion},
		output.Field{Label: "Platform", Value: r.Platform},
	)
	if !r.Supported {
		return report + "\n" + output.Warning("self-update is not supported on %s", r.Platform)
	}
	return report
}

func newVersionCmd(opts *rootOptions, info buildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the hoist version, the commit it was built from and the platform
update artifacts are selected for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(opts.outputFormat)
			if err != nil {
				return err
			}
			platform := update.Detect()
			res := versionResult{
				Version:   info.version,
				GoVersion: runtime.Version(),
				Platform:  platform.OS + "/" + platform.Arch,
				Supported: platform.IsSupported(),
			}
			if info.version != "dev" {
				res.Commit = info.commit
				res.Date = info.date
			}
			return output.NewWriter(cmd.OutOrStdout(), format).Write(res)
		},
	}
}
