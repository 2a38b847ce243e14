package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/output"
)

// buildInfo is set by Execute from the linker flags of the binary.
type buildInfo struct {
	version string
	commit  string
	date    string
}

func newRootCmd(opts *rootOptions, info buildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hoist",
		Short: "Self-update engine for desktop applications",
		Long: output.TitleStyle.Render("hoist") + ` keeps an application up to date in place.

Each version lives in its own directory inside a working directory. The
application runs from the latest directory; updates are downloaded and
verified next to it and promoted by a short-lived launcher once the
application has exited.

Describe the application in a Hoistfile, then:
  hoist check     Report whether a newer release exists
  hoist update    Download, verify and install the newest release
  hoist launch    Hand over to the launcher to apply the update
  hoist status    Show what is installed`,
		SilenceUsage: true,
	}

	addGlobalFlags(rootCmd, opts)

	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newUpdateCmd(opts))
	rootCmd.AddCommand(newApplyCmd(opts))
	rootCmd.AddCommand(newLaunchCmd(opts))
	rootCmd.AddCommand(newStartCmd(opts))
	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newPruneCmd(opts))
	rootCmd.AddCommand(newUnlinkCmd(opts))
	rootCmd.AddCommand(newInitCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts, info))
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func addGlobalFlags(c *cobra.Command, opts *rootOptions) {
	flags := c.PersistentFlags()
	flags.StringVarP(&opts.outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	flags.StringVar(&opts.configPath, "config", "", "Path to Hoistfile")
	flags.StringVar(&opts.workDir, "workdir", "", "Working directory (overrides the Hoistfile)")
	flags.StringVar(&opts.appVersion, "app-version", "", "Version of the running application (overrides app.version)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Quiet mode (errors only)")

	_ = c.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func (b buildInfo) String() string {
	if b.version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.version, b.commit, b.date)
}

// Execute runs the hoist command line.
func Execute(version, commit, date string) error {
	info := buildInfo{version: version, commit: commit, date: date}
	return fang.Execute(
		context.Background(),
		newRootCmd(newRootOptions(), info),
		fang.WithVersion(info.String()),
		fang.WithNotifySignal(os.Interrupt),
	)
}

// ExecuteLauncher runs the hoist-launcher command line, which applies the
// newest update and starts the application.
func ExecuteLauncher(version, commit, date string) error {
	info := buildInfo{version: version, commit: commit, date: date}
	return fang.Execute(
		context.Background(),
		newLauncherCmd(newRootOptions()),
		fang.WithVersion(info.String()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithoutCompletions(),
		fang.WithoutManpage(),
	)
}
