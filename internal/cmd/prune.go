package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/interactive"
	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/update"
)

type removeResult struct {
	Removed []string `json:"removed" yaml:"removed"`
	Aborted bool     `json:"aborted,omitempty" yaml:"aborted,omitempty"`
}

func (r removeResult) String() string {
	switch {
	case r.Aborted:
		return output.Warning("aborted, nothing removed")
	case len(r.Removed) == 0:
		return output.Success("nothing to remove")
	default:
		return output.Success("removed %d entries", len(r.Removed))
	}
}

func newPruneCmd(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old versions and leftovers",
		Long: `Prune deletes everything in the working directory except the latest
directory, the running version, the newest installed update and the lock.
Processes running from deleted versions are terminated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(a *app, m *update.Manager) error {
				entries, err := m.PruneCandidates()
				if err != nil {
					return err
				}
				if len(entries) > 0 && !yes && opts.isTerminal() &&
					!interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.ErrOrStderr()).ConfirmRemoval("prune", m.WorkDir(), entries) {
					return a.out.Write(removeResult{Aborted: true})
				}
				if err := m.Prune(cmd.Context()); err != nil {
					return err
				}
				return a.out.Write(removeResult{Removed: nonNil(entries)})
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newUnlinkCmd(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "unlink",
		Short: "Delete every installed version",
		Long: `Unlink deletes everything in the working directory except the lock and the
directory the running executable lives in. Automatic updates stop working
until the application is installed again.

Without --yes unlink asks for confirmation, and refuses to run when it
cannot ask.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(a *app, m *update.Manager) error {
				entries, err := m.UnlinkCandidates()
				if err != nil {
					return err
				}
				if !yes {
					if !opts.isTerminal() {
						return fmt.Errorf("unlink needs --yes when not run from a terminal")
					}
					if !interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.ErrOrStderr()).ConfirmRemoval("unlink", m.WorkDir(), entries) {
						return a.out.Write(removeResult{Aborted: true})
					}
				}
				if err := m.Unlink(cmd.Context()); err != nil {
					return err
				}
				return a.out.Write(removeResult{Removed: nonNil(entries)})
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
