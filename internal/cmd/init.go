package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/config"
	"github.com/adamancini/hoist/internal/fetch"
	"github.com/adamancini/hoist/internal/templates"
)

type initOptions struct {
	template string
	output   string
	force    bool
	quiet    bool
	values   templates.Values

	// downloader fetches custom templates; https only.
	downloader *fetch.Downloader
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	var o initOptions
	var name, owner, repo, executable string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new Hoistfile from a template",
		Long: `Create a new Hoistfile from a built-in or custom template.

Available templates:
  minimal    - Static release URL, no verification
  github     - GitHub releases with SHA256SUMS
  full       - Every option, launcher and shortcuts

Placeholders in a template are filled from the flags below, then from
environment variables of the same name (APP_NAME, GITHUB_OWNER, ...).

Examples:
  hoist init                                     # Interactive mode
  hoist init --template=github --name notes --owner acme
  hoist init --template=https://...              # Custom template URL
  hoist init --file ./Hoistfile                  # Custom output location`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.quiet = opts.quiet
			o.values = templates.Values{
				"APP_NAME":       name,
				"APP_VERSION":    opts.appVersion,
				"APP_EXECUTABLE": executable,
				"GITHUB_OWNER":   owner,
				"GITHUB_REPO":    repo,
			}
			if o.output == "" {
				o.output = opts.configPath
			}
			fetchOpts := []fetch.Option{fetch.WithLogger(opts.newLogger(cmd.ErrOrStderr()))}
			if opts.runtime.HTTPClient != nil {
				fetchOpts = append(fetchOpts, fetch.WithHTTPClient(opts.runtime.HTTPClient))
			}
			o.downloader = fetch.New(fetchOpts...)
			return runInit(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), o)
		},
	}

	cmd.Flags().StringVarP(&o.template, "template", "t", "", "Template name or https URL")
	cmd.Flags().StringVar(&o.output, "file", "", "Output path for the Hoistfile (defaults to --config)")
	cmd.Flags().BoolVar(&o.force, "force", false, "Overwrite an existing Hoistfile")
	cmd.Flags().StringVar(&name, "name", "", "Application name")
	cmd.Flags().StringVar(&executable, "executable", "", "Executable inside the version directory")
	cmd.Flags().StringVar(&owner, "owner", "", "GitHub repository owner")
	cmd.Flags().StringVar(&repo, "repo", "", "GitHub repository name")

	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, tmpl := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", tmpl, templates.GetDescription(tmpl)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit executes the init workflow.
func runInit(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, o initOptions) error {
	reader := bufio.NewReader(stdin)
	interactiveMode := o.template == ""

	outputPath := o.output
	if outputPath == "" {
		outputPath = defaultHoistfilePath()
	}
	outputPath = expandHomePath(outputPath)

	if _, err := os.Stat(outputPath); err == nil && !o.force {
		_, _ = fmt.Fprintf(stderr, "Hoistfile already exists at %s\n", outputPath)
		_, _ = fmt.Fprintf(stdout, "Overwrite? [y/N]: ")
		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	templateName := o.template
	if interactiveMode {
		selected, err := selectTemplateInteractive(reader, stdout)
		if err != nil {
			return err
		}
		templateName = selected
	}

	var content []byte
	source := templateName
	if strings.HasPrefix(templateName, "http://") || strings.HasPrefix(templateName, "https://") {
		downloader := o.downloader
		if downloader == nil {
			downloader = fetch.New()
		}
		raw, err := downloader.Bytes(ctx, templateName)
		if err != nil {
			return fmt.Errorf("failed to fetch template: %w", err)
		}
		content = templates.Expand(raw, o.values)
		source = "custom"
	} else {
		tmpl, err := templates.Render(templateName, o.values)
		if err != nil {
			return fmt.Errorf("failed to load template: %w", err)
		}
		content = tmpl.Content
	}

	if _, err := config.Parse(content, config.DetectFormat(templateName, content)); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	if interactiveMode && !o.quiet {
		_, _ = fmt.Fprintf(stdout, "\nPreview of '%s' template:\n", source)
		_, _ = fmt.Fprintln(stdout, strings.Repeat("-", 40))
		lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
		const maxLines = 20
		for i, line := range lines {
			if i == maxLines {
				_, _ = fmt.Fprintf(stdout, "... (%d more lines)\n", len(lines)-maxLines)
				break
			}
			_, _ = fmt.Fprintln(stdout, line)
		}
		_, _ = fmt.Fprintln(stdout, strings.Repeat("-", 40))

		if o.output == "" {
			_, _ = fmt.Fprintf(stdout, "\nWhere should I create the Hoistfile? [%s]: ", outputPath)
			answer, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("failed to read input: %w", err)
			}
			if answer = strings.TrimSpace(answer); answer != "" {
				outputPath = expandHomePath(answer)
			}
		}
	}

	parentDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(parentDir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", parentDir, err)
	}
	if err := os.WriteFile(outputPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write Hoistfile: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "\nCreated %s\n", outputPath)
	_, _ = fmt.Fprintln(stdout, "\nNext steps:")
	_, _ = fmt.Fprintln(stdout, "  1. Edit the Hoistfile to describe your releases")
	_, _ = fmt.Fprintln(stdout, "  2. Run 'hoist check' to query the release source")
	_, _ = fmt.Fprintln(stdout, "  3. Run 'hoist update' to install the newest release")

	return nil
}

// selectTemplateInteractive shows a numbered menu of templates.
func selectTemplateInteractive(reader *bufio.Reader, stdout io.Writer) (string, error) {
	templateList := templates.List()

	_, _ = fmt.Fprintln(stdout, "\nSelect a Hoistfile template:")
	for i, name := range templateList {
		_, _ = fmt.Fprintf(stdout, "  %d. %-12s - %s\n", i+1, name, templates.GetDescription(name))
	}
	_, _ = fmt.Fprintf(stdout, "  %d. %-12s - Provide custom template URL\n", len(templateList)+1, "custom")
	_, _ = fmt.Fprintf(stdout, "\nSelect [1-%d]: ", len(templateList)+1)

	answer, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	answer = strings.TrimSpace(answer)

	num, err := strconv.Atoi(answer)
	if err != nil || num < 1 || num > len(templateList)+1 {
		return "", fmt.Errorf("invalid selection: %s", answer)
	}

	if num == len(templateList)+1 {
		_, _ = fmt.Fprint(stdout, "Enter template URL: ")
		url, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read URL: %w", err)
		}
		return strings.TrimSpace(url), nil
	}

	return templateList[num-1], nil
}

// defaultHoistfilePath returns $XDG_CONFIG_HOME/hoist/Hoistfile, one of
// the locations config.Find searches.
func defaultHoistfilePath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hoist", "Hoistfile")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "Hoistfile"
	}
	return filepath.Join(home, ".config", "hoist", "Hoistfile")
}

// expandHomePath expands ~ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
