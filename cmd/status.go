package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veloxcase/cli/internal/casesync"
	"github.com/veloxcase/cli/internal/config"
	"github.com/veloxcase/cli/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show VeloxCase configuration status",
	Long:  `Display which services are configured and the remembered project and folder.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "VeloxCase CLI %s\n\n", Version)

	if cfg.JiraConfigured() {
		fmt.Fprintf(out, "Jira:   %s as %s (token %s)\n", cfg.Jira.BaseURL, cfg.Jira.Email, config.MaskAPIKey(cfg.Jira.APIToken))
	} else {
		fmt.Fprintln(out, "Jira:   Not configured")
		fmt.Fprintln(out, "  Set with: veloxcase config set jira.base_url|jira.email|jira.api_token VALUE")
	}

	if cfg.TestmoConfigured() {
		fmt.Fprintf(out, "Testmo: %s (key %s)\n", cfg.Testmo.BaseURL, config.MaskAPIKey(cfg.Testmo.APIKey))
	} else {
		fmt.Fprintln(out, "Testmo: Not configured")
		fmt.Fprintln(out, "  Set with: veloxcase config set testmo.base_url|testmo.api_key VALUE")
	}

	switch {
	case cfg.Analysis().Enabled:
		fmt.Fprintf(out, "AI:     %s (key %s)\n", cfg.AI.Model, config.MaskAPIKey(cfg.AI.APIKey))
	case cfg.AI.Enabled:
		fmt.Fprintln(out, "AI:     Enabled but ai.api_key is missing")
	default:
		fmt.Fprintln(out, "AI:     Disabled")
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Config:  %s\n", configFileShown())
	fmt.Fprintf(out, "History: %s\n", cfg.DBPath)

	state, err := casesync.NewStateManager("")
	if err != nil {
		return nil
	}
	if project := state.LastProject(); project > 0 {
		line := fmt.Sprintf("Last project: %d", project)
		if folder, ok := state.FolderFor(project); ok {
			line += fmt.Sprintf(", folder %d", folder)
		}
		fmt.Fprintln(out, ui.StyleSubtle.Render(line))
	}
	return nil
}

func configFileShown() string {
	if cfg.File != "" {
		return cfg.File
	}
	return config.ConfigPath() + " (not found)"
}
