package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veloxcase/cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage VeloxCase configuration",
	Long: `Manage VeloxCase configuration stored in ~/.veloxcase/config.yaml.

Every key can also come from the environment: VELOXCASE_ followed by the
key in upper case with dots replaced by underscores (VELOXCASE_JIRA_API_TOKEN).
A .env file in the working directory is read first.

Quick start:
  veloxcase config set jira.base_url your-site.atlassian.net
  veloxcase config set testmo.api_key <key>

Priority order: environment variables > config file > defaults`,
	// set must work even when the current file does not validate
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		values := c.Display()
		width := 0
		for _, k := range config.Keys() {
			width = max(width, len(k))
		}
		for _, k := range config.Keys() {
			cmd.Printf("%-*s  %s\n", width+1, k+":", values[k])
		}
		cmd.Println()
		cmd.Printf("Config: %s\n", configPathFor(c.File))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long: `Set one configuration value in the config file.

Keys:
  ` + strings.Join(config.Keys(), "\n  ") + `

Examples:
  veloxcase config set jira.email qa@example.com
  veloxcase config set ai.enabled true
  veloxcase config set max_tasks 5`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := strings.ToLower(args[0]), args[1]
		if err := config.Set(cfgFile, key, value); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		shown := value
		if config.IsSecret(key) {
			shown = config.MaskAPIKey(value)
		}
		cmd.Println("Configuration saved")
		cmd.Printf("  %s: %s\n", key, shown)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(configPathFor(cfgFile))
	},
}

func configPathFor(path string) string {
	if path == "" {
		return config.ConfigPath()
	}
	return path
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}
