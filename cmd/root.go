package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/veloxcase/cli/internal/config"
	"github.com/veloxcase/cli/internal/logging"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	cfgFile string
	debug   bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "veloxcase",
	Short: "VeloxCase - Turn Jira tasks into Testmo test cases",
	Long: `VeloxCase reads tasks from Jira, optionally asks Gemini to write test cases
for them, and publishes the result into a Testmo repository folder.

Get started:
  1. Configure Jira:   veloxcase config set jira.base_url your-site.atlassian.net
                       veloxcase config set jira.email you@example.com
                       veloxcase config set jira.api_token <token>
  2. Configure Testmo: veloxcase config set testmo.base_url your-org.testmo.net
                       veloxcase config set testmo.api_key <key>
  3. Check it works:   veloxcase test
  4. Sync a task:      veloxcase sync PROJ-123 --project 1`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.veloxcase/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig runs before every command that talks to a service
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = c
	logger = logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format, debug)
	slog.SetDefault(logger)
	return nil
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the version number",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("veloxcase %s\n", Version)
	},
}
