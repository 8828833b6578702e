package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veloxcase/cli/internal/ui"
)

var (
	previewFormat string

	analyzeFormat       string
	analyzeInstructions string
	analyzeVision       bool
	analyzeAutomation   bool
	analyzeNegative     bool
	analyzeMockData     bool
)

var previewCmd = &cobra.Command{
	Use:   "preview KEY",
	Short: "Show a Jira task before syncing it",
	Long: `Fetch the summary and status of a Jira task.

KEY may be a bare key (PROJ-123) or a browse URL.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze KEY",
	Short: "Generate test cases for a task with AI",
	Long: `Ask Gemini to write test cases for a Jira task and print them.

Feature flags default to the ai.* config values; the flags below override
them for one run.

Examples:
  veloxcase analyze PROJ-123
  veloxcase analyze PROJ-123 --negative --mock-data -o yaml
  veloxcase analyze PROJ-123 --instructions "focus on the mobile layout"`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	previewCmd.Flags().StringVarP(&previewFormat, "output", "o", "text", "Output format (text, json, yaml)")

	analyzeCmd.Flags().StringVarP(&analyzeFormat, "output", "o", "text", "Output format (text, json, yaml)")
	analyzeCmd.Flags().StringVar(&analyzeInstructions, "instructions", "", "Extra instructions for the model")
	analyzeCmd.Flags().BoolVar(&analyzeVision, "vision", false, "Send task images to the model")
	analyzeCmd.Flags().BoolVar(&analyzeAutomation, "automation", false, "Ask for automation candidates")
	analyzeCmd.Flags().BoolVar(&analyzeNegative, "negative", false, "Include negative test cases")
	analyzeCmd.Flags().BoolVar(&analyzeMockData, "mock-data", false, "Generate mock test data")
}

func runPreview(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireJira(); err != nil {
		return err
	}
	a := newApp(cmd.Context())
	defer a.Close()

	p, err := a.orch.Preview(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch task: %w", err)
	}

	if done, err := writeStructured(cmd.OutOrStdout(), previewFormat, p); done {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Preview(p))
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireJira(); err != nil {
		return err
	}

	settings := cfg.Analysis()
	if !settings.Enabled {
		return fmt.Errorf("AI analysis is disabled. Run: veloxcase config set ai.enabled true && veloxcase config set ai.api_key <key>")
	}
	flags := cmd.Flags()
	if flags.Changed("vision") {
		settings.Features.Vision = analyzeVision
	}
	if flags.Changed("automation") {
		settings.Features.Automation = analyzeAutomation
	}
	if flags.Changed("negative") {
		settings.Features.Negative = analyzeNegative
	}
	if flags.Changed("mock-data") {
		settings.Features.MockData = analyzeMockData
	}
	if analyzeInstructions != "" {
		settings.CustomInstructions = analyzeInstructions
	}

	a := newApp(cmd.Context())
	defer a.Close()

	result, err := a.orch.Analyze(cmd.Context(), args[0], settings)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if done, err := writeStructured(cmd.OutOrStdout(), analyzeFormat, result); done {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Analysis(result))
	return nil
}
