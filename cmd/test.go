package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veloxcase/cli/internal/ui"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test Jira and Testmo connectivity",
	Long: `Call Jira and Testmo with the configured credentials to verify connectivity
and authentication.`,
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireJira(); err != nil {
		return err
	}
	if err := cfg.RequireTestmo(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout())
	defer cancel()

	a := newApp(ctx)
	defer a.Close()

	failed := false

	fmt.Printf("Testing connection to %s...\n", cfg.Jira.BaseURL)
	if name, err := a.jira.Myself(ctx); err != nil {
		fmt.Printf("  %s %v\n", ui.Icon("✗", ui.StyleError), err)
		failed = true
	} else {
		fmt.Printf("  %s Authenticated as %s\n", ui.Icon("✓", ui.StyleSuccess), name)
	}

	fmt.Printf("Testing connection to %s...\n", a.testmo.WebURL())
	if projects, err := a.testmo.Projects(ctx); err != nil {
		fmt.Printf("  %s %v\n", ui.Icon("✗", ui.StyleError), err)
		failed = true
	} else {
		fmt.Printf("  %s %d project(s) visible\n", ui.Icon("✓", ui.StyleSuccess), len(projects))
		for _, p := range projects {
			fmt.Printf("    #%d %s\n", p.ID, p.Name)
		}
	}

	if failed {
		return fmt.Errorf("connection test failed")
	}
	fmt.Println("Success! Both connections verified.")
	return nil
}
