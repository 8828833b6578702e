package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veloxcase/cli/internal/store"
	"github.com/veloxcase/cli/internal/ui"
)

var (
	historyLimit  int
	historyFormat string
	statsFormat   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent syncs",
	Long: `List the most recent successful syncs, newest first.

History is stored locally in the file named by db_path.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded syncs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show sync statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", store.DefaultHistoryLimit, "Number of syncs to show")
	historyCmd.Flags().StringVarP(&historyFormat, "output", "o", "text", "Output format (text, json, yaml)")
	statsCmd.Flags().StringVarP(&statsFormat, "output", "o", "text", "Output format (text, json, yaml)")

	historyCmd.AddCommand(historyClearCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.History(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if done, err := writeStructured(cmd.OutOrStdout(), historyFormat, entries); done {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.History(entries))
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Clear(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("History cleared")
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats(cmd.Context())
	if err != nil {
		return err
	}
	if done, err := writeStructured(cmd.OutOrStdout(), statsFormat, stats); done {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.Stats(stats))
	return nil
}
