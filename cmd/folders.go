package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veloxcase/cli/internal/casesync"
	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/ui"
)

var (
	foldersProject int
	foldersParent  int
	foldersFormat  string
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List and create Testmo folders",
}

var foldersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the folders of a project",
	Args:  cobra.NoArgs,
	RunE:  runFoldersList,
}

var foldersCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a folder",
	Long: `Create a folder in a Testmo project, optionally below a parent folder.

Examples:
  veloxcase folders create "Regression" --project 1
  veloxcase folders create "Login" --project 1 --parent 42`,
	Args: cobra.ExactArgs(1),
	RunE: runFoldersCreate,
}

func init() {
	foldersCmd.PersistentFlags().IntVar(&foldersProject, "project", 0, "Testmo project ID (default: last used)")
	foldersListCmd.Flags().StringVarP(&foldersFormat, "output", "o", "text", "Output format (text, json, yaml)")
	foldersCreateCmd.Flags().IntVar(&foldersParent, "parent", 0, "Parent folder ID")

	foldersCmd.AddCommand(foldersListCmd)
	foldersCmd.AddCommand(foldersCreateCmd)
}

// folderProject returns --project or the last used project
func folderProject() (int, *casesync.StateManager, error) {
	state, err := casesync.NewStateManager("")
	if err != nil {
		return 0, nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	projectID := foldersProject
	if projectID == 0 {
		projectID = state.LastProject()
	}
	if projectID <= 0 {
		return 0, nil, client.Validationf("no project selected. Pass --project N")
	}
	return projectID, state, nil
}

func runFoldersList(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireTestmo(); err != nil {
		return err
	}
	projectID, state, err := folderProject()
	if err != nil {
		return err
	}

	a := newApp(cmd.Context())
	defer a.Close()

	list, err := a.registry.Refresh(cmd.Context(), projectID)
	if err != nil {
		return fmt.Errorf("failed to load folders: %w", err)
	}

	state.Remember(projectID, 0)
	if err := state.Save(); err != nil {
		logger.Warn("failed to save selection", "path", state.Path(), "error", err)
	}

	if done, err := writeStructured(cmd.OutOrStdout(), foldersFormat, list); done {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.Folders(list))
	return nil
}

func runFoldersCreate(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireTestmo(); err != nil {
		return err
	}
	projectID, _, err := folderProject()
	if err != nil {
		return err
	}

	a := newApp(cmd.Context())
	defer a.Close()

	var parentID *int
	if foldersParent > 0 {
		// Parent paths come from the registry
		if _, err := a.registry.Refresh(cmd.Context(), projectID); err != nil {
			return fmt.Errorf("failed to load folders: %w", err)
		}
		parentID = &foldersParent
	}

	f, err := a.registry.Create(cmd.Context(), projectID, args[0], parentID)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	cmd.Printf("%s Created folder %s (#%d)\n", ui.Icon("✓", ui.StyleSuccess), f.DisplayPath, f.ID)
	return nil
}
