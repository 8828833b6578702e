package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/veloxcase/cli/internal/casesync"
	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/schema"
	"github.com/veloxcase/cli/internal/ui"
)

var (
	syncProject     int
	syncFolder      int
	syncAI          bool
	syncCasesFile   string
	syncOnDuplicate string
	syncFormat      string
)

// Duplicate policies for --on-duplicate
const (
	onDuplicateAsk       = "ask"
	onDuplicateSkip      = "skip"
	onDuplicateOverwrite = "overwrite"
)

var syncCmd = &cobra.Command{
	Use:   "sync KEY[,KEY...]",
	Short: "Publish Jira tasks as Testmo test cases",
	Long: `Build test cases from one or more Jira tasks and publish them into a Testmo
folder.

Without --ai each task becomes one case built from its description and the
test cases written in its comments. With --ai the cases come from Gemini.
--cases publishes the cases from a file written by 'veloxcase analyze -o yaml'
(or a plain list of cases) instead.

When a case with the same name already exists, the sync pauses and asks
whether to overwrite it. Use --on-duplicate to answer up front.

The project and folder are remembered in ~/.veloxcase/selection.json.

Examples:
  veloxcase sync PROJ-123 --project 1
  veloxcase sync PROJ-123,PROJ-124 --project 1 --folder 42 --ai
  veloxcase analyze PROJ-123 -o yaml > cases.yaml && veloxcase sync PROJ-123 --cases cases.yaml
  veloxcase sync PROJ-123 --on-duplicate overwrite -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().IntVar(&syncProject, "project", 0, "Testmo project ID (default: last used)")
	syncCmd.Flags().IntVar(&syncFolder, "folder", 0, "Testmo folder ID (default: last used in the project, or prompt)")
	syncCmd.Flags().BoolVar(&syncAI, "ai", false, "Generate cases with AI")
	syncCmd.Flags().StringVar(&syncCasesFile, "cases", "", "Publish the cases from this YAML or JSON file")
	syncCmd.Flags().StringVar(&syncOnDuplicate, "on-duplicate", onDuplicateAsk, "What to do with duplicates (ask, skip, overwrite)")
	syncCmd.Flags().StringVarP(&syncFormat, "output", "o", "text", "Output format (text, json)")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := cfg.RequireJira(); err != nil {
		return err
	}
	if err := cfg.RequireTestmo(); err != nil {
		return err
	}
	policy, err := parseDuplicatePolicy(syncOnDuplicate, interactive())
	if err != nil {
		return err
	}

	state, err := casesync.NewStateManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize state manager: %w", err)
	}

	a := newApp(ctx)
	defer a.Close()

	target, err := resolveTarget(ctx, a, state)
	if err != nil {
		return err
	}

	keys := schema.SplitTaskKeys(args[0])
	var candidates []schema.TestCaseCandidate
	if syncCasesFile != "" {
		fallbackKey := ""
		if len(keys) > 0 {
			fallbackKey = keys[0]
		}
		candidates, err = loadCaseFile(syncCasesFile, fallbackKey)
	} else {
		settings := cfg.Analysis()
		if cmd.Flags().Changed("ai") {
			settings.Enabled = syncAI && settings.Enabled
			if syncAI && !settings.Enabled {
				return casesync.ErrAIDisabled
			}
		}
		candidates, err = a.orch.CollectCandidates(ctx, keys, settings, cfg.MaxTasks)
	}
	if err != nil {
		return err
	}

	report, err := a.orch.Sync(ctx, target, candidates)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	for report.AwaitingDecision() {
		overwrite, err := decide(policy, report.Conflict)
		if err != nil {
			return err
		}
		report, err = a.orch.ResolveDuplicate(ctx, casesync.Decision{Overwrite: overwrite})
		if err != nil {
			return fmt.Errorf("failed to resolve duplicate: %w", err)
		}
	}

	state.Remember(target.ProjectID, target.FolderID)
	if err := state.Save(); err != nil {
		logger.Warn("failed to save selection", "path", state.Path(), "error", err)
	}

	if syncFormat == "json" {
		data, err := report.ToJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprint(cmd.OutOrStdout(), ui.Report(report))
	}

	if report.Err != nil {
		return fmt.Errorf("sync stopped: %w", report.Err)
	}
	return nil
}

// resolveTarget picks the project and folder from flags, the remembered
// selection or a prompt, in that order
func resolveTarget(ctx context.Context, a *app, state *casesync.StateManager) (schema.SyncTarget, error) {
	projectID := syncProject
	if projectID == 0 {
		projectID = state.LastProject()
	}
	if projectID <= 0 {
		return schema.SyncTarget{}, client.Validationf("no project selected. Pass --project N")
	}

	list, err := a.registry.Refresh(ctx, projectID)
	if err != nil {
		return schema.SyncTarget{}, fmt.Errorf("failed to load folders of project %d: %w", projectID, err)
	}

	folderID := syncFolder
	if folderID == 0 {
		remembered, ok := state.FolderFor(projectID)
		if ok && !a.registry.Contains(projectID, remembered) {
			state.Forget(projectID)
			ok = false
		}
		switch {
		case interactive():
			folderID, err = ui.PromptFolder(list, remembered)
			if err != nil {
				return schema.SyncTarget{}, err
			}
		case ok:
			folderID = remembered
		default:
			return schema.SyncTarget{}, client.Validationf("no folder selected. Pass --folder N (see: veloxcase folders list --project %d)", projectID)
		}
	}
	return schema.SyncTarget{ProjectID: projectID, FolderID: folderID}, nil
}

// parseDuplicatePolicy validates --on-duplicate. Asking needs a terminal;
// without one duplicates are skipped.
func parseDuplicatePolicy(policy string, tty bool) (string, error) {
	switch policy {
	case onDuplicateAsk:
		if !tty {
			return onDuplicateSkip, nil
		}
		return policy, nil
	case onDuplicateSkip, onDuplicateOverwrite:
		return policy, nil
	default:
		return "", client.Validationf("--on-duplicate must be ask, skip or overwrite, got %q", policy)
	}
}

// decide answers one pending duplicate according to the policy
func decide(policy string, conflict *schema.DuplicateConflict) (bool, error) {
	switch policy {
	case onDuplicateOverwrite:
		return true, nil
	case onDuplicateSkip:
		return false, nil
	}
	if conflict == nil {
		return false, nil
	}
	choice, err := ui.PromptConflict(*conflict)
	if err != nil {
		return false, err
	}
	return choice == ui.ChoiceOverwrite, nil
}

// caseFile is the shape written by 'analyze -o yaml'
type caseFile struct {
	TaskKey   string                     `json:"task_key"`
	TestCases []schema.TestCaseCandidate `json:"test_cases"`
}

// loadCaseFile reads candidates from an analysis file or a plain list.
// Cases without a task key get the file's key, then fallbackKey.
func loadCaseFile(path, fallbackKey string) ([]schema.TestCaseCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases file: %w", err)
	}

	var doc caseFile
	var cases []schema.TestCaseCandidate
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.TestCases) > 0 {
		cases = doc.TestCases
	} else if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, client.Validationf("cases file %s is neither an analysis nor a list of cases: %v", path, err)
	}
	if len(cases) == 0 {
		return nil, client.Validationf("cases file %s contains no cases", path)
	}

	for i := range cases {
		if cases[i].TaskKey == "" {
			cases[i].TaskKey = doc.TaskKey
		}
		if cases[i].TaskKey == "" {
			cases[i].TaskKey = fallbackKey
		}
		if cases[i].TaskKey == "" {
			return nil, client.Validationf("case %q has no task key", cases[i].Name)
		}
		if cases[i].Status == "" {
			cases[i].Status = schema.DefaultCaseStatus
		}
	}
	return cases, nil
}
