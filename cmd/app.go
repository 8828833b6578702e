package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"sigs.k8s.io/yaml"

	"github.com/veloxcase/cli/internal/ai"
	"github.com/veloxcase/cli/internal/casesync"
	"github.com/veloxcase/cli/internal/folders"
	"github.com/veloxcase/cli/internal/publish"
	"github.com/veloxcase/cli/internal/store"
	"github.com/veloxcase/cli/internal/testmo"
	"github.com/veloxcase/cli/internal/tracker"
)

// app holds the clients a command works with
type app struct {
	jira     *tracker.Client
	testmo   *testmo.Client
	registry *folders.Registry
	db       *store.DB
	orch     *casesync.Orchestrator
}

// newApp wires the clients from the loaded config. The AI analyzer is only
// attached when analysis is enabled and a key is configured; the history
// store is optional.
func newApp(ctx context.Context) *app {
	a := &app{
		jira: tracker.New(tracker.Config{
			BaseURL:  cfg.Jira.BaseURL,
			Email:    cfg.Jira.Email,
			APIToken: cfg.Jira.APIToken,
			Timeout:  cfg.Timeout(),
			Logger:   logger,
		}),
		testmo: testmo.New(testmo.Config{
			BaseURL: cfg.Testmo.BaseURL,
			APIKey:  cfg.Testmo.APIKey,
			Timeout: cfg.Timeout(),
			Logger:  logger,
		}),
	}
	a.registry = folders.NewRegistry(a.testmo)

	opts := []casesync.Option{
		casesync.WithLogger(logger),
		casesync.WithFolders(a.registry),
	}

	if cfg.Analysis().Enabled {
		gen, err := ai.NewGeminiGenerator(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Temperature)
		if err != nil {
			logger.Warn("AI analysis disabled", "error", err)
		} else {
			opts = append(opts, casesync.WithAnalyzer(ai.NewAnalyzer(a.jira, gen, logger)))
		}
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Warn("sync history disabled", "path", cfg.DBPath, "error", err)
	} else {
		a.db = db
		opts = append(opts, casesync.WithRecorder(db))
	}

	a.orch = casesync.New(a.jira, publish.New(a.jira, a.testmo, logger), opts...)
	return a
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// openHistory opens only the history store
func openHistory() (*store.DB, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history at %s: %w", cfg.DBPath, err)
	}
	return db, nil
}

// interactive reports whether prompts can be shown
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// writeStructured prints v as JSON or YAML. It reports false for any other
// format so the caller can fall back to text.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return true, nil
	case "yaml", "yml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return true, fmt.Errorf("failed to encode YAML: %w", err)
		}
		fmt.Fprint(w, string(data))
		return true, nil
	case "", "text":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q (use text, json or yaml)", format)
	}
}
