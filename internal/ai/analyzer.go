// Package ai generates test case candidates from a tracker task with a
// language model.
package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/veloxcase/cli/internal/media"
	"github.com/veloxcase/cli/internal/schema"
	"github.com/veloxcase/cli/internal/tracker"
)

// FallbackExpectedResult is used when the model produced no cases
const FallbackExpectedResult = "The AI did not return any test cases. Wait a few minutes and retry, or edit the case manually."

// TaskSource is the tracker side of analysis
type TaskSource interface {
	Issue(ctx context.Context, key string) (*tracker.Issue, error)
	Comments(ctx context.Context, key string) ([]tracker.Comment, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Analyzer builds AnalysisResults from tasks
type Analyzer struct {
	source    TaskSource
	generator Generator
	logger    *slog.Logger
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(source TaskSource, generator Generator, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{source: source, generator: generator, logger: logger}
}

// Analyze fetches the task, asks the model for test cases and returns them
// in the order the model produced them
func (a *Analyzer) Analyze(ctx context.Context, key string, flags schema.FeatureFlags, instruction string) (*schema.AnalysisResult, error) {
	issue, err := a.source.Issue(ctx, key)
	if err != nil {
		return nil, err
	}

	comments, err := a.source.Comments(ctx, issue.Key)
	if err != nil {
		return nil, err
	}
	var commentText []string
	for _, c := range comments {
		if c.Body != "" {
			commentText = append(commentText, c.Body)
		}
	}

	var images [][]byte
	if flags.Vision {
		images = a.visionImages(ctx, issue)
	}

	prompt := BuildPrompt(PromptInput{
		Summary:     issue.Summary,
		Description: issue.Description,
		Comments:    commentText,
	}, flags, instruction)

	a.logger.Debug("requesting analysis", "task", issue.Key, "images", len(images), "prompt_bytes", len(prompt))
	text, err := a.generator.Generate(ctx, prompt, images)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", issue.Key, err)
	}

	cases, candidates, err := ParseResponse(text, issue.Key, flags)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", issue.Key, err)
	}

	result := &schema.AnalysisResult{
		TaskKey:              issue.Key,
		Summary:              issue.Summary,
		AIEnabled:            true,
		TestCases:            cases,
		AutomationCandidates: candidates,
	}
	if len(cases) == 0 {
		a.logger.Warn("AI returned no test cases, using the task itself", "task", issue.Key)
		result.AIEnabled = false
		result.TestCases = []schema.TestCaseCandidate{fallbackCandidate(issue)}
	}
	a.logger.Info("analysis complete", "task", issue.Key, "cases", len(result.TestCases), "automation_candidates", len(candidates))
	return result, nil
}

func (a *Analyzer) visionImages(ctx context.Context, issue *tracker.Issue) [][]byte {
	var sources []media.Source
	for _, att := range issue.ImageAttachments() {
		sources = append(sources, media.Source{Name: att.Filename, URL: att.URL})
	}
	if len(sources) == 0 {
		return nil
	}

	files := media.DownloadAll(ctx, sources, a.source.Download, media.DownloadWorkers, a.logger)
	images := make([][]byte, 0, len(files))
	for _, f := range files {
		jpg, err := media.Compress(f.Data)
		if err != nil {
			a.logger.Warn("skipping image for vision", "file", f.Name, "error", err)
			continue
		}
		images = append(images, jpg)
	}
	return images
}

func fallbackCandidate(issue *tracker.Issue) schema.TestCaseCandidate {
	c := schema.CandidateFromPreview(schema.TaskPreview{Key: issue.Key, Summary: issue.Summary})
	c.Scenario = issue.Description
	if c.Scenario == "" {
		c.Scenario = DefaultScenario
	}
	c.ExpectedResult = FallbackExpectedResult
	return c
}
