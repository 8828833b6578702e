package ai

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/schema"
	"github.com/veloxcase/cli/internal/tracker"
)

type fakeSource struct {
	issue    *tracker.Issue
	comments []tracker.Comment
	files    map[string][]byte
	issueErr error
}

func (f *fakeSource) Issue(ctx context.Context, key string) (*tracker.Issue, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return f.issue, nil
}

func (f *fakeSource) Comments(ctx context.Context, key string) ([]tracker.Comment, error) {
	return f.comments, nil
}

func (f *fakeSource) Download(ctx context.Context, url string) ([]byte, error) {
	data, ok := f.files[url]
	if !ok {
		return nil, client.ErrNotFound
	}
	return data, nil
}

type fakeGenerator struct {
	text   string
	err    error
	prompt string
	images int
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, images [][]byte) (string, error) {
	g.prompt = prompt
	g.images = len(images)
	return g.text, g.err
}

func testIssue() *tracker.Issue {
	return &tracker.Issue{
		Key:         "PROJ-1",
		Summary:     "Login",
		Description: "User logs in",
		Attachments: []tracker.Attachment{
			{Filename: "a.png", MimeType: "image/png", URL: "/att/a"},
			{Filename: "notes.txt", MimeType: "text/plain", URL: "/att/n"},
		},
	}
}

const modelOutput = "```json\n" + `{
  "test_cases": [
    {"name": "TC01: Login works", "scenario": "Enter credentials", "expected_result": "Dashboard", "status": "NO RUN", "mock_data": {"user": "alice"}, "edge_cases": ["empty password"]},
    {"name": "TC02: Wrong password", "scenario": "", "mock_data": null}
  ],
  "automation_candidates": ["TC01: Login works"]
}` + "\n```"

func TestAnalyzePreservesOrderAndSanitizes(t *testing.T) {
	gen := &fakeGenerator{text: modelOutput}
	a := NewAnalyzer(&fakeSource{issue: testIssue()}, gen, nil)

	res, err := a.Analyze(context.Background(), "PROJ-1", schema.FeatureFlags{MockData: true, Negative: true}, "")
	require.NoError(t, err)

	assert.True(t, res.AIEnabled)
	assert.Equal(t, "PROJ-1", res.TaskKey)
	require.Len(t, res.TestCases, 2)

	first := res.TestCases[0]
	assert.Equal(t, "TC01: Login works", first.Name)
	assert.Contains(t, first.Scenario, "Enter credentials\n\n**[TEST DATA]**\n")
	assert.Equal(t, []string{"empty password"}, first.EdgeCases)
	assert.True(t, first.AutomationCandidate)
	assert.Equal(t, "PROJ-1", first.TaskKey)

	second := res.TestCases[1]
	assert.Equal(t, "TC02: Wrong password", second.Name)
	assert.Equal(t, DefaultScenario, second.Scenario)
	assert.Equal(t, DefaultExpectedResult, second.ExpectedResult)
	assert.Equal(t, schema.DefaultCaseStatus, second.Status)
	assert.Nil(t, second.MockData)
	assert.False(t, second.AutomationCandidate)

	assert.Equal(t, []string{"TC01: Login works"}, res.AutomationCandidates)
	assert.Contains(t, gen.prompt, DefaultInstruction)
	assert.Contains(t, gen.prompt, "Summary: Login")
}

func TestAnalyzeMockDataDisabledLeavesScenario(t *testing.T) {
	a := NewAnalyzer(&fakeSource{issue: testIssue()}, &fakeGenerator{text: modelOutput}, nil)

	res, err := a.Analyze(context.Background(), "PROJ-1", schema.FeatureFlags{}, "custom rule")
	require.NoError(t, err)
	assert.Equal(t, "Enter credentials", res.TestCases[0].Scenario)
	assert.NotNil(t, res.TestCases[0].MockData)
}

func TestAnalyzeVisionSendsImages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	gen := &fakeGenerator{text: modelOutput}
	src := &fakeSource{issue: testIssue(), files: map[string][]byte{"/att/a": buf.Bytes()}}
	a := NewAnalyzer(src, gen, nil)

	_, err := a.Analyze(context.Background(), "PROJ-1", schema.FeatureFlags{Vision: true}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, gen.images)
}

func TestAnalyzeEmptyResultFallsBack(t *testing.T) {
	a := NewAnalyzer(&fakeSource{issue: testIssue()}, &fakeGenerator{text: `{"test_cases": []}`}, nil)

	res, err := a.Analyze(context.Background(), "PROJ-1", schema.FeatureFlags{}, "")
	require.NoError(t, err)
	assert.False(t, res.AIEnabled)
	require.Len(t, res.TestCases, 1)
	assert.Equal(t, "TC01: Login", res.TestCases[0].Name)
	assert.Equal(t, "User logs in", res.TestCases[0].Scenario)
}

func TestAnalyzeErrors(t *testing.T) {
	t.Run("generator failure", func(t *testing.T) {
		a := NewAnalyzer(&fakeSource{issue: testIssue()}, &fakeGenerator{err: errors.Join(client.ErrUpstream, errors.New("quota"))}, nil)
		_, err := a.Analyze(context.Background(), "PROJ-1", schema.FeatureFlags{}, "")
		assert.ErrorIs(t, err, client.ErrUpstream)
	})

	t.Run("invalid json", func(t *testing.T) {
		a := NewAnalyzer(&fakeSource{issue: testIssue()}, &fakeGenerator{text: "sorry, I cannot"}, nil)
		_, err := a.Analyze(context.Background(), "PROJ-1", schema.FeatureFlags{}, "")
		assert.ErrorIs(t, err, client.ErrUpstream)
	})

	t.Run("task not found", func(t *testing.T) {
		a := NewAnalyzer(&fakeSource{issueErr: client.ErrNotFound}, &fakeGenerator{}, nil)
		_, err := a.Analyze(context.Background(), "PROJ-1", schema.FeatureFlags{}, "")
		assert.ErrorIs(t, err, client.ErrNotFound)
	})
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences(` {"a":1} `))
}

func TestBuildPromptFeatures(t *testing.T) {
	p := BuildPrompt(PromptInput{Summary: "S", Description: "D", Comments: []string{"c1"}}, schema.FeatureFlags{Negative: true, MockData: true, Vision: true}, "my rule")
	assert.Contains(t, p, "edge_cases")
	assert.Contains(t, p, "mock data")
	assert.Contains(t, p, "attached images")
	assert.Contains(t, p, "my rule")
	assert.Contains(t, p, "- c1")

	plain := BuildPrompt(PromptInput{Summary: "S"}, schema.FeatureFlags{}, "")
	assert.Contains(t, plain, "Focus ONLY on functional scenarios")
	assert.NotContains(t, plain, "attached images")
}
