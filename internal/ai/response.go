package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/scenario"
	"github.com/veloxcase/cli/internal/schema"
)

// Defaults for fields the model left out
const (
	DefaultName           = "Unnamed Test Case"
	DefaultScenario       = "No scenario provided"
	DefaultExpectedResult = "No expected result provided"
)

type rawResponse struct {
	TestCases            []rawCase `json:"test_cases"`
	AutomationCandidates []any     `json:"automation_candidates"`
}

type rawCase struct {
	Name           string           `json:"name"`
	Scenario       string           `json:"scenario"`
	ExpectedResult string           `json:"expected_result"`
	Status         string           `json:"status"`
	MockData       *schema.MockData `json:"mock_data"`
	EdgeCases      []any            `json:"edge_cases"`
}

// StripCodeFences removes a surrounding ``` or ```json fence
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return text
}

// ParseResponse decodes model output into ordered candidates. Missing
// fields get defaults; with mock data enabled the data is appended to the
// scenario as a TEST DATA block.
func ParseResponse(text, taskKey string, flags schema.FeatureFlags) ([]schema.TestCaseCandidate, []string, error) {
	var raw rawResponse
	if err := json.Unmarshal([]byte(StripCodeFences(text)), &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: AI returned invalid JSON: %v", client.ErrUpstream, err)
	}

	candidates := stringList(raw.AutomationCandidates)

	cases := make([]schema.TestCaseCandidate, 0, len(raw.TestCases))
	for _, rc := range raw.TestCases {
		c := schema.TestCaseCandidate{
			TaskKey:        taskKey,
			Name:           orDefault(rc.Name, DefaultName),
			Scenario:       orDefault(rc.Scenario, DefaultScenario),
			ExpectedResult: orDefault(rc.ExpectedResult, DefaultExpectedResult),
			Status:         orDefault(rc.Status, schema.DefaultCaseStatus),
			EdgeCases:      stringList(rc.EdgeCases),
		}
		if !rc.MockData.IsZero() {
			c.MockData = rc.MockData
		}
		c.AutomationCandidate = isCandidate(c.Name, candidates)

		if flags.MockData && c.MockData != nil {
			c.Scenario = scenario.WithTestData(c.Scenario, c.MockData)
		}
		cases = append(cases, c)
	}
	return cases, candidates, nil
}

func isCandidate(name string, candidates []string) bool {
	if rawName := strings.TrimSpace(name); rawName != "" {
		for _, c := range candidates {
			if strings.Contains(c, rawName) {
				return true
			}
		}
	}
	return false
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// stringList flattens a JSON list of strings or objects into strings
func stringList(items []any) []string {
	var out []string
	for _, it := range items {
		switch v := it.(type) {
		case nil:
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			if name, ok := v["name"].(string); ok && name != "" {
				out = append(out, name)
				continue
			}
			data, _ := json.Marshal(v)
			out = append(out, string(data))
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
