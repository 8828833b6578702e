package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TestCaseCandidate is a test record that has not been submitted yet. It is
// either derived directly from a task preview or produced by AI analysis.
type TestCaseCandidate struct {
	TaskKey        string    `json:"task_key"`
	Name           string    `json:"name"`
	Scenario       string    `json:"scenario"`
	ExpectedResult string    `json:"expected_result"`
	Status         string    `json:"status,omitempty"`
	MockData       *MockData `json:"mock_data,omitempty"`
	EdgeCases      []string  `json:"edge_cases,omitempty"`

	// Implicit marks the single candidate built without AI
	Implicit bool `json:"implicit,omitempty"`

	// AutomationCandidate is set when the AI picked this case for automation
	AutomationCandidate bool `json:"is_automation_candidate,omitempty"`
}

// DefaultExpectedResult is used for candidates built without AI
const DefaultExpectedResult = "The requirements in the task description are met."

// CandidateFromPreview builds the one implicit candidate used when AI is off.
// It carries no mock data and no edge cases.
func CandidateFromPreview(p TaskPreview) TestCaseCandidate {
	return TestCaseCandidate{
		TaskKey:        p.Key,
		Name:           "TC01: " + p.Summary,
		ExpectedResult: DefaultExpectedResult,
		Status:         DefaultCaseStatus,
		Implicit:       true,
	}
}

// AnalysisResult is the structured output of AI analysis for one task
type AnalysisResult struct {
	TaskKey              string              `json:"task_key"`
	Summary              string              `json:"summary"`
	AIEnabled            bool                `json:"ai_enabled"`
	TestCases            []TestCaseCandidate `json:"test_cases"`
	AutomationCandidates []string            `json:"automation_candidates"`
}

// FeatureFlags are passed through to the AI client untouched
type FeatureFlags struct {
	Vision     bool `json:"vision"`
	Automation bool `json:"automation"`
	Negative   bool `json:"negative"`
	MockData   bool `json:"mock_data"`
}

// AnalysisSettings is the explicit per-call AI configuration
type AnalysisSettings struct {
	Enabled            bool         `json:"enabled"`
	Features           FeatureFlags `json:"feature_flags"`
	CustomInstructions string       `json:"custom_instructions,omitempty"`
}

// MockData holds AI generated test data. It is either a flat mapping of
// string to value or a single scalar.
type MockData struct {
	Fields map[string]any
	Scalar any
}

// IsZero reports whether no mock data is present
func (m *MockData) IsZero() bool {
	return m == nil || (len(m.Fields) == 0 && m.Scalar == nil)
}

// Keys returns the mapping keys in sorted order
func (m *MockData) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Text renders the mock data the way it is embedded in a scenario
func (m *MockData) Text() string {
	if m.IsZero() {
		return ""
	}
	if m.Fields != nil {
		data, err := json.MarshalIndent(m.Fields, "", "  ")
		if err != nil {
			return fmt.Sprint(m.Fields)
		}
		return string(data)
	}
	if s, ok := m.Scalar.(string); ok {
		return s
	}
	data, err := json.Marshal(m.Scalar)
	if err != nil {
		return fmt.Sprint(m.Scalar)
	}
	return string(data)
}

// UnmarshalJSON accepts an object, a scalar or null
func (m *MockData) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*m = MockData{}
		return nil
	}
	if trimmed[0] == '{' {
		var fields map[string]any
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return fmt.Errorf("mock data object: %w", err)
		}
		*m = MockData{Fields: fields}
		return nil
	}
	var scalar any
	if err := json.Unmarshal(trimmed, &scalar); err != nil {
		return fmt.Errorf("mock data value: %w", err)
	}
	// Strings that contain a JSON object are unwrapped
	if s, ok := scalar.(string); ok && strings.HasPrefix(strings.TrimSpace(s), "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(s), &fields); err == nil {
			*m = MockData{Fields: fields}
			return nil
		}
	}
	*m = MockData{Scalar: scalar}
	return nil
}

// MarshalJSON writes the mapping or the scalar
func (m MockData) MarshalJSON() ([]byte, error) {
	if m.Fields != nil {
		return json.Marshal(m.Fields)
	}
	return json.Marshal(m.Scalar)
}
