package ai

import (
	"fmt"
	"strings"

	"github.com/veloxcase/cli/internal/schema"
)

// DefaultInstruction is used when no custom instruction is configured
const DefaultInstruction = "Put the test cases found in the comments first, then add your own analysis."

// PromptInput is the task data sent to the model
type PromptInput struct {
	Summary     string
	Description string
	Comments    []string
}

// BuildPrompt assembles the analysis prompt for the enabled features
func BuildPrompt(in PromptInput, flags schema.FeatureFlags, instruction string) string {
	var b strings.Builder

	b.WriteString(`Act as a senior QA and test automation engineer and analyze the Jira data below.

TASK:
1. Treat the Jira description as the main scenario (TC01).
2. Extract EVERY test case written or mentioned in the comments and continue numbering (TC02, TC03, ...).
3. Add your own test scenarios that improve the stability of the system.
4. From the combined list (description + comments + your suggestions) pick the cases best suited for
   automation and list their names in "automation_candidates".
`)

	if flags.Negative {
		b.WriteString("5. Include negative scenarios and edge cases; list them in the \"edge_cases\" field of each case.\n")
	} else {
		b.WriteString("5. Focus ONLY on functional scenarios.\n")
	}
	if flags.MockData {
		b.WriteString("6. Prepare realistic mock data for the steps as a flat JSON object in the \"mock_data\" field.\n")
	}
	if flags.Vision {
		b.WriteString("7. Analyze the attached images and enrich the steps based on what they show.\n")
	}
	if flags.Automation {
		b.WriteString("8. Prefer cases with stable selectors and deterministic outcomes when choosing automation candidates.\n")
	}

	mockField := "null"
	if flags.MockData {
		mockField = `{"field": "value"}`
	}
	edgeField := "[]"
	if flags.Negative {
		edgeField = `["negative scenario"]`
	}

	fmt.Fprintf(&b, `
OUTPUT FORMAT:
Respond with ONLY a JSON object of this shape:
{
  "test_cases": [
    {
      "name": "TC01: Title",
      "scenario": "Step by step test steps as plain text",
      "expected_result": "Expected result",
      "status": "NO RUN",
      "mock_data": %s,
      "edge_cases": %s
    }
  ],
  "automation_candidates": ["TC01: Title"]
}

RULES:
1. Never produce automation code.
2. "TC" in the "name" field is always upper case.
3. No explanations or markdown outside the JSON object.
4. "automation_candidates" must cover both the user-provided and your own scenarios.
`, mockField, edgeField)

	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}
	fmt.Fprintf(&b, "\nEXTRA INSTRUCTIONS:\n%s\n", strings.TrimSpace(instruction))

	b.WriteString("\nJira data:\n")
	fmt.Fprintf(&b, "Summary: %s\n", in.Summary)
	fmt.Fprintf(&b, "Description: %s\n", in.Description)
	if len(in.Comments) > 0 {
		b.WriteString("Comments:\n")
		for _, c := range in.Comments {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(c))
		}
	}

	return b.String()
}
