// Package scenario handles the free-text parts of test case candidates:
// the appended data blocks, display labels and the TC blocks people write
// into tracker comments.
package scenario

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/veloxcase/cli/internal/schema"
)

// Markers that start an appended block in a scenario
const (
	TestDataMarker       = "**[TEST DATA]**"
	AutomationCodeMarker = "**[AUTOMATION CODE]**"
)

// MainTaskLabel is shown for the candidate that mirrors the task itself
const MainTaskLabel = "MAIN TASK"

var (
	suffixPattern = regexp.MustCompile(`\*\*\[(TEST DATA|AUTOMATION CODE)\]\*\*[\s\S]*$`)
	namePrefix    = regexp.MustCompile(`^TC\d+:\s*`)
)

// StripSuffix removes an appended test data or automation code block
func StripSuffix(s string) string {
	return strings.TrimSpace(suffixPattern.ReplaceAllString(s, ""))
}

// Split returns the scenario body and the appended block, if any
func Split(s string) (body, suffix string) {
	loc := suffixPattern.FindStringIndex(s)
	if loc == nil {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:loc[0]]), strings.TrimSpace(s[loc[0]:])
}

// Label is the short tag shown next to a candidate at position index
func Label(index int, name string) string {
	if strings.Contains(strings.ToUpper(name), "TC01") {
		return MainTaskLabel
	}
	return fmt.Sprintf("TC%02d", index+1)
}

// TrimNamePrefix removes a leading "TCnn:" from a candidate name
func TrimNamePrefix(name string) string {
	return strings.TrimSpace(namePrefix.ReplaceAllString(strings.TrimSpace(name), ""))
}

// WithTestData appends mock data to a scenario as a TEST DATA block
func WithTestData(scenario string, m *schema.MockData) string {
	if m.IsZero() {
		return scenario
	}
	return scenario + "\n\n" + TestDataMarker + "\n" + m.Text()
}

var (
	breakTags = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>`)
	anyTag    = regexp.MustCompile(`<[^>]+>`)
)

// CleanHTML turns rendered comment HTML into plain text with line breaks
func CleanHTML(s string) string {
	s = breakTags.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

var (
	tcHeader     = regexp.MustCompile(`(?i)TC(\d+)[ -]*`)
	scenarioKey  = regexp.MustCompile(`(?i)(?:Senaryo|Scenario):?\s*`)
	expectedKey  = regexp.MustCompile(`(?i)(?:Beklenen Sonuç|Expected Result):?\s*`)
	statusKey    = regexp.MustCompile(`(?i)(?:Durum|Status):\s*`)
	statusLine   = regexp.MustCompile(`(?i)^(?:Durum|Status):?\s*([^\n\r]+)`)
	titleTrailer = regexp.MustCompile(`[:|\-]\s*$`)
)

// ParseCommentCases extracts test cases written as
//
//	TC02 - Title
//	Scenario: steps
//	Expected Result: outcome
//	Status: PASSED
//
// from comment HTML. Turkish keywords are accepted too. Status defaults to
// NO RUN.
func ParseCommentCases(commentHTML string) []schema.TestCaseCandidate {
	text := CleanHTML(commentHTML)

	headers := tcHeader.FindAllStringSubmatchIndex(text, -1)
	var cases []schema.TestCaseCandidate
	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		number := text[h[2]:h[3]]
		block := text[h[1]:end]

		c, ok := parseBlock(number, block)
		if ok {
			cases = append(cases, c)
		}
	}
	return cases
}

func parseBlock(number, block string) (schema.TestCaseCandidate, bool) {
	sc := scenarioKey.FindStringIndex(block)
	if sc == nil {
		return schema.TestCaseCandidate{}, false
	}
	title := titleTrailer.ReplaceAllString(strings.TrimSpace(block[:sc[0]]), "")
	title = strings.TrimSpace(title)
	if title == "" {
		return schema.TestCaseCandidate{}, false
	}

	rest := block[sc[1]:]
	ex := expectedKey.FindStringIndex(rest)
	if ex == nil {
		return schema.TestCaseCandidate{}, false
	}
	scenarioText := strings.TrimSpace(rest[:ex[0]])
	if scenarioText == "" {
		return schema.TestCaseCandidate{}, false
	}

	rest = rest[ex[1]:]
	expected := rest
	status := schema.DefaultCaseStatus
	if st := statusKey.FindStringIndex(rest); st != nil {
		expected = rest[:st[0]]
		if m := statusLine.FindStringSubmatch(rest[st[0]:]); m != nil {
			status = normalizeStatus(m[1])
		}
	}
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return schema.TestCaseCandidate{}, false
	}

	return schema.TestCaseCandidate{
		Name:           fmt.Sprintf("TC%s - %s", strings.TrimSpace(number), title),
		Scenario:       scenarioText,
		ExpectedResult: expected,
		Status:         status,
	}, true
}

func normalizeStatus(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return schema.DefaultCaseStatus
	}
	return raw
}

// CaseName is the name a candidate is stored under in the test-management
// system: its name without the TCnn: prefix
func CaseName(c schema.TestCaseCandidate) string {
	if name := TrimNamePrefix(c.Name); name != "" {
		return name
	}
	return strings.TrimSpace(c.Name)
}
