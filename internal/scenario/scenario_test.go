package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxcase/cli/internal/schema"
)

func TestStripSuffix(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no suffix", "Open the page", "Open the page"},
		{"test data", "Open the page\n\n**[TEST DATA]**\n{\"a\": 1}", "Open the page"},
		{"automation code", "Step 1\n**[AUTOMATION CODE]**\n*** Test Cases ***", "Step 1"},
		{"only suffix", "**[TEST DATA]**\nx", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripSuffix(tt.input))
		})
	}
}

func TestSplit(t *testing.T) {
	body, suffix := Split("Do it\n\n**[TEST DATA]**\nuser=a")
	assert.Equal(t, "Do it", body)
	assert.Equal(t, "**[TEST DATA]**\nuser=a", suffix)

	body, suffix = Split("plain")
	assert.Equal(t, "plain", body)
	assert.Empty(t, suffix)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, MainTaskLabel, Label(0, "TC01: Login"))
	assert.Equal(t, "TC02", Label(1, "TC02: Logout"))
	assert.Equal(t, "TC03", Label(2, "Something else"))
	assert.Equal(t, "TC10", Label(9, "x"))
}

func TestTrimNamePrefix(t *testing.T) {
	assert.Equal(t, "Login", TrimNamePrefix("TC01: Login"))
	assert.Equal(t, "Login", TrimNamePrefix("  TC12:Login "))
	assert.Equal(t, "TC01 - Login", TrimNamePrefix("TC01 - Login"))
}

func TestWithTestData(t *testing.T) {
	m := &schema.MockData{Fields: map[string]any{"user": "alice"}}
	got := WithTestData("Log in", m)
	assert.Contains(t, got, "Log in\n\n**[TEST DATA]**\n")
	assert.Contains(t, got, `"user": "alice"`)
	assert.Equal(t, "Log in", StripSuffix(got))

	assert.Equal(t, "Log in", WithTestData("Log in", nil))
}

func TestCleanHTML(t *testing.T) {
	assert.Equal(t, "a\nb & c\n", CleanHTML("<p>a<br/>b &amp; c</p>"))
}

func TestParseCommentCases(t *testing.T) {
	html := `<p>TC02 - Wrong password<br/>Scenario: Enter a wrong password<br/>Expected Result: An error is shown<br/>Status: Passed: ok</p>` +
		`<p>TC03 - Locked account:<br/>Senaryo: Kilitli hesapla giriş yap<br/>Beklenen Sonuç: Uyarı gösterilir</p>`

	cases := ParseCommentCases(html)
	require.Len(t, cases, 2)

	assert.Equal(t, "TC02 - Wrong password", cases[0].Name)
	assert.Equal(t, "Enter a wrong password", cases[0].Scenario)
	assert.Equal(t, "An error is shown", cases[0].ExpectedResult)
	assert.Equal(t, "PASSED", cases[0].Status)

	assert.Equal(t, "TC03 - Locked account", cases[1].Name)
	assert.Equal(t, "Kilitli hesapla giriş yap", cases[1].Scenario)
	assert.Equal(t, "Uyarı gösterilir", cases[1].ExpectedResult)
	assert.Equal(t, schema.DefaultCaseStatus, cases[1].Status)
}

func TestParseCommentCasesIgnoresIncompleteBlocks(t *testing.T) {
	assert.Empty(t, ParseCommentCases("<p>TC04 - just a title, no details</p>"))
	assert.Empty(t, ParseCommentCases("<p>Looks good to me</p>"))
}

func TestCaseName(t *testing.T) {
	assert.Equal(t, "Login works", CaseName(schema.TestCaseCandidate{Name: "TC01: Login works"}))
	assert.Equal(t, "TC02 - Logout", CaseName(schema.TestCaseCandidate{Name: "TC02 - Logout"}))
	assert.Equal(t, "TC03:", CaseName(schema.TestCaseCandidate{Name: "TC03:"}))
}
