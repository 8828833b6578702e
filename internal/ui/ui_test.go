package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"github.com/veloxcase/cli/internal/schema"
	"github.com/veloxcase/cli/internal/store"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestStylesAddCodesWhenColored(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI256)
	defer lipgloss.SetColorProfile(termenv.Ascii)

	out := Icon("X", StyleError)
	assert.Contains(t, out, "X")
	assert.NotEqual(t, "X", out)
}

func TestTableTruncatesAndPads(t *testing.T) {
	tbl := &Table{
		Headers:  []string{"A", "B"},
		Rows:     [][]string{{"short", "a much longer value"}},
		MaxWidth: 8,
	}
	out := tbl.Render()
	assert.Contains(t, out, "short")
	assert.Contains(t, out, "a much …")
	assert.NotContains(t, out, "longer")
}

func TestAnalysisRendering(t *testing.T) {
	a := &schema.AnalysisResult{
		TaskKey:              "QA-1",
		Summary:              "Login",
		AIEnabled:            true,
		AutomationCandidates: []string{"TC02: Wrong password"},
		TestCases: []schema.TestCaseCandidate{
			{Name: "TC01: Login works", Scenario: "Open page\n\n**[TEST DATA]**\n{}", ExpectedResult: "Logged in"},
			{
				Name:                "TC02: Wrong password",
				Scenario:            "Enter bad password",
				ExpectedResult:      "Error",
				MockData:            &schema.MockData{Fields: map[string]any{"user": "qa", "attempts": float64(3)}},
				EdgeCases:           []string{"Empty password"},
				AutomationCandidate: true,
			},
		},
	}
	out := Analysis(a)

	assert.Contains(t, out, "[MAIN TASK] Login works")
	assert.Contains(t, out, "[TC02] Wrong password (automation)")
	assert.Contains(t, out, "Automation candidates")
	assert.Contains(t, out, "Open page")
	assert.NotContains(t, out, "[TEST DATA]")
	assert.Contains(t, out, "attempts")
	assert.Contains(t, out, "3")
	assert.Contains(t, out, "- Empty password")
	assert.NotContains(t, out, "AI analysis unavailable")

	a.AIEnabled = false
	assert.Contains(t, Analysis(a), "AI analysis unavailable")
}

func TestReportRendering(t *testing.T) {
	r := &schema.SyncReport{
		Entries: []schema.SyncResultEntry{
			{Task: "QA-1", Status: schema.StatusSuccess, Action: schema.ActionUpdated, CaseName: "Login", ImageCount: 2},
			{Task: "QA-2", Status: schema.StatusDuplicate, CaseName: "Logout"},
			{Task: "QA-3", Status: schema.StatusError, Message: "not submitted: unauthorized"},
		},
		Summary:  schema.Summary{Success: 1, Duplicate: 1, Error: 1},
		Conflict: &schema.DuplicateConflict{ExistingCaseName: "Signup", ExistingCaseID: 9},
		Error:    "unauthorized",
	}
	out := Report(r)
	assert.Contains(t, out, "✓ QA-1  updated Login (2 images)")
	assert.Contains(t, out, "! QA-2  duplicate Logout")
	assert.Contains(t, out, "✗ QA-3  not submitted: unauthorized")
	assert.Contains(t, out, `"Signup"`)
	assert.Contains(t, out, "Stopped: unauthorized")
	assert.Contains(t, out, "1 succeeded, 1 duplicate, 1 failed")

	assert.Equal(t, "2 succeeded", SummaryLine(schema.Summary{Success: 2}))
}

func TestHistoryAndStats(t *testing.T) {
	assert.Contains(t, History(nil), "No syncs recorded yet.")
	out := History([]store.HistoryEntry{{Date: "2025-03-04 10:30", Task: "QA-1", CaseName: "Login", ImageCount: 1, Status: "SUCCESS"}})
	assert.Contains(t, out, "2025-03-04 10:30")
	assert.Contains(t, out, "SUCCESS")

	s := Stats(store.Stats{TotalCases: 4, TotalImages: 2, TodaySyncs: 1, TotalSyncs: 4})
	assert.Contains(t, s, "Total images: 2")
	assert.Contains(t, s, "Syncs today:  1")

	f := Folders([]schema.Folder{{ID: 3, DisplayPath: "Root / Child"}})
	assert.Contains(t, f, "Root / Child")
}

func key(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestConflictModel(t *testing.T) {
	c := schema.DuplicateConflict{ExistingCaseName: "Login"}

	m, cmd := newConflictModel(c).Update(key("enter"))
	assert.NotNil(t, cmd)
	assert.Equal(t, ChoiceOverwrite, m.(conflictModel).choice)

	m, _ = newConflictModel(c).Update(key("down"))
	m, _ = m.Update(key("enter"))
	assert.Equal(t, ChoiceSkip, m.(conflictModel).choice)

	m, _ = newConflictModel(c).Update(key("esc"))
	assert.Equal(t, ChoiceDismiss, m.(conflictModel).choice)
	assert.True(t, m.(conflictModel).done)

	m, _ = newConflictModel(c).Update(key("o"))
	assert.Equal(t, ChoiceOverwrite, m.(conflictModel).choice)

	assert.Contains(t, newConflictModel(c).View(), "Overwrite existing case")
}

func TestFolderSelectModel(t *testing.T) {
	m := folderSelectModel{folders: []schema.Folder{{ID: 1, DisplayPath: "A"}, {ID: 2, DisplayPath: "A / B"}}}

	next, _ := m.Update(key("down"))
	next, _ = next.Update(key("enter"))
	assert.Equal(t, 2, next.(folderSelectModel).selected)

	next, _ = m.Update(key("esc"))
	assert.True(t, next.(folderSelectModel).quit)
	assert.Contains(t, m.View(), "A / B")
}
