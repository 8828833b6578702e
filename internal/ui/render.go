package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/veloxcase/cli/internal/scenario"
	"github.com/veloxcase/cli/internal/schema"
	"github.com/veloxcase/cli/internal/store"
)

// Preview renders a task preview
func Preview(p schema.TaskPreview) string {
	var sb strings.Builder
	sb.WriteString(StyleHeader.Render(p.Key) + "  " + StyleTitle.Render(p.Summary) + "\n")
	if p.Status != "" {
		sb.WriteString(StyleSubtle.Render("Status: ") + p.Status + "\n")
	}
	return sb.String()
}

// Analysis renders analyzed test cases with their labels, data tables and
// edge cases
func Analysis(a *schema.AnalysisResult) string {
	if a == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(StyleHeader.Render(a.TaskKey) + "  " + StyleTitle.Render(a.Summary) + "\n")
	if !a.AIEnabled {
		sb.WriteString(StyleWarning.Render("AI analysis unavailable, showing the task itself") + "\n")
	}

	if len(a.AutomationCandidates) > 0 {
		sb.WriteString("\n" + StyleSectionTitle.Render("Automation candidates") + "\n")
		for _, name := range a.AutomationCandidates {
			sb.WriteString("  " + Icon("◆", StyleAccent) + " " + name + "\n")
		}
	}

	for i, c := range a.TestCases {
		sb.WriteString("\n")
		sb.WriteString(caseBlock(i, c))
	}
	return sb.String()
}

// caseBlock renders one candidate
func caseBlock(i int, c schema.TestCaseCandidate) string {
	var sb strings.Builder

	label := scenario.Label(i, c.Name)
	tag := StyleTag.Render("[" + label + "]")
	if label == scenario.MainTaskLabel {
		tag = StyleMainTag.Render("[" + label + "]")
	}
	name := scenario.TrimNamePrefix(c.Name)
	if name == "" {
		name = c.Name
	}
	line := tag + " " + StyleTitle.Render(name)
	if c.AutomationCandidate {
		line += " " + StyleMainTag.Render("(automation)")
	}
	sb.WriteString(line + "\n")

	if body := scenario.StripSuffix(c.Scenario); body != "" {
		sb.WriteString(StyleSubtle.Render("  Scenario:") + "\n")
		sb.WriteString(indent(body, "    ") + "\n")
	}
	if c.ExpectedResult != "" {
		sb.WriteString(StyleSubtle.Render("  Expected:") + "\n")
		sb.WriteString(indent(c.ExpectedResult, "    ") + "\n")
	}
	if c.Status != "" {
		sb.WriteString(StyleSubtle.Render("  Status: ") + c.Status + "\n")
	}

	if !c.MockData.IsZero() {
		sb.WriteString(StyleSubtle.Render("  Test data:") + "\n")
		if keys := c.MockData.Keys(); len(keys) > 0 {
			t := &Table{Headers: []string{"Field", "Value"}, MaxWidth: 60}
			for _, k := range keys {
				t.Rows = append(t.Rows, []string{k, formatValue(c.MockData.Fields[k])})
			}
			sb.WriteString(indent(strings.TrimRight(t.Render(), "\n"), "   ") + "\n")
		} else {
			sb.WriteString(indent(c.MockData.Text(), "    ") + "\n")
		}
	}

	if len(c.EdgeCases) > 0 {
		sb.WriteString(StyleSubtle.Render("  Edge cases:") + "\n")
		for _, e := range c.EdgeCases {
			sb.WriteString("    - " + e + "\n")
		}
	}
	return sb.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// Entry renders one sync result line
func Entry(e schema.SyncResultEntry) string {
	name := e.CaseName
	if name == "" {
		name = e.Task
	}
	switch e.Status {
	case schema.StatusSuccess:
		action := string(e.Action)
		if action == "" {
			action = string(schema.ActionCreated)
		}
		line := fmt.Sprintf("%s %s  %s %s", Icon("✓", StyleSuccess), e.Task, action, name)
		if e.ImageCount > 0 {
			line += StyleSubtle.Render(fmt.Sprintf(" (%d images)", e.ImageCount))
		}
		return line
	case schema.StatusDuplicate:
		return fmt.Sprintf("%s %s  duplicate %s", Icon("!", StyleWarning), e.Task, name)
	default:
		return fmt.Sprintf("%s %s  %s", Icon("✗", StyleError), e.Task, e.Message)
	}
}

// SummaryLine renders the counts of a report
func SummaryLine(s schema.Summary) string {
	parts := []string{
		StyleSuccess.Render(fmt.Sprintf("%d succeeded", s.Success)),
	}
	if s.Duplicate > 0 {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("%d duplicate", s.Duplicate)))
	}
	if s.Error > 0 {
		parts = append(parts, StyleError.Render(fmt.Sprintf("%d failed", s.Error)))
	}
	return strings.Join(parts, ", ")
}

// Report renders a sync report
func Report(r *schema.SyncReport) string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, e := range r.Entries {
		sb.WriteString(Entry(e) + "\n")
	}
	if r.Conflict != nil {
		sb.WriteString(Conflict(*r.Conflict) + "\n")
	}
	if r.Error != "" {
		sb.WriteString(StyleError.Render("Stopped: "+r.Error) + "\n")
	}
	sb.WriteString(SummaryLine(r.Summary) + "\n")
	return sb.String()
}

// Conflict renders a pending duplicate
func Conflict(c schema.DuplicateConflict) string {
	body := fmt.Sprintf("A case named %q already exists in the target folder.", c.ExistingCaseName)
	if c.ExistingCaseID > 0 {
		body += fmt.Sprintf("\nExisting case ID: %d", c.ExistingCaseID)
	}
	return StyleWarningBox.Render(StyleWarning.Render("Duplicate") + "\n" + body)
}

// Folders renders a folder list
func Folders(folders []schema.Folder) string {
	if len(folders) == 0 {
		return StyleSubtle.Render("No folders.") + "\n"
	}
	t := &Table{Headers: []string{"ID", "Folder"}}
	for _, f := range folders {
		t.Rows = append(t.Rows, []string{strconv.Itoa(f.ID), f.DisplayPath})
	}
	return t.Render()
}

// History renders recorded syncs
func History(entries []store.HistoryEntry) string {
	if len(entries) == 0 {
		return StyleSubtle.Render("No syncs recorded yet.") + "\n"
	}
	t := &Table{Headers: []string{"Date", "Task", "Case", "Images", "Status"}, MaxWidth: 50}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{e.Date, e.Task, e.CaseName, strconv.Itoa(e.ImageCount), e.Status})
	}
	return t.Render()
}

// Stats renders the history summary
func Stats(s store.Stats) string {
	var sb strings.Builder
	sb.WriteString(StyleSectionTitle.Render("Sync statistics") + "\n")
	sb.WriteString(fmt.Sprintf("  Total cases:  %d\n", s.TotalCases))
	sb.WriteString(fmt.Sprintf("  Total images: %d\n", s.TotalImages))
	sb.WriteString(fmt.Sprintf("  Syncs today:  %d\n", s.TodaySyncs))
	sb.WriteString(fmt.Sprintf("  Total syncs:  %d\n", s.TotalSyncs))
	return sb.String()
}
