package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/veloxcase/cli/internal/schema"
)

// ErrCancelled is returned when the user leaves a prompt
var ErrCancelled = errors.New("selection cancelled")

// ConflictChoice is the answer to a duplicate prompt
type ConflictChoice int

const (
	ChoiceDismiss ConflictChoice = iota
	ChoiceOverwrite
	ChoiceSkip
)

type conflictModel struct {
	conflict schema.DuplicateConflict
	options  []string
	cursor   int
	choice   ConflictChoice
	done     bool
}

func newConflictModel(c schema.DuplicateConflict) conflictModel {
	return conflictModel{
		conflict: c,
		options:  []string{"Overwrite existing case", "Skip this case"},
	}
}

func (m conflictModel) Init() tea.Cmd {
	return nil
}

func (m conflictModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.choice = ChoiceDismiss
		m.done = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j", "tab":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case "o", "y":
		m.choice = ChoiceOverwrite
		m.done = true
		return m, tea.Quit
	case "s", "n":
		m.choice = ChoiceSkip
		m.done = true
		return m, tea.Quit
	case "enter":
		m.choice = ChoiceOverwrite
		if m.cursor == 1 {
			m.choice = ChoiceSkip
		}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m conflictModel) View() string {
	if m.done {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n" + Conflict(m.conflict) + "\n\n")
	for i, opt := range m.options {
		cursor := "  "
		style := StyleSelectNormal
		if m.cursor == i {
			cursor = "▶ "
			style = StyleSelectActive
		}
		sb.WriteString(cursor + style.Render(opt) + "\n")
	}
	sb.WriteString("\n" + StyleSelectDim.Render("↑/↓ navigate • enter select • o overwrite • s skip • esc dismiss") + "\n")
	return sb.String()
}

// PromptConflict asks whether to overwrite a duplicate. Leaving the prompt
// returns ChoiceDismiss.
func PromptConflict(c schema.DuplicateConflict, opts ...tea.ProgramOption) (ConflictChoice, error) {
	p := tea.NewProgram(newConflictModel(c), opts...)
	final, err := p.Run()
	if err != nil {
		return ChoiceDismiss, fmt.Errorf("error running conflict prompt: %w", err)
	}
	return final.(conflictModel).choice, nil
}

type folderSelectModel struct {
	folders  []schema.Folder
	cursor   int
	selected int
	quit     bool
}

func (m folderSelectModel) Init() tea.Cmd {
	return nil
}

func (m folderSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.quit = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.folders)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.folders) > 0 {
			m.selected = m.folders[m.cursor].ID
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m folderSelectModel) View() string {
	s := "\n" + StyleSelectTitle.Render("Select target folder") + "\n\n"
	for i, f := range m.folders {
		cursor := "  "
		style := StyleSelectNormal
		if m.cursor == i {
			cursor = "▶ "
			style = StyleSelectActive
		}
		s += cursor + style.Render(f.DisplayPath) + StyleSelectDim.Render(fmt.Sprintf(" #%d", f.ID)) + "\n"
	}
	s += "\n" + StyleSelectDim.Render("↑/↓ navigate • enter select • esc cancel") + "\n"
	return s
}

// PromptFolder lets the user pick a folder. preselect moves the cursor to
// that folder ID when present.
func PromptFolder(folders []schema.Folder, preselect int, opts ...tea.ProgramOption) (int, error) {
	if len(folders) == 0 {
		return 0, fmt.Errorf("no folders to choose from")
	}
	m := folderSelectModel{folders: folders}
	for i, f := range folders {
		if f.ID == preselect {
			m.cursor = i
		}
	}

	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return 0, fmt.Errorf("error running folder selection: %w", err)
	}
	result := final.(folderSelectModel)
	if result.quit || result.selected == 0 {
		return 0, ErrCancelled
	}
	return result.selected, nil
}
