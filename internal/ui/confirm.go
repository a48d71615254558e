package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// confirmModel is a minimal yes/no prompt.
type confirmModel struct {
	prompt    string
	confirmed bool
	answered  bool
}

// Init implements tea.Model
func (m confirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			m.confirmed = true
			m.answered = true
			return m, tea.Quit
		case "n", "N", "q", "esc", "ctrl+c":
			m.answered = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model
func (m confirmModel) View() string {
	if m.answered {
		return ""
	}
	return fmt.Sprintf("%s %s ", m.prompt, HintStyle.Render("[y/N]"))
}

// Confirm shows a yes/no prompt and returns the answer. Anything other
// than an explicit yes declines.
func Confirm(prompt string) (bool, error) {
	p := tea.NewProgram(confirmModel{prompt: prompt})

	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("failed to run confirmation prompt: %w", err)
	}

	m, ok := final.(confirmModel)
	if !ok {
		return false, nil
	}
	return m.confirmed, nil
}
