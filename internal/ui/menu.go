package ui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	logoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("214")).Bold(true)
	hintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const logo = `
   __ _  __ _ _ __ __ _ ___  __ _ _ __   __| | |__   __ _ _ __ (_)
  / _' |/ _' | '__/ _' / __|/ _' | '_ \ / _' | '_ \ / _' | '_ \| |
 | (_| | (_| | | | (_| \__ \ (_| | | | | (_| | | | | (_| | | | | |
  \__,_|\__, |_|  \__,_|___/\__,_|_| |_|\__,_|_| |_|\__,_|_| |_|_|
        |___/
`

type menuItem struct {
	name string
	hint string
}

type MenuModel struct {
	choices  []menuItem
	cursor   int
	selected string
	quitting bool
}

func NewMenuModel() MenuModel {
	return MenuModel{
		choices: []menuItem{
			{"list", "tasks, filtered and sorted"},
			{"tree", "tasks grouped under their parents"},
			{"stats", "totals, streaks and score"},
			{"mcp", "serve the tools on stdio"},
			{"serve", "start the read-only HTTP API"},
			{"init", "create the task file"},
		},
	}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}

		case "home", "g":
			m.cursor = 0

		case "end", "G":
			m.cursor = len(m.choices) - 1

		case "enter":
			return m.choose(m.cursor)

		default:
			// Digits pick an entry directly.
			if n, err := strconv.Atoi(msg.String()); err == nil && n >= 1 && n <= len(m.choices) {
				return m.choose(n - 1)
			}
		}
	}

	return m, nil
}

func (m MenuModel) choose(i int) (tea.Model, tea.Cmd) {
	m.cursor = i
	m.selected = m.choices[i].name
	return m, tea.Quit
}

func (m MenuModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	s.WriteString(logoStyle.Render(logo))
	s.WriteString("\n\n")

	for i, choice := range m.choices {
		line := fmt.Sprintf("%d %-6s %s", i+1, choice.name, hintStyle.Render(choice.hint))
		if m.cursor == i {
			s.WriteString(selectedItemStyle.Render("> " + line))
		} else {
			s.WriteString(itemStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}

	s.WriteString(hintStyle.Render(fmt.Sprintf("\nj/k move · 1-%d or enter run · q quit", len(m.choices))))
	s.WriteString("\n")

	return s.String()
}

func (m MenuModel) Selected() string {
	return m.selected
}

// RunMenu shows the menu and returns the chosen command, or "" when the
// user quit.
func RunMenu() (string, error) {
	p := tea.NewProgram(NewMenuModel())
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}
	return finalModel.(MenuModel).Selected(), nil
}
