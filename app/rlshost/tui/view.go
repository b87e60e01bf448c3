package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	statusStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	outputTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Underline(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func (m Model) View() string {
	var b strings.Builder

	indicator := " "
	if m.busy {
		indicator = m.spin.View()
	}
	b.WriteString(statusStyle.Render(indicator + " " + m.status))
	b.WriteString("\n")

	for _, warning := range m.warnings {
		b.WriteString(warningStyle.Render("⚠ " + warning))
		b.WriteString("\n")
	}

	if m.showOutput && m.ready {
		b.WriteString(outputTitleStyle.Render("server output"))
		b.WriteString("\n")
		b.WriteString(m.output.View())
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("o: toggle output • q: quit"))
	return b.String()
}
