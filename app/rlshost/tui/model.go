// Package tui renders the host's status surface in a terminal: the busy
// indicator, warning feed, and mirrored server output.
package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/rlshost/progress"
)

const maxWarnings = 5

type (
	statusMsg  string
	warningMsg string
	outputMsg  string
	revealMsg  struct{ focus bool }
)

// Model implements the Bubble Tea model for the host surface.
type Model struct {
	spin   spinner.Model
	output viewport.Model

	status     string
	busy       bool
	warnings   []string
	outputBuf  string
	showOutput bool

	width  int
	height int
	ready  bool
}

// NewModel builds the initial, idle model.
func NewModel() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		spin:   sp,
		status: progress.IdleLabel,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "o":
			m.showOutput = !m.showOutput
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		outputHeight := msg.Height - maxWarnings - 3
		if outputHeight < 3 {
			outputHeight = 3
		}
		if !m.ready {
			m.output = viewport.New(msg.Width, outputHeight)
			m.ready = true
		} else {
			m.output.Width = msg.Width
			m.output.Height = outputHeight
		}
		m.output.SetContent(m.outputBuf)
		return m, nil

	case statusMsg:
		m.status = string(msg)
		m.busy = m.status == progress.BusyLabel
		return m, nil

	case warningMsg:
		m.warnings = append(m.warnings, string(msg))
		if len(m.warnings) > maxWarnings {
			m.warnings = m.warnings[len(m.warnings)-maxWarnings:]
		}
		return m, nil

	case outputMsg:
		m.outputBuf += string(msg)
		if m.ready {
			m.output.SetContent(m.outputBuf)
			m.output.GotoBottom()
		}
		return m, nil

	case revealMsg:
		m.showOutput = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}
