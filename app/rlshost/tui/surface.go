package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/rlshost/surface"
)

// UI owns the Bubble Tea program and exposes it as an editor surface.
type UI struct {
	program *tea.Program
}

// New builds the program. Run must be called on the UI before the surface
// produces visible updates; sends before then are queued by Bubble Tea.
func New(ctx context.Context) *UI {
	program := tea.NewProgram(NewModel(), tea.WithContext(ctx))
	return &UI{program: program}
}

// Run blocks until the user quits or the context is cancelled.
func (u *UI) Run() error {
	_, err := u.program.Run()
	return err
}

// Quit asks the program to exit.
func (u *UI) Quit() { u.program.Quit() }

// Surface returns the editor-surface adapter backed by the program.
func (u *UI) Surface() surface.Surface { return &teaSurface{program: u.program} }

type teaSurface struct {
	program *tea.Program
}

func (s *teaSurface) ShowWarning(text string)  { s.program.Send(warningMsg(text)) }
func (s *teaSurface) SetStatusBar(text string) { s.program.Send(statusMsg(text)) }

func (s *teaSurface) Output() surface.OutputChannel { return (*teaChannel)(s) }

type teaChannel teaSurface

func (c *teaChannel) Append(text string) { c.program.Send(outputMsg(text)) }
func (c *teaChannel) Show(takeFocus bool) {
	c.program.Send(revealMsg{focus: takeFocus})
}
