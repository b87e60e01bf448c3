// Package surface defines the narrow editor-facing contract the host needs:
// non-blocking warnings, a status bar line, and an append-only output channel.
package surface

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// OutputChannel receives mirrored server output.
type OutputChannel interface {
	Append(text string)
	// Show asks the hosting UI to reveal the channel. takeFocus moves input
	// focus to it as well.
	Show(takeFocus bool)
}

// Surface is the editor collaborator consumed by the host. Implementations
// must be safe for use from multiple goroutines.
type Surface interface {
	ShowWarning(text string)
	SetStatusBar(text string)
	Output() OutputChannel
}

// Console is a Surface backed by a zerolog logger and an arbitrary writer for
// the output channel. It is the default surface for headless runs.
type Console struct {
	log zerolog.Logger

	mu     sync.Mutex
	status string
	out    io.Writer
}

// NewConsole builds a console surface. out receives output-channel text; a
// nil writer discards it.
func NewConsole(log zerolog.Logger, out io.Writer) *Console {
	if out == nil {
		out = io.Discard
	}
	return &Console{log: log, out: out}
}

func (c *Console) ShowWarning(text string) {
	c.log.Warn().Msg(text)
}

func (c *Console) SetStatusBar(text string) {
	c.mu.Lock()
	c.status = text
	c.mu.Unlock()
	c.log.Info().Str("status", text).Msg("status bar")
}

// Status returns the most recent status bar text.
func (c *Console) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Console) Output() OutputChannel { return (*consoleChannel)(c) }

type consoleChannel Console

func (ch *consoleChannel) Append(text string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	fmt.Fprint(ch.out, text)
}

func (ch *consoleChannel) Show(bool) {}
