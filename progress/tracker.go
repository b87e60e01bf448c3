// Package progress aggregates overlapping build begin/end notifications from
// the analysis server into a single busy/idle indicator.
package progress

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexcodex/rlshost/surface"
)

// Status bar labels for the two indicator states.
const (
	BusyLabel = "RLS: working"
	IdleLabel = "RLS: done"
)

// State is the externally observed indicator value.
type State int

const (
	Idle State = iota
	Busy
)

func (s State) String() string {
	if s == Busy {
		return "busy"
	}
	return "idle"
}

// Tracker counts outstanding builds. Begin/end pairs from concurrent builds
// may interleave arbitrarily; only the balance matters. The counter is
// clamped at zero: an end notification with no outstanding build is treated
// as a harmless no-op rather than driving the count negative, so a later
// begin still produces the busy edge. Idle is re-emitted on every end that
// leaves the tracker idle, which consumers must tolerate.
//
// A tracker lives for one protocol session; create a fresh one on restart.
type Tracker struct {
	surface surface.Surface
	log     zerolog.Logger

	mu      sync.Mutex
	pending int
}

// NewTracker returns an idle tracker bound to the given surface.
func NewTracker(sfc surface.Surface, log zerolog.Logger) *Tracker {
	return &Tracker{surface: sfc, log: log}
}

// BeginBuild records a build-started notification.
func (t *Tracker) BeginBuild() {
	t.mu.Lock()
	t.pending++
	edge := t.pending == 1
	t.mu.Unlock()
	if edge {
		t.log.Debug().Msg("progress: busy")
		t.surface.SetStatusBar(BusyLabel)
	}
}

// EndBuild records a build-finished notification.
func (t *Tracker) EndBuild() {
	t.mu.Lock()
	if t.pending > 0 {
		t.pending--
	}
	idle := t.pending == 0
	t.mu.Unlock()
	if idle {
		t.log.Debug().Msg("progress: idle")
		t.surface.SetStatusBar(IdleLabel)
	}
}

// State reports the current indicator value.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending > 0 {
		return Busy
	}
	return Idle
}

// Pending reports the outstanding build count, mainly for diagnostics.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
