package host

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexcodex/rlshost/surface"
)

// openSessionLog creates the append-mode per-session log file. The name
// carries the creation timestamp so successive sessions never collide.
func openSessionLog(workspace string, now time.Time) (*os.File, error) {
	name := fmt.Sprintf("rls%s.log", now.Format("20060102_150405"))
	path := filepath.Join(workspace, name)
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// logWriter streams raw stderr bytes into the session log. A write failure
// surfaces a single warning and disables logging for the rest of the session.
type logWriter struct {
	file    *os.File
	surface surface.Surface
	log     zerolog.Logger

	once     sync.Once
	disabled bool
}

func (w *logWriter) Write(p []byte) (int, error) {
	if w.disabled {
		return len(p), nil
	}
	if _, err := w.file.Write(p); err != nil {
		w.once.Do(func() {
			w.disabled = true
			w.log.Warn().Err(err).Str("file", w.file.Name()).Msg("session log write failed")
			w.surface.ShowWarning(fmt.Sprintf("Writing to the session log failed: %v", err))
		})
	}
	// Swallow log errors so the shared stderr copy keeps feeding the other
	// sinks.
	return len(p), nil
}
