package host

import (
	"unicode/utf8"

	"github.com/lexcodex/rlshost/surface"
)

// mirrorWriter forwards stderr bytes to the editor's output channel as UTF-8
// text. A trailing incomplete rune is held back until the next write
// completes it, so multibyte characters split across reads decode intact.
type mirrorWriter struct {
	channel surface.OutputChannel
	partial []byte
}

func (w *mirrorWriter) Write(p []byte) (int, error) {
	buf := p
	if len(w.partial) > 0 {
		buf = append(w.partial, p...)
		w.partial = nil
	}
	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && len(buf)-i < utf8.UTFMax; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(buf) {
		w.partial = append([]byte(nil), buf[cut:]...)
	}
	if cut > 0 {
		w.channel.Append(string(buf[:cut]))
	}
	return len(p), nil
}
