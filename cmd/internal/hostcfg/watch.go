package hostcfg

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher observes the settings file and invokes a callback after edits. The
// host does not hot-reload; the callback typically surfaces a restart hint.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration
	log      zerolog.Logger
	stop     chan struct{}
}

// Watch starts watching the settings file's directory; editors often replace
// files via rename, so watching the file alone would miss changes.
func Watch(path string, debounce time.Duration, onChange func(), log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = time.Second
	}
	w := &Watcher{
		path:     path,
		watcher:  fsw,
		onChange: onChange,
		debounce: debounce,
		log:      log,
		stop:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.log.Debug().Str("path", w.path).Msg("settings file changed")
			w.onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("settings watcher error")
		}
	}
}
