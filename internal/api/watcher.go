package api

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the document whenever its file is written or replaced.
//
// The parent directory is watched rather than the file: atomic writes
// rename a new file over the old one, which a watch on the file itself
// would not survive.
type Watcher struct {
	path   string
	reload func() error
	fw     *fsnotify.Watcher
	log    zerolog.Logger
}

func NewWatcher(path string, reload func() error, log zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:   abs,
		reload: reload,
		fw:     fw,
		log:    log.With().Str("component", "watcher").Logger(),
	}, nil
}

// Run handles events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()
	w.log.Info().Str("path", w.path).Msg("watching document")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// handle reloads on a write or create of the watched file and reports
// whether it tried to.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	name, err := filepath.Abs(ev.Name)
	if err != nil || name != w.path {
		return false
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	if err := w.reload(); err != nil {
		w.log.Warn().Err(err).Msg("reload failed, keeping previous document")
		return true
	}
	w.log.Debug().Str("op", ev.Op.String()).Msg("document reloaded")
	return true
}
