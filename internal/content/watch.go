package content

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const RELOAD_DEBOUNCE = 250 * time.Millisecond

// Watch reloads the pack at path whenever the file changes and hands every
// valid, changed pack to apply. Editors write in bursts, so reloads are
// debounced. Invalid files are logged and skipped. Watch blocks until ctx ends.
func Watch(ctx context.Context, path string, log zerolog.Logger, apply func(Pack)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// watch the directory: editors often replace the file rather than write it
	dir, file := filepath.Dir(path), filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	last, _ := os.ReadFile(path)
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("content reload failed")
			return
		}
		mu.Lock()
		unchanged := bytes.Equal(data, last)
		mu.Unlock()
		if unchanged {
			return
		}
		pack, err := Parse(data)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("content rejected")
			return
		}
		mu.Lock()
		last = data
		mu.Unlock()
		log.Info().Str("file", path).Int("topics", len(pack.Topics)).Msg("content reloaded")
		apply(pack)
	}
	debounce := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(RELOAD_DEBOUNCE, reload)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	log.Debug().Str("dir", dir).Str("file", file).Msg("content watcher started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if isPackEvent(ev, file) {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("content watcher error")
		}
	}
}

// isPackEvent reports whether ev touched the pack file itself. Names are
// compared exactly so siblings differing only in case are ignored.
func isPackEvent(ev fsnotify.Event, file string) bool {
	return filepath.Base(ev.Name) == file && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
