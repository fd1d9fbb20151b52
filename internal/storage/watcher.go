package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called with the key whose file another process rewrote.
type ChangeCallback func(key string)

const watchDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the FS data directory and reports
// keys changed by other processes until ctx is cancelled. Writes made
// through f itself are recognised by checksum and not reported.
//
// Events are debounced so an atomic tmp+rename write produces one callback.
func Watch(ctx context.Context, f *FS, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(f.Dir()); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", f.Dir()))

	pending := make(map[string]struct{})
	var debounce *time.Timer
	var debounceCh <-chan time.Time

	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(watchDebounce)
			debounceCh = debounce.C
		} else {
			debounce.Reset(watchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-debounceCh:
			for key := range pending {
				delete(pending, key)
				if !f.changedExternally(key) {
					continue
				}
				logger.Debug("watcher: external change", slog.String("key", key))
				cb(key)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			key, ok := f.keyFromPath(ev.Name)
			if !ok {
				continue
			}
			pending[key] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
