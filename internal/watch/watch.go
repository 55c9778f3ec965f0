package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "streamsched/internal/log"
	"streamsched/internal/model"
	"streamsched/internal/storage"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher reloads the stored snapshot whenever its backing file changes and
// hands it to a callback.
type Watcher struct {
	store    storage.Store
	onChange func(*model.State)
	debounce time.Duration
}

// New creates a watcher for st. debounce <= 0 uses 200ms.
func New(st storage.Store, debounce time.Duration, onChange func(*model.State)) (*Watcher, error) {
	if st == nil || onChange == nil {
		return nil, errors.New("watch: store and callback are required")
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{store: st, onChange: onChange, debounce: debounce}, nil
}

// Run blocks until ctx is done. The directory containing the store file is
// watched, which keeps working across the temp-file + rename writes.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	absPath, err := filepath.Abs(w.store.Path())
	if err != nil {
		return fmt.Errorf("failed to resolve store path: %w", err)
	}
	dir := filepath.Dir(absPath)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	appLog.Info("watching schedule storage", "path", absPath)

	// sqlite may touch sidecar files (-wal, -journal) next to the database.
	base := filepath.Base(absPath)
	relevant := func(name string) bool {
		b := filepath.Base(name)
		return b == base || b == base+"-wal" || b == base+"-journal"
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				appLog.Debug("storage change detected", "file", ev.Name, "op", ev.Op.String())
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			appLog.Error("file watcher error", err)
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	s, err := w.store.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			appLog.Warn("storage file removed", "path", w.store.Path())
			return
		}
		appLog.Error("reload failed", err, "path", w.store.Path())
		return
	}
	w.onChange(s)
}
