package trash

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"dataset-manager/internal/logging"
)

// watchDebounce batches bursts of directory events into one reconcile.
const watchDebounce = 500 * time.Millisecond

// Watch reconciles the manifest whenever the trash directory changes from
// outside (a user poking at the directory, another process). Runs until the
// context is cancelled. Reconcile is idempotent, so events caused by the
// manager's own moves are harmless.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(m.root); err != nil {
		return err
	}
	logging.Info("Watching trash directory %s", m.root)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				fire = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Trash watcher error: %v", err)

		case <-fire:
			timer = nil
			fire = nil
			if _, _, err := m.Reconcile(); err != nil {
				logging.Error("Reconcile after trash directory change failed: %v", err)
			}
		}
	}
}
