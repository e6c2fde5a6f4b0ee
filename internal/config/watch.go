package config

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "stockwatch/pkg/logx"
)

const watchDebounce = 300 * time.Millisecond

// Watch monitors the config file and invokes onChange with the re-parsed
// config whenever its content changes. The parent directory is watched
// rather than the file itself so editor rename-and-replace saves are
// still observed.
//
// Parse or validation failures keep the previous config and are logged;
// the watcher never terminates on them. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	lastHash := hashFile(path)

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) == 0 {
				continue
			}
			// Editors produce bursts of events per save; coalesce them.
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
				fire = debounce.C
			} else {
				debounce.Reset(watchDebounce)
			}

		case <-fire:
			debounce = nil
			fire = nil

			h := hashFile(path)
			if h != 0 && h == lastHash {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				log.Warn("config changed but failed to parse; keeping previous", logx.Err(err))
				continue
			}
			lastHash = h
			log.Info("config file changed", logx.String("path", path))
			onChange(cfg)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", logx.Err(err))
		}
	}
}

func hashFile(path string) uint64 {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
