package scenery

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/k1LoW/errors"
)

// Watch drops cached images of files that change under dir until ctx is done.
// Subdirectories are watched as well, including ones created while watching.
func (v *Viewer) Watch(ctx context.Context, dir string) (err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()
	if err := watchTree(w, dir); err != nil {
		return err
	}
	v.logger.Info("watching collection", slog.String("dir", dir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := watchTree(w, ev.Name); err != nil {
						v.logger.Warn("failed to watch directory", slog.String("dir", ev.Name), slog.String("error", err.Error()))
					}
					continue
				}
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Create) {
				if n := v.Invalidate(ev.Name); n > 0 {
					v.logger.Info("invalidated cache", slog.String("path", ev.Name), slog.Int("entries", n))
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			v.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func watchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Invalidate removes every cached variant of the image at path from both tiers and returns how many entries were dropped.
// Jobs already running for path finish without caching their result, and the delivery states of path are reset.
func (v *Viewer) Invalidate(path string) int {
	path = filepath.Clean(path)
	v.bumpGeneration(path)
	for _, key := range v.cacheKeys(path) {
		v.inflight.Forget(key)
	}
	v.forgetState(path)
	return v.dropCached(path)
}

// dropCached removes the entries of path from both tiers.
func (v *Viewer) dropCached(path string) int {
	n := 0
	for _, key := range v.cacheKeys(path) {
		if v.decoded.Remove(key) {
			n++
		}
		if v.encoded.Remove(key) {
			n++
		}
	}
	return n
}

// cacheKeys returns every key the viewer may store path under.
func (v *Viewer) cacheKeys(path string) []string {
	return []string{
		cacheKey(path, 0),
		cacheKey(path, v.previewDimension),
		cacheKey(path, v.highResDimension),
	}
}
