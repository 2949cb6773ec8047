package scenery

import (
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
)

const maxPrefetchWorkers = 8

// prefetchTarget is one image to warm in both cache tiers.
type prefetchTarget struct {
	key     string
	path    string
	quality int
	load    func(string) (*Image, error)
}

// prefetch warms the pages following pageIndex in the background.
// Each image is an independent job; failures are logged and never reach the caller.
func (v *Viewer) prefetch(scene *Scene, pageIndex int) {
	if v.prefetchCount <= 0 || scene.PageCount() == 0 {
		return
	}
	v.jobs.Add(1)
	go func() {
		defer v.jobs.Done()
		targets := v.prefetchTargets(scene, pageIndex)
		if len(targets) == 0 {
			return
		}
		var eg errgroup.Group
		eg.SetLimit(min(maxPrefetchWorkers, len(targets)))
		for _, t := range targets {
			eg.Go(func() error {
				if v.encoded.Contains(t.key) {
					v.logger.Debug("already cached", slog.String("path", t.path))
					return nil
				}
				val, err, _ := v.inflight.Do(t.key, func() (any, error) {
					return v.produce(t.key, t.path, t.load, t.quality)
				})
				if err != nil {
					v.logger.Error("failed to prefetch image", slog.String("path", t.path), slog.String("error", err.Error()))
					return nil
				}
				if val.(*produced).stale {
					v.logger.Warn("discarded stale image", slog.String("path", t.path))
					return nil
				}
				v.logger.Info("prefetched image", slog.String("path", t.path))
				return nil
			})
		}
		_ = eg.Wait()
		v.logger.Debug("prefetch completed", slog.Int("targets", len(targets)))
	}()
}

// prefetchTargets resolves the main images and existing thumbnails of the next pages, without duplicates.
func (v *Viewer) prefetchTargets(scene *Scene, pageIndex int) []prefetchTarget {
	total := scene.PageCount()
	seen := map[string]struct{}{}
	var targets []prefetchTarget
	add := func(t prefetchTarget) {
		if _, ok := seen[t.key]; ok {
			return
		}
		seen[t.key] = struct{}{}
		targets = append(targets, t)
	}
	for i := 1; i <= v.prefetchCount; i++ {
		path, ok := scene.PageImage((pageIndex + i) % total)
		if !ok {
			continue
		}
		add(prefetchTarget{
			key:     v.highResKey(path),
			path:    path,
			quality: v.highResQuality,
			load:    v.loadHighRes,
		})
		thumb := ThumbnailPath(path)
		if _, err := os.Stat(thumb); err != nil {
			continue
		}
		add(prefetchTarget{
			key:     thumb,
			path:    thumb,
			quality: v.thumbnailQuality,
			load:    v.loadThumbnail,
		})
	}
	return targets
}
