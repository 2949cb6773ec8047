package scenery

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/k1LoW/errors"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPrefetchCount = 3
	defaultUpgradeBuffer = 64
	deliveryHistorySize  = 256
)

// Viewer steps through the scenes of a collection and delivers page images progressively.
// It owns the navigation state and both cache tiers; all methods are safe for concurrent use.
type Viewer struct {
	store   SceneStore
	decoded *DecodedCache
	encoded *EncodedCache
	logger  *slog.Logger

	decodedSize      int
	encodedSize      int
	previewDimension int
	previewQuality   int
	highResDimension int
	highResQuality   int
	thumbnailQuality int
	prefetchCount    int
	upgradeBuffer    int

	mu  sync.Mutex
	nav navState

	inflight singleflight.Group
	upgrades chan Upgrade
	delivery *lru.Cache[identity, DeliveryState]

	genMu       sync.Mutex
	generations map[string]uint64 // bumped by Invalidate

	jobs sync.WaitGroup
}

type Option func(*Viewer) error

func WithLogger(logger *slog.Logger) Option {
	return func(v *Viewer) error {
		v.logger = logger
		return nil
	}
}

// WithSceneStore replaces the filesystem scene store.
func WithSceneStore(store SceneStore) Option {
	return func(v *Viewer) error {
		if store == nil {
			return fmt.Errorf("scene store is nil")
		}
		v.store = store
		return nil
	}
}

// WithCacheSize sets the capacities of the decoded and encoded cache tiers.
func WithCacheSize(decoded, encoded int) Option {
	return func(v *Viewer) error {
		if decoded < 1 || encoded < 1 {
			return fmt.Errorf("invalid cache size: decoded=%d, encoded=%d", decoded, encoded)
		}
		v.decodedSize = decoded
		v.encodedSize = encoded
		return nil
	}
}

// WithPrefetchCount sets how many pages ahead are warmed after each navigation. 0 disables prefetching.
func WithPrefetchCount(n int) Option {
	return func(v *Viewer) error {
		if n < 0 {
			return fmt.Errorf("invalid prefetch count: %d", n)
		}
		v.prefetchCount = n
		return nil
	}
}

func WithPreview(maxDimension, quality int) Option {
	return func(v *Viewer) error {
		if err := validateVariant(maxDimension, quality); err != nil {
			return fmt.Errorf("invalid preview: %w", err)
		}
		v.previewDimension = maxDimension
		v.previewQuality = quality
		return nil
	}
}

func WithHighRes(maxDimension, quality int) Option {
	return func(v *Viewer) error {
		if err := validateVariant(maxDimension, quality); err != nil {
			return fmt.Errorf("invalid high resolution: %w", err)
		}
		v.highResDimension = maxDimension
		v.highResQuality = quality
		return nil
	}
}

func WithThumbnailQuality(quality int) Option {
	return func(v *Viewer) error {
		if quality < 1 || quality > 100 {
			return fmt.Errorf("invalid thumbnail quality: %d", quality)
		}
		v.thumbnailQuality = quality
		return nil
	}
}

// WithUpgradeBuffer sets the capacity of the upgrade notification channel.
func WithUpgradeBuffer(n int) Option {
	return func(v *Viewer) error {
		if n < 0 {
			return fmt.Errorf("invalid upgrade buffer: %d", n)
		}
		v.upgradeBuffer = n
		return nil
	}
}

func WithLoopEnabled(enabled bool) Option {
	return func(v *Viewer) error {
		v.nav.loop = enabled
		return nil
	}
}

func validateVariant(maxDimension, quality int) error {
	if maxDimension < 1 {
		return fmt.Errorf("max dimension must be positive: %d", maxDimension)
	}
	if quality < 1 || quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100: %d", quality)
	}
	return nil
}

// New creates a Viewer. Nothing is loaded until LoadCollection is called.
func New(opts ...Option) (_ *Viewer, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	v := &Viewer{
		decodedSize:      DefaultDecodedCacheSize,
		encodedSize:      DefaultEncodedCacheSize,
		previewDimension: PreviewMaxDimension,
		previewQuality:   PreviewQuality,
		highResDimension: DefaultMaxDimension,
		highResQuality:   MainQuality,
		thumbnailQuality: ThumbnailQuality,
		prefetchCount:    DefaultPrefetchCount,
		upgradeBuffer:    defaultUpgradeBuffer,
		generations:      map[string]uint64{},
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	if v.previewDimension > v.highResDimension {
		return nil, fmt.Errorf("preview dimension %d exceeds high resolution dimension %d", v.previewDimension, v.highResDimension)
	}
	if v.logger == nil {
		v.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if v.store == nil {
		v.store = NewFileSceneStore()
	}
	v.decoded = NewDecodedCache(v.decodedSize)
	v.encoded = NewEncodedCache(v.encodedSize)
	v.upgrades = make(chan Upgrade, v.upgradeBuffer)
	delivery, err := lru.New[identity, DeliveryState](deliveryHistorySize)
	if err != nil {
		return nil, err
	}
	v.delivery = delivery
	return v, nil
}

// Upgrades returns the channel on which high resolution images are announced.
// Notifications for pages that are no longer current should be ignored by the receiver.
func (v *Viewer) Upgrades() <-chan Upgrade {
	return v.upgrades
}

// Wait blocks until all background upgrade and prefetch jobs started so far have finished.
func (v *Viewer) Wait() {
	v.jobs.Wait()
}

// ClearCache empties both cache tiers.
func (v *Viewer) ClearCache() {
	v.decoded.Clear()
	v.encoded.Clear()
}

// CacheSize returns the number of entries in the decoded and encoded tiers.
func (v *Viewer) CacheSize() (decoded, encoded int) {
	return v.decoded.Size(), v.encoded.Size()
}

// loadHighRes loads the decoded image used for high resolution payloads.
func (v *Viewer) loadHighRes(path string) (*Image, error) {
	if v.highResDimension == DefaultMaxDimension {
		return LoadCached(path, v.decoded)
	}
	return LoadCachedWithSize(path, v.decoded, v.highResDimension)
}

// highResKey is the resolution-tagged encoded cache key of the high resolution payload.
func (v *Viewer) highResKey(path string) string {
	return cacheKey(path, v.highResDimension)
}
