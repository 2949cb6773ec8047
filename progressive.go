package scenery

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// DeliveryState is the progress of a page image through progressive delivery.
type DeliveryState int

const (
	NotRequested DeliveryState = iota
	PreviewServed
	HighResPending
	HighResReady
)

func (s DeliveryState) String() string {
	switch s {
	case NotRequested:
		return "not_requested"
	case PreviewServed:
		return "preview_served"
	case HighResPending:
		return "high_res_pending"
	case HighResReady:
		return "high_res_ready"
	default:
		return fmt.Sprintf("delivery_state(%d)", int(s))
	}
}

// Upgrade announces a high resolution image replacing a previously served preview.
type Upgrade struct {
	JobID      string `json:"job_id"`
	SceneIndex int    `json:"scene_index"`
	PageIndex  int    `json:"page_index"`
	Path       string `json:"path"`
	Image      string `json:"image"`
	// Shared is true when this request joined a job started by an earlier request.
	Shared bool `json:"shared"`
}

type identity struct {
	scene int
	page  int
	path  string
}

// produced is the result of an encode job shared through the in-flight registry.
type produced struct {
	jobID   string
	payload string
	// stale is true when the source was invalidated while the job ran. The payload is not cached.
	stale bool
}

// State returns the delivery state of the page image identified by scene, page and path.
// Only the most recently touched identities are remembered; older ones report NotRequested.
func (v *Viewer) State(scene, page int, path string) DeliveryState {
	s, _ := v.delivery.Peek(identity{scene: scene, page: page, path: path})
	return s
}

func (v *Viewer) setState(id identity, s DeliveryState) {
	v.delivery.Add(id, s)
}

// forgetState drops the delivery states of every identity showing path.
func (v *Viewer) forgetState(path string) {
	for _, id := range v.delivery.Keys() {
		if id.path == path {
			v.delivery.Remove(id)
		}
	}
}

func (v *Viewer) generation(path string) uint64 {
	v.genMu.Lock()
	defer v.genMu.Unlock()
	return v.generations[path]
}

func (v *Viewer) bumpGeneration(path string) {
	v.genMu.Lock()
	defer v.genMu.Unlock()
	v.generations[path]++
}

// deliverMain returns the high resolution payload when it is cached.
// Otherwise it returns a preview and starts the upgrade job for id.
func (v *Viewer) deliverMain(id identity) (payload string, isPreview bool, err error) {
	if s, ok := v.encoded.Get(v.highResKey(id.path)); ok {
		v.logger.Debug("cache hit", slog.String("path", id.path))
		v.setState(id, HighResReady)
		return s, false, nil
	}
	img, err := LoadCachedWithSize(id.path, v.decoded, v.previewDimension)
	if err != nil {
		return "", false, fmt.Errorf("failed to load preview: %w", err)
	}
	preview, err := EncodeJPEG(img, v.previewQuality)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode preview: %w", err)
	}
	v.setState(id, PreviewServed)
	v.logger.Info("served preview", slog.String("path", id.path), slog.Int("width", img.Width()), slog.Int("height", img.Height()))
	v.startUpgrade(id)
	return preview, true, nil
}

// startUpgrade produces the high resolution payload for id in the background and publishes an Upgrade.
// Requests for a key that is already being produced join the running job.
func (v *Viewer) startUpgrade(id identity) {
	v.setState(id, HighResPending)
	key := v.highResKey(id.path)
	// only the caller whose function runs started the job; singleflight reports Shared to every caller
	started := false
	ch := v.inflight.DoChan(key, func() (any, error) {
		started = true
		return v.produce(key, id.path, v.loadHighRes, v.highResQuality)
	})
	v.jobs.Add(1)
	go func() {
		defer v.jobs.Done()
		res := <-ch
		shared := !started
		if res.Err != nil {
			// the page stays preview-only
			v.logger.Error("failed to upgrade image", slog.String("path", id.path), slog.String("error", res.Err.Error()))
			return
		}
		p := res.Val.(*produced)
		if p.stale {
			v.logger.Warn("discarded stale image", slog.String("path", id.path), slog.String("job_id", p.jobID))
			return
		}
		v.setState(id, HighResReady)
		v.logger.Info("upgraded image", slog.String("path", id.path), slog.String("job_id", p.jobID), slog.Bool("shared", shared))
		v.publish(Upgrade{
			JobID:      p.jobID,
			SceneIndex: id.scene,
			PageIndex:  id.page,
			Path:       id.path,
			Image:      p.payload,
			Shared:     shared,
		})
	}()
}

// produce decodes path with load, encodes it at quality and stores the payload under key.
// When path is invalidated meanwhile, nothing decoded or encoded by the job is kept.
func (v *Viewer) produce(key, path string, load func(string) (*Image, error), quality int) (*produced, error) {
	jobID := uuid.New().String()
	gen := v.generation(path)
	img, err := load(path)
	if err != nil {
		return nil, err
	}
	payload, err := EncodeJPEG(img, quality)
	if err != nil {
		return nil, err
	}
	if v.generation(path) != gen {
		v.dropCached(path)
		return &produced{jobID: jobID, payload: payload, stale: true}, nil
	}
	v.encoded.Add(key, payload)
	return &produced{jobID: jobID, payload: payload}, nil
}

func (v *Viewer) publish(u Upgrade) {
	select {
	case v.upgrades <- u:
	default:
		v.logger.Warn("dropped upgrade notification", slog.String("path", u.Path), slog.Int("scene_index", u.SceneIndex), slog.Int("page_index", u.PageIndex))
	}
}

// deliverThumbnail returns the thumbnail payload of the main image at mainPath.
// A missing or broken thumbnail yields an empty string.
func (v *Viewer) deliverThumbnail(mainPath string) string {
	path := ThumbnailPath(mainPath)
	if s, ok := v.encoded.Get(path); ok {
		return s
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	p, err := v.produce(path, path, v.loadThumbnail, v.thumbnailQuality)
	if err != nil {
		v.logger.Warn("failed to load thumbnail", slog.String("path", path), slog.String("error", err.Error()))
		return ""
	}
	// a stale thumbnail is still the best one available for this response
	return p.payload
}

func (v *Viewer) loadThumbnail(path string) (*Image, error) {
	return LoadCached(path, v.decoded)
}
