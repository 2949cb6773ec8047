package scenery

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/k1LoW/errors"
)

// navState is the position of the viewer. It is only read or written while holding Viewer.mu.
type navState struct {
	collection *SceneCollection
	scene      *Scene
	sceneIndex int
	pageIndex  int
	loop       bool
}

// ImageData is the result of showing a page.
type ImageData struct {
	MainImage      string `json:"main_image,omitempty"`
	ThumbnailImage string `json:"thumbnail_image,omitempty"`
	PageIndex      int    `json:"page_index"`
	SceneIndex     int    `json:"scene_index"`
	ImagePath      string `json:"image_path"`
	// IsPreview is true when MainImage is a low resolution preview that an Upgrade will replace.
	IsPreview bool `json:"is_preview"`
}

type SceneInfo struct {
	SceneName   string `json:"scene_name"`
	SceneIndex  int    `json:"scene_index"`
	SceneCount  int    `json:"scene_count"`
	TotalPages  int    `json:"total_pages"`
	CurrentPage int    `json:"current_page"`
}

// CollectionItem is a scene collection found under a parent directory.
type CollectionItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (v *Viewer) snapshot() navState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.nav
}

func (v *Viewer) commit(c *SceneCollection, scene *Scene, sceneIndex, pageIndex int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nav.collection = c
	v.nav.scene = scene
	v.nav.sceneIndex = sceneIndex
	v.nav.pageIndex = pageIndex
}

func (st navState) loaded() error {
	if st.collection == nil || st.scene == nil {
		return fmt.Errorf("%w: no scene loaded", ErrNotLoaded)
	}
	return nil
}

func (st navState) info() *SceneInfo {
	return &SceneInfo{
		SceneName:   st.scene.Metadata.SceneName,
		SceneIndex:  st.sceneIndex,
		SceneCount:  st.collection.SceneCount(),
		TotalPages:  st.scene.PageCount(),
		CurrentPage: st.pageIndex,
	}
}

// ListCollections returns the scene collections found in parentDir.
func (v *Viewer) ListCollections(parentDir string) (_ []*CollectionItem, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	dirs, err := v.store.FindCollections(parentDir)
	if err != nil {
		return nil, fmt.Errorf("failed to find scene collections: %w", err)
	}
	items := make([]*CollectionItem, 0, len(dirs))
	for _, d := range dirs {
		items = append(items, &CollectionItem{
			Name: filepath.Base(d),
			Path: d,
		})
	}
	return items, nil
}

// LoadCollection loads the collection at dir and moves to the first page of its first scene.
// It returns the number of scenes. An empty collection leaves the current position untouched.
func (v *Viewer) LoadCollection(ctx context.Context, dir string) (_ int, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c, err := v.store.LoadCollection(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to load scene collection: %w", err)
	}
	if c.SceneCount() == 0 {
		v.logger.Warn("no scenes found", slog.String("dir", dir))
		return 0, nil
	}
	scene, err := v.loadScene(c, 0)
	if err != nil {
		return 0, err
	}
	v.commit(c, scene, 0, 0)
	v.logger.Info("loaded scene collection", slog.String("dir", dir), slog.Int("scenes", c.SceneCount()))
	v.prefetch(scene, 0)
	return c.SceneCount(), nil
}

// SceneInfo describes the current scene and page.
func (v *Viewer) SceneInfo() (_ *SceneInfo, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	st := v.snapshot()
	if err := st.loaded(); err != nil {
		return nil, err
	}
	return st.info(), nil
}

func (v *Viewer) LoopEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.nav.loop
}

// SetLoopEnabled sets whether page navigation wraps inside the current scene.
func (v *Viewer) SetLoopEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nav.loop = enabled
}

// GetImage shows pageIndex of the scene at sceneIndex, or of the current scene when sceneIndex is nil.
func (v *Viewer) GetImage(ctx context.Context, sceneIndex *int, pageIndex int) (_ *ImageData, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	st := v.snapshot()
	if err := st.loaded(); err != nil {
		return nil, err
	}
	idx, scene := st.sceneIndex, st.scene
	if sceneIndex != nil && *sceneIndex != st.sceneIndex {
		idx = *sceneIndex
		scene, err = v.loadScene(st.collection, idx)
		if err != nil {
			return nil, err
		}
	}
	return v.show(ctx, st.collection, idx, scene, pageIndex)
}

// NextPage moves one page forward. Without loop mode the last page continues with the first page of the next scene.
func (v *Viewer) NextPage(ctx context.Context) (_ *ImageData, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	st := v.snapshot()
	if err := st.loaded(); err != nil {
		return nil, err
	}
	total := st.scene.PageCount()
	switch {
	case st.loop:
		return v.show(ctx, st.collection, st.sceneIndex, st.scene, (st.pageIndex+1)%total)
	case st.pageIndex+1 >= total:
		next := (st.sceneIndex + 1) % st.collection.SceneCount()
		scene, err := v.loadScene(st.collection, next)
		if err != nil {
			return nil, err
		}
		v.logger.Info("moving to next scene", slog.Int("scene_index", next))
		return v.show(ctx, st.collection, next, scene, 0)
	default:
		return v.show(ctx, st.collection, st.sceneIndex, st.scene, st.pageIndex+1)
	}
}

// PrevPage moves one page back. Without loop mode the first page continues with the last page of the previous scene.
func (v *Viewer) PrevPage(ctx context.Context) (_ *ImageData, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	st := v.snapshot()
	if err := st.loaded(); err != nil {
		return nil, err
	}
	total := st.scene.PageCount()
	switch {
	case st.loop:
		return v.show(ctx, st.collection, st.sceneIndex, st.scene, (st.pageIndex-1+total)%total)
	case st.pageIndex == 0:
		count := st.collection.SceneCount()
		prev := (st.sceneIndex - 1 + count) % count
		scene, err := v.loadScene(st.collection, prev)
		if err != nil {
			return nil, err
		}
		v.logger.Info("moving to previous scene", slog.Int("scene_index", prev))
		return v.show(ctx, st.collection, prev, scene, scene.PageCount()-1)
	default:
		return v.show(ctx, st.collection, st.sceneIndex, st.scene, st.pageIndex-1)
	}
}

// NextScene moves to the first page of the next scene regardless of loop mode.
func (v *Viewer) NextScene(ctx context.Context) (_ *SceneInfo, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	st := v.snapshot()
	if err := st.loaded(); err != nil {
		return nil, err
	}
	return v.switchScene(ctx, st, (st.sceneIndex+1)%st.collection.SceneCount())
}

// PrevScene moves to the first page of the previous scene regardless of loop mode.
func (v *Viewer) PrevScene(ctx context.Context) (_ *SceneInfo, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	st := v.snapshot()
	if err := st.loaded(); err != nil {
		return nil, err
	}
	count := st.collection.SceneCount()
	return v.switchScene(ctx, st, (st.sceneIndex-1+count)%count)
}

func (v *Viewer) switchScene(ctx context.Context, st navState, index int) (*SceneInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scene, err := v.loadScene(st.collection, index)
	if err != nil {
		return nil, err
	}
	v.commit(st.collection, scene, index, 0)
	v.logger.Info("switched scene", slog.Int("scene_index", index), slog.String("scene_name", scene.Metadata.SceneName))
	v.prefetch(scene, 0)
	st.scene, st.sceneIndex, st.pageIndex = scene, index, 0
	return st.info(), nil
}

func (v *Viewer) loadScene(c *SceneCollection, index int) (*Scene, error) {
	scene, err := v.store.LoadScene(c, index)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene %d: %w", index, err)
	}
	if scene.PageCount() == 0 {
		return nil, fmt.Errorf("%w: scene %d has no pages", ErrCollection, index)
	}
	return scene, nil
}

// show delivers the page of scene and, on success, makes it the current position.
func (v *Viewer) show(ctx context.Context, c *SceneCollection, sceneIndex int, scene *Scene, pageIndex int) (*ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageIndex < 0 || pageIndex >= scene.PageCount() {
		return nil, fmt.Errorf("%w: page index %d out of bounds (total: %d)", ErrOutOfBounds, pageIndex, scene.PageCount())
	}
	path, _ := scene.PageImage(pageIndex)
	main, isPreview, err := v.deliverMain(identity{scene: sceneIndex, page: pageIndex, path: path})
	if err != nil {
		return nil, err
	}
	thumbnail := v.deliverThumbnail(path)
	v.commit(c, scene, sceneIndex, pageIndex)
	v.logger.Info("showed page", slog.Int("scene_index", sceneIndex), slog.Int("page_index", pageIndex), slog.String("path", path), slog.Bool("preview", isPreview))
	v.prefetch(scene, pageIndex)
	return &ImageData{
		MainImage:      main,
		ThumbnailImage: thumbnail,
		PageIndex:      pageIndex,
		SceneIndex:     sceneIndex,
		ImagePath:      path,
		IsPreview:      isPreview,
	}, nil
}
