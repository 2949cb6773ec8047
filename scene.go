package scenery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/k1LoW/errors"
)

const (
	collectionDirPrefix = "scenes-"
	sceneFilePrefix     = "scene_"
	sceneFileExt        = ".json"
	thumbnailDirName    = "thumbnail"
)

type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type SceneMetadata struct {
	Version       string    `json:"version"`
	SceneName     string    `json:"sceneName"`
	ImageSize     ImageSize `json:"imageSize"`
	ThumbnailSize ImageSize `json:"thumbnailSize"`
}

type Page struct {
	Image string `json:"image"`
}

// Scene is an ordered set of pages sharing one descriptor file.
type Scene struct {
	Metadata SceneMetadata `json:"metadata"`
	Pages    []Page        `json:"pages"`
	Path     string        `json:"-"` // descriptor file the scene was loaded from
}

// sceneDescriptor accepts both the flat layout and the layout with a nested "metadata" object.
type sceneDescriptor struct {
	SceneMetadata
	Metadata *SceneMetadata `json:"metadata,omitempty"`
	Pages    []Page         `json:"pages"`
}

func (s *Scene) PageCount() int {
	return len(s.Pages)
}

// PageImage returns the image path of the page at index.
func (s *Scene) PageImage(index int) (string, bool) {
	if index < 0 || index >= len(s.Pages) {
		return "", false
	}
	return s.Pages[index].Image, true
}

// ThumbnailPath returns {dir}/thumbnail/{file} for the main image path.
func ThumbnailPath(mainPath string) string {
	dir, file := filepath.Split(mainPath)
	if file == "" {
		return mainPath
	}
	return filepath.Join(dir, thumbnailDirName, file)
}

// SceneCollection is the ordered list of scene descriptors under one directory.
type SceneCollection struct {
	BasePath   string
	SceneFiles []string
}

func (c *SceneCollection) SceneCount() int {
	return len(c.SceneFiles)
}

// SceneStore discovers collections and loads scene descriptors.
type SceneStore interface {
	// FindCollections returns the collection directories under parentDir, sorted by name.
	FindCollections(parentDir string) ([]string, error)
	// LoadCollection lists the scene descriptors of the collection at dir.
	LoadCollection(dir string) (*SceneCollection, error)
	// LoadScene parses the scene at index. It reads from storage on every call.
	LoadScene(c *SceneCollection, index int) (*Scene, error)
}

var _ SceneStore = (*fileSceneStore)(nil)

type fileSceneStore struct{}

// NewFileSceneStore returns a SceneStore reading scenes-* directories and scene_*.json files.
func NewFileSceneStore() SceneStore {
	return &fileSceneStore{}
}

func (s *fileSceneStore) FindCollections(parentDir string) (_ []string, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	entries, err := os.ReadDir(parentDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read directory %s: %w", ErrCollection, parentDir, err)
	}
	var collections []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), collectionDirPrefix) {
			continue
		}
		collections = append(collections, filepath.Join(parentDir, e.Name()))
	}
	slices.Sort(collections)
	return collections, nil
}

func (s *fileSceneStore) LoadCollection(dir string) (_ *SceneCollection, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: scene directory does not exist %s: %w", ErrCollection, dir, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", ErrCollection, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read directory %s: %w", ErrCollection, dir, err)
	}
	c := &SceneCollection{BasePath: dir}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, sceneFilePrefix) || !strings.HasSuffix(name, sceneFileExt) {
			continue
		}
		c.SceneFiles = append(c.SceneFiles, filepath.Join(dir, name))
	}
	slices.Sort(c.SceneFiles)
	return c, nil
}

func (s *fileSceneStore) LoadScene(c *SceneCollection, index int) (_ *Scene, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	if c == nil {
		return nil, fmt.Errorf("%w: no collection", ErrNotLoaded)
	}
	if index < 0 || index >= len(c.SceneFiles) {
		return nil, fmt.Errorf("%w: scene index %d out of bounds (total: %d)", ErrOutOfBounds, index, len(c.SceneFiles))
	}
	return loadSceneFile(c.SceneFiles[index])
}

func loadSceneFile(path string) (*Scene, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read scene file %s: %w", ErrCollection, path, err)
	}
	var d sceneDescriptor
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("%w: failed to parse scene file %s: %w", ErrCollection, path, err)
	}
	if len(d.Pages) == 0 {
		return nil, fmt.Errorf("%w: scene file %s has no pages", ErrCollection, path)
	}
	meta := d.SceneMetadata
	if d.Metadata != nil {
		meta = *d.Metadata
	}
	base := filepath.Dir(path)
	pages := make([]Page, 0, len(d.Pages))
	for i, p := range d.Pages {
		if p.Image == "" {
			return nil, fmt.Errorf("%w: scene file %s: page %d has no image", ErrCollection, path, i)
		}
		img := p.Image
		if !filepath.IsAbs(img) {
			img = filepath.Join(base, img)
		}
		pages = append(pages, Page{Image: img})
	}
	return &Scene{
		Metadata: meta,
		Pages:    pages,
		Path:     path,
	}, nil
}
