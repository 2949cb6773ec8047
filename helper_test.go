package scenery

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	testImageWidth  = 1000
	testImageHeight = 500
)

// writePNG writes a w x h PNG filled with a gradient to path.
func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// newTestCollection creates a scenes-test collection with one scene per entry of pageCounts.
// Every page gets a main image and a thumbnail. It returns the collection directory.
func newTestCollection(t *testing.T, pageCounts ...int) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scenes-test")
	for s, n := range pageCounts {
		var pages []map[string]string
		for p := range n {
			name := fmt.Sprintf("page_%02d.png", p)
			imgDir := filepath.Join(dir, fmt.Sprintf("scene%02d", s))
			writePNG(t, filepath.Join(imgDir, name), testImageWidth, testImageHeight)
			writePNG(t, filepath.Join(imgDir, thumbnailDirName, name), 100, 50)
			pages = append(pages, map[string]string{"image": filepath.Join(fmt.Sprintf("scene%02d", s), name)})
		}
		writeSceneFile(t, filepath.Join(dir, fmt.Sprintf("scene_%02d.json", s)), fmt.Sprintf("Scene %d", s), pages)
	}
	return dir
}

func writeSceneFile(t *testing.T, path, name string, pages []map[string]string) {
	t.Helper()
	if pages == nil {
		pages = []map[string]string{}
	}
	d := map[string]any{
		"version":       "1.0",
		"sceneName":     name,
		"imageSize":     map[string]int{"width": testImageWidth, "height": testImageHeight},
		"thumbnailSize": map[string]int{"width": 100, "height": 50},
		"pages":         pages,
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestViewer(t *testing.T, opts ...Option) *Viewer {
	t.Helper()
	v, err := New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(v.Wait)
	return v
}

// waitUpgrade returns the next upgrade notification or fails after a timeout.
func waitUpgrade(t *testing.T, v *Viewer) Upgrade {
	t.Helper()
	select {
	case u := <-v.Upgrades():
		return u
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for upgrade")
	}
	return Upgrade{}
}

func intPtr(i int) *int {
	return &i
}
