package scenery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type position struct {
	scene int
	page  int
}

func currentPosition(t *testing.T, v *Viewer) position {
	t.Helper()
	info, err := v.SceneInfo()
	if err != nil {
		t.Fatal(err)
	}
	return position{scene: info.SceneIndex, page: info.CurrentPage}
}

func TestNotLoaded(t *testing.T) {
	ctx := context.Background()
	v := newTestViewer(t)
	page := 0
	tests := []struct {
		name string
		fn   func() error
	}{
		{"SceneInfo", func() error { _, err := v.SceneInfo(); return err }},
		{"GetImage", func() error { _, err := v.GetImage(ctx, nil, 0); return err }},
		{"GetImage with scene", func() error { _, err := v.GetImage(ctx, &page, 0); return err }},
		{"NextPage", func() error { _, err := v.NextPage(ctx); return err }},
		{"PrevPage", func() error { _, err := v.PrevPage(ctx); return err }},
		{"NextScene", func() error { _, err := v.NextScene(ctx); return err }},
		{"PrevScene", func() error { _, err := v.PrevScene(ctx); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrNotLoaded) {
				t.Errorf("error = %v, want ErrNotLoaded", err)
			}
		})
	}
}

func TestListCollections(t *testing.T) {
	parent := t.TempDir()
	for _, d := range []string{"scenes-b", "scenes-a", "other"} {
		if err := os.Mkdir(filepath.Join(parent, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	v := newTestViewer(t)
	got, err := v.ListCollections(parent)
	if err != nil {
		t.Fatal(err)
	}
	want := []*CollectionItem{
		{Name: "scenes-a", Path: filepath.Join(parent, "scenes-a")},
		{Name: "scenes-b", Path: filepath.Join(parent, "scenes-b")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListCollections() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCollectionViewer(t *testing.T) {
	ctx := context.Background()

	t.Run("moves to the first page", func(t *testing.T) {
		dir := newTestCollection(t, 3, 2)
		v := newTestViewer(t)
		n, err := v.LoadCollection(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("LoadCollection() = %d, want 2", n)
		}
		got, err := v.SceneInfo()
		if err != nil {
			t.Fatal(err)
		}
		want := &SceneInfo{SceneName: "Scene 0", SceneIndex: 0, SceneCount: 2, TotalPages: 3, CurrentPage: 0}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("SceneInfo() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty collection", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "scenes-empty")
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatal(err)
		}
		v := newTestViewer(t)
		n, err := v.LoadCollection(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("LoadCollection() = %d, want 0", n)
		}
		if _, err := v.SceneInfo(); !errors.Is(err, ErrNotLoaded) {
			t.Errorf("SceneInfo() error = %v, want ErrNotLoaded", err)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		v := newTestViewer(t)
		if _, err := v.LoadCollection(ctx, filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrCollection) {
			t.Errorf("LoadCollection() error = %v, want ErrCollection", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		dir := newTestCollection(t, 1)
		v := newTestViewer(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := v.LoadCollection(cctx, dir); !errors.Is(err, context.Canceled) {
			t.Errorf("LoadCollection() error = %v, want context.Canceled", err)
		}
	})
}

func TestPageNavigation(t *testing.T) {
	ctx := context.Background()
	dir := newTestCollection(t, 3, 2)
	v := newTestViewer(t)
	if _, err := v.LoadCollection(ctx, dir); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		name string
		fn   func(context.Context) (*ImageData, error)
		want position
	}{
		{"next", v.NextPage, position{0, 1}},
		{"next", v.NextPage, position{0, 2}},
		{"next crosses into the next scene", v.NextPage, position{1, 0}},
		{"prev crosses back to the last page", v.PrevPage, position{0, 2}},
		{"next", v.NextPage, position{1, 0}},
		{"next", v.NextPage, position{1, 1}},
		{"next wraps to the first scene", v.NextPage, position{0, 0}},
		{"prev wraps to the last scene", v.PrevPage, position{1, 1}},
	}
	for i, s := range steps {
		got, err := s.fn(ctx)
		if err != nil {
			t.Fatalf("step %d (%s): %v", i, s.name, err)
		}
		if p := (position{got.SceneIndex, got.PageIndex}); p != s.want {
			t.Errorf("step %d (%s): got %+v, want %+v", i, s.name, p, s.want)
		}
		if p := currentPosition(t, v); p != s.want {
			t.Errorf("step %d (%s): state %+v, want %+v", i, s.name, p, s.want)
		}
	}
}

func TestLoopNavigation(t *testing.T) {
	ctx := context.Background()
	dir := newTestCollection(t, 3, 2)
	v := newTestViewer(t, WithLoopEnabled(true))
	if _, err := v.LoadCollection(ctx, dir); err != nil {
		t.Fatal(err)
	}
	if !v.LoopEnabled() {
		t.Fatal("LoopEnabled() = false, want true")
	}

	got, err := v.PrevPage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p := (position{got.SceneIndex, got.PageIndex}); p != (position{0, 2}) {
		t.Errorf("PrevPage() = %+v, want {0 2}", p)
	}
	got, err = v.NextPage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p := (position{got.SceneIndex, got.PageIndex}); p != (position{0, 0}) {
		t.Errorf("NextPage() = %+v, want {0 0}", p)
	}

	// next then prev returns to the start from every page
	for range 3 {
		start := currentPosition(t, v)
		if _, err := v.NextPage(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := v.PrevPage(ctx); err != nil {
			t.Fatal(err)
		}
		if p := currentPosition(t, v); p != start {
			t.Errorf("next then prev = %+v, want %+v", p, start)
		}
		if _, err := v.NextPage(ctx); err != nil {
			t.Fatal(err)
		}
		if p := currentPosition(t, v); p.scene != 0 {
			t.Errorf("loop mode left scene 0: %+v", p)
		}
	}

	v.SetLoopEnabled(false)
	if _, err := v.GetImage(ctx, nil, 2); err != nil {
		t.Fatal(err)
	}
	got, err = v.NextPage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p := (position{got.SceneIndex, got.PageIndex}); p != (position{1, 0}) {
		t.Errorf("NextPage() after disabling loop = %+v, want {1 0}", p)
	}
}

func TestSceneNavigation(t *testing.T) {
	ctx := context.Background()
	dir := newTestCollection(t, 3, 2, 1)
	v := newTestViewer(t, WithLoopEnabled(true))
	if _, err := v.LoadCollection(ctx, dir); err != nil {
		t.Fatal(err)
	}
	if _, err := v.GetImage(ctx, nil, 2); err != nil {
		t.Fatal(err)
	}

	got, err := v.NextScene(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := &SceneInfo{SceneName: "Scene 1", SceneIndex: 1, SceneCount: 3, TotalPages: 2, CurrentPage: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NextScene() mismatch (-want +got):\n%s", diff)
	}

	if _, err := v.NextScene(ctx); err != nil {
		t.Fatal(err)
	}
	got, err = v.NextScene(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.SceneIndex != 0 {
		t.Errorf("NextScene() from the last scene = %d, want 0", got.SceneIndex)
	}

	got, err = v.PrevScene(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want = &SceneInfo{SceneName: "Scene 2", SceneIndex: 2, SceneCount: 3, TotalPages: 1, CurrentPage: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PrevScene() mismatch (-want +got):\n%s", diff)
	}
	info, err := v.SceneInfo()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("SceneInfo() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetImage(t *testing.T) {
	ctx := context.Background()
	pageCounts := []int{3, 2, 4}
	dir := newTestCollection(t, pageCounts...)
	v := newTestViewer(t)
	if _, err := v.LoadCollection(ctx, dir); err != nil {
		t.Fatal(err)
	}

	for s, n := range pageCounts {
		for p := range n {
			got, err := v.GetImage(ctx, &s, p)
			if err != nil {
				t.Fatalf("GetImage(%d, %d): %v", s, p, err)
			}
			wantPath := filepath.Join(dir, fmt.Sprintf("scene%02d", s), fmt.Sprintf("page_%02d.png", p))
			if got.SceneIndex != s || got.PageIndex != p {
				t.Errorf("GetImage(%d, %d) returned (%d, %d)", s, p, got.SceneIndex, got.PageIndex)
			}
			if got.ImagePath != wantPath {
				t.Errorf("ImagePath = %q, want %q", got.ImagePath, wantPath)
			}
			if got.MainImage == "" || got.ThumbnailImage == "" {
				t.Errorf("GetImage(%d, %d) returned an empty payload", s, p)
			}
			info, err := v.SceneInfo()
			if err != nil {
				t.Fatal(err)
			}
			if info.SceneIndex != s || info.CurrentPage != p || info.TotalPages != n {
				t.Errorf("SceneInfo() = %+v after GetImage(%d, %d)", info, s, p)
			}
		}
	}

	// nil scene index uses the current scene
	got, err := v.GetImage(ctx, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.SceneIndex != len(pageCounts)-1 {
		t.Errorf("GetImage(nil, 0) scene = %d, want %d", got.SceneIndex, len(pageCounts)-1)
	}
}

func TestGetImageOutOfBounds(t *testing.T) {
	ctx := context.Background()
	dir := newTestCollection(t, 3, 2)
	v := newTestViewer(t)
	if _, err := v.LoadCollection(ctx, dir); err != nil {
		t.Fatal(err)
	}
	if _, err := v.GetImage(ctx, nil, 1); err != nil {
		t.Fatal(err)
	}
	want := currentPosition(t, v)

	one, nine := 1, 9
	tests := []struct {
		name  string
		scene *int
		page  int
	}{
		{"page past the end", nil, 3},
		{"negative page", nil, -1},
		{"page past the end of another scene", &one, 2},
		{"scene past the end", &nine, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.GetImage(ctx, tt.scene, tt.page); !errors.Is(err, ErrOutOfBounds) {
				t.Errorf("GetImage() error = %v, want ErrOutOfBounds", err)
			}
			if got := currentPosition(t, v); got != want {
				t.Errorf("position = %+v, want %+v", got, want)
			}
		})
	}
}

func TestNavigationFailureKeepsState(t *testing.T) {
	ctx := context.Background()

	t.Run("missing image", func(t *testing.T) {
		dir := newTestCollection(t, 3, 2)
		v := newTestViewer(t, WithPrefetchCount(0))
		if _, err := v.LoadCollection(ctx, dir); err != nil {
			t.Fatal(err)
		}
		if err := os.Remove(filepath.Join(dir, "scene00", "page_01.png")); err != nil {
			t.Fatal(err)
		}
		if _, err := v.NextPage(ctx); !errors.Is(err, ErrIO) {
			t.Errorf("NextPage() error = %v, want ErrIO", err)
		}
		if got := currentPosition(t, v); got != (position{0, 0}) {
			t.Errorf("position = %+v, want {0 0}", got)
		}
	})

	t.Run("corrupt image", func(t *testing.T) {
		dir := newTestCollection(t, 3, 2)
		v := newTestViewer(t, WithPrefetchCount(0))
		if _, err := v.LoadCollection(ctx, dir); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "scene00", "page_02.png"), []byte("broken"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := v.GetImage(ctx, nil, 2); !errors.Is(err, ErrDecode) {
			t.Errorf("GetImage() error = %v, want ErrDecode", err)
		}
		if got := currentPosition(t, v); got != (position{0, 0}) {
			t.Errorf("position = %+v, want {0 0}", got)
		}
	})

	t.Run("corrupt scene file", func(t *testing.T) {
		dir := newTestCollection(t, 3, 2)
		v := newTestViewer(t)
		if _, err := v.LoadCollection(ctx, dir); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "scene_01.json"), []byte("{"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := v.NextScene(ctx); !errors.Is(err, ErrCollection) {
			t.Errorf("NextScene() error = %v, want ErrCollection", err)
		}
		one := 1
		if _, err := v.GetImage(ctx, &one, 0); !errors.Is(err, ErrCollection) {
			t.Errorf("GetImage() error = %v, want ErrCollection", err)
		}
		if got := currentPosition(t, v); got != (position{0, 0}) {
			t.Errorf("position = %+v, want {0 0}", got)
		}
	})

	t.Run("scene without pages", func(t *testing.T) {
		dir := newTestCollection(t, 3, 2)
		writeSceneFile(t, filepath.Join(dir, "scene_01.json"), "empty", nil)
		v := newTestViewer(t)
		if _, err := v.LoadCollection(ctx, dir); err != nil {
			t.Fatal(err)
		}
		if _, err := v.PrevScene(ctx); !errors.Is(err, ErrCollection) {
			t.Errorf("PrevScene() error = %v, want ErrCollection", err)
		}
		if got := currentPosition(t, v); got != (position{0, 0}) {
			t.Errorf("position = %+v, want {0 0}", got)
		}
	})
}

func TestConcurrentNavigation(t *testing.T) {
	ctx := context.Background()
	dir := newTestCollection(t, 3, 2)
	v := newTestViewer(t)
	if _, err := v.LoadCollection(ctx, dir); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = v.NextPage(ctx)
			} else {
				_, err = v.PrevPage(ctx)
			}
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	info, err := v.SceneInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.CurrentPage < 0 || info.CurrentPage >= info.TotalPages {
		t.Errorf("SceneInfo() = %+v, page index out of range", info)
	}
}

// pagelessStore returns scenes without pages.
type pagelessStore struct{}

func (pagelessStore) FindCollections(string) ([]string, error) { return nil, nil }

func (pagelessStore) LoadCollection(dir string) (*SceneCollection, error) {
	return &SceneCollection{BasePath: dir, SceneFiles: []string{filepath.Join(dir, "scene_00.json")}}, nil
}

func (pagelessStore) LoadScene(*SceneCollection, int) (*Scene, error) {
	return &Scene{}, nil
}

func TestLoadCollectionRejectsPagelessScene(t *testing.T) {
	ctx := context.Background()
	v := newTestViewer(t, WithSceneStore(pagelessStore{}), WithLoopEnabled(true))
	if _, err := v.LoadCollection(ctx, "scenes-stub"); !errors.Is(err, ErrCollection) {
		t.Errorf("LoadCollection() error = %v, want ErrCollection", err)
	}
	if _, err := v.SceneInfo(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("SceneInfo() error = %v, want ErrNotLoaded", err)
	}
	for _, fn := range []func(context.Context) (*ImageData, error){v.NextPage, v.PrevPage} {
		if _, err := fn(ctx); !errors.Is(err, ErrNotLoaded) {
			t.Errorf("navigation error = %v, want ErrNotLoaded", err)
		}
	}
}
