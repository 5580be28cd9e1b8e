package vault

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/cardring/internal/apperr"
	"github.com/starford/cardring/internal/testutil"
	"github.com/starford/cardring/internal/texture"
)

type stubRemote struct{ calls atomic.Int32 }

func (s *stubRemote) ImageDataURI(context.Context, string) string {
	s.calls.Add(1)
	return "data:image/png;base64,AAAA"
}

func testSource(t *testing.T) (*Source, string, *stubRemote) {
	t.Helper()
	dir, store := testutil.TestVault(t, map[string][]byte{
		"alpha.md":      []byte("# Alpha\n![cover](img/alpha.png)\nSee [[Beta]]."),
		"beta.md":       []byte("---\ntitle: Beta\nimage: https://img.test/b.png\n---\nplain"),
		"img/alpha.png": testutil.PNG(t, 3, 3),
		"notes.txt":     []byte("not an image"),
	})
	remote := &stubRemote{}
	return NewSource("notes", testutil.TestDB(t), store, remote, testutil.Logger()), dir, remote
}

func TestSource_PagesAndDetails(t *testing.T) {
	s, _, _ := testSource(t)
	ctx := context.Background()

	pages, err := s.ProjectPages(ctx, "notes")
	if err != nil {
		t.Fatalf("ProjectPages: %v", err)
	}
	if len(pages) != 2 || pages[0].Title != "Alpha" || pages[0].Image != "img/alpha.png" || pages[1].Title != "Beta" {
		t.Fatalf("pages = %+v", pages)
	}

	d, err := s.PageDetail(ctx, "notes", "alpha")
	if err != nil {
		t.Fatalf("PageDetail: %v", err)
	}
	if len(d.Links) != 1 || d.Links[0] != "Beta" {
		t.Errorf("links = %v", d.Links)
	}

	if _, err := s.ProjectPages(ctx, "other"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown project err = %v", err)
	}
}

func TestSource_ImageDataURI(t *testing.T) {
	s, _, remote := testSource(t)
	ctx := context.Background()

	if got := s.ImageDataURI(ctx, "img/alpha.png"); !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("local image = %q", got)
	}
	if got := s.ImageDataURI(ctx, "https://img.test/b.png"); got != "data:image/png;base64,AAAA" || remote.calls.Load() != 1 {
		t.Errorf("remote image = %q (calls %d)", got, remote.calls.Load())
	}
	for _, ref := range []string{"missing.png", "notes.txt", "../outside.png"} {
		if got := s.ImageDataURI(ctx, ref); got != texture.Placeholder {
			t.Errorf("ImageDataURI(%q) = %q, want placeholder", ref, got)
		}
	}
}

func TestSource_WatchDebouncesChanges(t *testing.T) {
	s, dir, _ := testSource(t)
	if err := s.Sync(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	go s.Watch(ctx, 100*time.Millisecond, func() { changes.Add(1) })
	time.Sleep(100 * time.Millisecond)

	testutil.WriteFile(t, dir, "gamma.md", []byte("# Gamma\n[[Alpha]]"))
	testutil.WriteFile(t, dir, "delta.md", []byte("# Delta"))

	deadline := time.Now().Add(5 * time.Second)
	for changes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if changes.Load() == 0 {
		t.Fatal("onChange never called")
	}

	pages, err := s.ProjectPages(context.Background(), "notes")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 4 {
		t.Errorf("pages after change = %+v", pages)
	}
}
