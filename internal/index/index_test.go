package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/cardring/internal/apperr"
	"github.com/starford/cardring/internal/models"
	"github.com/starford/cardring/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cardring-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM pages`).Scan(&count); err != nil {
		t.Fatalf("pages table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM links`).Scan(&count); err != nil {
		t.Fatalf("links table missing: %v", err)
	}
}

func TestListing_RoundTripAndOrder(t *testing.T) {
	db := testDB(t)
	if _, err := db.Listing("p"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("empty listing err = %v, want ErrNotFound", err)
	}

	first := []models.PageSummary{{Title: "B", Image: "b.png"}, {Title: "A"}, {Title: "C"}}
	if err := db.PutListing("p", first); err != nil {
		t.Fatalf("PutListing: %v", err)
	}
	second := []models.PageSummary{{Title: "C"}, {Title: "b", Image: "b2.png"}}
	if err := db.PutListing("p", second); err != nil {
		t.Fatalf("PutListing: %v", err)
	}

	got, err := db.Listing("p")
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}
	if len(got) != 2 || got[0].Title != "C" || got[1].Title != "b" || got[1].Image != "b2.png" {
		t.Errorf("listing = %+v", got)
	}
}

func TestUpsertAndGetPage(t *testing.T) {
	db := testDB(t)
	if err := db.PutListing("p", []models.PageSummary{{Title: "Hello", Image: "cover.png"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Page("p", "hello"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("listed-only page err = %v, want ErrNotFound", err)
	}

	detail := models.PageDetail{Title: "Hello", Links: []string{"World", "Go"}, Related: []string{"Misc"}}
	if err := db.UpsertPage(PageRow{Project: "p", Title: "Hello", Position: -1}, detail); err != nil {
		t.Fatalf("UpsertPage: %v", err)
	}

	got, err := db.Page("p", "HELLO")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if got.Title != "Hello" || got.Image != "cover.png" {
		t.Errorf("page = %+v, want listing image kept", got)
	}
	if len(got.Links) != 2 || got.Links[0] != "World" || got.Links[1] != "Go" {
		t.Errorf("links = %v", got.Links)
	}
	if len(got.Related) != 1 || got.Related[0] != "Misc" {
		t.Errorf("related = %v", got.Related)
	}

	listing, _ := db.Listing("p")
	if len(listing) != 1 {
		t.Errorf("upsert with negative position dropped the page from the listing: %v", listing)
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPage(PageRow{Project: "p", Title: "A"}, models.PageDetail{Links: []string{"b"}})
	_ = db.UpsertPage(PageRow{Project: "p", Title: "C"}, models.PageDetail{Related: []string{"B"}})
	_ = db.UpsertPage(PageRow{Project: "other", Title: "D"}, models.PageDetail{Links: []string{"B"}})

	bl, err := db.Backlinks("p", "B")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 || bl[0] != "A" || bl[1] != "C" {
		t.Fatalf("backlinks = %v, want [A C]", bl)
	}

	projects, err := db.Projects()
	if err != nil {
		t.Fatalf("Projects: %v", err)
	}
	if len(projects) != 2 || projects[0] != "other" || projects[1] != "p" {
		t.Errorf("projects = %v", projects)
	}
}

func TestDeletePath(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPage(PageRow{Project: "p", Title: "Del", Path: "del.md", Checksum: "x"}, models.PageDetail{Links: []string{"target"}})

	if err := db.DeletePath("p", "del.md"); err != nil {
		t.Fatalf("DeletePath: %v", err)
	}
	cs, _ := db.GetChecksum("p", "del.md")
	if cs != "" {
		t.Errorf("deleted page still has checksum %q", cs)
	}
	bl, _ := db.Backlinks("p", "target")
	if len(bl) != 0 {
		t.Errorf("expected 0 backlinks after delete, got %d", len(bl))
	}
}

func TestSync(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		p := filepath.Join(dir, filepath.FromSlash(name))
		_ = os.MkdirAll(filepath.Dir(p), 0o755)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("b.md", "# Beta\n![pic](img/b.png)\n[[Alpha]]")
	write("a.md", "---\ntitle: Alpha\n---\nbody")
	write("notes/c.md", "links to [[beta]]")

	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	if err := Sync(db, store, "vault", quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	listing, err := db.Listing("vault")
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}
	titles := []string{}
	for _, p := range listing {
		titles = append(titles, p.Title)
	}
	if len(titles) != 3 || titles[0] != "Alpha" || titles[1] != "Beta" || titles[2] != "c" {
		t.Errorf("titles = %v", titles)
	}
	if listing[1].Image != "img/b.png" {
		t.Errorf("image = %q", listing[1].Image)
	}

	_ = os.Remove(filepath.Join(dir, "a.md"))
	if err := Sync(db, store, "vault", quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, err := db.Page("vault", "alpha"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("removed note still cached: %v", err)
	}
	bl, _ := db.Backlinks("vault", "Beta")
	if len(bl) != 1 || bl[0] != "c" {
		t.Errorf("backlinks = %v", bl)
	}
}

func TestResolveImage(t *testing.T) {
	tests := []struct{ note, image, want string }{
		{"a.md", "", ""},
		{"a.md", "https://x.test/a.png", "https://x.test/a.png"},
		{"sub/a.md", "img/a.png", "sub/img/a.png"},
		{"sub/a.md", "../img/a.png", "img/a.png"},
		{"sub/a.md", "/img/a.png", "img/a.png"},
	}
	for _, tt := range tests {
		if got := ResolveImage(tt.note, tt.image); got != tt.want {
			t.Errorf("ResolveImage(%q, %q) = %q, want %q", tt.note, tt.image, got, tt.want)
		}
	}
}
