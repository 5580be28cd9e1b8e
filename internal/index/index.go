package index

import "github.com/starford/cardring/internal/models"

// PageCache defines the page cache operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type PageCache interface {
	PutListing(project string, pages []models.PageSummary) error
	Listing(project string) ([]models.PageSummary, error)
	UpsertPage(row PageRow, detail models.PageDetail) error
	Page(project, title string) (*models.PageDetail, error)
	DeletePath(project, path string) error
	GetChecksum(project, path string) (string, error)
	AllChecksums(project string) (map[string]string, error)
	Backlinks(project, title string) ([]string, error)
	Projects() ([]string, error)
	Close() error
}

// Verify *DB satisfies PageCache at compile time.
var _ PageCache = (*DB)(nil)
