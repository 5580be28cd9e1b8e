package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/cardring/internal/apperr"
	"github.com/starford/cardring/internal/linkgraph"
	"github.com/starford/cardring/internal/models"
)

// Link kinds stored in the links table.
const (
	KindLink    = "link"
	KindRelated = "related"
)

// PageRow represents a row in the pages table.
type PageRow struct {
	Project string
	Title   string
	Image   string
	// Position is the index in the project listing; negative keeps the
	// stored one.
	Position  int
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Key returns the case-insensitive identity of a title.
func Key(title string) string {
	return linkgraph.Normalize(title)
}

// PutListing stores the page listing of a project. Pages missing from the
// new listing keep their details but drop out of Listing.
func (db *DB) PutListing(project string, pages []models.PageSummary) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`UPDATE pages SET position = -1 WHERE project = ?`, project); err != nil {
		return fmt.Errorf("index: reset positions: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO pages (project, title_key, title, image, position, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project, title_key) DO UPDATE SET
			title      = excluded.title,
			image      = excluded.image,
			position   = excluded.position,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("index: prepare listing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, p := range pages {
		if _, err := stmt.Exec(project, Key(p.Title), p.Title, p.Image, i, now); err != nil {
			return fmt.Errorf("index: insert listing: %w", err)
		}
	}
	return tx.Commit()
}

// Listing returns the stored listing of a project in position order.
func (db *DB) Listing(project string) ([]models.PageSummary, error) {
	rows, err := db.conn.Query(`
		SELECT title, image FROM pages
		WHERE project = ? AND position >= 0
		ORDER BY position, path`, project)
	if err != nil {
		return nil, fmt.Errorf("index: listing: %w", err)
	}
	defer rows.Close()

	var out []models.PageSummary
	for rows.Next() {
		var p models.PageSummary
		if err := rows.Scan(&p.Title, &p.Image); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("index: listing %s: %w", project, apperr.ErrNotFound)
	}
	return out, nil
}

// UpsertPage inserts or replaces a page detail and its links within a
// transaction.
func (db *DB) UpsertPage(row PageRow, detail models.PageDetail) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	key := Key(row.Title)

	_, err = tx.Exec(`
		INSERT INTO pages (project, title_key, title, image, position, path, checksum, detail, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(project, title_key) DO UPDATE SET
			title      = excluded.title,
			image      = CASE WHEN excluded.image <> '' THEN excluded.image ELSE pages.image END,
			position   = CASE WHEN excluded.position >= 0 THEN excluded.position ELSE pages.position END,
			path       = excluded.path,
			checksum   = excluded.checksum,
			detail     = 1,
			updated_at = excluded.updated_at
	`, row.Project, key, row.Title, row.Image, row.Position, row.Path, row.Checksum, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert page: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE project = ? AND source = ?`, row.Project, key); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(detail.Links)+len(detail.Related) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO links (project, source, target, target_key, kind, seq)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		seq := 0
		for _, group := range []struct {
			kind   string
			titles []string
		}{{KindLink, detail.Links}, {KindRelated, detail.Related}} {
			for _, target := range group.titles {
				if _, err := stmt.Exec(row.Project, key, target, Key(target), group.kind, seq); err != nil {
					return fmt.Errorf("index: insert link: %w", err)
				}
				seq++
			}
		}
	}

	return tx.Commit()
}

// Page returns the stored detail of a page.
func (db *DB) Page(project, title string) (*models.PageDetail, error) {
	key := Key(title)
	d := &models.PageDetail{Links: []string{}, Related: []string{}}
	var detail int
	err := db.conn.QueryRow(`
		SELECT title, image, detail FROM pages WHERE project = ? AND title_key = ?`,
		project, key).Scan(&d.Title, &d.Image, &detail)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && detail == 0) {
		return nil, fmt.Errorf("index: page %s/%s: %w", project, title, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: page: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT target, kind FROM links WHERE project = ? AND source = ? ORDER BY seq`, project, key)
	if err != nil {
		return nil, fmt.Errorf("index: page links: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var target, kind string
		if err := rows.Scan(&target, &kind); err != nil {
			return nil, err
		}
		if kind == KindRelated {
			d.Related = append(d.Related, target)
		} else {
			d.Links = append(d.Links, target)
		}
	}
	return d, rows.Err()
}

// DeletePath removes the page stored from path and its outgoing links.
func (db *DB) DeletePath(project, path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`
		DELETE FROM links WHERE project = ? AND source IN (
			SELECT title_key FROM pages WHERE project = ? AND path = ?)`, project, project, path)
	_, _ = tx.Exec(`DELETE FROM pages WHERE project = ? AND path = ?`, project, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum of the page read from path, or
// empty string if not found.
func (db *DB) GetChecksum(project, path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM pages WHERE project = ? AND path = ?`, project, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every file-backed page of a project.
func (db *DB) AllChecksums(project string) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM pages WHERE project = ? AND path <> ''`, project)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// SetPosition places the page read from path at position in the listing.
func (db *DB) SetPosition(project, path string, position int) error {
	_, err := db.conn.Exec(`UPDATE pages SET position = ? WHERE project = ? AND path = ?`, position, project, path)
	if err != nil {
		return fmt.Errorf("index: set position: %w", err)
	}
	return nil
}

// Backlinks returns the titles of all pages that link to title.
func (db *DB) Backlinks(project, title string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT p.title FROM links l
		JOIN pages p ON p.project = l.project AND p.title_key = l.source
		WHERE l.project = ? AND l.target_key = ?
		ORDER BY p.title_key`, project, Key(title))
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Projects returns every project with cached pages.
func (db *DB) Projects() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT project FROM pages ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("index: projects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
