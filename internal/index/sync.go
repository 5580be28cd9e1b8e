package index

import (
	"log/slog"
	"path"
	"strings"

	"github.com/starford/cardring/internal/models"
	"github.com/starford/cardring/internal/parser"
	"github.com/starford/cardring/internal/storage"
)

// Sync walks the vault and brings the cached project up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the cache
//   - the listing follows the file order of the vault
func Sync(db *DB, store storage.Provider, project string, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums(project)
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, project, m, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeletePath(project, p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	for i, m := range metas {
		if err := db.SetPosition(project, m.Path, i); err != nil {
			return err
		}
	}
	return nil
}

// indexFile parses data and upserts it into the DB.
func indexFile(db *DB, project string, meta models.FileMeta, data []byte) error {
	res, err := parser.ParseFile(meta.Path, data)
	if err != nil {
		return err
	}

	row := PageRow{
		Project:   project,
		Title:     res.Title,
		Image:     ResolveImage(meta.Path, res.Image),
		Position:  -1,
		Path:      meta.Path,
		Checksum:  meta.Checksum,
		UpdatedAt: meta.UpdatedAt,
	}
	return db.UpsertPage(row, models.PageDetail{Title: res.Title, Image: row.Image, Links: res.Links})
}

// ResolveImage makes a note's image reference usable outside the note:
// remote and data URLs are kept, local paths become vault-relative.
func ResolveImage(notePath, image string) string {
	switch {
	case image == "":
		return ""
	case strings.HasPrefix(image, "http://"), strings.HasPrefix(image, "https://"), strings.HasPrefix(image, "data:"):
		return image
	case strings.HasPrefix(image, "/"):
		return path.Clean(strings.TrimPrefix(image, "/"))
	default:
		return path.Join(path.Dir(notePath), image)
	}
}
