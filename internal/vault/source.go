// Package vault serves a directory of Markdown notes as a card project.
package vault

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/starford/cardring/internal/apperr"
	"github.com/starford/cardring/internal/index"
	"github.com/starford/cardring/internal/models"
	"github.com/starford/cardring/internal/storage"
	"github.com/starford/cardring/internal/texture"
)

// RemoteImages resolves images that live outside the vault.
type RemoteImages interface {
	ImageDataURI(ctx context.Context, url string) string
}

// Source reads one project from a vault through the page cache.
type Source struct {
	project string
	db      *index.DB
	store   storage.Provider
	remote  RemoteImages
	logger  *slog.Logger

	mu sync.Mutex // serialises Sync
}

// NewSource creates a source exposing store as project. remote may be nil,
// in which case remote images resolve to the placeholder.
func NewSource(project string, db *index.DB, store storage.Provider, remote RemoteImages, logger *slog.Logger) *Source {
	return &Source{project: project, db: db, store: store, remote: remote, logger: logger}
}

// Project returns the project name the vault is served under.
func (s *Source) Project() string { return s.project }

func (s *Source) check(project string) error {
	if project != s.project {
		return fmt.Errorf("vault: unknown project %q: %w", project, apperr.ErrNotFound)
	}
	return nil
}

// Sync brings the cache up to date with the files on disk.
func (s *Source) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return index.Sync(s.db, s.store, s.project, s.logger)
}

// ProjectPages syncs the vault and returns its notes in file order.
func (s *Source) ProjectPages(_ context.Context, project string) ([]models.PageSummary, error) {
	if err := s.check(project); err != nil {
		return nil, err
	}
	if err := s.Sync(); err != nil {
		return nil, fmt.Errorf("vault: sync: %w", err)
	}
	return s.db.Listing(project)
}

// PageDetail returns a note with its wikilinks.
func (s *Source) PageDetail(_ context.Context, project, title string) (*models.PageDetail, error) {
	if err := s.check(project); err != nil {
		return nil, err
	}
	return s.db.Page(project, title)
}

// ImageDataURI encodes a vault image, or resolves a remote one. Any failure
// yields texture.Placeholder.
func (s *Source) ImageDataURI(ctx context.Context, ref string) string {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return ref
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if s.remote == nil {
			return texture.Placeholder
		}
		return s.remote.ImageDataURI(ctx, ref)
	}

	data, err := s.store.Read(path.Clean(ref))
	if err != nil {
		s.logger.Debug("vault: image unreadable", slog.String("path", ref), slog.String("error", err.Error()))
		return texture.Placeholder
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return texture.Placeholder
	}
	return texture.EncodeDataURI(mime, data)
}

// Watch keeps the cache in step with the vault until ctx is cancelled and
// calls onChange once per burst of file changes, after quiet has passed
// without further events.
func (s *Source) Watch(ctx context.Context, quiet time.Duration, onChange func()) error {
	logger := s.logger.With(slog.String("project", s.project))
	return index.Watch(ctx, s.store, quiet, s.Sync, logger, func(paths []string) {
		logger.Debug("vault: changed", slog.Any("paths", paths))
		onChange()
	})
}
