package scene

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/cardring/internal/linkgraph"
	"github.com/starford/cardring/internal/models"
	"github.com/starford/cardring/internal/texture"
)

// Fetcher supplies project pages and their images.
type Fetcher interface {
	// ProjectPages lists the pages of a project in ring order.
	ProjectPages(ctx context.Context, project string) ([]models.PageSummary, error)
	// PageDetail returns one page with its links.
	PageDetail(ctx context.Context, project, title string) (*models.PageDetail, error)
	// ImageDataURI returns the image at url as a data URI. It never fails;
	// unreachable images come back as texture.Placeholder.
	ImageDataURI(ctx context.Context, url string) string
}

// Loaded is a card whose page detail and image have both resolved.
type Loaded struct {
	Card *Card
	Page linkgraph.Page
}

// LoadCard fetches the detail and the image of one listed page in parallel
// and returns the card once both are available.
func LoadCard(ctx context.Context, f Fetcher, project string, summary models.PageSummary) (*Loaded, error) {
	var (
		detail  *models.PageDetail
		dataURI string
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := f.PageDetail(gCtx, project, summary.Title)
		if err != nil {
			return fmt.Errorf("scene: page %q: %w", summary.Title, err)
		}
		detail = d
		return nil
	})
	if summary.Image != "" {
		g.Go(func() error {
			dataURI = f.ImageDataURI(gCtx, summary.Image)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if dataURI == "" {
		dataURI = texture.Placeholder
		if detail.Image != "" {
			dataURI = f.ImageDataURI(ctx, detail.Image)
		}
	}

	title := detail.Title
	if title == "" {
		title = summary.Title
	}
	tex, err := texture.Build(title, dataURI)
	if err != nil {
		tex = texture.Fallback(title)
	}

	return &Loaded{
		Card: &Card{Title: linkgraph.Normalize(title), Display: title, Texture: tex},
		Page: linkgraph.Page{Title: title, Links: linkgraph.Merge(detail.Links, detail.Related)},
	}, nil
}

// LoadProject loads every page of project with at most concurrency requests
// in flight. Pages that fail to load are logged and left out; the remaining
// cards keep the listing order. The link graph covers the loaded pages.
func LoadProject(ctx context.Context, f Fetcher, project string, concurrency int, logger *slog.Logger) ([]*Card, linkgraph.Graph, error) {
	pages, err := f.ProjectPages(ctx, project)
	if err != nil {
		return nil, nil, fmt.Errorf("scene: list %s: %w", project, err)
	}

	results := make([]*Loaded, len(pages))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, p := range pages {
		g.Go(func() error {
			l, err := LoadCard(gCtx, f, project, p)
			if err != nil {
				if ctxErr := gCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("scene: load card failed",
					slog.String("project", project),
					slog.String("title", p.Title),
					slog.String("error", err.Error()))
				return nil
			}
			results[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	cards := make([]*Card, 0, len(results))
	graph := linkgraph.Graph{}
	seen := make(map[string]struct{}, len(results))
	for _, l := range results {
		if l == nil {
			continue
		}
		if _, dup := seen[l.Card.Title]; dup {
			continue
		}
		seen[l.Card.Title] = struct{}{}
		cards = append(cards, l.Card)
		graph = linkgraph.AddPage(l.Page, graph)
	}

	logger.Info("scene: project loaded",
		slog.String("project", project),
		slog.Int("listed", len(pages)),
		slog.Int("cards", len(cards)),
		slog.Bool("symmetric", graph.Symmetric()))
	return cards, graph, nil
}
