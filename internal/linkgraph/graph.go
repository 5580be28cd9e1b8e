// Package linkgraph builds the symmetric page-to-page link graph used to pick
// preview cards.
package linkgraph

import (
	"maps"
	"slices"
	"strings"
)

// Page is one ingested page: its title and the titles it links to.
type Page struct {
	Title string
	Links []string
}

// Graph maps a normalized title to the ordered, deduplicated titles it is
// linked with. After every AddPage the graph is symmetric over the titles it
// contains.
type Graph map[string][]string

// Normalize returns the canonical form of a title. Titles compare
// case-insensitively.
func Normalize(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Merge unions explicit links with related titles, preserving first-seen
// order. The result is not normalized.
func Merge(explicit, related []string) []string {
	seen := make(map[string]struct{}, len(explicit)+len(related))
	out := make([]string, 0, len(explicit)+len(related))
	for _, group := range [][]string{explicit, related} {
		for _, t := range group {
			key := Normalize(t)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// AddPage ingests page into g and returns g. A nil g is allocated.
//
// Links are normalized, self-references dropped and duplicates removed. For
// every title already in the graph the missing direction of a link is added,
// so the result does not depend on ingestion order. Re-adding a title unions
// the new links with the ones it already has.
func AddPage(page Page, g Graph) Graph {
	if g == nil {
		g = make(Graph)
	}
	title := Normalize(page.Title)
	if title == "" {
		return g
	}

	links := g[title]
	for _, l := range page.Links {
		links = appendUnique(links, Normalize(l), title)
	}

	outgoing := make(map[string]struct{}, len(links))
	for _, l := range links {
		outgoing[l] = struct{}{}
	}

	// Sorted so back-links are appended in a stable order.
	for _, other := range slices.Sorted(maps.Keys(g)) {
		if other == title {
			continue
		}
		otherLinks := g[other]
		if _, ok := outgoing[other]; ok {
			g[other] = appendUnique(otherLinks, title, other)
		}
		if contains(otherLinks, title) {
			links = appendUnique(links, other, title)
		}
	}

	if links == nil {
		links = []string{}
	}
	g[title] = links
	return g
}

// Links returns the titles linked with title, or nil if it was never added.
func (g Graph) Links(title string) []string {
	return g[Normalize(title)]
}

// Symmetric reports whether every link between two titles of g exists in
// both directions. Links to titles outside g are ignored.
func (g Graph) Symmetric() bool {
	for a, links := range g {
		for _, b := range links {
			back, ok := g[b]
			if !ok {
				continue
			}
			if !contains(back, a) {
				return false
			}
		}
	}
	return true
}

func appendUnique(list []string, title, self string) []string {
	if title == "" || title == self || contains(list, title) {
		return list
	}
	return append(list, title)
}

func contains(list []string, title string) bool {
	for _, t := range list {
		if t == title {
			return true
		}
	}
	return false
}
