// Package models defines the page types exchanged between data sources and the scene.
package models

import "time"

// PageSummary is one entry of a project page listing.
type PageSummary struct {
	Title string `json:"title"`
	Image string `json:"image,omitempty"`
}

// PageDetail is a single page with the titles it references.
type PageDetail struct {
	Title string `json:"title"`
	Image string `json:"image,omitempty"`
	// Links are the titles the page links to explicitly.
	Links []string `json:"links"`
	// Related are titles one hop away, as reported by the source.
	Related []string `json:"related"`
}

// FileMeta describes one Markdown file in a vault.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
